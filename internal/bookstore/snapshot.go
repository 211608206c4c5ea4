package bookstore

import "strconv"

func bookKey(b Book) string              { return b.ID }
func saleKey(s Sale) string              { return s.BookID }
func balanceKey(b Balance) string        { return string(b.Identity) }
func cartKey(c Cart) string              { return string(c.Identity) }
func orderKey(o Order) string            { return o.OrderID }
func kycKey(k KycRecord) string          { return k.Identifier }
func roleKey(r RoleAssignment) string    { return string(r.Identity) }
func profileKey(p Profile) string        { return string(p.Identity) }
func messageKey(m SupportMessage) string { return strconv.FormatInt(m.ID, 10) }

// Validate checks structural shape only: no collection may repeat a key.
func (s Snapshot) Validate() error {
	checks := []struct {
		name string
		dup  string
	}{
		{"books", firstDup(s.Books, bookKey)},
		{"sales", firstDup(s.Sales, saleKey)},
		{"balances", firstDup(s.Balances, balanceKey)},
		{"carts", firstDup(s.Carts, cartKey)},
		{"orders", firstDup(s.Orders, orderKey)},
		{"kyc", firstDup(s.Kyc, kycKey)},
		{"roles", firstDup(s.Roles, roleKey)},
		{"profiles", firstDup(s.Profiles, profileKey)},
		{"messages", firstDup(s.Messages, messageKey)},
	}
	for _, c := range checks {
		if c.dup != "" {
			return Newf(CodeInvalidInput, "snapshot %s repeats key %q", c.name, c.dup)
		}
	}
	return nil
}

// MergeSnapshots applies incoming over current, last write wins per key.
// Keys only in current survive; incoming scalars replace current ones.
func MergeSnapshots(current, incoming Snapshot) Snapshot {
	out := Snapshot{
		Books:    mergeByKey(current.Books, incoming.Books, bookKey),
		Sales:    mergeByKey(current.Sales, incoming.Sales, saleKey),
		Balances: mergeByKey(current.Balances, incoming.Balances, balanceKey),
		Carts:    mergeByKey(current.Carts, incoming.Carts, cartKey),
		Orders:   mergeByKey(current.Orders, incoming.Orders, orderKey),
		Kyc:      mergeByKey(current.Kyc, incoming.Kyc, kycKey),
		Roles:    mergeByKey(current.Roles, incoming.Roles, roleKey),
		Profiles: mergeByKey(current.Profiles, incoming.Profiles, profileKey),
		Messages: mergeByKey(current.Messages, incoming.Messages, messageKey),
		Settings: incoming.Settings,
	}
	if out.Settings.DesignatedOwner == Anonymous {
		out.Settings.DesignatedOwner = current.Settings.DesignatedOwner
	}
	// message ids must stay unique after the merge
	for _, m := range out.Messages {
		if m.ID >= out.Settings.NextMessageID {
			out.Settings.NextMessageID = m.ID + 1
		}
	}
	return out
}

// mergeByKey keeps current order and appends keys first seen in incoming.
func mergeByKey[T any](current, incoming []T, key func(T) string) []T {
	pos := make(map[string]int, len(current)+len(incoming))
	out := make([]T, 0, len(current)+len(incoming))
	for _, v := range current {
		if i, ok := pos[key(v)]; ok {
			out[i] = v
			continue
		}
		pos[key(v)] = len(out)
		out = append(out, v)
	}
	for _, v := range incoming {
		if i, ok := pos[key(v)]; ok {
			out[i] = v
			continue
		}
		pos[key(v)] = len(out)
		out = append(out, v)
	}
	return out
}

func firstDup[T any](items []T, key func(T) string) string {
	seen := make(map[string]struct{}, len(items))
	for _, v := range items {
		k := key(v)
		if _, ok := seen[k]; ok {
			return k
		}
		seen[k] = struct{}{}
	}
	return ""
}
