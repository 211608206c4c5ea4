package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
)

func roleOf(ctx context.Context, tx bookstore.Tx, id bookstore.Identity) (bookstore.Role, error) {
	if id == bookstore.Anonymous {
		return bookstore.RoleGuest, nil
	}
	r, ok, err := tx.Role(ctx, id)
	if err != nil {
		return "", translate(err, "load role")
	}
	if !ok {
		return bookstore.RoleUser, nil
	}
	return r, nil
}

func requireAdmin(ctx context.Context, tx bookstore.Tx, caller bookstore.Identity) error {
	r, err := roleOf(ctx, tx, caller)
	if err != nil {
		return err
	}
	if r != bookstore.RoleAdmin {
		return bookstore.New(bookstore.CodeUnauthorized, "admin role required")
	}
	return nil
}

func requireUser(ctx context.Context, tx bookstore.Tx, caller bookstore.Identity) error {
	r, err := roleOf(ctx, tx, caller)
	if err != nil {
		return err
	}
	if r == bookstore.RoleGuest {
		return bookstore.New(bookstore.CodeUnauthorized, "sign in required")
	}
	return nil
}

// requireSelfOrAdmin allows callers to read their own records.
func requireSelfOrAdmin(ctx context.Context, tx bookstore.Tx, caller, owner bookstore.Identity) error {
	if caller != bookstore.Anonymous && caller == owner {
		return nil
	}
	return requireAdmin(ctx, tx, caller)
}

func (e *Engine) Role(ctx context.Context, id bookstore.Identity) (bookstore.Role, error) {
	var role bookstore.Role
	err := e.store.View(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		var err error
		role, err = roleOf(ctx, tx, id)
		return err
	})
	return role, err
}

func (e *Engine) IsAdmin(ctx context.Context, id bookstore.Identity) (bool, error) {
	r, err := e.Role(ctx, id)
	return r == bookstore.RoleAdmin, err
}

func (e *Engine) AssignRole(ctx context.Context, caller, id bookstore.Identity, role bookstore.Role) error {
	if id == bookstore.Anonymous {
		return bookstore.New(bookstore.CodeInvalidInput, "identity is required")
	}
	if !role.Valid() {
		return bookstore.Newf(bookstore.CodeInvalidInput, "unknown role %q", role)
	}
	err := e.store.InTx(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		if err := requireAdmin(ctx, tx, caller); err != nil {
			return err
		}
		return translate(tx.SetRole(ctx, id, role), "assign role")
	})
	if err == nil {
		e.logger.InfoContext(ctx, "role assigned", "by", caller, "identity", id, "role", role)
	}
	return err
}

func (e *Engine) SaveProfile(ctx context.Context, caller bookstore.Identity, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return bookstore.New(bookstore.CodeInvalidInput, "profile name is required")
	}
	return e.store.InTx(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		if err := requireUser(ctx, tx, caller); err != nil {
			return err
		}
		return translate(tx.PutProfile(ctx, bookstore.Profile{Identity: caller, Name: name}), "save profile")
	})
}

// Profile returns the profile of id; nil when none was saved.
func (e *Engine) Profile(ctx context.Context, caller, id bookstore.Identity) (*bookstore.Profile, error) {
	var out *bookstore.Profile
	err := e.store.View(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		if err := requireSelfOrAdmin(ctx, tx, caller, id); err != nil {
			return err
		}
		p, err := tx.Profile(ctx, id)
		if errors.Is(err, bookstore.ErrNotFound) {
			return nil
		}
		if err != nil {
			return translate(err, "load profile")
		}
		out = &p
		return nil
	})
	return out, err
}

// SeedDesignatedOwner records owner as the recovery principal unless one is
// already recorded. Used at startup from configuration.
func (e *Engine) SeedDesignatedOwner(ctx context.Context, owner bookstore.Identity) error {
	if owner == bookstore.Anonymous {
		return nil
	}
	return e.store.InTx(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		s, err := tx.Settings(ctx)
		if err != nil {
			return translate(err, "load settings")
		}
		if s.DesignatedOwner != bookstore.Anonymous {
			return nil
		}
		s.DesignatedOwner = owner
		return translate(tx.PutSettings(ctx, s), "store designated owner")
	})
}

func (e *Engine) SetDesignatedOwner(ctx context.Context, caller, owner bookstore.Identity) error {
	if owner == bookstore.Anonymous {
		return bookstore.New(bookstore.CodeInvalidInput, "owner identity is required")
	}
	return e.store.InTx(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		if err := requireAdmin(ctx, tx, caller); err != nil {
			return err
		}
		s, err := tx.Settings(ctx)
		if err != nil {
			return translate(err, "load settings")
		}
		s.DesignatedOwner = owner
		return translate(tx.PutSettings(ctx, s), "store designated owner")
	})
}

func (e *Engine) DesignatedOwner(ctx context.Context) (bookstore.Identity, error) {
	var owner bookstore.Identity
	err := e.store.View(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		s, err := tx.Settings(ctx)
		owner = s.DesignatedOwner
		return translate(err, "load settings")
	})
	return owner, err
}

// RecoverAdminAccess is the one-time bootstrap: the designated owner becomes
// admin while no admin exists.
func (e *Engine) RecoverAdminAccess(ctx context.Context, caller bookstore.Identity) error {
	err := e.store.InTx(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		hasAdmin, err := tx.HasAdmin(ctx)
		if err != nil {
			return translate(err, "check admins")
		}
		if hasAdmin {
			return bookstore.New(bookstore.CodeRecoveryUnavailable, "recovery not available: an admin is already assigned")
		}
		s, err := tx.Settings(ctx)
		if err != nil {
			return translate(err, "load settings")
		}
		if s.DesignatedOwner == bookstore.Anonymous {
			return bookstore.New(bookstore.CodeRecoveryUnavailable, "recovery not available: no designated owner set")
		}
		if caller == bookstore.Anonymous || caller != s.DesignatedOwner {
			return bookstore.New(bookstore.CodeUnauthorized, "only the designated owner can recover admin access")
		}
		return translate(tx.SetRole(ctx, caller, bookstore.RoleAdmin), "grant admin")
	})
	if err == nil {
		e.logger.InfoContext(ctx, "admin access recovered", "identity", caller)
	}
	return err
}
