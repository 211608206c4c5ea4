package memstore

// table is an insertion-ordered keyed collection. It is not safe for
// concurrent use; Store serializes access.
type table[T any] struct {
	items map[string]T
	order []string
}

func newTable[T any]() *table[T] {
	return &table[T]{items: make(map[string]T)}
}

func (t *table[T]) get(k string) (T, bool) {
	v, ok := t.items[k]
	return v, ok
}

func (t *table[T]) list() []T {
	out := make([]T, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, t.items[k])
	}
	return out
}

// put stores v under k, keeping the position of an existing key, and
// returns the function that undoes it.
func (t *table[T]) put(k string, v T) func() {
	prev, existed := t.items[k]
	if !existed {
		t.order = append(t.order, k)
	}
	t.items[k] = v
	if existed {
		return func() { t.items[k] = prev }
	}
	return func() { t.remove(k) }
}

// del removes k and returns the undo function, nil if k was absent.
func (t *table[T]) del(k string) func() {
	prev, existed := t.items[k]
	if !existed {
		return nil
	}
	idx := t.remove(k)
	return func() {
		t.items[k] = prev
		t.order = append(t.order, "")
		copy(t.order[idx+1:], t.order[idx:])
		t.order[idx] = k
	}
}

func (t *table[T]) remove(k string) int {
	delete(t.items, k)
	for i, ok := range t.order {
		if ok == k {
			t.order = append(t.order[:i], t.order[i+1:]...)
			return i
		}
	}
	return -1
}

func (t *table[T]) load(items []T, key func(T) string) {
	for _, v := range items {
		t.put(key(v), v)
	}
}
