package nestedset

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// Memstore is an in-memory implementation of the Store interface. Rows are
// kept in insertion order, which is what "store order" means for name
// lookups. Transactions work on a snapshot and swap it in on commit, so
// rollback is a discard.
type Memstore struct {
	lk     sync.Mutex
	rows   []Node
	nextID int64
	cfg    Config
}

func NewMemstore(cfg Config) (*Memstore, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Memstore{nextID: 1, cfg: cfg}, nil
}

func (s *Memstore) Select(ctx context.Context, q Query) ([]Node, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	return applyQuery(s.rows, q), nil
}

func (s *Memstore) Begin(ctx context.Context) (Tx, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	return &memTx{store: s, rows: slices.Clone(s.rows), nextID: s.nextID}, nil
}

type memTx struct {
	store  *Memstore
	rows   []Node
	nextID int64
	done   bool
}

func (t *memTx) Select(ctx context.Context, q Query) ([]Node, error) {
	if t.done {
		return nil, fmt.Errorf("transaction already closed")
	}
	return applyQuery(t.rows, q), nil
}

func (t *memTx) Insert(ctx context.Context, n Node) (int64, error) {
	if t.done {
		return 0, fmt.Errorf("transaction already closed")
	}
	n.ID = t.nextID
	t.nextID++
	t.rows = append(t.rows, n)
	return n.ID, nil
}

func (t *memTx) Delete(ctx context.Context, filters ...Filter) (int64, error) {
	if t.done {
		return 0, fmt.Errorf("transaction already closed")
	}
	kept := t.rows[:0]
	var removed int64
	for _, n := range t.rows {
		if matchAll(n, filters) {
			removed++
			continue
		}
		kept = append(kept, n)
	}
	t.rows = kept
	return removed, nil
}

func (t *memTx) AddDelta(ctx context.Context, f Field, delta int64, filters ...Filter) error {
	if t.done {
		return fmt.Errorf("transaction already closed")
	}
	for i := range t.rows {
		if !matchAll(t.rows[i], filters) {
			continue
		}
		switch f {
		case FieldLeft:
			t.rows[i].Left += delta
		case FieldRight:
			t.rows[i].Right += delta
		default:
			return fmt.Errorf("cannot add delta to non-interval field %d", f)
		}
	}
	return nil
}

func (t *memTx) Commit() error {
	if t.done {
		return fmt.Errorf("transaction already closed")
	}
	t.done = true
	t.store.lk.Lock()
	defer t.store.lk.Unlock()
	t.store.rows = t.rows
	t.store.nextID = t.nextID
	return nil
}

func (t *memTx) Rollback() error {
	t.done = true
	return nil
}

func applyQuery(rows []Node, q Query) []Node {
	var out []Node
	for _, n := range rows {
		if matchAll(n, q.Filters) {
			out = append(out, n)
		}
	}
	if q.Ordered {
		sort.SliceStable(out, func(i, j int) bool {
			a, _ := fieldInt(out[i], q.OrderBy)
			b, _ := fieldInt(out[j], q.OrderBy)
			if q.Desc {
				return a > b
			}
			return a < b
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func matchAll(n Node, filters []Filter) bool {
	for _, f := range filters {
		if !match(n, f) {
			return false
		}
	}
	return true
}

func match(n Node, f Filter) bool {
	switch f.Field {
	case FieldName:
		s, ok := f.Value.(string)
		return ok && f.Op == OpEq && n.Name == s
	case FieldGroup:
		s, ok := f.Value.(string)
		return ok && f.Op == OpEq && n.Group == s
	}

	have, ok := fieldInt(n, f.Field)
	if !ok {
		return false
	}
	want, ok := f.Value.(int64)
	if !ok {
		return false
	}
	switch f.Op {
	case OpEq:
		return have == want
	case OpGt:
		return have > want
	case OpGe:
		return have >= want
	case OpLt:
		return have < want
	case OpLe:
		return have <= want
	}
	return false
}

func fieldInt(n Node, f Field) (int64, bool) {
	switch f {
	case FieldID:
		return n.ID, true
	case FieldLeft:
		return n.Left, true
	case FieldRight:
		return n.Right, true
	}
	return 0, false
}
