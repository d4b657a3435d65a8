package nestedset

import (
	"context"
	"fmt"
	"log/slog"
)

// Tree is the interval-maintenance engine. It owns no state beyond its
// configuration and the store handle; every interval it reports is read
// from the store at call time.
//
// The engine assumes a single logical writer per tree (or per forest
// partition). It performs no locking of its own; callers needing mutual
// exclusion should key it by the partition value.
type Tree struct {
	cfg   Config
	store Store
	log   *slog.Logger
}

type Option func(*Tree)

func WithLogger(l *slog.Logger) Option {
	return func(t *Tree) { t.log = l }
}

func New(store Store, cfg Config, opts ...Option) (*Tree, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	t := &Tree{
		cfg:   cfg,
		store: store,
		log:   slog.Default().With("system", "nestedset"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Config returns the configuration the tree was built with.
func (t *Tree) Config() Config {
	return t.cfg
}

// scope appends the forest-partition filter when partitioning is active.
func (t *Tree) scope(filters ...Filter) []Filter {
	if !t.cfg.Partitioned() {
		return filters
	}
	return append(filters, eq(FieldGroup, t.cfg.GroupValue))
}

func (t *Tree) scopedQuery(q Query) Query {
	q.Filters = t.scope(q.Filters...)
	return q
}

// withTx runs fn inside one store transaction. Any error from fn rolls the
// transaction back; commit failures roll back too and surface as a
// StorageError. This is the all-or-nothing boundary every structural
// mutation runs behind.
func (t *Tree) withTx(ctx context.Context, op string, fn func(tx Tx) error) error {
	tx, err := t.store.Begin(ctx)
	if err != nil {
		return storageErr(op+": begin", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			t.log.Error("rollback failed", "op", op, "error", rbErr)
		}
		txRollbacks.WithLabelValues(op).Inc()
		return err
	}
	if err := tx.Commit(); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			t.log.Error("rollback after failed commit failed", "op", op, "error", rbErr)
		}
		txRollbacks.WithLabelValues(op).Inc()
		return storageErr(op+": commit", err)
	}
	return nil
}

// Resolve turns a NodeRef into the current record for that node. A
// pre-resolved ref is re-read by id so the caller never operates on a
// stale interval.
func (t *Tree) Resolve(ctx context.Context, ref NodeRef) (Match, error) {
	switch ref.kind {
	case refRoot:
		return t.resolveName(ctx, t.cfg.RootName, true)
	case refByID:
		return t.resolveID(ctx, ref.id)
	case refResolved:
		return t.resolveID(ctx, ref.node.ID)
	case refByName:
		return t.resolveName(ctx, ref.name, true)
	}
	return Match{}, fmt.Errorf("unrecognized node reference")
}

// Root resolves the root node, auto-creating it when configured to.
func (t *Tree) Root(ctx context.Context) (Node, error) {
	m, err := t.resolveName(ctx, t.cfg.RootName, true)
	if err != nil {
		return Node{}, err
	}
	return m.Node, nil
}

func (t *Tree) resolveID(ctx context.Context, id int64) (Match, error) {
	rows, err := t.store.Select(ctx, Query{Filters: t.scope(eq(FieldID, id))})
	if err != nil {
		return Match{}, storageErr("resolve", err)
	}
	if len(rows) == 0 {
		return Match{}, fmt.Errorf("node id %d: %w", id, ErrNotFound)
	}
	return Match{Node: rows[0]}, nil
}

func (t *Tree) resolveName(ctx context.Context, name string, allowCreate bool) (Match, error) {
	rows, err := t.store.Select(ctx, Query{Filters: t.scope(eq(FieldName, name))})
	if err != nil {
		return Match{}, storageErr("resolve", err)
	}
	if len(rows) == 0 {
		if allowCreate && name == t.cfg.RootName && t.cfg.AutoCreateRoot {
			if err := t.createRoot(ctx); err != nil {
				return Match{}, err
			}
			return t.resolveName(ctx, name, false)
		}
		return Match{}, fmt.Errorf("node %q: %w", name, ErrNotFound)
	}
	if len(rows) > 1 {
		// Name uniqueness is assumed, not enforced. First match in store
		// order wins; the condition is surfaced, not fatal.
		t.log.Warn("ambiguous name lookup", "name", name, "matches", len(rows))
		ambiguousLookups.Inc()
		return Match{Node: rows[0], Ambiguous: true}, nil
	}
	return Match{Node: rows[0]}, nil
}

func (t *Tree) createRoot(ctx context.Context) error {
	t.log.Info("auto-creating root node", "name", t.cfg.RootName, "group", t.cfg.GroupValue)
	return t.withTx(ctx, "create-root", func(tx Tx) error {
		root := Node{Name: t.cfg.RootName, Left: 1, Right: 2}
		if t.cfg.Partitioned() {
			root.Group = t.cfg.GroupValue
		}
		if _, err := tx.Insert(ctx, root); err != nil {
			return storageErr("create-root", err)
		}
		return nil
	})
}
