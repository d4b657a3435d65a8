package nestedset

import (
	"context"
)

// Field identifies one logical column of a nested-set record. Stores
// translate fields to the physical column names in their Config.
type Field int

const (
	FieldID Field = iota
	FieldName
	FieldLeft
	FieldRight
	FieldGroup
)

// Op is a comparison operator in a Filter.
type Op int

const (
	OpEq Op = iota
	OpGt
	OpGe
	OpLt
	OpLe
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	}
	return "?"
}

// Filter is one predicate term; terms in a query or update are ANDed.
// Value is an int64 for the interval and id fields and a string for name
// and group.
type Filter struct {
	Field Field
	Op    Op
	Value any
}

// Query selects records. A zero OrderBy means store order.
type Query struct {
	Filters []Filter
	OrderBy Field
	Ordered bool
	Desc    bool
	Limit   int
}

// Store is the record store the tree engine runs against. Reads outside a
// transaction go through Select directly; every structural mutation opens
// exactly one Tx.
type Store interface {
	Select(ctx context.Context, q Query) ([]Node, error)
	Begin(ctx context.Context) (Tx, error)
}

// Tx is an open transaction. Rollback must fully undo every Insert, Delete
// and AddDelta issued since Begin. Commit and Rollback are terminal; a Tx
// is never reused.
type Tx interface {
	Select(ctx context.Context, q Query) ([]Node, error)

	// Insert writes one record and returns its assigned id.
	Insert(ctx context.Context, n Node) (int64, error)

	// Delete removes every record matching all filters and reports how
	// many rows went away.
	Delete(ctx context.Context, filters ...Filter) (int64, error)

	// AddDelta applies `col = col + delta` to every record matching all
	// filters. It is the single statement shape the interval shifter
	// needs.
	AddDelta(ctx context.Context, f Field, delta int64, filters ...Filter) error

	Commit() error
	Rollback() error
}

func eq(f Field, v any) Filter { return Filter{Field: f, Op: OpEq, Value: v} }

func gt(f Field, v int64) Filter { return Filter{Field: f, Op: OpGt, Value: v} }

func ge(f Field, v int64) Filter { return Filter{Field: f, Op: OpGe, Value: v} }

func lt(f Field, v int64) Filter { return Filter{Field: f, Op: OpLt, Value: v} }

func le(f Field, v int64) Filter { return Filter{Field: f, Op: OpLe, Value: v} }
