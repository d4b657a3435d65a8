package nestedset

import (
	"context"
)

// ShiftMode selects the boundary thresholds of a Shift. A shift moves
// every interval value past a boundary by a fixed delta, in two passes
// (one per column); the modes differ only in whether a value sitting
// exactly on the boundary counts as "past" it.
//
//	ShiftReparent: left > b,   right >= b
//	ShiftUp:       left > b-1, right >= b
//	ShiftDown:     left > b,   right >= b+1
//
// ShiftUp moves everything at or after b, and is the mode for opening a
// gap whose first cell is b. ShiftReparent spares a left value equal to b,
// which makes it the mode for closing a gap whose last cell is b (no live
// value equals b then) and for opening a gap at a boundary known to be a
// right value. ShiftDown additionally spares a right value equal to b, for
// opening a gap immediately after the subtree whose right edge is b.
type ShiftMode int

const (
	ShiftReparent ShiftMode = iota
	ShiftUp
	ShiftDown
)

// Shift adds delta to every left/right value past boundary, per mode, in
// its own transaction. The mutators use the transaction-scoped form so a
// whole operation stays atomic.
func (t *Tree) Shift(ctx context.Context, boundary, delta int64, mode ShiftMode) error {
	return t.withTx(ctx, "shift", func(tx Tx) error {
		return t.shift(ctx, tx, boundary, delta, mode)
	})
}

// ShiftRange adds delta to the left and right of exactly the nodes whose
// interval lies entirely within [left, right], relocating one
// self-contained subtree without touching anything outside it.
func (t *Tree) ShiftRange(ctx context.Context, left, right, delta int64) error {
	return t.withTx(ctx, "shift-range", func(tx Tx) error {
		return t.shiftRange(ctx, tx, left, right, delta)
	})
}

func (t *Tree) shift(ctx context.Context, tx Tx, boundary, delta int64, mode ShiftMode) error {
	leftAfter, rightFrom := boundary, boundary
	switch mode {
	case ShiftUp:
		leftAfter = boundary - 1
	case ShiftDown:
		rightFrom = boundary + 1
	}

	if err := tx.AddDelta(ctx, FieldLeft, delta, t.scope(gt(FieldLeft, leftAfter))...); err != nil {
		return storageErr("shift left pass", err)
	}
	if err := tx.AddDelta(ctx, FieldRight, delta, t.scope(ge(FieldRight, rightFrom))...); err != nil {
		return storageErr("shift right pass", err)
	}
	return nil
}

func (t *Tree) shiftRange(ctx context.Context, tx Tx, left, right, delta int64) error {
	// A node is in range when both its values are; since [left, right]
	// always brackets whole subtrees, filtering each pass on its own
	// column selects the same rows.
	if err := tx.AddDelta(ctx, FieldLeft, delta, t.scope(ge(FieldLeft, left), le(FieldLeft, right))...); err != nil {
		return storageErr("shift-range left pass", err)
	}
	if err := tx.AddDelta(ctx, FieldRight, delta, t.scope(ge(FieldRight, left), le(FieldRight, right))...); err != nil {
		return storageErr("shift-range right pass", err)
	}
	return nil
}
