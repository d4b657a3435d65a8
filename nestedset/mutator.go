package nestedset

import (
	"context"
	"errors"
	"fmt"
)

// DeletePolicy decides what happens to a deleted node's descendants.
type DeletePolicy int

const (
	// DeleteSubtree removes the node together with every descendant.
	DeleteSubtree DeletePolicy = iota
	// PromoteChildren removes only the node itself; its children move up
	// one level, keeping their relative order.
	PromoteChildren
)

// Insert creates a new leaf named name under the referenced parent, at the
// given 0-based sibling position. Out-of-range positions clamp to last.
// The parent ref defaults to the root when zero.
func (t *Tree) Insert(ctx context.Context, name string, parentRef NodeRef, position int) (Node, error) {
	m, err := t.Resolve(ctx, parentRef)
	if err != nil {
		return Node{}, fmt.Errorf("resolving parent: %w", err)
	}
	parent := m.Node
	if m.Ambiguous {
		t.log.Warn("inserting under first of several parents with the same name",
			"parent", parent.Name, "id", parent.ID)
	}

	// Pick the gap position and the shift mode whose thresholds are exact
	// for it. The gap's first cell is `at`; see ShiftMode.
	var at, boundary int64
	var mode ShiftMode
	switch {
	case parent.IsLeaf():
		// Sole child, tucked directly inside the parent's right boundary.
		at, boundary, mode = parent.Right, parent.Right, ShiftReparent
	case position <= 0:
		// First child: everything from the current first child on moves.
		at, boundary, mode = parent.Left+1, parent.Left+1, ShiftUp
	default:
		kids, err := t.Children(ctx, Resolved(parent))
		if err != nil {
			return Node{}, err
		}
		siblings := kids[1:]
		idx := position
		if idx > len(siblings) {
			idx = len(siblings)
		}
		prev := siblings[idx-1].Node
		at, boundary, mode = prev.Right+1, prev.Right, ShiftDown
	}

	node := Node{Name: name, Left: at, Right: at + 1}
	if t.cfg.Partitioned() {
		node.Group = t.cfg.GroupValue
	}

	err = t.withTx(ctx, "insert", func(tx Tx) error {
		if err := t.shift(ctx, tx, boundary, 2, mode); err != nil {
			return err
		}
		id, err := tx.Insert(ctx, node)
		if err != nil {
			return storageErr("insert", err)
		}
		node.ID = id
		return nil
	})
	if err != nil {
		return Node{}, err
	}
	opsProcessed.WithLabelValues("insert").Inc()
	return node, nil
}

// Move reparents the referenced subtree as the first child of newParent.
// Moving to the node's current parent is a no-op, reported as (false, nil).
// Moving a node under itself or one of its own descendants is
// ErrInvalidMove; reordering among the same parent's children is
// MoveLeft/MoveRight, not Move.
func (t *Tree) Move(ctx context.Context, ref, newParentRef NodeRef) (bool, error) {
	mn, err := t.Resolve(ctx, ref)
	if err != nil {
		return false, err
	}
	mp, err := t.Resolve(ctx, newParentRef)
	if err != nil {
		return false, fmt.Errorf("resolving new parent: %w", err)
	}
	n, parent := mn.Node, mp.Node

	if parent.ID == n.ID {
		return false, fmt.Errorf("node %d as its own parent: %w", n.ID, ErrInvalidMove)
	}
	if n.Contains(parent) {
		return false, fmt.Errorf("node %d is a descendant of node %d: %w", parent.ID, n.ID, ErrInvalidMove)
	}

	cur, err := t.Parent(ctx, Resolved(n))
	switch {
	case err == nil && cur.ID == parent.ID:
		t.log.Info("move to current parent is a no-op", "node", n.ID, "parent", parent.ID)
		opsNoop.WithLabelValues("move").Inc()
		return false, nil
	case err != nil && !errors.Is(err, ErrNotFound):
		return false, err
	}

	size := n.Width()
	at := parent.Left + 1

	err = t.withTx(ctx, "move", func(tx Tx) error {
		if err := t.shift(ctx, tx, at, size, ShiftUp); err != nil {
			return err
		}
		// The gap shift just moved the stored subtree too when it lay at
		// or past the gap; track that in the local interval instead of
		// re-reading mid-operation.
		l, r := n.Left, n.Right
		if at <= l {
			l += size
			r += size
		}
		if err := t.shiftRange(ctx, tx, l, r, at-l); err != nil {
			return err
		}
		return t.shift(ctx, tx, r, -size, ShiftReparent)
	})
	if err != nil {
		return false, err
	}
	opsProcessed.WithLabelValues("move").Inc()
	return true, nil
}

// MoveLeft swaps the referenced node with its previous sibling, keeping
// its descendants attached. Already-first is a no-op, reported not raised.
func (t *Tree) MoveLeft(ctx context.Context, ref NodeRef) (bool, error) {
	return t.moveSibling(ctx, ref, true)
}

// MoveRight swaps the referenced node with its next sibling, keeping its
// descendants attached. Already-last is a no-op, reported not raised.
func (t *Tree) MoveRight(ctx context.Context, ref NodeRef) (bool, error) {
	return t.moveSibling(ctx, ref, false)
}

func (t *Tree) moveSibling(ctx context.Context, ref NodeRef, left bool) (bool, error) {
	op := "move-right"
	if left {
		op = "move-left"
	}

	m, err := t.Resolve(ctx, ref)
	if err != nil {
		return false, err
	}
	n := m.Node
	size := n.Width()

	// The adjacent sibling anchors the gap; the mode spares exactly that
	// sibling's boundary value. Moving left, the gap opens at the
	// sibling's left edge and the gap shift carries the moving node with
	// it; moving right, the gap opens past the sibling's right edge and
	// the moving node stays put.
	var at, boundary int64
	var mode ShiftMode
	l, r := n.Left, n.Right
	if left {
		sib, ok, err := t.siblingAt(ctx, FieldRight, n.Left-1)
		if err != nil {
			return false, err
		}
		if !ok {
			opsNoop.WithLabelValues(op).Inc()
			return false, nil
		}
		at, boundary, mode = sib.Left, sib.Left, ShiftUp
		l += size
		r += size
	} else {
		sib, ok, err := t.siblingAt(ctx, FieldLeft, n.Right+1)
		if err != nil {
			return false, err
		}
		if !ok {
			opsNoop.WithLabelValues(op).Inc()
			return false, nil
		}
		at, boundary, mode = sib.Right+1, sib.Right, ShiftDown
	}

	err = t.withTx(ctx, op, func(tx Tx) error {
		if err := t.shift(ctx, tx, boundary, size, mode); err != nil {
			return err
		}
		if err := t.shiftRange(ctx, tx, l, r, at-l); err != nil {
			return err
		}
		return t.shift(ctx, tx, r, -size, ShiftReparent)
	})
	if err != nil {
		return false, err
	}
	opsProcessed.WithLabelValues(op).Inc()
	return true, nil
}

// Delete removes the referenced node. With DeleteSubtree every descendant
// goes too; with PromoteChildren the descendants move up one level into
// the deleted node's place. Returns the number of rows removed.
func (t *Tree) Delete(ctx context.Context, ref NodeRef, policy DeletePolicy) (int64, error) {
	m, err := t.Resolve(ctx, ref)
	if err != nil {
		return 0, err
	}
	n := m.Node
	l, r := n.Left, n.Right

	var removed int64
	err = t.withTx(ctx, "delete", func(tx Tx) error {
		if n.IsLeaf() || policy == DeleteSubtree {
			removed, err = tx.Delete(ctx, t.scope(ge(FieldLeft, l), le(FieldLeft, r))...)
			if err != nil {
				return storageErr("delete", err)
			}
			if want := n.Descendants() + 1; removed != want {
				return fmt.Errorf("subtree of node %d spans %d rows but delete removed %d: %w",
					n.ID, want, removed, ErrStructuralAnomaly)
			}
			// Close the whole vacated range.
			return t.shift(ctx, tx, r, -n.Width(), ShiftReparent)
		}

		// Promote: drop the one row, pull the former descendants up over
		// the vacated left cell, then close the two-cell remainder.
		removed, err = tx.Delete(ctx, t.scope(eq(FieldID, n.ID))...)
		if err != nil {
			return storageErr("delete", err)
		}
		if removed != 1 {
			return fmt.Errorf("node %d matched %d rows on delete: %w", n.ID, removed, ErrStructuralAnomaly)
		}
		if err := t.shiftRange(ctx, tx, l+1, r-1, -1); err != nil {
			return err
		}
		return t.shift(ctx, tx, r, -2, ShiftReparent)
	})
	if err != nil {
		return 0, err
	}
	opsProcessed.WithLabelValues("delete").Inc()
	return removed, nil
}
