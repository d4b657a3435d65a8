package nestedset

import (
	"context"
	"fmt"
)

// Children returns the resolved parent (depth 0) followed by its immediate
// children (depth 1) in left-to-right sibling order. Deeper descendants are
// excluded. This is the primitive that turns a sibling position into
// concrete interval boundaries.
func (t *Tree) Children(ctx context.Context, ref NodeRef) ([]NodeDepth, error) {
	m, err := t.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	all, err := t.subtreeNodes(ctx, m.Node)
	if err != nil {
		return nil, err
	}
	var out []NodeDepth
	for _, nd := range withDepths(all) {
		if nd.Depth <= 1 {
			out = append(out, nd)
		}
	}
	if !m.Node.IsLeaf() && len(out) < 2 {
		return nil, fmt.Errorf("node %d spans %d descendants but store returned none: %w",
			m.Node.ID, m.Node.Descendants(), ErrStructuralAnomaly)
	}
	return out, nil
}

// Subtree returns the resolved node and every descendant, each tagged with
// its depth relative to the anchor, in preorder (ascending left).
func (t *Tree) Subtree(ctx context.Context, ref NodeRef) ([]NodeDepth, error) {
	m, err := t.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	all, err := t.subtreeNodes(ctx, m.Node)
	if err != nil {
		return nil, err
	}
	return withDepths(all), nil
}

// Parent returns the tightest interval enclosing the referenced node, or
// ErrNotFound when the node is a root.
func (t *Tree) Parent(ctx context.Context, ref NodeRef) (Node, error) {
	m, err := t.Resolve(ctx, ref)
	if err != nil {
		return Node{}, err
	}
	rows, err := t.store.Select(ctx, t.scopedQuery(Query{
		Filters: []Filter{lt(FieldLeft, m.Node.Left), gt(FieldRight, m.Node.Right)},
		OrderBy: FieldLeft,
		Ordered: true,
		Desc:    true,
		Limit:   1,
	}))
	if err != nil {
		return Node{}, storageErr("parent", err)
	}
	if len(rows) == 0 {
		return Node{}, fmt.Errorf("node %d has no parent: %w", m.Node.ID, ErrNotFound)
	}
	return rows[0], nil
}

// PrevSibling returns the sibling immediately to the left of the node; ok
// is false when the node is the first child.
func (t *Tree) PrevSibling(ctx context.Context, ref NodeRef) (Node, bool, error) {
	m, err := t.Resolve(ctx, ref)
	if err != nil {
		return Node{}, false, err
	}
	return t.siblingAt(ctx, FieldRight, m.Node.Left-1)
}

// NextSibling returns the sibling immediately to the right of the node; ok
// is false when the node is the last child.
func (t *Tree) NextSibling(ctx context.Context, ref NodeRef) (Node, bool, error) {
	m, err := t.Resolve(ctx, ref)
	if err != nil {
		return Node{}, false, err
	}
	return t.siblingAt(ctx, FieldLeft, m.Node.Right+1)
}

func (t *Tree) siblingAt(ctx context.Context, f Field, boundary int64) (Node, bool, error) {
	rows, err := t.store.Select(ctx, Query{Filters: t.scope(eq(f, boundary))})
	if err != nil {
		return Node{}, false, storageErr("sibling", err)
	}
	if len(rows) == 0 {
		return Node{}, false, nil
	}
	return rows[0], true, nil
}

// All returns every node in the active partition in preorder. With
// partitioning off and multiple roots present this is the whole forest.
func (t *Tree) All(ctx context.Context) ([]Node, error) {
	rows, err := t.store.Select(ctx, t.scopedQuery(Query{
		OrderBy: FieldLeft,
		Ordered: true,
	}))
	if err != nil {
		return nil, storageErr("all", err)
	}
	return rows, nil
}

// DescendantCount reports how many nodes sit below ref. The count comes
// straight from the interval width, so no subtree scan happens.
func (t *Tree) DescendantCount(ctx context.Context, ref NodeRef) (int64, error) {
	m, err := t.Resolve(ctx, ref)
	if err != nil {
		return 0, err
	}
	return m.Node.Descendants(), nil
}

func (t *Tree) subtreeNodes(ctx context.Context, n Node) ([]Node, error) {
	rows, err := t.store.Select(ctx, t.scopedQuery(Query{
		Filters: []Filter{ge(FieldLeft, n.Left), le(FieldRight, n.Right)},
		OrderBy: FieldLeft,
		Ordered: true,
	}))
	if err != nil {
		return nil, storageErr("subtree", err)
	}
	return rows, nil
}

// withDepths tags a preordered interval-nested slice with depths relative
// to its first element, using the rights seen so far as the ancestor stack.
func withDepths(nodes []Node) []NodeDepth {
	out := make([]NodeDepth, 0, len(nodes))
	var stack []int64
	for _, n := range nodes {
		for len(stack) > 0 && stack[len(stack)-1] < n.Left {
			stack = stack[:len(stack)-1]
		}
		out = append(out, NodeDepth{Node: n, Depth: len(stack)})
		stack = append(stack, n.Right)
	}
	return out
}
