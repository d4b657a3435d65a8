package nestedset_test

import (
	"context"
	"sort"
	"testing"

	"github.com/canopydb/canopy/nestedset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTree(t *testing.T) *nestedset.Tree {
	t.Helper()
	cfg := nestedset.DefaultConfig()
	store, err := nestedset.NewMemstore(cfg)
	require.NoError(t, err)
	tree, err := nestedset.New(store, cfg)
	require.NoError(t, err)
	return tree
}

func mustInsert(t *testing.T, tree *nestedset.Tree, name string, parent nestedset.NodeRef, pos int) nestedset.Node {
	t.Helper()
	n, err := tree.Insert(context.Background(), name, parent, pos)
	require.NoError(t, err)
	return n
}

// assertValidTree checks the nested-set invariants over a full dump: every
// interval well-formed, all values unique and contiguous from 1, pairwise
// disjoint-or-nested, descendant counts matching containment, one root.
func assertValidTree(t *testing.T, nodes []nestedset.Node) {
	t.Helper()

	var values []int64
	for _, n := range nodes {
		require.Less(t, n.Left, n.Right, "node %d interval inverted", n.ID)
		require.Equal(t, int64(1), (n.Right-n.Left)%2, "node %d has even interval diff", n.ID)
		values = append(values, n.Left, n.Right)
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	for i, v := range values {
		require.Equal(t, int64(i+1), v, "interval values not contiguous from 1")
	}

	roots := 0
	for _, a := range nodes {
		contained := int64(0)
		isRoot := true
		for _, b := range nodes {
			if a.ID == b.ID {
				continue
			}
			disjoint := a.Right < b.Left || b.Right < a.Left
			nested := a.Contains(b) || b.Contains(a)
			require.True(t, disjoint || nested,
				"nodes %d (%d,%d) and %d (%d,%d) overlap without nesting",
				a.ID, a.Left, a.Right, b.ID, b.Left, b.Right)
			if a.Contains(b) {
				contained++
			}
			if b.Contains(a) {
				isRoot = false
			}
		}
		require.Equal(t, a.Descendants(), contained, "node %d descendant count mismatch", a.ID)
		if isRoot {
			roots++
		}
	}
	require.Equal(t, 1, roots)
}

func dump(t *testing.T, tree *nestedset.Tree) []nestedset.Node {
	t.Helper()
	nodes, err := tree.All(context.Background())
	require.NoError(t, err)
	return nodes
}

func byID(nodes []nestedset.Node, id int64) (nestedset.Node, bool) {
	for _, n := range nodes {
		if n.ID == id {
			return n, true
		}
	}
	return nestedset.Node{}, false
}

func TestRootAutoCreate(t *testing.T) {
	tree := newTestTree(t)
	ctx := context.Background()

	root, err := tree.Root(ctx)
	require.NoError(t, err)
	assert.Equal(t, "root", root.Name)
	assert.Equal(t, int64(1), root.Left)
	assert.Equal(t, int64(2), root.Right)

	// a second lookup must find the same row, not create another
	again, err := tree.Root(ctx)
	require.NoError(t, err)
	assert.Equal(t, root.ID, again.ID)
	assert.Len(t, dump(t, tree), 1)
}

func TestRootAutoCreateDisabled(t *testing.T) {
	cfg := nestedset.DefaultConfig()
	cfg.AutoCreateRoot = false
	store, err := nestedset.NewMemstore(cfg)
	require.NoError(t, err)
	tree, err := nestedset.New(store, cfg)
	require.NoError(t, err)

	_, err = tree.Root(context.Background())
	assert.ErrorIs(t, err, nestedset.ErrNotFound)
}

func TestInsertRoundTrip(t *testing.T) {
	tree := newTestTree(t)
	ctx := context.Background()

	n := mustInsert(t, tree, "child", nestedset.RootRef(), 0)
	assert.Equal(t, int64(2), n.Left)
	assert.Equal(t, int64(3), n.Right)

	m, err := tree.Resolve(ctx, nestedset.ByID(n.ID))
	require.NoError(t, err)
	assert.Equal(t, n, m.Node)
	assert.False(t, m.Ambiguous)

	assertValidTree(t, dump(t, tree))
}

func TestInsertAtPositionZeroTwice(t *testing.T) {
	tree := newTestTree(t)
	ctx := context.Background()

	first := mustInsert(t, tree, "first", nestedset.RootRef(), 0)
	second := mustInsert(t, tree, "second", nestedset.RootRef(), 0)

	kids, err := tree.Children(ctx, nestedset.RootRef())
	require.NoError(t, err)
	require.Len(t, kids, 3)
	assert.Equal(t, 0, kids[0].Depth)
	assert.Equal(t, "root", kids[0].Node.Name)

	// the second insertion displaced the first to position 1
	assert.Equal(t, second.ID, kids[1].Node.ID)
	assert.Equal(t, 1, kids[1].Depth)
	assert.Equal(t, first.ID, kids[2].Node.ID)
	assert.Less(t, kids[1].Node.Left, kids[2].Node.Left)

	assertValidTree(t, dump(t, tree))
}

func TestInsertPositions(t *testing.T) {
	tree := newTestTree(t)
	ctx := context.Background()

	a := mustInsert(t, tree, "a", nestedset.RootRef(), 0)
	c := mustInsert(t, tree, "c", nestedset.RootRef(), 1)
	b := mustInsert(t, tree, "b", nestedset.RootRef(), 1)
	d := mustInsert(t, tree, "d", nestedset.RootRef(), 99) // clamps to last

	kids, err := tree.Children(ctx, nestedset.RootRef())
	require.NoError(t, err)
	var order []int64
	for _, nd := range kids[1:] {
		order = append(order, nd.Node.ID)
	}
	assert.Equal(t, []int64{a.ID, b.ID, c.ID, d.ID}, order)
	assertValidTree(t, dump(t, tree))
}

func TestInsertParentNotFound(t *testing.T) {
	tree := newTestTree(t)
	_, err := tree.Insert(context.Background(), "x", nestedset.ByName("nope"), 0)
	assert.ErrorIs(t, err, nestedset.ErrNotFound)
}

func TestAmbiguousNameLookup(t *testing.T) {
	tree := newTestTree(t)
	ctx := context.Background()

	first := mustInsert(t, tree, "dup", nestedset.RootRef(), 0)
	mustInsert(t, tree, "dup", nestedset.RootRef(), 99)

	m, err := tree.Resolve(ctx, nestedset.ByName("dup"))
	require.NoError(t, err)
	assert.True(t, m.Ambiguous)
	assert.Equal(t, first.ID, m.Node.ID, "first match in store order wins")
}

func TestMoveLeafBetweenParents(t *testing.T) {
	tree := newTestTree(t)
	ctx := context.Background()

	parentA := mustInsert(t, tree, "A", nestedset.RootRef(), 0)
	parentB := mustInsert(t, tree, "B", nestedset.RootRef(), 1)
	leaf := mustInsert(t, tree, "leaf", nestedset.Resolved(parentA), 0)
	b1 := mustInsert(t, tree, "b1", nestedset.Resolved(parentB), 0)
	b2 := mustInsert(t, tree, "b2", nestedset.Resolved(parentB), 1)

	moved, err := tree.Move(ctx, nestedset.ByID(leaf.ID), nestedset.ByID(parentB.ID))
	require.NoError(t, err)
	assert.True(t, moved)

	nodes := dump(t, tree)
	assertValidTree(t, nodes)

	kids, err := tree.Children(ctx, nestedset.ByID(parentB.ID))
	require.NoError(t, err)
	var order []int64
	for _, nd := range kids[1:] {
		order = append(order, nd.Node.ID)
	}
	assert.Equal(t, []int64{leaf.ID, b1.ID, b2.ID}, order, "moved node becomes first child")

	a, ok := byID(nodes, parentA.ID)
	require.True(t, ok)
	assert.True(t, a.IsLeaf(), "former parent's gap fully closed")
}

func TestMoveSubtreeKeepsDescendants(t *testing.T) {
	tree := newTestTree(t)
	ctx := context.Background()

	a := mustInsert(t, tree, "a", nestedset.RootRef(), 0)
	b := mustInsert(t, tree, "b", nestedset.RootRef(), 1)
	c := mustInsert(t, tree, "c", nestedset.Resolved(a), 0)
	d := mustInsert(t, tree, "d", nestedset.Resolved(c), 0)

	moved, err := tree.Move(ctx, nestedset.ByID(a.ID), nestedset.ByID(b.ID))
	require.NoError(t, err)
	assert.True(t, moved)

	nodes := dump(t, tree)
	assertValidTree(t, nodes)

	na, _ := byID(nodes, a.ID)
	nc, _ := byID(nodes, c.ID)
	nd, _ := byID(nodes, d.ID)
	nb, _ := byID(nodes, b.ID)
	assert.True(t, nb.Contains(na))
	assert.True(t, na.Contains(nc))
	assert.True(t, nc.Contains(nd))
	assert.Equal(t, int64(2), na.Descendants())
}

func TestMoveNoops(t *testing.T) {
	tree := newTestTree(t)
	ctx := context.Background()

	a := mustInsert(t, tree, "a", nestedset.RootRef(), 0)
	b := mustInsert(t, tree, "b", nestedset.RootRef(), 1)
	mustInsert(t, tree, "c", nestedset.Resolved(a), 0)

	before := dump(t, tree)

	// move to the current parent
	moved, err := tree.Move(ctx, nestedset.ByID(a.ID), nestedset.RootRef())
	require.NoError(t, err)
	assert.False(t, moved)

	// first sibling cannot move further left, last cannot move right
	moved, err = tree.MoveLeft(ctx, nestedset.ByID(a.ID))
	require.NoError(t, err)
	assert.False(t, moved)
	moved, err = tree.MoveRight(ctx, nestedset.ByID(b.ID))
	require.NoError(t, err)
	assert.False(t, moved)

	assert.Equal(t, before, dump(t, tree), "no-op moves leave every interval unchanged")
}

func TestMoveInvalid(t *testing.T) {
	tree := newTestTree(t)
	ctx := context.Background()

	a := mustInsert(t, tree, "a", nestedset.RootRef(), 0)
	c := mustInsert(t, tree, "c", nestedset.Resolved(a), 0)

	_, err := tree.Move(ctx, nestedset.ByID(a.ID), nestedset.ByID(a.ID))
	assert.ErrorIs(t, err, nestedset.ErrInvalidMove)

	_, err = tree.Move(ctx, nestedset.ByID(a.ID), nestedset.ByID(c.ID))
	assert.ErrorIs(t, err, nestedset.ErrInvalidMove)

	before := dump(t, tree)
	assertValidTree(t, before)
}

func TestMoveLeftRight(t *testing.T) {
	tree := newTestTree(t)
	ctx := context.Background()

	a := mustInsert(t, tree, "a", nestedset.RootRef(), 0)
	b := mustInsert(t, tree, "b", nestedset.RootRef(), 1)
	c := mustInsert(t, tree, "c", nestedset.RootRef(), 2)
	// give b a child so the swap carries a subtree
	bc := mustInsert(t, tree, "bc", nestedset.Resolved(b), 0)

	order := func() []int64 {
		kids, err := tree.Children(ctx, nestedset.RootRef())
		require.NoError(t, err)
		var ids []int64
		for _, nd := range kids[1:] {
			ids = append(ids, nd.Node.ID)
		}
		return ids
	}

	moved, err := tree.MoveLeft(ctx, nestedset.ByID(b.ID))
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, []int64{b.ID, a.ID, c.ID}, order())
	assertValidTree(t, dump(t, tree))

	nodes := dump(t, tree)
	nb, _ := byID(nodes, b.ID)
	nbc, _ := byID(nodes, bc.ID)
	assert.True(t, nb.Contains(nbc), "descendant travels with the moving node")

	moved, err = tree.MoveRight(ctx, nestedset.ByID(b.ID))
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, []int64{a.ID, b.ID, c.ID}, order())
	assertValidTree(t, dump(t, tree))
}

func TestDeleteLeafMiddleOfFive(t *testing.T) {
	tree := newTestTree(t)
	ctx := context.Background()

	var kids []nestedset.Node
	for _, name := range []string{"c1", "c2", "c3", "c4", "c5"} {
		kids = append(kids, mustInsert(t, tree, name, nestedset.RootRef(), 99))
	}

	before := dump(t, tree)
	victim := kids[2]

	removed, err := tree.Delete(ctx, nestedset.ByID(victim.ID), nestedset.DeleteSubtree)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	after := dump(t, tree)
	assertValidTree(t, after)
	require.Len(t, after, len(before)-1)

	for _, was := range before {
		if was.ID == victim.ID {
			continue
		}
		now, ok := byID(after, was.ID)
		require.True(t, ok)

		wantLeft := was.Left
		if wantLeft > victim.Right {
			wantLeft -= 2
		}
		wantRight := was.Right
		if wantRight > victim.Right {
			wantRight -= 2
		}
		assert.Equal(t, wantLeft, now.Left, "node %s", was.Name)
		assert.Equal(t, wantRight, now.Right, "node %s", was.Name)
	}
}

func TestDeleteSubtree(t *testing.T) {
	tree := newTestTree(t)
	ctx := context.Background()

	a := mustInsert(t, tree, "a", nestedset.RootRef(), 0)
	mustInsert(t, tree, "b", nestedset.RootRef(), 1)
	mustInsert(t, tree, "a1", nestedset.Resolved(a), 0)
	mustInsert(t, tree, "a2", nestedset.Resolved(a), 1)

	removed, err := tree.Delete(ctx, nestedset.ByID(a.ID), nestedset.DeleteSubtree)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	after := dump(t, tree)
	assertValidTree(t, after)
	assert.Len(t, after, 2)
	_, err = tree.Resolve(ctx, nestedset.ByID(a.ID))
	assert.ErrorIs(t, err, nestedset.ErrNotFound)
}

func TestDeletePromoteChildren(t *testing.T) {
	tree := newTestTree(t)
	ctx := context.Background()

	x := mustInsert(t, tree, "x", nestedset.RootRef(), 0)
	y := mustInsert(t, tree, "y", nestedset.RootRef(), 1)
	p := mustInsert(t, tree, "p", nestedset.Resolved(x), 0)
	q := mustInsert(t, tree, "q", nestedset.Resolved(x), 1)
	r := mustInsert(t, tree, "r", nestedset.Resolved(x), 2)
	pp := mustInsert(t, tree, "pp", nestedset.Resolved(p), 0)

	before := dump(t, tree)

	removed, err := tree.Delete(ctx, nestedset.ByID(x.ID), nestedset.PromoteChildren)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	after := dump(t, tree)
	assertValidTree(t, after)
	require.Len(t, after, len(before)-1)

	// p, q, r now sit where x was, in their original order, followed by y
	kids, err := tree.Children(ctx, nestedset.RootRef())
	require.NoError(t, err)
	var order []int64
	for _, nd := range kids[1:] {
		order = append(order, nd.Node.ID)
	}
	assert.Equal(t, []int64{p.ID, q.ID, r.ID, y.ID}, order)

	np, _ := byID(after, p.ID)
	npp, _ := byID(after, pp.ID)
	assert.True(t, np.Contains(npp), "grandchildren stay attached to the promoted child")
}

func TestDeleteNotFound(t *testing.T) {
	tree := newTestTree(t)
	_, err := tree.Delete(context.Background(), nestedset.ByID(12345), nestedset.DeleteSubtree)
	assert.ErrorIs(t, err, nestedset.ErrNotFound)
}

func TestRelationshipQueries(t *testing.T) {
	tree := newTestTree(t)
	ctx := context.Background()

	a := mustInsert(t, tree, "a", nestedset.RootRef(), 0)
	b := mustInsert(t, tree, "b", nestedset.RootRef(), 1)
	c := mustInsert(t, tree, "c", nestedset.RootRef(), 2)
	ab := mustInsert(t, tree, "ab", nestedset.Resolved(a), 0)

	parent, err := tree.Parent(ctx, nestedset.ByID(ab.ID))
	require.NoError(t, err)
	assert.Equal(t, a.ID, parent.ID, "tightest enclosing interval, not the root")

	_, err = tree.Parent(ctx, nestedset.RootRef())
	assert.ErrorIs(t, err, nestedset.ErrNotFound)

	prev, ok, err := tree.PrevSibling(ctx, nestedset.ByID(b.ID))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, a.ID, prev.ID)

	next, ok, err := tree.NextSibling(ctx, nestedset.ByID(b.ID))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, c.ID, next.ID)

	_, ok, err = tree.PrevSibling(ctx, nestedset.ByID(a.ID))
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = tree.NextSibling(ctx, nestedset.ByID(c.ID))
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := tree.DescendantCount(ctx, nestedset.RootRef())
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
	n, err = tree.DescendantCount(ctx, nestedset.ByID(ab.ID))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSubtreeDepths(t *testing.T) {
	tree := newTestTree(t)
	ctx := context.Background()

	a := mustInsert(t, tree, "a", nestedset.RootRef(), 0)
	b := mustInsert(t, tree, "b", nestedset.Resolved(a), 0)
	mustInsert(t, tree, "c", nestedset.Resolved(b), 0)
	mustInsert(t, tree, "d", nestedset.Resolved(a), 1)

	sub, err := tree.Subtree(ctx, nestedset.RootRef())
	require.NoError(t, err)
	var depths []int
	var names []string
	for _, nd := range sub {
		depths = append(depths, nd.Depth)
		names = append(names, nd.Node.Name)
	}
	assert.Equal(t, []string{"root", "a", "b", "c", "d"}, names)
	assert.Equal(t, []int{0, 1, 2, 3, 2}, depths)
}
