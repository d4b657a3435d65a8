package nestedset

// Node is one record of a nested-set tree. The (Left, Right) interval
// encodes the node's place in the hierarchy: a node A is an ancestor of B
// exactly when A.Left < B.Left and B.Right < A.Right. Sibling order is
// ascending Left.
type Node struct {
	ID    int64
	Name  string
	Left  int64
	Right int64

	// Group is the forest-partition value; empty unless partitioning is
	// configured.
	Group string
}

// Width is the size of the node's closed interval, Right - Left + 1.
// It is always even: 2 for a leaf, 2*(descendants+1) otherwise.
func (n Node) Width() int64 {
	return n.Right - n.Left + 1
}

// Descendants is the number of nodes strictly contained in this node's
// interval, derived from the interval width alone.
func (n Node) Descendants() int64 {
	return (n.Right - n.Left - 1) / 2
}

// IsLeaf reports whether the node has no descendants.
func (n Node) IsLeaf() bool {
	return n.Right == n.Left+1
}

// Contains reports whether other lies strictly inside n's interval.
func (n Node) Contains(other Node) bool {
	return n.Left < other.Left && other.Right < n.Right
}

type refKind int

const (
	refRoot refKind = iota
	refByID
	refByName
	refResolved
)

// NodeRef names a node for resolution: by id, by name, or as an
// already-materialized Node. A single Resolve call turns any of the three
// into a current record. The zero NodeRef references the configured root.
type NodeRef struct {
	kind refKind
	id   int64
	name string
	node Node
}

// RootRef references the configured root node.
func RootRef() NodeRef {
	return NodeRef{}
}

// ByID references a node by its stable identifier.
func ByID(id int64) NodeRef {
	return NodeRef{kind: refByID, id: id}
}

// ByName references a node by its display name. Names are expected, but
// not enforced, to be unique within a tree; see Match.Ambiguous.
func ByName(name string) NodeRef {
	return NodeRef{kind: refByName, name: name}
}

// Resolved wraps a node that the caller already holds. Resolve re-reads it
// by id so the interval reflects the current store state.
func Resolved(n Node) NodeRef {
	return NodeRef{kind: refResolved, node: n}
}

// Match is the result of resolving a NodeRef. Ambiguous is set when a name
// lookup matched more than one row; the first row in store order is
// returned and the condition is surfaced here rather than as an error.
type Match struct {
	Node      Node
	Ambiguous bool
}

// NodeDepth pairs a node with its depth relative to the node a read query
// was anchored on (0 for the anchor itself).
type NodeDepth struct {
	Node  Node
	Depth int
}
