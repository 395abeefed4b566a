// Package tree implements the Neighborhood Tree (spec.md §3, §4.3): a
// near-tree (occasionally a DAG, via HEDERA fusion nodes) built by walking
// each discovered subnet's route from the mapper's vantage point, merging
// branches that disagree only at the final, subnet-gating hop into a single
// HEDERA node representing a load-balancing router.
//
// Nodes are arena-allocated: Tree owns a single []*Node slice, and every
// reference (parent, children, a leaf's subnet) is an index rather than a
// pointer, avoiding the cyclic ownership of the original node/parent
// back-pointer design (spec.md §9).
package tree

import (
	"nettopo/internal/inet"
	"nettopo/internal/subnet"
)

// Tree is a Neighborhood Tree.
type Tree struct {
	nodes   []*Node
	subnets []*subnet.Site // arena of inserted subnets, indexed by SubnetID
	// depthIndex[d] lists the IDs of every node at depth d, for trunk
	// queries (TrunkSize, TrunkHasGap) and statistics.
	depthIndex [][]int
}

const rootID = 0

// New creates a Tree with a single Root node at depth 0.
func New() *Tree {
	t := &Tree{}
	root := &Node{id: rootID, kind: Root, depth: 0, parent: -1}
	t.nodes = append(t.nodes, root)
	t.depthIndex = append(t.depthIndex, []int{rootID})
	return t
}

// Node returns the node at index id.
func (t *Tree) Node(id int) *Node { return t.nodes[id] }

// Root returns the root node's index (always 0).
func (t *Tree) Root() int { return rootID }

// NbNodes returns the number of nodes in the tree, including the root.
func (t *Tree) NbNodes() int { return len(t.nodes) }

// MaxDepth returns the deepest populated depth level.
func (t *Tree) MaxDepth() int { return len(t.depthIndex) - 1 }

// NodesAtDepth returns the IDs of every node at the given depth.
func (t *Tree) NodesAtDepth(d int) []int {
	if d < 0 || d >= len(t.depthIndex) {
		return nil
	}
	return t.depthIndex[d]
}

// Subnet returns the subnet site stored under id, the Tree's arena index
// for SubnetLeaf nodes.
func (t *Tree) Subnet(id int) *subnet.Site { return t.subnets[id] }

func (t *Tree) newNode(kind Kind, depth, parent int, label inet.Address) *Node {
	n := &Node{id: len(t.nodes), kind: kind, depth: depth, parent: parent, SubnetID: -1}
	if !label.IsZero() || kind == Internal {
		n.labels = []inet.Address{label}
	}
	t.nodes = append(t.nodes, n)
	t.nodes[parent].children = append(t.nodes[parent].children, n.id)
	for len(t.depthIndex) <= depth {
		t.depthIndex = append(t.depthIndex, nil)
	}
	t.depthIndex[depth] = append(t.depthIndex[depth], n.id)
	return n
}

func (t *Tree) newLeaf(parent int, ss *subnet.Site) *Node {
	t.subnets = append(t.subnets, ss)
	n := &Node{
		id:       len(t.nodes),
		kind:     SubnetLeaf,
		depth:    t.nodes[parent].depth + 1,
		parent:   parent,
		SubnetID: len(t.subnets) - 1,
	}
	t.nodes = append(t.nodes, n)
	t.nodes[parent].children = append(t.nodes[parent].children, n.id)
	for len(t.depthIndex) <= n.depth {
		t.depthIndex = append(t.depthIndex, nil)
	}
	t.depthIndex[n.depth] = append(t.depthIndex[n.depth], n.id)
	return n
}

// childMatching returns the first child of node that carries label among its
// labels, or -1.
func (t *Tree) childMatching(node int, label inet.Address) int {
	for _, c := range t.nodes[node].children {
		ch := t.nodes[c]
		if ch.kind != SubnetLeaf && ch.HasLabel(label) {
			return c
		}
	}
	return -1
}

// firstNonLeafChild returns the first Internal or Hedera child of node, or
// -1 if node has none (spec.md §4.3 case 3: missing-marker descent).
func (t *Tree) firstNonLeafChild(node int) int {
	for _, c := range t.nodes[node].children {
		if t.nodes[c].kind == Internal || t.nodes[c].kind == Hedera {
			return c
		}
	}
	return -1
}

// gatesOnlyLeaves reports whether every child of node is a SubnetLeaf
// (node directly gates one or more subnets, with no deeper structure).
func (t *Tree) gatesOnlyLeaves(node int) bool {
	children := t.nodes[node].children
	if len(children) == 0 {
		return false
	}
	for _, c := range children {
		if t.nodes[c].kind != SubnetLeaf {
			return false
		}
	}
	return true
}

// findLeafGatingSibling returns a child of node that already gates only
// subnet leaves (a fusion candidate per SPEC_FULL.md's case-4 decision), or
// -1 if none qualifies.
func (t *Tree) findLeafGatingSibling(node int) int {
	for _, c := range t.nodes[node].children {
		ch := t.nodes[c]
		if ch.kind != SubnetLeaf && t.gatesOnlyLeaves(c) {
			return c
		}
	}
	return -1
}

// Insert walks ss's route from the root, creating or reusing Internal nodes
// at each depth, and attaches a SubnetLeaf at the end (spec.md §4.3).
//
// Fusion (case 4, HEDERA) is triggered only when the divergence happens at
// the terminal hop -- the one that gates the subnet leaf directly -- against
// an existing sibling that itself gates only leaves. A mismatch at any
// earlier (non-terminal) hop always creates a plain new Internal sibling:
// those represent genuinely distinct neighborhoods reachable from the same
// parent, not load-balanced paths to the same destination. This resolves the
// ambiguity in the original case-4 wording (see DESIGN.md).
func (t *Tree) Insert(ss *subnet.Site) {
	cur := rootID
	route := ss.Route
	for d := 0; d < len(route); d++ {
		label := route[d]
		isLast := d == len(route)-1

		if label.IsZero() {
			next := t.firstNonLeafChild(cur)
			if next == -1 {
				next = t.newNode(Internal, t.nodes[cur].depth+1, cur, inet.Zero).id
			}
			cur = next
		} else if match := t.childMatching(cur, label); match != -1 {
			cur = match
		} else if isLast {
			if sib := t.findLeafGatingSibling(cur); sib != -1 {
				t.nodes[sib].AddLabel(label)
				cur = sib
			} else {
				cur = t.newNode(Internal, t.nodes[cur].depth+1, cur, label).id
			}
		} else {
			cur = t.newNode(Internal, t.nodes[cur].depth+1, cur, label).id
		}
	}
	t.newLeaf(cur, ss)
}
