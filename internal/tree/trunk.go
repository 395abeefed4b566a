package tree

import "nettopo/internal/inet"

// trunkChain walks the unique single-child chain of non-leaf nodes starting
// at the root, stopping at the first depth that branches (more than one
// non-leaf child) or dead-ends (no non-leaf child).
func (t *Tree) trunkChain() []int {
	chain := []int{rootID}
	cur := rootID
	for {
		var nonLeaf []int
		for _, c := range t.nodes[cur].children {
			if t.nodes[c].kind != SubnetLeaf {
				nonLeaf = append(nonLeaf, c)
			}
		}
		if len(nonLeaf) != 1 || t.nodes[nonLeaf[0]].kind == Hedera {
			return chain
		}
		cur = nonLeaf[0]
		chain = append(chain, cur)
	}
}

// TrunkSize returns the number of hops in the tree's trunk: the initial
// chain of depths, starting right after the root, where exactly one
// Internal/Hedera node exists before the first branching point.
func (t *Tree) TrunkSize() int {
	return len(t.trunkChain()) - 1
}

// TrunkHasGap reports whether any node along the trunk still carries an
// unrepaired missing-hop label.
func (t *Tree) TrunkHasGap() bool {
	for _, id := range t.trunkChain() {
		labels := t.nodes[id].Labels()
		if len(labels) == 1 && labels[0].IsZero() {
			return true
		}
	}
	return false
}

// InterfacesBeyondTrunk returns the labels of the node immediately beyond
// the end of the trunk -- the first point where the tree actually branches
// into more than one neighborhood.
func (t *Tree) InterfacesBeyondTrunk() []NodeLabels {
	chain := t.trunkChain()
	end := chain[len(chain)-1]
	var out []NodeLabels
	for _, c := range t.nodes[end].children {
		if t.nodes[c].kind == SubnetLeaf {
			continue
		}
		out = append(out, NodeLabels{NodeID: c, Labels: t.nodes[c].Labels()})
	}
	return out
}

// NodeLabels pairs a node index with its label set, used to report the
// branching options found immediately beyond the trunk.
type NodeLabels struct {
	NodeID int
	Labels []inet.Address
}
