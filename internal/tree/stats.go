package tree

// Stats is the tree's 5-slot statistics vector (spec.md §4.3):
//
//	[0] total internal nodes (every live Internal/Hedera neighborhood)
//	[1] internals with only SUBNET children
//	[2] internals with complete linkage: every non-leaf child's ingress
//	    interface appears as an interface of some subnet directly gated by
//	    this neighborhood
//	[3] internals with complete-or-partial linkage: at least
//	    (non-leaf children - 2) of those ingress interfaces match
//	[4] internals all of whose own labels appear among the interfaces of
//	    some measured subnet in the tree
type Stats struct {
	TotalInternals        int
	OnlySubnetChildren    int
	CompleteLinkage       int
	CompleteOrPartialLink int
	LabelsAllMeasured     int
}

// Statistics walks every live (reachable) node and computes the 5-slot
// vector described above, mirroring the original's statisticsRecursive
// pass over NetworkTree.
func (t *Tree) Statistics() Stats {
	var s Stats

	knownInterface := make(map[interfaceKey]bool)
	for _, ss := range t.subnets {
		for _, iface := range ss.Interfaces {
			knownInterface[interfaceKey(iface.IP)] = true
		}
	}

	var walk func(id int)
	walk = func(id int) {
		n := t.nodes[id]
		if n.kind == Internal || n.kind == Hedera {
			s.TotalInternals++
			t.tallyLinkage(n, &s)
			if allLabelsMeasured(n, knownInterface) {
				s.LabelsAllMeasured++
			}
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(rootID)
	return s
}

type interfaceKey = uint32

func (t *Tree) tallyLinkage(n *Node, s *Stats) {
	var nonLeaf []*Node
	var subnetChildren []*Node
	for _, c := range n.children {
		ch := t.nodes[c]
		if ch.kind == SubnetLeaf {
			subnetChildren = append(subnetChildren, ch)
		} else {
			nonLeaf = append(nonLeaf, ch)
		}
	}

	if len(nonLeaf) == 0 {
		if len(subnetChildren) > 0 {
			s.OnlySubnetChildren++
		}
		return
	}

	matched := 0
	for _, nlc := range nonLeaf {
		if childIngressMatchesSubnet(t, nlc, subnetChildren) {
			matched++
		}
	}
	total := len(nonLeaf)
	if matched == total {
		s.CompleteLinkage++
	}
	if matched >= total-2 {
		s.CompleteOrPartialLink++
	}
}

// childIngressMatchesSubnet reports whether any of nlc's own labels (the
// interfaces used to reach it from its parent) appears as a known interface
// of one of the sibling subnet leaves.
func childIngressMatchesSubnet(t *Tree, nlc *Node, subnetChildren []*Node) bool {
	for _, label := range nlc.Labels() {
		for _, sc := range subnetChildren {
			if t.subnets[sc.SubnetID].HasInterface(label) {
				return true
			}
		}
	}
	return false
}

// allLabelsMeasured reports whether every label n itself carries has been
// observed as an interface of some subnet anywhere in the tree.
func allLabelsMeasured(n *Node, known map[interfaceKey]bool) bool {
	labels := n.Labels()
	if len(labels) == 0 {
		return false
	}
	for _, l := range labels {
		if !known[interfaceKey(l)] {
			return false
		}
	}
	return true
}
