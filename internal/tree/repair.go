package tree

import "nettopo/internal/subnet"

// RepairRoute fills missing (zero) hops in ss.Route using the label of the
// Internal node actually descended into at that depth during Insert, when
// that node carries exactly one (non-zero) label. A HEDERA node at that
// depth leaves the hop ambiguous and unrepaired (spec.md §4.3, S4).
func (t *Tree) RepairRoute(ss *subnet.Site) {
	cur := rootID
	for d := range ss.Route {
		label := ss.Route[d]
		if label.IsZero() {
			next := t.firstNonLeafChild(cur)
			if next == -1 {
				return
			}
			if labels := t.nodes[next].Labels(); len(labels) == 1 && !labels[0].IsZero() {
				ss.Route[d] = labels[0]
			}
			cur = next
			continue
		}
		m := t.childMatching(cur, label)
		if m == -1 {
			return
		}
		cur = m
	}
}

// RepairAllRoutes calls RepairRoute for every subnet attached to the tree.
func (t *Tree) RepairAllRoutes() {
	for _, ss := range t.subnets {
		t.RepairRoute(ss)
	}
}
