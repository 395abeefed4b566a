package tree

import "nettopo/internal/inet"

// trunkLabels returns the single label carried by each node along the
// trunk chain, beyond the root. A HEDERA (or any other multi-labelled)
// trunk hop has no single ingress label to compare against a route, so it
// ends the returned sequence early.
func (t *Tree) trunkLabels() []inet.Address {
	chain := t.trunkChain()
	labels := make([]inet.Address, 0, len(chain)-1)
	for _, id := range chain[1:] {
		ls := t.nodes[id].Labels()
		if len(ls) != 1 || ls[0].IsZero() {
			break
		}
		labels = append(labels, ls[0])
	}
	return labels
}

// FittingRoute reports whether route is already consistent with the tree's
// trunk: route is either shorter than the trunk or its leading hops match
// the trunk labels exactly (spec.md §4.3, "Grafting (transplantation)").
func (t *Tree) FittingRoute(route []inet.Address) bool {
	trunk := t.trunkLabels()
	return labelsEqual(trunk, route, overlap(trunk, route))
}

// FindTransplantation searches the tree's trunk for the longest sequence of
// labels that matches a suffix of route's leading hops (the part of route
// that overlaps the trunk's length). When a match shorter than the full
// overlap is found, it reports the non-matching leading hops of route as
// oldPrefix and the corresponding leading trunk labels as newPrefix: a
// subnet.Set.AdaptRoutes(oldPrefix, newPrefix) call rewrites route -- and
// every other route in the set sharing that same ill-fitting prefix -- to
// agree with the trunk (spec.md §8, S5). ok is false when route already
// fits or when no suffix of the trunk matches at all, meaning the route is
// inconsistent with the tree and cannot be transplanted.
func (t *Tree) FindTransplantation(route []inet.Address) (oldPrefix, newPrefix []inet.Address, ok bool) {
	trunk := t.trunkLabels()
	n := overlap(trunk, route)
	for k := n; k > 0; k-- {
		if !labelsEqual(trunk[n-k:n], route[n-k:n], k) {
			continue
		}
		if k == n {
			return nil, nil, false // the full overlap already matches: nothing to transplant
		}
		old := append([]inet.Address(nil), route[:n-k]...)
		repl := append([]inet.Address(nil), trunk[:n-k]...)
		return old, repl, true
	}
	return nil, nil, false
}

func overlap(trunk, route []inet.Address) int {
	if len(trunk) > len(route) {
		return len(route)
	}
	return len(trunk)
}

func labelsEqual(a, b []inet.Address, n int) bool {
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
