package tree

import (
	"nettopo/internal/bipartite"
	"nettopo/internal/inet"
	"nettopo/internal/subnet"
)

// ToBipartite exports the resolved tree as a router/subnet bipartite graph.
// Only Internal/Hedera nodes whose Routers field has been populated by the
// alias resolver contribute edges; an unresolved tree yields subnets with
// no incident edges.
func (t *Tree) ToBipartite() *bipartite.Graph {
	g := bipartite.NewGraph()
	routerIndex := make(map[*Node][]int) // node -> indices into g.Routers, one per t.nodes[n].Routers entry

	for _, n := range t.nodes {
		if n.parent == -1 || len(n.Routers) == 0 {
			continue
		}
		ids := make([]int, len(n.Routers))
		for i, r := range n.Routers {
			ids[i] = g.AddRouter(r)
		}
		routerIndex[n] = ids
	}

	for _, n := range t.nodes {
		if n.parent == -1 || len(n.Routers) == 0 {
			continue
		}
		for _, c := range n.children {
			ch := t.nodes[c]
			if ch.kind != SubnetLeaf {
				continue
			}
			sID := g.AddSubnet(t.subnets[ch.SubnetID])
			for _, rID := range routerIndex[n] {
				if n.kind == Hedera {
					g.AddLoadBalancedEdge(rID, sID, ingressLabel(n, t.subnets[ch.SubnetID]))
				} else {
					g.AddEdge(rID, sID, false)
				}
			}
		}
	}
	return g
}

// ingressLabel picks the responding hop from n's label set that actually
// gates ss, for per-label edge emission on HEDERA nodes (spec.md §4.3,
// §6). Falls back to the first label if none of ss's route hops match one
// of n's labels (e.g. ss's route was repaired/transplanted).
func ingressLabel(n *Node, ss *subnet.Site) inet.Address {
	for _, hop := range ss.Route {
		if n.HasLabel(hop) {
			return hop
		}
	}
	if len(n.labels) > 0 {
		return n.labels[0]
	}
	return inet.Zero
}
