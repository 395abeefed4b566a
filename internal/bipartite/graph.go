// Package bipartite models the router/subnet bipartite graph exported from
// a resolved Neighborhood Tree (spec.md §4.3's "bipartite export" note):
// one side is the set of inferred routers, the other the discovered
// subnets, with an edge wherever a router gates a subnet. Edges inferred
// from a HEDERA node are flagged LoadBalanced, since the router reached
// that subnet via one of several observed, load-balanced paths.
package bipartite

import (
	"nettopo/internal/inet"
	"nettopo/internal/router"
	"nettopo/internal/subnet"
)

// Edge connects a router to a subnet it was observed to gate. When the
// edge was discovered via a load-balanced (HEDERA) hop, Label carries the
// specific responding hop address that gated this particular subnet
// (spec.md §4.3, §6: "load-balanced edges carry the label as a third
// field").
type Edge struct {
	RouterID     int
	SubnetID     int
	LoadBalanced bool
	Label        inet.Address
}

// Graph is the exported router/subnet bipartite graph.
type Graph struct {
	Routers []*router.Router
	Subnets []*subnet.Site
	Edges   []Edge
}

// NewGraph creates an empty Graph.
func NewGraph() *Graph {
	return &Graph{}
}

// AddRouter appends r and returns its index.
func (g *Graph) AddRouter(r *router.Router) int {
	g.Routers = append(g.Routers, r)
	return len(g.Routers) - 1
}

// AddSubnet appends ss and returns its index.
func (g *Graph) AddSubnet(ss *subnet.Site) int {
	g.Subnets = append(g.Subnets, ss)
	return len(g.Subnets) - 1
}

// AddEdge records that the router at routerID gates the subnet at
// subnetID.
func (g *Graph) AddEdge(routerID, subnetID int, loadBalanced bool) {
	g.Edges = append(g.Edges, Edge{RouterID: routerID, SubnetID: subnetID, LoadBalanced: loadBalanced})
}

// AddLoadBalancedEdge records a load-balanced edge with its gating label.
func (g *Graph) AddLoadBalancedEdge(routerID, subnetID int, label inet.Address) {
	g.Edges = append(g.Edges, Edge{RouterID: routerID, SubnetID: subnetID, LoadBalanced: true, Label: label})
}

// SubnetsFor returns every subnet gated by the router at routerID.
func (g *Graph) SubnetsFor(routerID int) []*subnet.Site {
	var out []*subnet.Site
	for _, e := range g.Edges {
		if e.RouterID == routerID {
			out = append(out, g.Subnets[e.SubnetID])
		}
	}
	return out
}

// RoutersFor returns every router observed to gate the subnet at subnetID.
func (g *Graph) RoutersFor(subnetID int) []*router.Router {
	var out []*router.Router
	for _, e := range g.Edges {
		if e.SubnetID == subnetID {
			out = append(out, g.Routers[e.RouterID])
		}
	}
	return out
}
