package resolver

import (
	"testing"
	"time"

	"nettopo/internal/inet"
	"nettopo/internal/iptable"
	"nettopo/internal/router"
	"nettopo/internal/subnet"
	"nettopo/internal/tree"
)

func addr(t *testing.T, s string) inet.Address {
	a, err := inet.ParseAddress(s)
	if err != nil {
		t.Fatalf("ParseAddress(%q): %v", s, err)
	}
	return a
}

func site(t *testing.T, pivot string, route ...inet.Address) *subnet.Site {
	return &subnet.Site{
		Prefix:       addr(t, pivot),
		PrefixLength: 24,
		PivotIP:      addr(t, pivot),
		Route:        route,
	}
}

// Two labels whose UDP-unreachable probes both reported the same reply
// source must land in one Router, tagged UDPPortUnreachable.
func TestResolveMergesByUDPUnreachableReplySource(t *testing.T) {
	tr := tree.New()
	a, b := addr(t, "10.0.0.1"), addr(t, "10.0.0.2")
	s := site(t, "10.0.1.1", a, b)
	tr.Insert(s)

	// The hedera/internal node under root carries label b's sibling chain;
	// rebuild a simple two-label node directly for a focused unit test.
	node := tr.Node(tr.Root())
	node.AddLabel(a)
	node.AddLabel(b)

	table := iptable.New()
	shared := addr(t, "192.168.0.9")
	ea := table.Create(a, 5)
	ea.SetUDPUnreachableReply(shared)
	eb := table.Create(b, 5)
	eb.SetUDPUnreachableReply(shared)

	r := New(table)
	routers := r.Resolve(tr, node)
	if len(routers) != 1 {
		t.Fatalf("expected 1 router, got %d: %v", len(routers), routers)
	}
	if routers[0].NbInterfaces() != 2 {
		t.Fatalf("expected 2 interfaces in the merged router, got %d", routers[0].NbInterfaces())
	}
	for _, iface := range routers[0].Interfaces() {
		if iface.AliasMethod != router.UDPPortUnreachable {
			t.Fatalf("expected UDPPortUnreachable, got %s", iface.AliasMethod)
		}
	}
}

// Labels with no corroborating evidence at all are discarded entirely: a
// Router is only meaningful with >= 2 interfaces, or exactly one interface
// tied to a UDP-port-unreachable reply mismatch (spec.md §3), so two
// unrelated, unprobed labels must produce zero routers, not two
// meaningless singletons.
func TestResolveDropsUncorroboratedSingletons(t *testing.T) {
	tr := tree.New()
	node := tr.Node(tr.Root())
	a, b := addr(t, "10.0.0.1"), addr(t, "10.0.0.2")
	node.AddLabel(a)
	node.AddLabel(b)

	table := iptable.New()
	r := New(table)
	routers := r.Resolve(tr, node)
	if len(routers) != 0 {
		t.Fatalf("expected 0 routers, got %d", len(routers))
	}
	if node.Routers != nil {
		t.Fatalf("expected node.Routers to be nil, got %v", node.Routers)
	}
}

// A subnet leaf's pivot IP is pulled in as a candidate interface alongside
// the node's own labels, and corroborating UDP-unreachable evidence merges
// it with the label into one Router.
func TestResolveIncludesChildSubnetPivots(t *testing.T) {
	tr := tree.New()
	a := addr(t, "10.0.0.1")
	pivot := addr(t, "10.0.1.5")
	s := site(t, "10.0.1.5", a)
	tr.Insert(s)

	node := tr.Node(tr.Root())
	// After Insert, root has one Internal child labeled a with one
	// SubnetLeaf child; resolve that Internal node.
	var internalID int = -1
	for _, cid := range node.Children() {
		if tr.Node(cid).Kind() == tree.Internal {
			internalID = cid
		}
	}
	if internalID == -1 {
		t.Fatalf("expected an Internal child of root")
	}

	table := iptable.New()
	shared := addr(t, "192.168.0.9")
	ea := table.Create(a, 5)
	ea.SetUDPUnreachableReply(shared)
	ep := table.Create(pivot, 5)
	ep.SetUDPUnreachableReply(shared)

	r := New(table)
	routers := r.Resolve(tr, tr.Node(internalID))
	if len(routers) != 1 {
		t.Fatalf("expected 1 merged router (label + pivot), got %d", len(routers))
	}
	if !routers[0].HasInterface(a) || !routers[0].HasInterface(pivot) {
		t.Fatalf("expected both the label and the child subnet pivot among the merged router's interfaces")
	}
}

// Two HEALTHY_COUNTER entries with recent, close-in-time, close-in-value
// IP-ID samples merge via IP-ID compatibility.
func TestResolveMergesByIPIDCompatibility(t *testing.T) {
	tr := tree.New()
	node := tr.Node(tr.Root())
	a, b := addr(t, "10.0.0.1"), addr(t, "10.0.0.2")
	node.AddLabel(a)
	node.AddLabel(b)

	table := iptable.New()
	ea := table.Create(a, 5)
	eb := table.Create(b, 5)
	now := time.Now()
	ea.AddIPIDSample(iptable.IPIDSample{Timestamp: now, IPID: 1000, Token: 1})
	ea.SetUDPUnreachableReply(a) // anchor requires AliasMethod == UDPPortUnreachable
	ea.SetCounterType(iptable.HealthyCounter)
	eb.AddIPIDSample(iptable.IPIDSample{Timestamp: now, IPID: 1010, Token: 1})
	eb.SetUDPUnreachableReply(b)
	eb.SetCounterType(iptable.HealthyCounter)

	r := New(table)
	routers := r.Resolve(tr, node)
	if len(routers) != 1 {
		t.Fatalf("expected 1 merged router, got %d", len(routers))
	}
}
