package subnet

import (
	"testing"

	"nettopo/internal/inet"
)

func mustCIDR(t *testing.T, s string) (inet.Address, uint8) {
	p, l, err := inet.ParseCIDR(s)
	if err != nil {
		t.Fatalf("ParseCIDR(%q): %v", s, err)
	}
	return p, l
}

func mustAddr(t *testing.T, s string) inet.Address {
	a, err := inet.ParseAddress(s)
	if err != nil {
		t.Fatalf("ParseAddress(%q): %v", s, err)
	}
	return a
}

// S1. Containment absorption.
func TestContainmentAbsorption(t *testing.T) {
	set := New()

	p24, l24 := mustCIDR(t, "10.0.0.0/24")
	first := &Site{
		Prefix: p24, PrefixLength: l24, Status: Accurate,
		PivotIP: mustAddr(t, "10.0.0.1"), PivotTTL: 5,
		Interfaces: []Interface{{IP: mustAddr(t, "10.0.0.1"), TTL: 5}},
	}
	if res := set.AddSite(first); res != NewSubnet {
		t.Fatalf("expected NEW_SUBNET, got %s", res)
	}

	p23, l23 := mustCIDR(t, "10.0.0.0/23")
	second := &Site{
		Prefix: p23, PrefixLength: l23, Status: Accurate,
		PivotIP: mustAddr(t, "10.0.0.129"), PivotTTL: 5,
		Interfaces: []Interface{{IP: mustAddr(t, "10.0.0.129"), TTL: 5}},
	}
	if res := set.AddSite(second); res != BiggerSubnet {
		t.Fatalf("expected BIGGER_SUBNET, got %s", res)
	}

	if set.NbSubnets() != 1 {
		t.Fatalf("expected exactly 1 surviving site, got %d", set.NbSubnets())
	}
	survivor := set.Sites()[0]
	if survivor.CIDR() != "10.0.0.0/23" {
		t.Fatalf("expected survivor to be 10.0.0.0/23, got %s", survivor.CIDR())
	}
	if !survivor.HasInterface(mustAddr(t, "10.0.0.1")) || !survivor.HasInterface(mustAddr(t, "10.0.0.129")) {
		t.Fatalf("expected survivor to carry both interfaces")
	}
}

// S2. Exact KNOWN.
func TestExactKnown(t *testing.T) {
	set := New()
	p, l := mustCIDR(t, "192.168.1.1/32")
	site := func() *Site {
		return &Site{Prefix: p, PrefixLength: l, Status: Accurate, PivotTTL: 3}
	}

	if res := set.AddSite(site()); res != NewSubnet {
		t.Fatalf("expected NEW_SUBNET on first insert, got %s", res)
	}
	if res := set.AddSite(site()); res != KnownSubnet {
		t.Fatalf("expected KNOWN_SUBNET on second insert, got %s", res)
	}
	if set.NbSubnets() != 1 {
		t.Fatalf("expected set size 1, got %d", set.NbSubnets())
	}
}

func TestAdaptRoutesIdempotent(t *testing.T) {
	set := New()
	a := mustAddr(t, "1.1.1.1")
	b := mustAddr(t, "2.2.2.2")
	c := mustAddr(t, "3.3.3.3")
	x := mustAddr(t, "4.4.4.4")

	p, l := mustCIDR(t, "10.0.0.0/30")
	site := &Site{Prefix: p, PrefixLength: l, Route: []inet.Address{a, b, c, x}}
	set.AddSiteUnsorted(site)

	oldPrefix := []inet.Address{a}
	newPrefix := []inet.Address{b, c}

	if n := set.AdaptRoutes(oldPrefix, newPrefix); n != 1 {
		t.Fatalf("expected 1 modified site, got %d", n)
	}
	want := []inet.Address{b, c, b, c, x}
	if !routesEqual(site.Route, want) {
		t.Fatalf("route = %v, want %v", site.Route, want)
	}

	if n := set.AdaptRoutes(oldPrefix, newPrefix); n != 0 {
		t.Fatalf("expected idempotent second call to modify 0 sites, got %d", n)
	}
}

func routesEqual(a, b []inet.Address) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestIsCompatible(t *testing.T) {
	set := New()
	p, l := mustCIDR(t, "10.0.0.0/24")
	set.AddSite(&Site{Prefix: p, PrefixLength: l, Status: Accurate, PivotTTL: 5})

	lower := mustAddr(t, "10.0.0.0")
	upper := mustAddr(t, "10.0.0.255")

	if !set.IsCompatible(lower, upper, 5, false, false) {
		t.Fatalf("expected compatible at matching TTL")
	}
	if set.IsCompatible(lower, upper, 6, false, false) {
		t.Fatalf("expected incompatible at mismatched TTL without adjacency")
	}
	if !set.IsCompatible(lower, upper, 6, true, false) {
		t.Fatalf("expected compatible at adjacent TTL with checkAdjacentTTL")
	}
	if set.IsCompatible(lower, upper, 5, false, true) {
		t.Fatalf("expected incompatible: shadowExpansion forbids overlapping ACCURATE sites")
	}
}

func TestGetValidSubnetRespectsCompleteRoute(t *testing.T) {
	set := New()
	p1, l1 := mustCIDR(t, "10.0.0.0/24")
	p2, l2 := mustCIDR(t, "10.0.1.0/24")
	incomplete := &Site{Prefix: p1, PrefixLength: l1, Status: Accurate, Route: []inet.Address{inet.Zero}}
	complete := &Site{Prefix: p2, PrefixLength: l2, Status: Odd, Route: []inet.Address{mustAddr(t, "1.1.1.1")}}
	set.AddSiteUnsorted(incomplete)
	set.AddSiteUnsorted(complete)
	set.Sort()

	got := set.GetValidSubnet(true)
	if got == nil || got.CIDR() != "10.0.1.0/24" {
		t.Fatalf("expected to skip the incomplete route and return 10.0.1.0/24")
	}
}
