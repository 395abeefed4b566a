package tree

import (
	"testing"

	"nettopo/internal/inet"
	"nettopo/internal/subnet"
)

// S5. Transplantation: tree trunk is [A,B,C]; a subnet arrives with route
// [A',B,C,X]. findTransplantation must report oldPrefix=[A'],
// newPrefix=[A], and applying that through subnet.Set.AdaptRoutes must
// rewrite the route to [A,B,C,X] so it fits the trunk (spec.md §8, S5).
func TestFindTransplantationMatchesSpecExample(t *testing.T) {
	tr := New()
	a, b, c := addr(t, "1.1.1.1"), addr(t, "2.2.2.2"), addr(t, "3.3.3.3")
	aPrime, x := addr(t, "9.9.9.9"), addr(t, "4.4.4.4")

	tr.Insert(site([]inet.Address{a, b, c}))
	if got := tr.TrunkSize(); got != 3 {
		t.Fatalf("TrunkSize() = %d, want 3", got)
	}

	set := subnet.New()
	mismatched := &subnet.Site{Route: []inet.Address{aPrime, b, c, x}}
	set.AddSiteUnsorted(mismatched)

	if tr.FittingRoute(mismatched.Route) {
		t.Fatalf("expected route starting with A' to not fit the trunk")
	}

	oldPrefix, newPrefix, ok := tr.FindTransplantation(mismatched.Route)
	if !ok {
		t.Fatalf("expected a transplantation to be found")
	}
	if len(oldPrefix) != 1 || oldPrefix[0] != aPrime {
		t.Fatalf("oldPrefix = %v, want [A']", oldPrefix)
	}
	if len(newPrefix) != 1 || newPrefix[0] != a {
		t.Fatalf("newPrefix = %v, want [A]", newPrefix)
	}

	if n := set.AdaptRoutes(oldPrefix, newPrefix); n != 1 {
		t.Fatalf("AdaptRoutes modified %d sites, want 1", n)
	}
	want := []inet.Address{a, b, c, x}
	for i, hop := range want {
		if mismatched.Route[i] != hop {
			t.Fatalf("adapted route = %v, want %v", mismatched.Route, want)
		}
	}
	if !tr.FittingRoute(mismatched.Route) {
		t.Fatalf("expected the adapted route to now fit the trunk")
	}
}

// A route that already matches the trunk needs no transplantation.
func TestFindTransplantationNoneNeededWhenAlreadyFitting(t *testing.T) {
	tr := New()
	a, b := addr(t, "1.1.1.1"), addr(t, "2.2.2.2")
	tr.Insert(site([]inet.Address{a, b}))

	if !tr.FittingRoute([]inet.Address{a, b, addr(t, "3.3.3.3")}) {
		t.Fatalf("expected a route consistent with the trunk to fit")
	}
	if _, _, ok := tr.FindTransplantation([]inet.Address{a, b, addr(t, "3.3.3.3")}); ok {
		t.Fatalf("expected no transplantation for an already-fitting route")
	}
}

// A route sharing no suffix at all with the trunk is genuinely
// inconsistent: no transplantation exists.
func TestFindTransplantationNoneFoundWhenNoSuffixMatches(t *testing.T) {
	tr := New()
	a, b := addr(t, "1.1.1.1"), addr(t, "2.2.2.2")
	tr.Insert(site([]inet.Address{a, b}))

	unrelated := []inet.Address{addr(t, "8.8.8.8"), addr(t, "9.9.9.9")}
	if _, _, ok := tr.FindTransplantation(unrelated); ok {
		t.Fatalf("expected no transplantation for a route sharing no suffix with the trunk")
	}
}
