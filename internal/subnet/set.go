package subnet

import (
	"sort"

	"nettopo/internal/inet"
	"nettopo/internal/nterr"
)

// UpdateResult is the outcome of adding a site to a Set (spec.md §4.1).
type UpdateResult int

const (
	KnownSubnet UpdateResult = iota
	SmallerSubnet
	BiggerSubnet
	NewSubnet
)

func (r UpdateResult) String() string {
	switch r {
	case KnownSubnet:
		return "KNOWN_SUBNET"
	case SmallerSubnet:
		return "SMALLER_SUBNET"
	case BiggerSubnet:
		return "BIGGER_SUBNET"
	default:
		return "NEW_SUBNET"
	}
}

// Set is a sorted, containment-aware collection of Sites, ordered by
// (prefix ascending, prefixLength ascending on tie).
type Set struct {
	sites []*Site
}

// New creates an empty Set.
func New() *Set {
	return &Set{}
}

func less(a, b *Site) bool {
	if a.Prefix != b.Prefix {
		return a.Prefix.Less(b.Prefix)
	}
	return a.PrefixLength < b.PrefixLength
}

// Sites returns the set's sites in their current order.
func (s *Set) Sites() []*Site {
	return s.sites
}

// NbSubnets returns the number of sites in the set.
func (s *Set) NbSubnets() int {
	return len(s.sites)
}

func (s *Set) insertSorted(ss *Site) {
	idx := sort.Search(len(s.sites), func(i int) bool { return !less(s.sites[i], ss) })
	s.sites = append(s.sites, nil)
	copy(s.sites[idx+1:], s.sites[idx:])
	s.sites[idx] = ss
}

func (s *Set) removeAt(i int) *Site {
	ss := s.sites[i]
	s.sites = append(s.sites[:i], s.sites[i+1:]...)
	return ss
}

// AddSite inserts ss into the set, merging with or absorbing existing
// sites on containment (spec.md §4.1).
func (s *Set) AddSite(ss *Site) UpdateResult {
	// Identical (prefix, prefixLength): KNOWN_SUBNET (in practice for /32s).
	for _, existing := range s.sites {
		if existing.Prefix == ss.Prefix && existing.PrefixLength == ss.PrefixLength {
			for _, iface := range ss.Interfaces {
				existing.AddInterfaceIfAbsent(iface)
			}
			return KnownSubnet
		}
	}

	// ss is strictly contained by some existing site: SMALLER_SUBNET.
	for _, existing := range s.sites {
		if inet.StrictlyContains(existing.Prefix, existing.PrefixLength, ss.Prefix, ss.PrefixLength) {
			for _, iface := range ss.Interfaces {
				existing.AddInterfaceIfAbsent(iface)
			}
			return SmallerSubnet
		}
	}

	// ss strictly contains one or more existing sites: BIGGER_SUBNET.
	var absorbed []*Site
	for i := 0; i < len(s.sites); {
		existing := s.sites[i]
		if inet.StrictlyContains(ss.Prefix, ss.PrefixLength, existing.Prefix, existing.PrefixLength) {
			absorbed = append(absorbed, existing)
			s.removeAt(i)
			continue
		}
		i++
	}
	if len(absorbed) > 0 {
		for _, old := range absorbed {
			for _, iface := range old.Interfaces {
				ss.AddInterfaceIfAbsent(iface)
			}
		}
		s.insertSorted(ss)
		return BiggerSubnet
	}

	s.insertSorted(ss)
	return NewSubnet
}

// AddSiteUnsorted appends ss without any containment check or sort
// (SPEC_FULL.md §3's bulk-load path); call Sort once loading completes.
func (s *Set) AddSiteUnsorted(ss *Site) {
	s.sites = append(s.sites, ss)
}

// Sort restores the (prefix, prefixLength) ordering invariant after a run
// of AddSiteUnsorted calls.
func (s *Set) Sort() {
	sort.Slice(s.sites, func(i, j int) bool { return less(s.sites[i], s.sites[j]) })
}

// GetSubnetContaining returns the first site whose address block covers ip,
// or nil.
func (s *Set) GetSubnetContaining(ip inet.Address) *Site {
	for _, ss := range s.sites {
		if ss.Contains(ip) {
			return ss
		}
	}
	return nil
}

// GetSubnetContainingWithTTL is as GetSubnetContaining, additionally
// requiring the site's PivotTTL to equal ttl exactly.
func (s *Set) GetSubnetContainingWithTTL(ip inet.Address, ttl uint8) *Site {
	for _, ss := range s.sites {
		if ss.Contains(ip) && ss.PivotTTL == ttl {
			return ss
		}
	}
	return nil
}

// IsCompatible reports whether a hypothetical subnet spanning
// [lower, upper] at the given TTL is compatible with the set: every
// overlapping site must have a matching PivotTTL (exact, or within ±1 when
// checkAdjacentTTL), and, when shadowExpansion is true, no overlapping
// ACCURATE or ODD site is tolerated regardless of TTL.
func (s *Set) IsCompatible(lower, upper inet.Address, ttl uint8, checkAdjacentTTL, shadowExpansion bool) bool {
	for _, ss := range s.sites {
		if !blockOverlaps(ss, lower, upper) {
			continue
		}
		if shadowExpansion && (ss.Status == Accurate || ss.Status == Odd) {
			return false
		}
		if ss.PivotTTL == ttl {
			continue
		}
		if checkAdjacentTTL && absDiffTTL(ss.PivotTTL, ttl) <= 1 {
			continue
		}
		return false
	}
	return true
}

func absDiffTTL(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func blockOverlaps(ss *Site, lower, upper inet.Address) bool {
	base := ss.Prefix.Prefix(ss.PrefixLength)
	size := inet.BlockSize(ss.PrefixLength)
	siteLower := uint64(base)
	siteUpper := siteLower + size - 1
	return siteLower <= uint64(upper) && uint64(lower) <= siteUpper
}

// GetValidSubnet removes and returns the first site with status ACCURATE,
// ODD, or SHADOW. When completeRoute is true, only sites whose route
// contains no missing marker are eligible.
func (s *Set) GetValidSubnet(completeRoute bool) *Site {
	for i, ss := range s.sites {
		if ss.Status != Accurate && ss.Status != Odd && ss.Status != Shadow {
			continue
		}
		if completeRoute && ss.RouteHasMissingHop() {
			continue
		}
		return s.removeAt(i)
	}
	return nil
}

// GetShadowSubnet removes and returns the first SHADOW site, or nil.
func (s *Set) GetShadowSubnet() *Site {
	for i, ss := range s.sites {
		if ss.Status == Shadow {
			return s.removeAt(i)
		}
	}
	return nil
}

// SortByRoute reorders the set by ascending route length, then ascending
// prefix.
func (s *Set) SortByRoute() {
	sort.Slice(s.sites, func(i, j int) bool {
		a, b := s.sites[i], s.sites[j]
		if len(a.Route) != len(b.Route) {
			return len(a.Route) < len(b.Route)
		}
		return a.Prefix.Less(b.Prefix)
	})
}

// GetMaximumDistance returns the maximum PivotTTL across all sites, or 0
// for an empty set.
func (s *Set) GetMaximumDistance() uint8 {
	var max uint8
	for _, ss := range s.sites {
		if ss.PivotTTL > max {
			max = ss.PivotTTL
		}
	}
	return max
}

// AdaptRoutes rewrites the route of every site whose route begins with
// exactly oldPrefix, replacing that prefix with newPrefix. It returns the
// number of modified sites. A second call with the same arguments modifies
// zero sites, since no surviving route begins with oldPrefix anymore
// unless oldPrefix is a prefix of newPrefix itself.
func (s *Set) AdaptRoutes(oldPrefix, newPrefix []inet.Address) int {
	count := 0
	for _, ss := range s.sites {
		if !routeHasPrefix(ss.Route, oldPrefix) {
			continue
		}
		rest := ss.Route[len(oldPrefix):]
		newRoute := make([]inet.Address, 0, len(newPrefix)+len(rest))
		newRoute = append(newRoute, newPrefix...)
		newRoute = append(newRoute, rest...)
		ss.Route = newRoute
		count++
	}
	return count
}

// ValidateInterfaces checks the subnet invariant (every interface IP lies
// within the site's address block) for ss, returning an InvariantViolation
// if violated.
func ValidateInterfaces(ss *Site) error {
	for _, iface := range ss.Interfaces {
		if !ss.Contains(iface.IP) {
			return &nterr.InvariantViolation{
				Msg: "interface " + iface.IP.String() + " lies outside " + ss.CIDR(),
			}
		}
	}
	return nil
}
