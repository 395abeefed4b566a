// Package resolver implements the AliasResolver (spec.md §4.5): given an
// internal or HEDERA tree node and the IP Table filled in by the Alias
// Hint Collector, it partitions the node's labels and its direct
// child-subnet ingress interfaces into disjoint Routers, attaches the
// inferred Routers to the node, and tags each interface with the method
// that first grouped it.
//
// Grounded on Router::getMergingPivot and the four alias-method ladder in
// original_source/v3/Forester/src/treenet/structure/Router.cpp: UDP
// port-unreachable reply matching is tried first (strongest signal), then
// IP-ID counter compatibility anchored on a HEALTHY_COUNTER pivot, then
// ICMP-timestamp fingerprint equality, then reverse-DNS suffix similarity.
package resolver

import (
	"strings"

	"nettopo/internal/inet"
	"nettopo/internal/iptable"
	"nettopo/internal/router"
	"nettopo/internal/tree"
)

// Resolver groups a node's candidate interfaces into Routers.
type Resolver struct {
	table *iptable.Table
}

// New creates a Resolver reading probe results from table.
func New(table *iptable.Table) *Resolver {
	return &Resolver{table: table}
}

// group is a candidate router under construction: a disjoint set of
// interfaces plus the method that should be recorded for each.
type group struct {
	ips     []inet.Address
	methods map[inet.Address]router.AliasMethod
}

func newGroup(ip inet.Address, method router.AliasMethod) *group {
	return &group{ips: []inet.Address{ip}, methods: map[inet.Address]router.AliasMethod{ip: method}}
}

func (g *group) merge(other *group) {
	g.ips = append(g.ips, other.ips...)
	for ip, m := range other.methods {
		g.methods[ip] = m
	}
}

// Resolve gathers node's candidate interfaces (its own labels plus the
// PivotIP of every direct SubnetLeaf child), groups them into disjoint
// Routers, attaches the Routers to node, and returns them.
func (r *Resolver) Resolve(t *tree.Tree, node *tree.Node) []*router.Router {
	candidates := candidateInterfaces(t, node)
	if len(candidates) == 0 {
		node.Routers = nil
		return nil
	}

	groups := make([]*group, 0, len(candidates))
	for _, ip := range candidates {
		groups = append(groups, newGroup(ip, router.UnknownMethod))
	}

	groups = r.mergeByUDPUnreachable(groups)
	groups = r.mergeByIPIDCompatibility(groups)
	groups = r.mergeByTimestampFingerprint(groups)
	groups = r.mergeByReverseDNSSuffix(groups)

	routers := make([]*router.Router, 0, len(groups))
	for _, g := range groups {
		// spec.md §3's Router invariant: a singleton is only meaningful when
		// its one interface was associated via a UDP-port-unreachable reply
		// mismatch. Any other uncorroborated singleton (no merge partner,
		// no distinguishing evidence) is discarded rather than materialized
		// as a one-interface "router".
		if len(g.ips) == 1 && g.methods[g.ips[0]] != router.UDPPortUnreachable {
			continue
		}
		rt := router.New()
		for _, ip := range g.ips {
			rt.AddInterface(ip, g.methods[ip])
		}
		routers = append(routers, rt)
	}
	if len(routers) == 0 {
		node.Routers = nil
		return nil
	}
	node.Routers = routers
	return routers
}

// candidateInterfaces collects a node's own labels plus the ingress
// interface (PivotIP) of each direct SubnetLeaf child (spec.md §4.5).
func candidateInterfaces(t *tree.Tree, node *tree.Node) []inet.Address {
	seen := make(map[inet.Address]bool)
	var out []inet.Address
	add := func(ip inet.Address) {
		if ip.IsZero() || seen[ip] {
			return
		}
		seen[ip] = true
		out = append(out, ip)
	}
	for _, l := range node.Labels() {
		add(l)
	}
	for _, cid := range node.Children() {
		child := t.Node(cid)
		if child.Kind() != tree.SubnetLeaf {
			continue
		}
		add(t.Subnet(child.SubnetID).PivotIP)
	}
	return out
}

// mergeByUDPUnreachable merges any two candidates whose recorded
// UDP-unreachable reply source is the same concrete address — the
// original probed IP cannot reply to its own port-unreachable probe with
// someone else's interface unless both share a device (spec.md §4.5 (i)).
func (r *Resolver) mergeByUDPUnreachable(groups []*group) []*group {
	bySrc := make(map[inet.Address][]int) // reply source -> group indices
	for i, g := range groups {
		for _, ip := range g.ips {
			e := r.table.Lookup(ip)
			if e == nil {
				continue
			}
			replied, src, _ := e.UDPUnreachableReply()
			if !replied {
				continue
			}
			g.methods[ip] = router.UDPPortUnreachable
			bySrc[src] = append(bySrc[src], i)
		}
	}
	return applyMerges(groups, bySrc)
}

// mergeByIPIDCompatibility merges candidates whose IP-ID counters both
// classify as HEALTHY_COUNTER and whose recent samples, compared through
// Router.GetMergingPivot-style anchors, advance at compatible velocities —
// the signature of a single shared counter observed from two interfaces
// of the same device (spec.md §4.5 (ii)).
func (r *Resolver) mergeByIPIDCompatibility(groups []*group) []*group {
	type anchor struct {
		idx   int
		entry *iptable.Entry
	}
	var anchors []anchor
	for i, g := range groups {
		rt := routerFromGroup(g)
		pivot := rt.GetMergingPivot(r.table)
		if pivot == nil {
			continue
		}
		anchors = append(anchors, anchor{idx: i, entry: pivot})
	}

	merges := make(map[int][]int)
	used := make(map[int]bool)
	for a := 0; a < len(anchors); a++ {
		if used[anchors[a].idx] {
			continue
		}
		for b := a + 1; b < len(anchors); b++ {
			if counterCompatible(anchors[a].entry, anchors[b].entry) {
				merges[anchors[a].idx] = append(merges[anchors[a].idx], anchors[b].idx)
				used[anchors[b].idx] = true
				for _, ip := range groups[anchors[b].idx].ips {
					groups[anchors[b].idx].methods[ip] = router.IPIDBased
				}
				for _, ip := range groups[anchors[a].idx].ips {
					if groups[anchors[a].idx].methods[ip] == router.UnknownMethod {
						groups[anchors[a].idx].methods[ip] = router.IPIDBased
					}
				}
			}
		}
	}
	return applyMerges(groups, merges)
}

// counterCompatible reports whether two HEALTHY_COUNTER entries' samples
// are consistent with a single underlying counter: both healthy, and
// their IP-ID values at comparable times differ by an offset that itself
// looks stable rather than drifting (a loose but grounded stand-in for the
// original's velocity/offset bound, since exact constants were not
// retrievable from the original source excerpts).
func counterCompatible(a, b *iptable.Entry) bool {
	if a.GetCounterType() != iptable.HealthyCounter || b.GetCounterType() != iptable.HealthyCounter {
		return false
	}
	as, bs := a.IPIDSamples(), b.IPIDSamples()
	if len(as) == 0 || len(bs) == 0 {
		return false
	}
	last := func(s []iptable.IPIDSample) iptable.IPIDSample { return s[len(s)-1] }
	la, lb := last(as), last(bs)
	dt := la.Timestamp.Sub(lb.Timestamp).Seconds()
	if dt < 0 {
		dt = -dt
	}
	diff := int(la.IPID) - int(lb.IPID)
	if diff < 0 {
		diff = -diff
	}
	// Two counters observed close in time should sit close in value if
	// they are the same counter; far apart in value despite a short
	// interval rules out a shared counter.
	return dt < 5 && diff < 2000
}

// mergeByTimestampFingerprint merges candidates whose ICMP timestamp
// probes both responded and agreed on whether the reply echoes the
// originate timestamp — a coarse device fingerprint (spec.md §4.5 (iii)).
func (r *Resolver) mergeByTimestampFingerprint(groups []*group) []*group {
	type fp struct {
		responded bool
		echoes    bool
	}
	byFP := make(map[fp][]int)
	for i, g := range groups {
		for _, ip := range g.ips {
			e := r.table.Lookup(ip)
			if e == nil {
				continue
			}
			reply := e.GetTimestampReply()
			if !reply.Responded {
				continue
			}
			g.methods[ip] = router.ICMPTimestampBased
			key := fp{responded: reply.Responded, echoes: reply.EchoesRequestTimestamp}
			byFP[key] = append(byFP[key], i)
		}
	}
	// Fingerprint equality alone is weak evidence (many devices share the
	// same boolean fingerprint); only merge when the candidate set is
	// small enough that a coincidence is unlikely.
	merges := make(map[int][]int)
	for _, idxs := range byFP {
		if len(idxs) < 2 || len(idxs) > 2 {
			continue
		}
		merges[idxs[0]] = append(merges[idxs[0]], idxs[1])
	}
	return applyMerges(groups, merges)
}

// mergeByReverseDNSSuffix merges candidates whose resolved hostnames share
// a trailing dot-delimited suffix (excluding the leading label, which
// typically encodes the differing interface itself) — e.g.
// "gi0-0.core1.example.net" and "gi0-1.core1.example.net" both point at
// core1.example.net (spec.md §4.5 (iv)).
func (r *Resolver) mergeByReverseDNSSuffix(groups []*group) []*group {
	bySuffix := make(map[string][]int)
	for i, g := range groups {
		for _, ip := range g.ips {
			e := r.table.Lookup(ip)
			if e == nil {
				continue
			}
			name, ok := e.Hostname()
			if !ok {
				continue
			}
			suffix := hostnameSuffix(name)
			if suffix == "" {
				continue
			}
			g.methods[ip] = router.ReverseDNS
			bySuffix[suffix] = append(bySuffix[suffix], i)
		}
	}
	return applyMerges(groups, bySuffix)
}

// hostnameSuffix drops the leading label of a dot-separated hostname,
// returning the remainder, or "" if there is nothing left to compare.
func hostnameSuffix(name string) string {
	name = strings.TrimSuffix(name, ".")
	parts := strings.Split(name, ".")
	if len(parts) < 3 {
		return ""
	}
	return strings.Join(parts[1:], ".")
}

// applyMerges unions groups sharing a key in keyed (map value -> list of
// group indices to merge into one), returning the resulting group slice
// with duplicates collapsed and already-merged indices dropped.
func applyMerges[K comparable](groups []*group, keyed map[K][]int) []*group {
	parent := make([]int, len(groups))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}
	for _, idxs := range keyed {
		for i := 1; i < len(idxs); i++ {
			union(idxs[0], idxs[i])
		}
	}

	merged := make(map[int]*group)
	for i, g := range groups {
		root := find(i)
		if existing, ok := merged[root]; ok {
			existing.merge(g)
		} else {
			merged[root] = g
		}
	}
	out := make([]*group, 0, len(merged))
	for _, g := range merged {
		out = append(out, g)
	}
	return out
}

// routerFromGroup builds a throwaway *router.Router view of g so that
// Router.GetMergingPivot's existing anchor-selection logic can be reused
// without duplicating it here.
func routerFromGroup(g *group) *router.Router {
	rt := router.New()
	for _, ip := range g.ips {
		rt.AddInterface(ip, g.methods[ip])
	}
	return rt
}

// ResolveAll runs Resolve over every Internal and Hedera node in t.
func (r *Resolver) ResolveAll(t *tree.Tree) {
	for d := 0; d <= t.MaxDepth(); d++ {
		for _, id := range t.NodesAtDepth(d) {
			node := t.Node(id)
			if node.Kind() != tree.Internal && node.Kind() != tree.Hedera {
				continue
			}
			r.Resolve(t, node)
		}
	}
}
