// Package router implements RouterInterface and Router (spec.md §3, §4.2):
// an ordered set of interfaces believed co-located on one device, with
// alias-method tags recording how each interface was grouped in.
package router

import (
	"sort"
	"strings"

	"nettopo/internal/inet"
	"nettopo/internal/iptable"
)

// AliasMethod is the probing technique that established that an interface
// belongs to a given router.
type AliasMethod int

const (
	UnknownMethod AliasMethod = iota
	IPIDBased
	UDPPortUnreachable
	ReverseDNS
	ICMPTimestampBased
	GroupEcho
	GroupRandom
	GroupReserved
)

func (m AliasMethod) String() string {
	switch m {
	case IPIDBased:
		return "IP_ID_BASED"
	case UDPPortUnreachable:
		return "UDP_PORT_UNREACHABLE"
	case ReverseDNS:
		return "REVERSE_DNS"
	case ICMPTimestampBased:
		return "ICMP_TIMESTAMP_BASED"
	case GroupEcho:
		return "GROUP_ECHO"
	case GroupRandom:
		return "GROUP_RANDOM"
	case GroupReserved:
		return "GROUP_RESERVED"
	default:
		return "UNKNOWN"
	}
}

// Interface is a single aliased interface: an IP and the method that
// grouped it into its Router. Total order by IP.
type Interface struct {
	IP          inet.Address
	AliasMethod AliasMethod
}

func smaller(a, b Interface) bool { return a.IP.Less(b.IP) }

// Router is an ordered set of Interface, sorted by IP. A Router is only
// meaningful once it carries >= 2 interfaces, or exactly one interface
// associated via a UDP-port-unreachable reply mismatch (spec.md §3); the
// resolver enforces that invariant by discarding uncorroborated singleton
// groups before ever constructing a Router from them, since Router itself
// is built up incrementally and cannot see whether more interfaces are
// still to come.
type Router struct {
	interfaces []Interface
}

// New creates an empty Router.
func New() *Router {
	return &Router{}
}

// AddInterface inserts ip with the given alias method and keeps the
// interface list sorted by IP, mirroring the original's insert-then-sort.
func (r *Router) AddInterface(ip inet.Address, method AliasMethod) {
	r.interfaces = append(r.interfaces, Interface{IP: ip, AliasMethod: method})
	sort.Slice(r.interfaces, func(i, j int) bool { return smaller(r.interfaces[i], r.interfaces[j]) })
}

// Interfaces returns the sorted interface list.
func (r *Router) Interfaces() []Interface {
	return r.interfaces
}

// NbInterfaces returns the number of interfaces in the router.
func (r *Router) NbInterfaces() int {
	return len(r.interfaces)
}

// HasInterface reports whether ip is a member of the router.
func (r *Router) HasInterface(ip inet.Address) bool {
	for _, iface := range r.interfaces {
		if iface.IP == ip {
			return true
		}
	}
	return false
}

// GetMergingPivot returns the IP table entry of the first owned interface
// whose alias method is UDPPortUnreachable and whose IP-ID counter
// classifies as HealthyCounter. Such an entry is a reliable anchor for
// comparing two Router candidates that may describe the same device
// (spec.md §4.2).
func (r *Router) GetMergingPivot(table *iptable.Table) *iptable.Entry {
	for _, iface := range r.interfaces {
		if iface.AliasMethod != UDPPortUnreachable {
			continue
		}
		entry := table.Lookup(iface.IP)
		if entry != nil && entry.GetCounterType() == iptable.HealthyCounter {
			return entry
		}
	}
	return nil
}

// String renders the router's interfaces as a whitespace-separated,
// sort-order list of IPs.
func (r *Router) String() string {
	var b strings.Builder
	for i, iface := range r.interfaces {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(iface.IP.String())
	}
	return b.String()
}
