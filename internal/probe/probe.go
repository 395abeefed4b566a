// Package probe defines the probing primitives used by the Alias Hint
// Collector (spec.md §4.4): one interface per probe type, so the collector
// depends only on behavior, never on packet-crafting detail. The core
// alias-resolution logic treats probing as an external collaborator
// (spec.md §1); DefaultProber is one concrete implementation of it, built
// on gopacket for capture and golang.org/x/net/icmp for crafting.
package probe

import (
	"context"

	"nettopo/internal/inet"
	"nettopo/internal/iptable"
)

// IPIDSampler samples a target's IP-ID counter once.
type IPIDSampler interface {
	SampleIPID(ctx context.Context, target inet.Address) (uint16, error)
}

// UDPUnreachableProber sends a UDP probe to a closed port and reports the
// source address of the resulting ICMP port-unreachable reply, if any.
type UDPUnreachableProber interface {
	ProbeUDPUnreachable(ctx context.Context, target inet.Address, port uint16) (replySrc inet.Address, replied bool, err error)
}

// TimestampProber sends an ICMP timestamp request and reports whether the
// target replies, and whether the reply echoes the request timestamp.
type TimestampProber interface {
	ProbeTimestamp(ctx context.Context, target inet.Address) (iptable.TimestampReply, error)
}

// ReverseDNSResolver resolves a target's reverse-DNS hostname.
type ReverseDNSResolver interface {
	ResolveHostname(ctx context.Context, target inet.Address) (name string, found bool, err error)
}

// Prober bundles all four probe primitives, the shape the Alias Hint
// Collector's phases depend on.
type Prober interface {
	IPIDSampler
	UDPUnreachableProber
	TimestampProber
	ReverseDNSResolver
}
