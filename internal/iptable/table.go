// Package iptable implements the IP Table (spec.md §3, §4.2): a mapping
// from IPv4 address to a probing-state record, mutated only by probe units
// during an Alias Hint Collector run, under a one-writer-per-key rule that
// lets phases run without cross-worker locking on any single entry.
package iptable

import (
	"sync"
	"time"

	"nettopo/internal/inet"
)

// CounterType classifies the behavior of an IP's IP-ID counter across
// samples (spec.md §3).
type CounterType int

const (
	UnknownCounter CounterType = iota
	HealthyCounter
	RandomCounter
	EchoCounter
	FastCounter
)

func (c CounterType) String() string {
	switch c {
	case HealthyCounter:
		return "HEALTHY_COUNTER"
	case RandomCounter:
		return "RANDOM_COUNTER"
	case EchoCounter:
		return "ECHO_COUNTER"
	case FastCounter:
		return "FAST_COUNTER"
	default:
		return "UNKNOWN"
	}
}

// IPIDSample is a single (timestamp, IP-ID) observation tagged with the
// probe token of the worker that collected it.
type IPIDSample struct {
	Timestamp time.Time
	IPID      uint16
	Token     uint64
}

// TimestampReply records the outcome of an ICMP timestamp probe: whether
// the target responded at all, and whether its reply echoes back the
// timestamp we sent (per SPEC_FULL.md §3, grounded on TimestampCheckUnit).
type TimestampReply struct {
	Responded              bool
	EchoesRequestTimestamp bool
}

// Entry is the per-IP probing-state record. Created on first mention,
// mutated only by probe units, never deleted during a run.
type Entry struct {
	IP InetAddr

	mu sync.Mutex

	ttlToReach   uint8
	ipidSamples  []IPIDSample
	counterType  CounterType
	hostname     string
	hasHostname  bool
	timestamp    TimestampReply
	udpReplied   bool
	udpReplySrc  InetAddr
	udpReplyDiff bool // true when the reply source differs from the probed IP
}

// InetAddr is a type alias kept local to avoid import noise at call sites.
type InetAddr = inet.Address

func newEntry(ip InetAddr, ttl uint8) *Entry {
	return &Entry{IP: ip, ttlToReach: ttl}
}

// TTL returns the TTL used to reach this IP.
func (e *Entry) TTL() uint8 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ttlToReach
}

// SetTTL sets the TTL used to reach this IP.
func (e *Entry) SetTTL(ttl uint8) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ttlToReach = ttl
}

// AddIPIDSample appends an ordered (timestamp, IP-ID) sample.
func (e *Entry) AddIPIDSample(s IPIDSample) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ipidSamples = append(e.ipidSamples, s)
}

// IPIDSamples returns a copy of the collected samples, in collection order.
func (e *Entry) IPIDSamples() []IPIDSample {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]IPIDSample, len(e.ipidSamples))
	copy(out, e.ipidSamples)
	return out
}

// SetCounterType sets the IP-ID counter classification.
func (e *Entry) SetCounterType(c CounterType) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.counterType = c
}

// CounterType returns the IP-ID counter classification.
func (e *Entry) GetCounterType() CounterType {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counterType
}

// SetHostname records the reverse-DNS result.
func (e *Entry) SetHostname(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hostname = name
	e.hasHostname = true
}

// Hostname returns the reverse-DNS result and whether one was recorded.
func (e *Entry) Hostname() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hostname, e.hasHostname
}

// SetTimestampReply records the ICMP timestamp probe outcome.
func (e *Entry) SetTimestampReply(r TimestampReply) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timestamp = r
}

// TimestampReply returns the recorded ICMP timestamp probe outcome.
func (e *Entry) GetTimestampReply() TimestampReply {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timestamp
}

// SetUDPUnreachableReply records a UDP-unreachable probe result. replySrc
// is the source address of the ICMP port-unreachable reply; it may differ
// from the probed IP (multi-homed router replying on a different
// interface).
func (e *Entry) SetUDPUnreachableReply(replySrc InetAddr) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.udpReplied = true
	e.udpReplySrc = replySrc
	e.udpReplyDiff = replySrc != e.IP
}

// UDPUnreachableReply reports whether a reply was recorded, its source,
// and whether the source differs from the probed IP.
func (e *Entry) UDPUnreachableReply() (replied bool, src InetAddr, differs bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.udpReplied, e.udpReplySrc, e.udpReplyDiff
}

// Table is the IP Table: a concurrent map from Address to *Entry. Within a
// probing phase each worker addresses a distinct key, so reads/writes on a
// given Entry never race across workers; the map itself is guarded by a
// RWMutex for the create-if-absent path.
type Table struct {
	mu      sync.RWMutex
	entries map[InetAddr]*Entry
}

// New creates an empty IP Table.
func New() *Table {
	return &Table{entries: make(map[InetAddr]*Entry)}
}

// Lookup returns the entry for ip, or nil if it has never been created.
func (t *Table) Lookup(ip InetAddr) *Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.entries[ip]
}

// Create returns the entry for ip, creating it with the given TTL if it
// does not already exist. If it already exists, the existing entry is
// returned unchanged (its TTL is not overwritten).
func (t *Table) Create(ip InetAddr, ttl uint8) *Entry {
	t.mu.RLock()
	e, ok := t.entries[ip]
	t.mu.RUnlock()
	if ok {
		return e
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[ip]; ok {
		return e
	}
	e = newEntry(ip, ttl)
	t.entries[ip] = e
	return e
}

// Len returns the number of entries in the table.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// All returns a snapshot slice of all entries, in no particular order.
func (t *Table) All() []*Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	return out
}
