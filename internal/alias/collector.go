// Package alias implements the Alias Hint Collector (spec.md §4.4): a
// four-phase bounded-concurrency probing pipeline that fills an IP Table
// with the hints the resolver later groups into routers. Grounded on
// AliasHintCollector::collect() in
// original_source/v2/Reader/src/aliasresolution/AliasHintCollector.cpp;
// the worker-pool shape (bounded goroutines, sync.WaitGroup, barrier
// between phases) follows the teacher's internal/engine/manager.Manager.
package alias

import (
	"context"
	"sort"
	"sync"
	"time"

	"nettopo/internal/inet"
	"nettopo/internal/iptable"
	"nettopo/internal/probe"
)

// Dispatch delays between worker starts within a phase (spec.md §4.4).
const (
	dispatchDelayFast time.Duration = 10 * time.Millisecond  // phases 1 and 4
	dispatchDelaySlow time.Duration = 100 * time.Millisecond // phases 2 and 3
)

// Config holds the collector's run parameters.
type Config struct {
	MaxThreads uint16
	NbIPIDs    uint8
	// NeighborhoodTTL seeds newly created IP Table entries' TTL.
	NeighborhoodTTL uint8
}

// Collector runs the four-phase pipeline described in spec.md §4.4.
type Collector struct {
	cfg    Config
	table  *iptable.Table
	prober probe.Prober

	tokenMu sync.Mutex
	token   uint64
}

// New creates a Collector. table and prober are shared with the rest of a
// mapping run; prober is the sole probing collaborator (spec.md §1).
func New(cfg Config, table *iptable.Table, prober probe.Prober) *Collector {
	return &Collector{cfg: cfg, table: table, prober: prober}
}

// nextToken returns the next monotonically increasing probe token,
// incremented only by the orchestrator (this call), never by a worker
// (spec.md §5).
func (c *Collector) nextToken() uint64 {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	c.token++
	return c.token
}

// Run sorts and dedups ipsToProbe, seeds the IP Table, then runs all four
// phases in order, each separated by a full barrier.
func (c *Collector) Run(ctx context.Context, ipsToProbe []inet.Address) {
	sorted := sortDedup(ipsToProbe)
	for _, ip := range sorted {
		c.table.Create(ip, c.cfg.NeighborhoodTTL)
	}

	// Three independent backup lists, one per remaining phase, taken right
	// after dedup -- SPEC_FULL.md §3's port of collect()'s
	// backUp1/backUp2/backUp3 scheduling.
	backup1 := append([]inet.Address(nil), sorted...)
	backup2 := append([]inet.Address(nil), sorted...)
	backup3 := append([]inet.Address(nil), sorted...)

	c.phase1(ctx, sorted)
	c.phase2(ctx, backup1)
	c.phase3(ctx, backup2)
	c.phase4(ctx, backup3)
}

func sortDedup(ips []inet.Address) []inet.Address {
	out := append([]inet.Address(nil), ips...)
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	deduped := out[:0]
	var prevSet bool
	var prev inet.Address
	for _, ip := range out {
		if prevSet && ip == prev {
			continue
		}
		deduped = append(deduped, ip)
		prev, prevSet = ip, true
	}
	return deduped
}

// maxCollectors bounds phase 1's concurrency so that nbIPIDs+1 "slots" per
// collector (one send + nbIPIDs receives, loosely) fit within maxThreads.
func maxCollectors(maxThreads uint16, nbIPIDs uint8) int {
	n := int(maxThreads) / (int(nbIPIDs) + 1)
	if n < 1 {
		n = 1
	}
	return n
}

// dispatch runs fn(ip) for every ip in ips across a pool bounded to
// maxConcurrent, sleeping delay between successive worker starts (spec.md
// §4.4's synchronized-burst avoidance). Worker start order follows ips'
// order; completion order is unordered. dispatch blocks until every worker
// has finished (the inter-phase barrier).
func dispatch(ctx context.Context, ips []inet.Address, maxConcurrent int, delay time.Duration, fn func(context.Context, inet.Address)) {
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup
	for _, ip := range ips {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(ip inet.Address) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(ctx, ip)
		}(ip)
		time.Sleep(delay)
	}
	wg.Wait()
}

func (c *Collector) phase1(ctx context.Context, ips []inet.Address) {
	dispatch(ctx, ips, maxCollectors(c.cfg.MaxThreads, c.cfg.NbIPIDs), dispatchDelayFast, func(ctx context.Context, ip inet.Address) {
		entry := c.table.Create(ip, c.cfg.NeighborhoodTTL)
		token := c.nextToken()
		for i := uint8(0); i < c.cfg.NbIPIDs; i++ {
			id, err := c.prober.SampleIPID(ctx, ip)
			if err != nil {
				continue
			}
			entry.AddIPIDSample(iptable.IPIDSample{Timestamp: probeTime(), IPID: id, Token: token})
		}
		classifyCounter(entry)
	})
}

func (c *Collector) phase2(ctx context.Context, ips []inet.Address) {
	maxThreads := int(c.cfg.MaxThreads)
	if maxThreads < 1 {
		maxThreads = 1
	}
	bands := partitionPortBands(maxThreads)
	var next int
	var mu sync.Mutex
	takeBand := func() (lo, hi uint16) {
		mu.Lock()
		defer mu.Unlock()
		b := bands[next%len(bands)]
		next++
		return b[0], b[1]
	}
	dispatch(ctx, ips, maxThreads, dispatchDelaySlow, func(ctx context.Context, ip inet.Address) {
		// Each worker draws the destination port it probes from its own
		// band, so concurrent workers never collide on the same closed
		// port on a shared upstream router.
		lo, _ := takeBand()
		entry := c.table.Create(ip, c.cfg.NeighborhoodTTL)
		src, replied, err := c.prober.ProbeUDPUnreachable(ctx, ip, lo)
		if err != nil || !replied {
			return
		}
		entry.SetUDPUnreachableReply(src)
	})
}

func (c *Collector) phase3(ctx context.Context, ips []inet.Address) {
	maxThreads := int(c.cfg.MaxThreads)
	if maxThreads < 1 {
		maxThreads = 1
	}
	dispatch(ctx, ips, maxThreads, dispatchDelaySlow, func(ctx context.Context, ip inet.Address) {
		entry := c.table.Create(ip, c.cfg.NeighborhoodTTL)
		reply, err := c.prober.ProbeTimestamp(ctx, ip)
		if err != nil {
			return
		}
		entry.SetTimestampReply(reply)
	})
}

func (c *Collector) phase4(ctx context.Context, ips []inet.Address) {
	maxThreads := int(c.cfg.MaxThreads)
	if maxThreads < 1 {
		maxThreads = 1
	}
	dispatch(ctx, ips, maxThreads, dispatchDelayFast, func(ctx context.Context, ip inet.Address) {
		entry := c.table.Create(ip, c.cfg.NeighborhoodTTL)
		name, found, err := c.prober.ResolveHostname(ctx, ip)
		if err != nil || !found {
			return
		}
		entry.SetHostname(name)
	})
}

// partitionPortBands splits the ephemeral source-port range into n
// disjoint contiguous bands (spec.md §4.4 phase 2/3).
func partitionPortBands(n int) [][2]uint16 {
	const lo, hi = 49152, 65535 // IANA dynamic/private port range
	span := hi - lo + 1
	bandSize := span / n
	if bandSize < 1 {
		bandSize = 1
	}
	bands := make([][2]uint16, 0, n)
	for i := 0; i < n; i++ {
		start := lo + i*bandSize
		end := start + bandSize - 1
		if i == n-1 || end > hi {
			end = hi
		}
		if start > hi {
			break
		}
		bands = append(bands, [2]uint16{uint16(start), uint16(end)})
	}
	return bands
}

// probeTime is a seam over time.Now for determinism in tests that care
// about sample ordering rather than wall-clock values.
var probeTime = time.Now
