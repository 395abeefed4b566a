package alias

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"nettopo/internal/inet"
	"nettopo/internal/iptable"
)

// fakeProber is a deterministic, in-memory Prober double. It never touches
// the network, so it is safe to run in any test environment.
type fakeProber struct {
	ipidCalls int32
	udpCalls  int32
	tsCalls   int32
	dnsCalls  int32

	// ipidCallsAtUDPStart records ipidCalls' value the first time
	// ProbeUDPUnreachable is invoked, to check the phase 1/2 barrier.
	ipidCallsAtUDPStart int32
	udpStartRecorded    int32
}

func (f *fakeProber) SampleIPID(ctx context.Context, target inet.Address) (uint16, error) {
	n := atomic.AddInt32(&f.ipidCalls, 1)
	return uint16(n), nil
}

func (f *fakeProber) ProbeUDPUnreachable(ctx context.Context, target inet.Address, port uint16) (inet.Address, bool, error) {
	if atomic.CompareAndSwapInt32(&f.udpStartRecorded, 0, 1) {
		atomic.StoreInt32(&f.ipidCallsAtUDPStart, atomic.LoadInt32(&f.ipidCalls))
	}
	atomic.AddInt32(&f.udpCalls, 1)
	return target, true, nil
}

func (f *fakeProber) ProbeTimestamp(ctx context.Context, target inet.Address) (iptable.TimestampReply, error) {
	atomic.AddInt32(&f.tsCalls, 1)
	return iptable.TimestampReply{Responded: true, EchoesRequestTimestamp: true}, nil
}

func (f *fakeProber) ResolveHostname(ctx context.Context, target inet.Address) (string, bool, error) {
	atomic.AddInt32(&f.dnsCalls, 1)
	return "host.example", true, nil
}

func addr(t *testing.T, s string) inet.Address {
	a, err := inet.ParseAddress(s)
	if err != nil {
		t.Fatalf("ParseAddress(%q): %v", s, err)
	}
	return a
}

// S6. Collector phase ordering: with 2 IPs and nbIPIDs=4, every IP-ID
// sample (8 total) completes before the first UDP-unreachable probe.
func TestRunRespectsPhaseBarrier(t *testing.T) {
	table := iptable.New()
	fp := &fakeProber{}
	c := New(Config{MaxThreads: 2, NbIPIDs: 4, NeighborhoodTTL: 5}, table, fp)

	ips := []inet.Address{addr(t, "10.0.0.1"), addr(t, "10.0.0.2")}
	c.Run(context.Background(), ips)

	if fp.ipidCalls != 8 {
		t.Fatalf("expected 8 IP-ID samples (2 IPs * 4), got %d", fp.ipidCalls)
	}
	if fp.ipidCallsAtUDPStart != 8 {
		t.Fatalf("expected all IP-ID sampling done before the first UDP probe, got %d", fp.ipidCallsAtUDPStart)
	}
	if fp.udpCalls != 2 || fp.tsCalls != 2 || fp.dnsCalls != 2 {
		t.Fatalf("expected one UDP/timestamp/DNS probe per IP, got udp=%d ts=%d dns=%d", fp.udpCalls, fp.tsCalls, fp.dnsCalls)
	}

	for _, ip := range ips {
		e := table.Lookup(ip)
		if e == nil {
			t.Fatalf("expected an entry for %s", ip)
		}
		if len(e.IPIDSamples()) != 4 {
			t.Fatalf("expected 4 samples for %s, got %d", ip, len(e.IPIDSamples()))
		}
		if replied, _, _ := e.UDPUnreachableReply(); !replied {
			t.Fatalf("expected a recorded UDP reply for %s", ip)
		}
		if name, ok := e.Hostname(); !ok || name != "host.example" {
			t.Fatalf("expected resolved hostname for %s", ip)
		}
	}
}

func TestSortDedup(t *testing.T) {
	ips := []inet.Address{addr(t, "10.0.0.2"), addr(t, "10.0.0.1"), addr(t, "10.0.0.2")}
	got := sortDedup(ips)
	want := []inet.Address{addr(t, "10.0.0.1"), addr(t, "10.0.0.2")}
	if len(got) != len(want) {
		t.Fatalf("sortDedup() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sortDedup() = %v, want %v", got, want)
		}
	}
}

func TestMaxCollectors(t *testing.T) {
	if n := maxCollectors(10, 4); n != 2 {
		t.Fatalf("maxCollectors(10,4) = %d, want 2", n)
	}
	if n := maxCollectors(1, 10); n != 1 {
		t.Fatalf("maxCollectors(1,10) = %d, want at least 1", n)
	}
}

func TestPartitionPortBandsDisjoint(t *testing.T) {
	bands := partitionPortBands(4)
	if len(bands) != 4 {
		t.Fatalf("expected 4 bands, got %d", len(bands))
	}
	for i := 1; i < len(bands); i++ {
		if bands[i][0] <= bands[i-1][1] {
			t.Fatalf("bands overlap: %v and %v", bands[i-1], bands[i])
		}
	}
}

func TestClassifyCounterHealthy(t *testing.T) {
	e := iptable.New().Create(addr(t, "1.1.1.1"), 5)
	base := time.Now()
	for i, step := range []uint16{100, 101, 102, 103} {
		e.AddIPIDSample(iptable.IPIDSample{Timestamp: base.Add(time.Duration(i) * time.Second), IPID: step, Token: 1})
	}
	classifyCounter(e)
	if got := e.GetCounterType(); got != iptable.HealthyCounter {
		t.Fatalf("classifyCounter() = %s, want HEALTHY_COUNTER", got)
	}
}

func TestClassifyCounterEcho(t *testing.T) {
	e := iptable.New().Create(addr(t, "1.1.1.1"), 5)
	base := time.Now()
	for i := 0; i < 4; i++ {
		e.AddIPIDSample(iptable.IPIDSample{Timestamp: base.Add(time.Duration(i) * time.Second), IPID: 0, Token: 1})
	}
	classifyCounter(e)
	if got := e.GetCounterType(); got != iptable.EchoCounter {
		t.Fatalf("classifyCounter() = %s, want ECHO_COUNTER", got)
	}
}
