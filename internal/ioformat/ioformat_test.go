package ioformat

import (
	"strings"
	"testing"

	"nettopo/internal/bipartite"
	"nettopo/internal/inet"
	"nettopo/internal/router"
	"nettopo/internal/subnet"
)

const sampleRoute = `10.0.0.0/24 ACCURATE 5
interfaces:
10.0.0.1 5
10.0.0.2 5
route:
1.1.1.1 2.2.2.2

192.168.1.0/30 SHADOW 3
interfaces:
192.168.1.1 3
route:
1.1.1.1 0.0.0.0
`

func TestReadRouteFileParsesMultipleRecords(t *testing.T) {
	sites, err := ReadRouteFile(strings.NewReader(sampleRoute))
	if err != nil {
		t.Fatalf("ReadRouteFile: %v", err)
	}
	if len(sites) != 2 {
		t.Fatalf("got %d sites, want 2", len(sites))
	}

	first := sites[0]
	if first.CIDR() != "10.0.0.0/24" {
		t.Fatalf("first.CIDR() = %q", first.CIDR())
	}
	if first.Status != subnet.Accurate {
		t.Fatalf("first.Status = %v, want ACCURATE", first.Status)
	}
	if first.PivotTTL != 5 {
		t.Fatalf("first.PivotTTL = %d, want 5", first.PivotTTL)
	}
	if len(first.Interfaces) != 2 {
		t.Fatalf("first has %d interfaces, want 2", len(first.Interfaces))
	}
	if len(first.Route) != 2 {
		t.Fatalf("first.Route has %d hops, want 2", len(first.Route))
	}

	second := sites[1]
	if second.Status != subnet.Shadow {
		t.Fatalf("second.Status = %v, want SHADOW", second.Status)
	}
	if !second.Route[1].IsZero() {
		t.Fatalf("second.Route[1] = %v, want the missing-hop marker", second.Route[1])
	}
}

func TestReadRouteFileRejectsOutOfRangeInterface(t *testing.T) {
	bad := `10.0.0.0/30 ACCURATE 1
interfaces:
10.0.5.1 1
route:
1.1.1.1
`
	if _, err := ReadRouteFile(strings.NewReader(bad)); err == nil {
		t.Fatal("ReadRouteFile = nil error, want an InvariantViolation for the out-of-range interface")
	}
}

func TestWriteSubnetsRoundTripsThroughReadRouteFile(t *testing.T) {
	sites, err := ReadRouteFile(strings.NewReader(sampleRoute))
	if err != nil {
		t.Fatalf("ReadRouteFile: %v", err)
	}

	var buf strings.Builder
	if err := WriteSubnets(&buf, sites); err != nil {
		t.Fatalf("WriteSubnets: %v", err)
	}

	reparsed, err := ReadRouteFile(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("ReadRouteFile(round trip): %v", err)
	}
	if len(reparsed) != len(sites) {
		t.Fatalf("round-tripped %d sites, want %d", len(reparsed), len(sites))
	}
	for i := range sites {
		if reparsed[i].CIDR() != sites[i].CIDR() {
			t.Fatalf("site %d: CIDR = %q, want %q", i, reparsed[i].CIDR(), sites[i].CIDR())
		}
	}
}

func TestWriteAliasesFormatsOneRouterPerLine(t *testing.T) {
	r1 := router.New()
	r1.AddInterface(mustAddr(t, "10.0.0.2"), router.UDPPortUnreachable)
	r1.AddInterface(mustAddr(t, "10.0.0.1"), router.IPIDBased)

	var buf strings.Builder
	if err := WriteAliases(&buf, []*router.Router{r1}); err != nil {
		t.Fatalf("WriteAliases: %v", err)
	}
	line := strings.TrimSpace(buf.String())
	if !strings.HasPrefix(line, "R0: 10.0.0.1 10.0.0.2 (") {
		t.Fatalf("WriteAliases output = %q", line)
	}
}

func TestWriteBipartiteEmitsLoadBalancedLabel(t *testing.T) {
	g := bipartite.NewGraph()
	r := router.New()
	r.AddInterface(mustAddr(t, "1.1.1.1"), router.IPIDBased)
	ss := &subnet.Site{Prefix: mustAddr(t, "10.0.0.0"), PrefixLength: 24}

	rID := g.AddRouter(r)
	sID := g.AddSubnet(ss)
	g.AddLoadBalancedEdge(rID, sID, mustAddr(t, "2.2.2.2"))

	var buf strings.Builder
	if err := WriteBipartite(&buf, g); err != nil {
		t.Fatalf("WriteBipartite: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "R0 10.0.0.0/24 2.2.2.2") {
		t.Fatalf("WriteBipartite output missing load-balanced edge label:\n%s", out)
	}
}

func mustAddr(t *testing.T, s string) inet.Address {
	t.Helper()
	a, err := inet.ParseAddress(s)
	if err != nil {
		t.Fatalf("ParseAddress(%q): %v", s, err)
	}
	return a
}
