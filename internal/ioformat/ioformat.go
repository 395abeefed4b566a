// Package ioformat reads route-file input and writes the subnet-list,
// alias, and bipartite output formats (spec.md §6), following the
// teacher's internal/probe/persistent.Worker.runTextWorker's
// bufio.Writer + fmt.Sprintf line-writing style.
package ioformat

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"nettopo/internal/bipartite"
	"nettopo/internal/inet"
	"nettopo/internal/nterr"
	"nettopo/internal/router"
	"nettopo/internal/subnet"
)

// ReadRouteFile parses the route-file input format (spec.md §6): one
// record per subnet —
//
//	prefix/len status pivotTTL
//	interfaces:
//	ip ttl
//	...
//	route:
//	hop hop ... (0.0.0.0 for missing)
func ReadRouteFile(r io.Reader) ([]*subnet.Site, error) {
	scanner := bufio.NewScanner(r)
	var sites []*subnet.Site
	var cur *subnet.Site
	section := ""

	flush := func() {
		if cur != nil {
			sites = append(sites, cur)
			cur = nil
		}
	}

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "interfaces:":
			section = "interfaces"
			continue
		case line == "route:":
			section = "route"
			continue
		}

		if section == "" || looksLikeHeader(line) {
			flush()
			site, err := parseHeader(line, lineNo)
			if err != nil {
				return nil, err
			}
			cur = site
			section = ""
			continue
		}

		if cur == nil {
			return nil, &nterr.MalformedInput{Line: lineNo, Err: fmt.Errorf("data before subnet header")}
		}

		switch section {
		case "interfaces":
			iface, err := parseInterface(line, lineNo)
			if err != nil {
				return nil, err
			}
			cur.Interfaces = append(cur.Interfaces, iface)
		case "route":
			hops, err := parseRoute(line, lineNo)
			if err != nil {
				return nil, err
			}
			cur.Route = hops
		default:
			return nil, &nterr.MalformedInput{Line: lineNo, Err: fmt.Errorf("unexpected data outside a section")}
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, &nterr.MalformedInput{Line: lineNo, Err: err}
	}
	for _, ss := range sites {
		if err := subnet.ValidateInterfaces(ss); err != nil {
			return nil, err
		}
	}
	return sites, nil
}

// looksLikeHeader reports whether line begins a new subnet record
// ("prefix/len status pivotTTL").
func looksLikeHeader(line string) bool {
	return strings.Contains(line, "/") && len(strings.Fields(line)) == 3
}

func parseHeader(line string, lineNo int) (*subnet.Site, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return nil, &nterr.MalformedInput{Line: lineNo, Err: fmt.Errorf("expected \"prefix/len status pivotTTL\"")}
	}
	prefix, length, err := inet.ParseCIDR(fields[0])
	if err != nil {
		return nil, &nterr.MalformedInput{Line: lineNo, Err: err}
	}
	status, ok := subnet.ParseStatus(fields[1])
	if !ok {
		return nil, &nterr.MalformedInput{Line: lineNo, Err: fmt.Errorf("unknown status %q", fields[1])}
	}
	ttl, err := strconv.ParseUint(fields[2], 10, 8)
	if err != nil {
		return nil, &nterr.MalformedInput{Line: lineNo, Err: fmt.Errorf("invalid pivot TTL %q", fields[2])}
	}
	return &subnet.Site{
		Prefix:       prefix,
		PrefixLength: length,
		Status:       status,
		PivotTTL:     uint8(ttl),
	}, nil
}

func parseInterface(line string, lineNo int) (subnet.Interface, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return subnet.Interface{}, &nterr.MalformedInput{Line: lineNo, Err: fmt.Errorf("expected \"ip ttl\"")}
	}
	ip, err := inet.ParseAddress(fields[0])
	if err != nil {
		return subnet.Interface{}, &nterr.MalformedInput{Line: lineNo, Err: err}
	}
	ttl, err := strconv.ParseUint(fields[1], 10, 8)
	if err != nil {
		return subnet.Interface{}, &nterr.MalformedInput{Line: lineNo, Err: fmt.Errorf("invalid TTL %q", fields[1])}
	}
	return subnet.Interface{IP: ip, TTL: uint8(ttl)}, nil
}

func parseRoute(line string, lineNo int) ([]inet.Address, error) {
	fields := strings.Fields(line)
	hops := make([]inet.Address, 0, len(fields))
	for _, f := range fields {
		addr, err := inet.ParseAddress(f)
		if err != nil {
			return nil, &nterr.MalformedInput{Line: lineNo, Err: err}
		}
		hops = append(hops, addr)
	}
	return hops, nil
}

// WriteSubnets writes the subnet-list output format (spec.md §6).
func WriteSubnets(w io.Writer, sites []*subnet.Site) error {
	bw := bufio.NewWriter(w)
	for _, ss := range sites {
		fmt.Fprintf(bw, "%s %s %d\n", ss.CIDR(), ss.Status, ss.PivotTTL)
		bw.WriteString("interfaces:\n")
		interfaces := append([]subnet.Interface(nil), ss.Interfaces...)
		sortInterfaces(interfaces)
		for _, iface := range interfaces {
			fmt.Fprintf(bw, "%s %d\n", iface.IP, iface.TTL)
		}
		bw.WriteString("route:")
		for _, hop := range ss.Route {
			bw.WriteByte(' ')
			bw.WriteString(hop.String())
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func sortInterfaces(ifaces []subnet.Interface) {
	for i := 1; i < len(ifaces); i++ {
		for j := i; j > 0 && ifaces[j].IP.Less(ifaces[j-1].IP); j-- {
			ifaces[j], ifaces[j-1] = ifaces[j-1], ifaces[j]
		}
	}
}

// WriteAliases writes the alias output format (spec.md §6): one router per
// line, "routerID: ip1 ip2 ... ipN (method1, method2, ...)".
func WriteAliases(w io.Writer, routers []*router.Router) error {
	bw := bufio.NewWriter(w)
	for id, r := range routers {
		methods := methodSet(r)
		fmt.Fprintf(bw, "R%d: %s (%s)\n", id, r.String(), strings.Join(methods, ", "))
	}
	return bw.Flush()
}

func methodSet(r *router.Router) []string {
	seen := make(map[string]bool)
	var out []string
	for _, iface := range r.Interfaces() {
		name := iface.AliasMethod.String()
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// WriteBipartite writes the bipartite output format (spec.md §6): a
// "routers:" section, a "subnets:" section, then "edges:" with
// "routerID subnetPrefix" pairs (load-balanced edges carry the label as a
// third field).
func WriteBipartite(w io.Writer, g *bipartite.Graph) error {
	bw := bufio.NewWriter(w)

	bw.WriteString("routers:\n")
	for id := range g.Routers {
		fmt.Fprintf(bw, "R%d\n", id)
	}

	bw.WriteString("subnets:\n")
	for _, ss := range g.Subnets {
		fmt.Fprintln(bw, ss.CIDR())
	}

	bw.WriteString("edges:\n")
	for _, e := range g.Edges {
		if e.LoadBalanced {
			fmt.Fprintf(bw, "R%d %s %s\n", e.RouterID, g.Subnets[e.SubnetID].CIDR(), e.Label)
		} else {
			fmt.Fprintf(bw, "R%d %s\n", e.RouterID, g.Subnets[e.SubnetID].CIDR())
		}
	}
	return bw.Flush()
}
