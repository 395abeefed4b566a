// Command nettopo-mapper runs one end-to-end topology-inference pass: it
// reads a route file, merges subnets into the Subnet Set, inserts the
// survivors into the Neighborhood Tree, runs the Alias Hint Collector over
// every neighborhood's interfaces, resolves routers per neighborhood, and
// writes the subnet/alias/bipartite reports. Ported from the teacher's
// cmd/ns-probe's flag-parsing + signal-handling shape.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nettopo/internal/alerter"
	"nettopo/internal/alias"
	"nettopo/internal/config"
	"nettopo/internal/events"
	"nettopo/internal/inet"
	"nettopo/internal/ioformat"
	"nettopo/internal/iptable"
	"nettopo/internal/notification"
	"nettopo/internal/nterr"
	"nettopo/internal/probe"
	"nettopo/internal/resolver"
	"nettopo/internal/router"
	"nettopo/internal/store"
	"nettopo/internal/subnet"
	"nettopo/internal/tree"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the YAML configuration file.")
	device := flag.String("iface", "", "Network interface used by the default prober (required unless -dry-run).")
	dryRun := flag.Bool("dry-run", false, "Skip probing/alias resolution; only build the tree and report subnet structure.")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("nettopo-mapper: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("nettopo-mapper: shutdown signal received, cancelling run...")
		cancel()
	}()

	if err := run(ctx, cfg, *device, *dryRun); err != nil {
		log.Fatalf("nettopo-mapper: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, device string, dryRun bool) error {
	in, err := os.Open(cfg.IO.SubnetInputPath)
	if err != nil {
		return fmt.Errorf("open subnet input: %w", err)
	}
	defer in.Close()

	sites, err := ioformat.ReadRouteFile(in)
	if err != nil {
		return fmt.Errorf("read route file: %w", err)
	}

	stats := &alerter.RunStats{}

	var publisher *events.Publisher
	if cfg.Events.URL != "" {
		publisher, err = events.NewPublisher(cfg.Events)
		if err != nil {
			log.Printf("nettopo-mapper: events publisher unavailable: %v", err)
		} else {
			defer publisher.Close()
		}
	}

	var notifier notification.Notifier
	if cfg.Alerter.SMTPAddr != "" {
		notifier = notification.NewEmailNotifier(cfg.Alerter)
	}
	al, err := alerter.New(cfg.Alerter, stats, notifier)
	if err != nil {
		return fmt.Errorf("build alerter: %w", err)
	}
	al.Start()
	defer al.Stop()

	set := subnet.New()
	for _, ss := range sites {
		result := set.AddSite(ss)
		if publisher != nil {
			publisher.PublishSubnet(events.SubnetDiscovered{
				Timestamp: time.Now(),
				CIDR:      ss.CIDR(),
				Status:    ss.Status.String(),
				Result:    result.String(),
			})
		}
	}

	nt := tree.New()
	for _, ss := range set.Sites() {
		if !nt.FittingRoute(ss.Route) {
			oldPrefix, newPrefix, ok := nt.FindTransplantation(ss.Route)
			if !ok {
				stats.InconsistentRoutes++
				log.Printf("nettopo-mapper: %v", &nterr.InconsistentRoute{
					Msg: fmt.Sprintf("%s: route does not fit the tree trunk and no transplantation was found", ss.CIDR()),
				})
				continue
			}
			set.AdaptRoutes(oldPrefix, newPrefix)
		}
		if ss.RouteHasMissingHop() {
			stats.InconsistentRoutes++
		}
		nt.Insert(ss)
		stats.SubnetsProcessed++
	}
	nt.RepairAllRoutes()

	if !dryRun {
		if device == "" {
			return fmt.Errorf("-iface is required unless -dry-run is set")
		}
		prober := probe.NewDefaultProber(device, cfg.Probing.Timeout())
		table := iptable.New()
		collector := alias.New(alias.Config{
			MaxThreads:      cfg.Probing.MaxThreads,
			NbIPIDs:         cfg.Probing.NbIPIDs,
			NeighborhoodTTL: set.GetMaximumDistance(),
		}, table, prober)

		ips := collectNeighborhoodLabels(nt)
		collector.Run(ctx, ips)

		res := resolver.New(table)
		res.ResolveAll(nt)

		if publisher != nil {
			for d := 0; d <= nt.MaxDepth(); d++ {
				for _, id := range nt.NodesAtDepth(d) {
					n := nt.Node(id)
					for _, r := range n.Routers {
						methods := make([]string, 0, r.NbInterfaces())
						ifaceIPs := make([]string, 0, r.NbInterfaces())
						for _, iface := range r.Interfaces() {
							ifaceIPs = append(ifaceIPs, iface.IP.String())
							methods = append(methods, iface.AliasMethod.String())
						}
						publisher.PublishRouter(events.RouterInferred{Timestamp: time.Now(), Interfaces: ifaceIPs, Methods: methods})
					}
				}
			}
		}
	}

	if err := writeReports(cfg, set, nt); err != nil {
		return err
	}

	if cfg.Store.Addr != "" {
		st, err := store.Open(cfg.Store, time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			log.Printf("nettopo-mapper: store unavailable: %v", err)
		} else {
			defer st.Close()
			if err := st.InsertSubnets(ctx, set.Sites()); err != nil {
				log.Printf("nettopo-mapper: failed to persist subnets: %v", err)
			}
			if err := st.InsertRunStats(ctx, stats.SubnetsProcessed, stats.InconsistentRoutes, stats.InvariantViolations); err != nil {
				log.Printf("nettopo-mapper: failed to persist run stats: %v", err)
			}
		}
	}

	log.Printf("nettopo-mapper: run complete: %d subnets, %d inconsistent routes", stats.SubnetsProcessed, stats.InconsistentRoutes)
	return nil
}

// collectNeighborhoodLabels gathers every Internal/Hedera node's labels
// across the whole tree as the IPsToProbe list for the Alias Hint
// Collector (spec.md §2: "internal nodes collect their neighborhood
// interface labels and enqueue them in the Alias Hint Collector").
func collectNeighborhoodLabels(nt *tree.Tree) []inet.Address {
	var out []inet.Address
	for d := 0; d <= nt.MaxDepth(); d++ {
		for _, id := range nt.NodesAtDepth(d) {
			n := nt.Node(id)
			if n.Kind() != tree.Internal && n.Kind() != tree.Hedera {
				continue
			}
			out = append(out, n.Labels()...)
		}
	}
	return out
}

func writeReports(cfg *config.Config, set *subnet.Set, nt *tree.Tree) error {
	if path := cfg.IO.SubnetOutputPath; path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create subnet output: %w", err)
		}
		defer f.Close()
		if err := ioformat.WriteSubnets(f, set.Sites()); err != nil {
			return fmt.Errorf("write subnet output: %w", err)
		}
	}

	var allRouters []*router.Router
	for d := 0; d <= nt.MaxDepth(); d++ {
		for _, id := range nt.NodesAtDepth(d) {
			n := nt.Node(id)
			allRouters = append(allRouters, n.Routers...)
		}
	}
	if path := cfg.IO.AliasOutputPath; path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create alias output: %w", err)
		}
		defer f.Close()
		if err := ioformat.WriteAliases(f, allRouters); err != nil {
			return fmt.Errorf("write alias output: %w", err)
		}
	}

	if path := cfg.IO.BipartiteOutputPath; path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create bipartite output: %w", err)
		}
		defer f.Close()
		if err := ioformat.WriteBipartite(f, nt.ToBipartite()); err != nil {
			return fmt.Errorf("write bipartite output: %w", err)
		}
	}
	return nil
}
