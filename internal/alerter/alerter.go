// Package alerter periodically evaluates run-health counters against
// configured thresholds and sends a consolidated notification, ported from
// the teacher's internal/alerter.Alerter (ticker-driven Start/Stop,
// rule evaluation, consolidated notifier.Send) with the gRPC/AI-analysis
// branch removed (see DESIGN.md "Dropped teacher dependencies").
package alerter

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"nettopo/internal/config"
	"nettopo/internal/notification"
)

// RunStats accumulates the counters the alerter watches during a mapper
// run. All fields are updated with atomic ops from the orchestrator and
// the collector/tree goroutines that discover the corresponding events.
type RunStats struct {
	SubnetsProcessed    int64
	InconsistentRoutes  int64 // spec.md §7 InconsistentRoute, subnet skipped
	InvariantViolations int64
}

func (s *RunStats) InconsistentRate() float64 {
	processed := atomic.LoadInt64(&s.SubnetsProcessed)
	if processed == 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&s.InconsistentRoutes)) / float64(processed)
}

// Alerter watches a RunStats and fires a notification when the
// inconsistent-route rate exceeds the configured threshold.
type Alerter struct {
	cfg      config.AlerterConfig
	stats    *RunStats
	notifier notification.Notifier
	interval time.Duration
	stopChan chan struct{}
	wg       sync.WaitGroup

	lastFired bool
}

// New builds an Alerter. notifier may be nil, in which case alerts are only
// logged.
func New(cfg config.AlerterConfig, stats *RunStats, notifier notification.Notifier) (*Alerter, error) {
	interval := 30 * time.Second
	if cfg.CheckInterval != "" {
		parsed, err := time.ParseDuration(cfg.CheckInterval)
		if err != nil {
			return nil, fmt.Errorf("alerter: invalid check_interval: %w", err)
		}
		interval = parsed
	}
	return &Alerter{
		cfg:      cfg,
		stats:    stats,
		notifier: notifier,
		interval: interval,
		stopChan: make(chan struct{}),
	}, nil
}

// Start begins the periodic evaluation loop in a background goroutine.
func (a *Alerter) Start() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.evaluate()
			case <-a.stopChan:
				return
			}
		}
	}()
}

// Stop halts the loop, runs one final evaluation, and waits for it to
// finish.
func (a *Alerter) Stop() {
	close(a.stopChan)
	a.wg.Wait()
	a.evaluate()
}

func (a *Alerter) evaluate() {
	rate := a.stats.InconsistentRate()
	threshold := a.cfg.MaxInconsistentRate
	if threshold <= 0 {
		threshold = 0.1
	}
	if rate <= threshold {
		a.lastFired = false
		return
	}
	if a.lastFired {
		return // already alerted at this severity; avoid repeat spam
	}
	a.lastFired = true

	subject := fmt.Sprintf("nettopo: inconsistent-route rate %.1f%% exceeds threshold %.1f%%",
		rate*100, threshold*100)
	body := fmt.Sprintf(
		"<h1>nettopo run-health alert</h1>"+
			"<p>Subnets processed: %d</p>"+
			"<p>Inconsistent routes (skipped): %d</p>"+
			"<p>Invariant violations: %d</p>",
		atomic.LoadInt64(&a.stats.SubnetsProcessed),
		atomic.LoadInt64(&a.stats.InconsistentRoutes),
		atomic.LoadInt64(&a.stats.InvariantViolations),
	)

	log.Printf("ALERT: %s", subject)
	if a.notifier != nil {
		if err := a.notifier.Send(subject, body); err != nil {
			log.Printf("alerter: failed to send notification: %v", err)
		}
	}
}
