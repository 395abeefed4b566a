// Package store persists run results (subnets and inferred routers) to
// ClickHouse, ported from the teacher's internal/query.clickhouseQuerier
// (connect-in-constructor with Ping, parameterized batch inserts).
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"nettopo/internal/config"
	"nettopo/internal/router"
	"nettopo/internal/subnet"
)

// Store persists discovered subnets and inferred routers for a run.
type Store struct {
	conn  clickhouse.Conn
	runID string
}

// Open connects to ClickHouse and returns a Store bound to runID (a
// caller-supplied identifier, e.g. the run's start timestamp).
func Open(cfg config.StoreConfig, runID string) (*Store, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &Store{conn: conn, runID: runID}, nil
}

// InsertSubnets batch-inserts the final Subnet Set into the `subnets` table.
func (s *Store) InsertSubnets(ctx context.Context, sites []*subnet.Site) error {
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO subnets (run_id, cidr, status, pivot_ip, pivot_ttl, num_interfaces, inserted_at)")
	if err != nil {
		return fmt.Errorf("store: prepare subnet batch: %w", err)
	}
	now := time.Now()
	for _, site := range sites {
		if err := batch.Append(s.runID, site.CIDR(), site.Status.String(), site.PivotIP.String(), site.PivotTTL, len(site.Interfaces), now); err != nil {
			return fmt.Errorf("store: append subnet row: %w", err)
		}
	}
	return batch.Send()
}

// InsertRouters batch-inserts inferred routers into the `routers` table.
func (s *Store) InsertRouters(ctx context.Context, routers []*router.Router) error {
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO routers (run_id, interfaces, methods, inserted_at)")
	if err != nil {
		return fmt.Errorf("store: prepare router batch: %w", err)
	}
	now := time.Now()
	for _, r := range routers {
		ifaces := r.Interfaces()
		ips := make([]string, len(ifaces))
		methods := make([]string, len(ifaces))
		for i, iface := range ifaces {
			ips[i] = iface.IP.String()
			methods[i] = iface.AliasMethod.String()
		}
		if err := batch.Append(s.runID, strings.Join(ips, " "), strings.Join(methods, ","), now); err != nil {
			return fmt.Errorf("store: append router row: %w", err)
		}
	}
	return batch.Send()
}

// InsertRunStats records a single summary row for the run into
// `run_stats`.
func (s *Store) InsertRunStats(ctx context.Context, subnetsProcessed, inconsistentRoutes, invariantViolations int64) error {
	return s.conn.Exec(ctx,
		"INSERT INTO run_stats (run_id, subnets_processed, inconsistent_routes, invariant_violations, finished_at) VALUES (?, ?, ?, ?, ?)",
		s.runID, subnetsProcessed, inconsistentRoutes, invariantViolations, time.Now())
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// SubnetRow is one row read back from the `subnets` table, for the
// read-only query service.
type SubnetRow struct {
	RunID         string    `json:"run_id"`
	CIDR          string    `json:"cidr"`
	Status        string    `json:"status"`
	PivotIP       string    `json:"pivot_ip"`
	PivotTTL      uint8     `json:"pivot_ttl"`
	NumInterfaces int       `json:"num_interfaces"`
	InsertedAt    time.Time `json:"inserted_at"`
}

// RouterRow is one row read back from the `routers` table.
type RouterRow struct {
	RunID      string    `json:"run_id"`
	Interfaces string    `json:"interfaces"`
	Methods    string    `json:"methods"`
	InsertedAt time.Time `json:"inserted_at"`
}

// RunStatsRow is one row read back from the `run_stats` table.
type RunStatsRow struct {
	RunID               string    `json:"run_id"`
	SubnetsProcessed    int64     `json:"subnets_processed"`
	InconsistentRoutes  int64     `json:"inconsistent_routes"`
	InvariantViolations int64     `json:"invariant_violations"`
	FinishedAt          time.Time `json:"finished_at"`
}

// QuerySubnets returns every persisted subnet row for runID, or for every
// run if runID is empty.
func (s *Store) QuerySubnets(ctx context.Context, runID string) ([]SubnetRow, error) {
	query := "SELECT run_id, cidr, status, pivot_ip, pivot_ttl, num_interfaces, inserted_at FROM subnets"
	args := []interface{}{}
	if runID != "" {
		query += " WHERE run_id = ?"
		args = append(args, runID)
	}
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query subnets: %w", err)
	}
	defer rows.Close()

	var out []SubnetRow
	for rows.Next() {
		var row SubnetRow
		if err := rows.Scan(&row.RunID, &row.CIDR, &row.Status, &row.PivotIP, &row.PivotTTL, &row.NumInterfaces, &row.InsertedAt); err != nil {
			return nil, fmt.Errorf("store: scan subnet row: %w", err)
		}
		out = append(out, row)
	}
	return out, nil
}

// QueryRouters returns every persisted router row for runID, or for every
// run if runID is empty.
func (s *Store) QueryRouters(ctx context.Context, runID string) ([]RouterRow, error) {
	query := "SELECT run_id, interfaces, methods, inserted_at FROM routers"
	args := []interface{}{}
	if runID != "" {
		query += " WHERE run_id = ?"
		args = append(args, runID)
	}
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query routers: %w", err)
	}
	defer rows.Close()

	var out []RouterRow
	for rows.Next() {
		var row RouterRow
		if err := rows.Scan(&row.RunID, &row.Interfaces, &row.Methods, &row.InsertedAt); err != nil {
			return nil, fmt.Errorf("store: scan router row: %w", err)
		}
		out = append(out, row)
	}
	return out, nil
}

// QueryRunStats returns the persisted summary row for runID, if any.
func (s *Store) QueryRunStats(ctx context.Context, runID string) (*RunStatsRow, error) {
	row := s.conn.QueryRow(ctx,
		"SELECT run_id, subnets_processed, inconsistent_routes, invariant_violations, finished_at FROM run_stats WHERE run_id = ?",
		runID)
	var out RunStatsRow
	if err := row.Scan(&out.RunID, &out.SubnetsProcessed, &out.InconsistentRoutes, &out.InvariantViolations, &out.FinishedAt); err != nil {
		return nil, fmt.Errorf("store: scan run_stats row: %w", err)
	}
	return &out, nil
}
