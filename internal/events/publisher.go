// Package events publishes topology-discovery events to NATS, ported from
// the teacher's internal/probe.Publisher (connect-in-constructor,
// marshal-then-publish, drain-on-close).
package events

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"nettopo/internal/config"
)

// SubnetDiscovered is emitted each time the Subnet Set records a new or
// absorbing insertion (spec.md §4.1's UpdateResult).
type SubnetDiscovered struct {
	Timestamp time.Time `json:"timestamp"`
	CIDR      string    `json:"cidr"`
	Status    string    `json:"status"`
	Result    string    `json:"result"` // NEW_SUBNET, BIGGER_SUBNET, ...
}

// RouterInferred is emitted each time the Alias Resolver attaches a Router
// to an internal tree node.
type RouterInferred struct {
	Timestamp  time.Time `json:"timestamp"`
	Interfaces []string  `json:"interfaces"`
	Methods    []string  `json:"methods"`
}

// Publisher publishes discovery events to a NATS subject.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// NewPublisher connects to the configured NATS server and returns a
// Publisher bound to cfg.Subject.
func NewPublisher(cfg config.EventsConfig) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("events: connect to %s: %w", cfg.URL, err)
	}
	log.Printf("events: connected to NATS at %s, subject %q", cfg.URL, cfg.Subject)
	return &Publisher{nc: nc, subject: cfg.Subject}, nil
}

// PublishSubnet serializes and publishes a SubnetDiscovered event.
func (p *Publisher) PublishSubnet(ev SubnetDiscovered) error {
	if p == nil || p.nc == nil {
		return nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: marshal subnet event: %w", err)
	}
	return p.nc.Publish(p.subject+".subnet", data)
}

// PublishRouter serializes and publishes a RouterInferred event.
func (p *Publisher) PublishRouter(ev RouterInferred) error {
	if p == nil || p.nc == nil {
		return nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: marshal router event: %w", err)
	}
	return p.nc.Publish(p.subject+".router", data)
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p != nil && p.nc != nil {
		p.nc.Drain()
	}
}
