// Package publish emits a changeset event to Kafka after every cycle that
// persisted rows.
package publish

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/agentstation/utc"
	"github.com/segmentio/kafka-go"

	"github.com/agentstation/ordersync/pkg/errors"
	"github.com/agentstation/ordersync/pkg/logging"
	"github.com/agentstation/ordersync/pkg/orders"
	"github.com/agentstation/ordersync/pkg/sync"
)

// Event is the message value published for a cycle.
type Event struct {
	CycleID    string       `json:"cycle_id"`
	OccurredAt utc.Time     `json:"occurred_at"`
	Rows       int          `json:"rows"`
	LastID     int64        `json:"last_id"`
	Inserted   int          `json:"inserted"`
	Updated    int          `json:"updated"`
	Deleted    int          `json:"deleted"`
	Added      []orders.Key `json:"added,omitempty"`
	Changed    []orders.Key `json:"changed,omitempty"`
	Removed    []orders.Key `json:"removed,omitempty"`
}

// NewEvent builds the event for res. It returns nil when res wrote nothing.
func NewEvent(res *sync.Result) *Event {
	if res == nil || !res.Written() {
		return nil
	}
	ev := &Event{
		CycleID:    res.CycleID,
		OccurredAt: utc.New(res.StartedAt.Time.Add(res.Duration)),
		Rows:       res.Rows,
		LastID:     res.LastID,
		Inserted:   res.Write.Inserted,
		Updated:    res.Write.Updated,
		Deleted:    res.Write.Deleted,
	}
	if cs := res.Changeset; cs != nil {
		for _, r := range cs.Added {
			ev.Added = append(ev.Added, r.Key())
		}
		for _, u := range cs.Updated {
			ev.Changed = append(ev.Changed, u.Key)
		}
		for _, r := range cs.Removed {
			ev.Removed = append(ev.Removed, r.Key())
		}
	}
	return ev
}

// messageWriter abstracts kafka.Writer for tests.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes cycle events to a topic.
type Publisher struct {
	writer  messageWriter
	topic   string
	timeout time.Duration
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithTimeout bounds a single publish. Zero means the caller's context only.
func WithTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		p.timeout = d
	}
}

// WithWriter replaces the Kafka writer, mainly for tests.
func WithWriter(w messageWriter) Option {
	return func(p *Publisher) {
		p.writer = w
	}
}

// New creates a Publisher for a comma separated list of host:port brokers.
func New(brokers, topic string, opts ...Option) (*Publisher, error) {
	addrs := Brokers(brokers)
	topic = strings.TrimSpace(topic)
	p := &Publisher{topic: topic, timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(p)
	}
	if p.writer != nil {
		return p, nil
	}
	if len(addrs) == 0 {
		return nil, errors.NewConfigError("publish", "no kafka brokers configured", nil)
	}
	if topic == "" {
		return nil, errors.NewConfigError("publish", "no kafka topic configured", nil)
	}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(addrs...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
	return p, nil
}

// Brokers splits a comma separated broker list, dropping empty entries.
func Brokers(list string) []string {
	var out []string
	for _, a := range strings.Split(list, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Topic returns the destination topic.
func (p *Publisher) Topic() string { return p.topic }

// PublishCycle sends the event for res. Cycles that wrote nothing are
// skipped. The message key is the cycle id.
func (p *Publisher) PublishCycle(ctx context.Context, res *sync.Result) error {
	ev := NewEvent(res)
	if ev == nil {
		return nil
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return errors.WrapParse("json", "event", err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	msg := kafka.Message{
		Key:   []byte(ev.CycleID),
		Value: value,
		Time:  ev.OccurredAt.Time,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.WrapResource("publish", "topic", p.topic, err)
	}

	logging.FromContext(ctx).Debug().
		Str("cycle_id", ev.CycleID).
		Str("topic", p.topic).
		Int("added", len(ev.Added)).
		Int("changed", len(ev.Changed)).
		Int("removed", len(ev.Removed)).
		Msg("Published cycle event")
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
