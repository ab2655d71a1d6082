// Package events fans committed lifecycle transitions out to observers.
//
// Publishing happens after the ledger transaction commits. A Publisher
// failure never undoes a transition; the engine logs it and moves on.
package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/gagliardetto/solana-go"
)

// Event describes one committed transition.
type Event struct {
	TxID       string             `json:"tx_id"`
	Seq        int64              `json:"seq"`
	Action     string             `json:"action"`
	Caller     solana.PublicKey   `json:"caller"`
	Wallet     solana.PublicKey   `json:"wallet,omitempty"`
	Identifier string             `json:"identifier,omitempty"`
	Status     string             `json:"status,omitempty"`
	Created    []solana.PublicKey `json:"created,omitempty"`
	Closed     []solana.PublicKey `json:"closed,omitempty"`
}

// RoutingKey is the topic the event is published under, e.g. "did.issue".
func (e Event) RoutingKey() string {
	return "did." + e.Action
}

// Marshal returns the JSON wire form of the event.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events to an external sink.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// LogPublisher writes each event as a structured log line.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher returns a publisher that logs to logger at Info.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, ev Event) error {
	p.logger.InfoContext(ctx, "lifecycle event",
		"tx_id", ev.TxID,
		"seq", ev.Seq,
		"action", ev.Action,
		"identifier", ev.Identifier,
		"wallet", ev.Wallet.String(),
		"status", ev.Status,
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// Recorder keeps events in memory. Used by tests and the scenario harness.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.Events = append(r.Events, ev)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Actions returns the action of every recorded event, in order.
func (r *Recorder) Actions() []string {
	out := make([]string, len(r.Events))
	for i, ev := range r.Events {
		out[i] = ev.Action
	}
	return out
}
