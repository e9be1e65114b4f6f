package world

import (
	"context"
	"errors"
)

type SessionMetrics struct {
	Turn      int            `json:"turn"`
	Busy      bool           `json:"busy"`
	Action    string         `json:"action,omitempty"`
	Step      string         `json:"action_state,omitempty"`
	Clients   int            `json:"clients"`
	Pending   int            `json:"pending_messages"`
	Treasury  int            `json:"treasury"`
	Debt      int            `json:"debt"`
	Units     int            `json:"units"`
	Diverted  map[string]int `json:"diverted"`
	Inbox     int            `json:"inbox_depth"`
	InboxCap  int            `json:"inbox_capacity"`
	Snapshots int            `json:"snapshot_sink_depth"`
}

// Do runs fn on the session goroutine and waits for it. It is how other
// goroutines (HTTP handlers) read colony state without racing the loop.
func (s *Session) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case s.query <- func() { fn(); close(done) }:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stop:
		return errors.New("session stopped")
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Metrics must be called from the session goroutine; see Do.
func (s *Session) Metrics() SessionMetrics {
	m := SessionMetrics{
		Turn:     s.turn,
		Busy:     s.engine.Busy(),
		Clients:  len(s.clients),
		Pending:  len(s.queue.Pending()),
		Treasury: s.state.Treasury(),
		Units:    len(s.state.units),
		Diverted: map[string]int{},
		Inbox:    len(s.inbox),
		InboxCap: cap(s.inbox),
	}
	if inst := s.engine.InFlight(); inst != nil {
		m.Action = string(inst.Spec.Kind)
		m.Step = inst.State().String()
	}
	for _, d := range s.state.Debts() {
		m.Debt += d.Principal
	}
	for _, d := range s.gate.Ledger().Entries() {
		m.Diverted[d.MinisterID] += d.Amount
	}
	if s.cfg.SnapshotSink != nil {
		m.Snapshots = len(s.cfg.SnapshotSink)
	}
	return m
}

var (
	ErrNoSnapshotSink   = errors.New("snapshot sink not configured")
	ErrSnapshotBusy     = errors.New("snapshot sink backpressure")
	ErrActionInProgress = errors.New("an action is in progress")
)

// RequestSnapshot asks the loop to hand the current colony to the snapshot
// sink. Colonies are only captured between actions.
func (s *Session) RequestSnapshot(ctx context.Context) (turn int, err error) {
	derr := s.Do(ctx, func() {
		turn = s.turn
		switch {
		case s.cfg.SnapshotSink == nil:
			err = ErrNoSnapshotSink
		case s.engine.Busy():
			err = ErrActionInProgress
		default:
			select {
			case s.cfg.SnapshotSink <- s.ExportSnapshot():
			default:
				err = ErrSnapshotBusy
			}
		}
	})
	if derr != nil {
		return 0, derr
	}
	return turn, err
}
