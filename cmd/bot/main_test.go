package main

import (
	"encoding/json"
	"io"
	"log"
	"math/rand"
	"testing"

	"viceroy.ai/internal/protocol"
)

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestAnswer(t *testing.T) {
	cases := []struct {
		name string
		view protocol.MessageView
		want string
	}{
		{"choice", protocol.MessageView{ID: "m1", Options: []string{"yes", "no"}}, protocol.TypeChoice},
		{"dice", protocol.MessageView{ID: "m2", Dice: 2}, protocol.TypeDiceDone},
		{"plain", protocol.MessageView{ID: "m3"}, protocol.TypeDismiss},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var base protocol.BaseMessage
			if err := json.Unmarshal(mustJSON(t, answer(tc.view)), &base); err != nil {
				t.Fatal(err)
			}
			if base.Type != tc.want {
				t.Fatalf("type=%s want %s", base.Type, tc.want)
			}
		})
	}
}

func TestPlayerIssuesThenEndsTurn(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	p := newPlayer([]string{"ADVERTISE", "RUMOR"}, 1, 1, rand.New(rand.NewSource(3)))

	welcome := protocol.WelcomeMsg{Type: protocol.TypeWelcome, Actions: []string{"ADVERTISE", "EXPLORE"}}
	p.handle(mustJSON(t, welcome), logger)

	idle := protocol.StateMsg{Type: protocol.TypeState, Turn: 1, Units: []protocol.UnitView{{ID: "U1", X: 2, Y: 3}}}
	out, done := p.handle(mustJSON(t, idle), logger)
	if done || len(out) != 1 {
		t.Fatalf("out=%v done=%v", out, done)
	}
	cmd, ok := out[0].(protocol.CommandMsg)
	if !ok || cmd.Action != "ADVERTISE" || cmd.UnitID != "U1" || cmd.Target.X != 2 {
		t.Fatalf("cmd=%+v", out[0])
	}

	busy := idle
	busy.Busy = true
	if out, _ := p.handle(mustJSON(t, busy), logger); len(out) != 0 {
		t.Fatalf("busy colony got %v", out)
	}

	// The action resolved; the quota is spent so the turn ends.
	out, _ = p.handle(mustJSON(t, idle), logger)
	if len(out) != 1 {
		t.Fatalf("out=%v", out)
	}
	if _, ok := out[0].(protocol.EndTurnMsg); !ok {
		t.Fatalf("want END_TURN, got %+v", out[0])
	}

	next := idle
	next.Turn = 2
	if _, done := p.handle(mustJSON(t, next), logger); !done {
		t.Fatalf("one turn played, want done")
	}
}
