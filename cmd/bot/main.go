package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"

	"github.com/gorilla/websocket"

	"viceroy.ai/internal/protocol"
)

func main() {
	var (
		url     = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name    = flag.String("name", "bot", "player name")
		actions = flag.String("actions", "ADVERTISE,EXPLORE", "comma-separated actions to issue")
		perTurn = flag.Int("per_turn", 2, "commands issued before ending the turn")
		turns   = flag.Int("turns", 5, "turns to play before exiting (0 = forever)")
		seed    = flag.Int64("seed", 1, "rng seed for unit and action picks")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      *name,
		Capabilities:    protocol.HelloCapabilities{MaxQueue: 8},
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.Close()
	}()

	p := newPlayer(splitActions(*actions), *perTurn, *turns, rand.New(rand.NewSource(*seed)))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		out, done := p.handle(msg, logger)
		for _, m := range out {
			if err := conn.WriteJSON(m); err != nil {
				logger.Printf("write: %v", err)
				return
			}
		}
		if done {
			logger.Printf("played %d turns", p.played)
			return
		}
	}
}

func splitActions(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.ToUpper(strings.TrimSpace(a)); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// player answers every SHOW so the queue drains, and issues a few commands
// per turn whenever the colony is idle.
type player struct {
	actions []string
	perTurn int
	turns   int
	rng     *rand.Rand

	allowed map[string]bool
	turn    int
	issued  int
	waiting bool
	played  int
}

func newPlayer(actions []string, perTurn, turns int, rng *rand.Rand) *player {
	return &player{actions: actions, perTurn: perTurn, turns: turns, rng: rng}
}

func (p *player) handle(msg []byte, logger *log.Logger) (out []any, done bool) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return nil, false
	}
	switch base.Type {
	case protocol.TypeWelcome:
		var w protocol.WelcomeMsg
		if err := json.Unmarshal(msg, &w); err != nil {
			return nil, false
		}
		p.allowed = map[string]bool{}
		for _, a := range w.Actions {
			p.allowed[a] = true
		}
		logger.Printf("WELCOME session=%s client=%s dice=d%d actions=%d", w.SessionID, w.ClientID, w.DiceSides, len(w.Actions))

	case protocol.TypeShow:
		var s protocol.ShowMsg
		if err := json.Unmarshal(msg, &s); err != nil {
			return nil, false
		}
		logger.Printf("SHOW %s: %s", s.Message.Title, strings.Join(s.Message.Lines, " / "))
		return []any{answer(s.Message)}, false

	case protocol.TypeError:
		var e protocol.ErrorMsg
		if err := json.Unmarshal(msg, &e); err == nil {
			logger.Printf("ERROR %s: %s", e.Code, e.Message)
		}
		p.waiting = false

	case protocol.TypeState:
		var st protocol.StateMsg
		if err := json.Unmarshal(msg, &st); err != nil {
			return nil, false
		}
		return p.onState(st)
	}
	return nil, false
}

func (p *player) onState(st protocol.StateMsg) ([]any, bool) {
	if st.Turn != p.turn {
		if p.turn != 0 {
			p.played++
		}
		p.turn, p.issued, p.waiting = st.Turn, 0, false
	}
	if p.turns > 0 && p.played >= p.turns {
		return nil, true
	}
	if st.Busy {
		// The command was accepted; the next idle state means it resolved.
		p.waiting = false
		return nil, false
	}
	if p.waiting {
		return nil, false
	}
	if p.issued >= p.perTurn || len(st.Units) == 0 {
		p.waiting = true
		return []any{protocol.EndTurnMsg{Type: protocol.TypeEndTurn, ProtocolVersion: protocol.Version}}, false
	}
	cmd, ok := p.pick(st.Units)
	p.issued++
	if !ok {
		return p.onState(st)
	}
	p.waiting = true
	return []any{cmd}, false
}

func (p *player) pick(units []protocol.UnitView) (protocol.CommandMsg, bool) {
	var usable []string
	for _, a := range p.actions {
		if p.allowed == nil || p.allowed[a] {
			usable = append(usable, a)
		}
	}
	if len(usable) == 0 {
		return protocol.CommandMsg{}, false
	}
	u := units[p.rng.Intn(len(units))]
	return protocol.CommandMsg{
		Type:            protocol.TypeCommand,
		ProtocolVersion: protocol.Version,
		Action:          usable[p.rng.Intn(len(usable))],
		UnitID:          u.ID,
		Target:          protocol.TargetRef{X: u.X, Y: u.Y},
	}, true
}

// answer picks the first option of a choice, confirms dice and dismisses
// everything else.
func answer(m protocol.MessageView) any {
	switch {
	case len(m.Options) > 0:
		return protocol.ChoiceMsg{Type: protocol.TypeChoice, ProtocolVersion: protocol.Version, MessageID: m.ID, Choice: 0}
	case m.Dice > 0:
		return protocol.DismissMsg{Type: protocol.TypeDiceDone, ProtocolVersion: protocol.Version, MessageID: m.ID}
	default:
		return protocol.DismissMsg{Type: protocol.TypeDismiss, ProtocolVersion: protocol.Version, MessageID: m.ID}
	}
}
