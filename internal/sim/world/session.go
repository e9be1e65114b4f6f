package world

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"viceroy.ai/internal/persistence/snapshot"
	"viceroy.ai/internal/protocol"
	"viceroy.ai/internal/sim/action"
	"viceroy.ai/internal/sim/dice"
	"viceroy.ai/internal/sim/ministry"
	"viceroy.ai/internal/sim/notify"
	"viceroy.ai/internal/sim/world/kernel/model"
)

type SessionConfig struct {
	// ID defaults to a fresh UUID.
	ID        string
	Specs     []action.Spec
	Sides     int
	Seed      int64
	DivertPct int
	Risk      action.RiskConfig
	Trade     action.TradeConfig

	Cabinet    *ministry.Cabinet
	Audit      action.AuditSink
	Diversions ministry.DiversionSink
	Catalogs   protocol.CatalogDigests

	// SnapshotSink receives the colony at the start of every SnapshotEvery-th
	// turn. Resume continues a colony restored with RestoreState.
	SnapshotSink  chan<- snapshot.ColonyV1
	SnapshotEvery int
	Resume        *snapshot.ColonyV1

	// Tracer defaults to the global otel provider, a no-op unless the
	// process installed one.
	Tracer trace.Tracer
}

type EventKind string

const (
	EventCommand  EventKind = protocol.TypeCommand
	EventChoice   EventKind = protocol.TypeChoice
	EventDismiss  EventKind = protocol.TypeDismiss
	EventDiceDone EventKind = protocol.TypeDiceDone
	EventEndTurn  EventKind = protocol.TypeEndTurn
)

// Event is one presentation input: a command, a click or an animation
// signal.
type Event struct {
	ClientID string
	Kind     EventKind

	Action action.Kind
	UnitID string
	Target action.Target

	MessageID string
	Choice    int
}

type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
}

type client struct {
	name string
	out  chan []byte
}

// Session owns one colony and runs every action step on a single goroutine.
// Inputs arrive on channels and are handled one at a time.
type Session struct {
	id       string
	cfg      SessionConfig
	state    *State
	queue    *notify.Queue
	engine   *action.Engine
	gate     *ministry.Gate
	turn     int
	clients  map[string]*client
	nextConn int

	inbox chan Event
	join  chan JoinRequest
	leave chan string
	query chan func()
	stop  chan struct{}

	tracer trace.Tracer
	log    *log.Logger
}

func NewSession(cfg SessionConfig, st *State, logger *log.Logger) (*Session, error) {
	if st == nil {
		return nil, errors.New("session: nil state")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.Sides == 0 {
		cfg.Sides = 6
	}
	// A resumed colony must not replay the rolls of its first turns.
	streamSeed := cfg.Seed
	if cfg.Resume != nil {
		streamSeed += int64(cfg.Resume.Header.Turn) << 20
	}
	src := dice.NewSource(streamSeed)
	resolver, err := dice.NewResolver(src, cfg.Sides)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	ledger := ministry.NewLedger()
	if cfg.Diversions != nil {
		ledger.SetSink(cfg.Diversions)
	}
	var ministers ministry.Controllers
	if cfg.Cabinet != nil {
		ministers = cfg.Cabinet
	}

	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("viceroy.ai/internal/sim/world")
	}
	s := &Session{
		id:      cfg.ID,
		cfg:     cfg,
		state:   st,
		gate:    ministry.NewGate(ministers, ledger, cfg.DivertPct, logger),
		turn:    1,
		clients: map[string]*client{},
		inbox:   make(chan Event, 64),
		join:    make(chan JoinRequest, 8),
		leave:   make(chan string, 8),
		query:   make(chan func()),
		stop:    make(chan struct{}),
		tracer:  cfg.Tracer,
		log:     logger,
	}
	s.queue = notify.NewQueue(s, logger)
	s.engine, err = action.NewEngine(action.Config{
		Specs:     cfg.Specs,
		Resolver:  resolver,
		Gate:      s.gate,
		Queue:     s.queue,
		Economy:   st,
		Territory: st,
		Rand:      dice.NewSource(streamSeed + 1),
		Risk:      cfg.Risk,
		Trade:     cfg.Trade,
		Audit:     cfg.Audit,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	if cfg.Resume != nil {
		s.resume(cfg.Resume)
	}
	return s, nil
}

func (s *Session) ID() string               { return s.id }
func (s *Session) Turn() int                { return s.turn }
func (s *Session) State() *State            { return s.state }
func (s *Session) Queue() *notify.Queue     { return s.queue }
func (s *Session) Engine() *action.Engine   { return s.engine }
func (s *Session) Ledger() *ministry.Ledger { return s.gate.Ledger() }
func (s *Session) Inbox() chan<- Event      { return s.inbox }
func (s *Session) Join() chan<- JoinRequest { return s.join }
func (s *Session) Leave() chan<- string     { return s.leave }
func (s *Session) Stop()                    { close(s.stop) }

func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case req := <-s.join:
			s.handleJoin(req)
		case id := <-s.leave:
			delete(s.clients, id)
		case ev := <-s.inbox:
			s.tracedStep(ctx, ev)
		case fn := <-s.query:
			fn()
		}
	}
}

// Step handles a single event and publishes the resulting colony state. Run
// calls it for every inbox event; tests may call it directly.
func (s *Session) Step(ev Event) {
	switch ev.Kind {
	case EventCommand:
		if _, err := s.engine.Begin(ev.Action, ev.UnitID, ev.Target); err != nil {
			code, msg := errorCode(err)
			s.log.Printf("session: %s %s by %s refused: %v", ev.Action, ev.UnitID, ev.ClientID, err)
			// A refused precondition is already on screen; the error frame
			// only carries its code.
			if _, shown := action.ReasonOf(err); shown {
				msg = ""
			}
			s.sendError(ev.ClientID, code, msg)
		}
	case EventChoice:
		if !s.queue.Dismiss(ev.MessageID, ev.Choice) {
			s.sendError(ev.ClientID, protocol.ErrNotDisplayed, "no such choice on screen")
		}
	case EventDismiss:
		s.queue.Dismiss(ev.MessageID, -1)
	case EventDiceDone:
		s.queue.DiceDone(ev.MessageID)
	case EventEndTurn:
		if s.engine.Busy() {
			s.sendError(ev.ClientID, protocol.ErrBusy, action.ErrBusy.Error())
			return
		}
		s.turn++
		s.state.StartTurn()
		s.maybeSnapshot()
	default:
		s.sendError(ev.ClientID, protocol.ErrProtoBadRequest, fmt.Sprintf("unknown event %q", ev.Kind))
		return
	}
	s.broadcast(s.stateMsg())
}

func errorCode(err error) (string, string) {
	if r, ok := action.ReasonOf(err); ok {
		return r.Code, r.Message
	}
	switch {
	case errors.Is(err, action.ErrBusy):
		return protocol.ErrBusy, err.Error()
	case errors.Is(err, action.ErrUnknownKind):
		return protocol.ErrUnknownKind, err.Error()
	default:
		return protocol.ErrInternal, err.Error()
	}
}

func (s *Session) handleJoin(req JoinRequest) {
	s.nextConn++
	id := fmt.Sprintf("C%d", s.nextConn)
	s.clients[id] = &client{name: req.Name, out: req.Out}
	s.log.Printf("session: %s joined as %s", req.Name, id)

	actions := make([]string, 0)
	for _, k := range s.engine.Kinds() {
		actions = append(actions, string(k))
	}
	if req.Resp != nil {
		req.Resp <- JoinResponse{Welcome: protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			SessionID:       s.id,
			ClientID:        id,
			DiceSides:       s.cfg.Sides,
			Actions:         actions,
			Catalogs:        s.cfg.Catalogs,
		}}
	}
	// Catch the newcomer up on what is on screen.
	if m := s.queue.Displayed(); m != nil {
		s.sendTo(id, showMsg(viewOf(m, len(s.queue.Pending()))))
	}
	s.sendTo(id, s.stateMsg())
}

// Presenter.

func (s *Session) Show(v notify.View) { s.broadcast(showMsg(v)) }

func (s *Session) Clear(messageID string) {
	s.broadcast(protocol.ClearMsg{Type: protocol.TypeClear, ProtocolVersion: protocol.Version, MessageID: messageID})
}

func (s *Session) Destroy(e notify.Element) {
	s.broadcast(protocol.DestroyMsg{Type: protocol.TypeDestroy, ProtocolVersion: protocol.Version, Element: elementView(e)})
}

func showMsg(v notify.View) protocol.ShowMsg {
	mv := protocol.MessageView{
		ID:      v.MessageID,
		Title:   v.Title,
		Lines:   v.Lines,
		Options: v.Options,
		Dice:    v.Dice,
		Pending: v.Pending,
	}
	if mv.Lines == nil {
		mv.Lines = []string{}
	}
	for _, e := range v.Elements {
		mv.Elements = append(mv.Elements, elementView(e))
	}
	return protocol.ShowMsg{Type: protocol.TypeShow, ProtocolVersion: protocol.Version, Message: mv}
}

func viewOf(m *notify.Message, pending int) notify.View {
	v := notify.View{
		MessageID: m.ID,
		Title:     m.Title,
		Lines:     m.Lines,
		Options:   m.Options,
		Dice:      m.Dice,
		Pending:   pending,
	}
	for _, e := range m.Elements {
		v.Elements = append(v.Elements, *e)
	}
	return v
}

func elementView(e notify.Element) protocol.ElementView {
	return protocol.ElementView{
		ID:    e.ID,
		Kind:  string(e.Kind),
		Label: e.Label,
		Value: e.Value,
		X:     e.Pos.X,
		Y:     e.Pos.Y,
		Z:     e.Z,
		From:  e.From,
	}
}

func (s *Session) stateMsg() protocol.StateMsg {
	msg := protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		Turn:            s.turn,
		Treasury:        s.state.Treasury(),
		Prices:          s.state.Prices(),
		Units:           []protocol.UnitView{},
		Busy:            s.engine.Busy(),
	}
	for _, d := range s.state.Debts() {
		msg.Debt += d.Principal
	}
	for _, u := range s.state.Units() {
		msg.Units = append(msg.Units, unitView(u))
	}
	return msg
}

func unitView(u *model.Unit) protocol.UnitView {
	uv := protocol.UnitView{
		ID:       u.ID,
		Kind:     string(u.Kind),
		Name:     u.Name,
		X:        u.Pos.X,
		Y:        u.Pos.Y,
		Movement: u.Movement,
		Veteran:  u.Veteran,
	}
	if len(u.Goods) > 0 {
		uv.Goods = make(map[string]int, len(u.Goods))
		for k, v := range u.Goods {
			uv.Goods[k] = v
		}
	}
	return uv
}

func (s *Session) sendError(clientID, code, message string) {
	s.sendTo(clientID, protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         message,
	})
}

func (s *Session) sendTo(clientID string, v any) {
	cl, ok := s.clients[clientID]
	if !ok {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Printf("session: marshal: %v", err)
		return
	}
	if !deliver(cl.out, b) {
		s.log.Printf("session: client %s queue full, dropped message", clientID)
	}
}

func (s *Session) broadcast(v any) {
	if len(s.clients) == 0 {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Printf("session: marshal: %v", err)
		return
	}
	for id, cl := range s.clients {
		if !deliver(cl.out, b) {
			s.log.Printf("session: client %s queue full, dropped message", id)
		}
	}
}

// deliver never blocks the loop. Presentation messages are ordered, so a
// full queue drops the new message rather than an older one.
func deliver(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return true
	default:
		return false
	}
}
