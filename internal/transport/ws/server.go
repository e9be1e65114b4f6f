package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"viceroy.ai/internal/protocol"
	"viceroy.ai/internal/sim/action"
	"viceroy.ai/internal/sim/world"
	"viceroy.ai/internal/sim/world/kernel/model"
)

// Session is the part of world.Session the transport talks to.
type Session interface {
	Inbox() chan<- world.Event
	Join() chan<- world.JoinRequest
	Leave() chan<- string
}

type Server struct {
	session  Session
	log      *log.Logger
	maxQueue int

	frameRate  rate.Limit
	frameBurst int

	upgrader websocket.Upgrader
}

// NewServer serves one session. maxQueue caps the per-client outbound
// buffer a HELLO may ask for.
func NewServer(sess Session, maxQueue int, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if maxQueue <= 0 {
		maxQueue = 64
	}
	return &Server{
		session:    sess,
		log:        logger,
		maxQueue:   maxQueue,
		frameRate:  rate.Inf,
		frameBurst: 1,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// WithRateLimit caps client frames per connection. perSecond <= 0 disables
// the limit.
func (s *Server) WithRateLimit(perSecond float64, burst int) *Server {
	if perSecond <= 0 {
		s.frameRate = rate.Inf
		return s
	}
	if burst <= 0 {
		burst = 1
	}
	s.frameRate, s.frameBurst = rate.Limit(perSecond), burst
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		clientID, out := s.handshake(conn)
		if clientID == "" {
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		lim := rate.NewLimiter(s.frameRate, s.frameBurst)
		for {
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			if !lim.Allow() {
				reject(out, protocol.ErrRateLimit, "too many frames")
				continue
			}
			ev, err := DecodeEvent(clientID, msg)
			if err != nil {
				s.log.Printf("ws: %s: %v", clientID, err)
				reject(out, protocol.ErrProtoBadRequest, err.Error())
				continue
			}
			select {
			case s.session.Inbox() <- ev:
			case <-ctx.Done():
			}
		}

		s.session.Leave() <- clientID
	}
}

func (s *Server) handshake(conn *websocket.Conn) (clientID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if !protocol.Compatible(hello.ProtocolVersion) {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", nil
	}
	if hello.PlayerName == "" {
		hello.PlayerName = "player"
	}

	maxQ := hello.Capabilities.MaxQueue
	if maxQ <= 0 {
		maxQ = 16
	}
	if maxQ > s.maxQueue {
		maxQ = s.maxQueue
	}
	return s.register(hello.PlayerName, maxQ, func(v any) error { return writeJSON(conn, v) })
}

// register joins the session and sends WELCOME. A client whose WELCOME
// cannot be written leaves the session again.
func (s *Server) register(name string, maxQ int, send func(v any) error) (clientID string, out chan []byte) {
	out = make(chan []byte, maxQ)
	respCh := make(chan world.JoinResponse, 1)
	s.session.Join() <- world.JoinRequest{Name: name, Out: out, Resp: respCh}
	resp := <-respCh

	if err := send(resp.Welcome); err != nil {
		s.log.Printf("ws: welcome %s: %v", resp.Welcome.ClientID, err)
		s.session.Leave() <- resp.Welcome.ClientID
		return "", nil
	}
	return resp.Welcome.ClientID, out
}

// DecodeEvent turns one client frame into a session event.
func DecodeEvent(clientID string, msg []byte) (world.Event, error) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return world.Event{}, fmt.Errorf("malformed frame: %w", err)
	}
	if !protocol.Compatible(base.ProtocolVersion) {
		return world.Event{}, fmt.Errorf("bad protocol_version %q", base.ProtocolVersion)
	}
	ev := world.Event{ClientID: clientID, Kind: world.EventKind(base.Type)}
	switch base.Type {
	case protocol.TypeCommand:
		var cmd protocol.CommandMsg
		if err := json.Unmarshal(msg, &cmd); err != nil {
			return world.Event{}, err
		}
		if cmd.Action == "" {
			return world.Event{}, fmt.Errorf("COMMAND without action")
		}
		ev.Action = action.Kind(cmd.Action)
		ev.UnitID = cmd.UnitID
		ev.Target = action.Target{
			Pos:       model.Pos{X: cmd.Target.X, Y: cmd.Target.Y},
			UnitID:    cmd.Target.UnitID,
			Commodity: cmd.Target.Commodity,
			Building:  model.BuildingKind(cmd.Target.Building),
		}
	case protocol.TypeChoice:
		var c protocol.ChoiceMsg
		if err := json.Unmarshal(msg, &c); err != nil {
			return world.Event{}, err
		}
		ev.MessageID, ev.Choice = c.MessageID, c.Choice
	case protocol.TypeDismiss, protocol.TypeDiceDone:
		var d protocol.DismissMsg
		if err := json.Unmarshal(msg, &d); err != nil {
			return world.Event{}, err
		}
		ev.MessageID, ev.Choice = d.MessageID, -1
	case protocol.TypeEndTurn:
	default:
		return world.Event{}, fmt.Errorf("unexpected message type %q", base.Type)
	}
	return ev, nil
}

// reject answers a frame the session never saw. It shares the client queue
// with the session and never blocks.
func reject(out chan []byte, code, message string) {
	b, err := json.Marshal(protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         message,
	})
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
