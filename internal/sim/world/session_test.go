package world

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viceroy.ai/internal/protocol"
	"viceroy.ai/internal/sim/action"
	"viceroy.ai/internal/sim/dice"
	"viceroy.ai/internal/sim/ministry"
	"viceroy.ai/internal/sim/world/kernel/model"
)

func testSession(t *testing.T) (*Session, *model.Unit) {
	t.Helper()
	st := NewState(nil)
	st.SetTreasury(500)
	st.SetPrice("furs", 4)
	st.SetPrice("sugar", 5)
	u := st.AddUnit(model.Unit{Kind: model.UnitMerchant, Name: "Vasco", Movement: 3})

	spec := action.Spec{
		Kind:       action.KindAdvertise,
		Name:       "Advertising campaign",
		Cost:       100,
		Office:     ministry.OfficeTrade,
		Thresholds: dice.Thresholds{SuccessMin: 4, CritSuccessMin: 6},
		Magnitude:  1,
	}
	cab := ministry.NewCabinet(ministry.NewOfficial("M1", "Harcourt", ministry.OfficeTrade, 0, 100, nil))
	s, err := NewSession(SessionConfig{
		Specs:   []action.Spec{spec},
		Sides:   6,
		Seed:    7,
		Cabinet: cab,
	}, st, nil)
	require.NoError(t, err)
	return s, u
}

func join(t *testing.T, s *Session) (string, chan []byte) {
	t.Helper()
	out := make(chan []byte, 64)
	resp := make(chan JoinResponse, 1)
	s.handleJoin(JoinRequest{Name: "tester", Out: out, Resp: resp})
	w := (<-resp).Welcome
	assert.Equal(t, protocol.TypeWelcome, w.Type)
	assert.Equal(t, 6, w.DiceSides)
	assert.Equal(t, []string{"ADVERTISE"}, w.Actions)
	drain(out)
	return w.ClientID, out
}

type frame struct {
	Type    string               `json:"type"`
	Code    string               `json:"code"`
	Message protocol.MessageView `json:"message"`
	Busy    bool                 `json:"busy"`
	Turn    int                  `json:"turn"`
}

func drain(out chan []byte) []frame {
	var frames []frame
	for {
		select {
		case b := <-out:
			var f frame
			_ = json.Unmarshal(b, &f)
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

func ofType(frames []frame, typ string) []frame {
	var out []frame
	for _, f := range frames {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

func TestSession_CommandRunsToCompletion(t *testing.T) {
	s, u := testSession(t)
	cid, out := join(t, s)

	s.Step(Event{ClientID: cid, Kind: EventCommand, Action: action.KindAdvertise, UnitID: u.ID, Target: action.Target{Commodity: "furs"}})
	frames := drain(out)
	shows := ofType(frames, protocol.TypeShow)
	require.Len(t, shows, 1)
	confirm := shows[0].Message
	assert.Equal(t, []string{"Proceed", "Cancel"}, confirm.Options)
	states := ofType(frames, protocol.TypeState)
	require.Len(t, states, 1)
	assert.True(t, states[0].Busy)

	s.Step(Event{ClientID: cid, Kind: EventChoice, MessageID: confirm.ID, Choice: 0})
	shows = ofType(drain(out), protocol.TypeShow)
	require.Len(t, shows, 1)
	rolling := shows[0].Message
	assert.Equal(t, 1, rolling.Dice)
	assert.Equal(t, 400, s.State().Treasury())

	s.Step(Event{ClientID: cid, Kind: EventDiceDone, MessageID: rolling.ID})
	shows = ofType(drain(out), protocol.TypeShow)
	require.Len(t, shows, 1)
	result := shows[0].Message
	require.Len(t, result.Elements, 1)
	assert.Equal(t, rolling.ID, result.Elements[0].From)

	s.Step(Event{ClientID: cid, Kind: EventDismiss, MessageID: result.ID})
	frames = drain(out)
	assert.NotEmpty(t, ofType(frames, protocol.TypeDestroy), "carried die destroyed with the result")
	states = ofType(frames, protocol.TypeState)
	require.Len(t, states, 1)
	assert.False(t, states[0].Busy)
	assert.False(t, s.Engine().Busy())
	assert.Nil(t, s.Queue().Displayed())
}

func TestSession_StaleChoiceIsRejected(t *testing.T) {
	s, u := testSession(t)
	cid, out := join(t, s)

	s.Step(Event{ClientID: cid, Kind: EventCommand, Action: action.KindAdvertise, UnitID: u.ID, Target: action.Target{Commodity: "furs"}})
	drain(out)

	s.Step(Event{ClientID: cid, Kind: EventChoice, MessageID: "nope", Choice: 0})
	errs := ofType(drain(out), protocol.TypeError)
	require.Len(t, errs, 1)
	assert.Equal(t, protocol.ErrNotDisplayed, errs[0].Code)
	assert.True(t, s.Engine().Busy())
}

func TestSession_EndTurn(t *testing.T) {
	s, u := testSession(t)
	cid, out := join(t, s)

	s.Step(Event{ClientID: cid, Kind: EventCommand, Action: action.KindAdvertise, UnitID: u.ID, Target: action.Target{Commodity: "furs"}})
	confirm := ofType(drain(out), protocol.TypeShow)[0].Message

	s.Step(Event{ClientID: cid, Kind: EventEndTurn})
	errs := ofType(drain(out), protocol.TypeError)
	require.Len(t, errs, 1)
	assert.Equal(t, protocol.ErrBusy, errs[0].Code)

	s.Step(Event{ClientID: cid, Kind: EventChoice, MessageID: confirm.ID, Choice: 1})
	drain(out)
	s.Step(Event{ClientID: cid, Kind: EventEndTurn})
	states := ofType(drain(out), protocol.TypeState)
	require.Len(t, states, 1)
	assert.Equal(t, 2, states[0].Turn)
}

func TestSession_RefusedCommandReportsCode(t *testing.T) {
	s, _ := testSession(t)
	cid, out := join(t, s)

	s.Step(Event{ClientID: cid, Kind: EventCommand, Action: action.KindAdvertise, UnitID: "U99", Target: action.Target{Commodity: "furs"}})
	raw := drainRaw(out)
	errs := errorFrames(t, raw)
	require.Len(t, errs, 1)
	assert.Equal(t, protocol.ErrUnknownUnit, errs[0].Code)
	assert.Empty(t, errs[0].Message, "the reason is shown once, as a message")
	var shows []frame
	for _, b := range raw {
		var f frame
		_ = json.Unmarshal(b, &f)
		if f.Type == protocol.TypeShow {
			shows = append(shows, f)
		}
	}
	require.Len(t, shows, 1)
	assert.Equal(t, "Cannot proceed", shows[0].Message.Title)
	assert.Equal(t, []string{`no unit "U99"`}, shows[0].Message.Lines)

	// Nothing goes on screen for an unknown kind, so the frame keeps its text.
	s.Step(Event{ClientID: cid, Kind: EventCommand, Action: action.KindCombat, UnitID: "U1"})
	errs = errorFrames(t, drainRaw(out))
	require.Len(t, errs, 1)
	assert.Equal(t, protocol.ErrUnknownKind, errs[0].Code)
	assert.NotEmpty(t, errs[0].Message)
}

func drainRaw(out chan []byte) [][]byte {
	var raw [][]byte
	for {
		select {
		case b := <-out:
			raw = append(raw, b)
		default:
			return raw
		}
	}
}

func errorFrames(t *testing.T, raw [][]byte) []protocol.ErrorMsg {
	t.Helper()
	var out []protocol.ErrorMsg
	for _, b := range raw {
		var base struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(b, &base))
		if base.Type != protocol.TypeError {
			continue
		}
		var e protocol.ErrorMsg
		require.NoError(t, json.Unmarshal(b, &e))
		out = append(out, e)
	}
	return out
}

func TestSession_JoinCatchesUpOnDisplayedMessage(t *testing.T) {
	s, u := testSession(t)
	cid, out := join(t, s)
	s.Step(Event{ClientID: cid, Kind: EventCommand, Action: action.KindAdvertise, UnitID: u.ID, Target: action.Target{Commodity: "furs"}})
	drain(out)

	late := make(chan []byte, 8)
	s.handleJoin(JoinRequest{Name: "late", Out: late})
	frames := drain(late)
	require.Len(t, frames, 2)
	assert.Equal(t, protocol.TypeShow, frames[0].Type)
	assert.Equal(t, protocol.TypeState, frames[1].Type)
}

func TestSession_FullClientQueueDropsNewest(t *testing.T) {
	s, _ := testSession(t)
	out := make(chan []byte, 1)
	s.handleJoin(JoinRequest{Name: "slow", Out: out})

	s.Step(Event{ClientID: "C1", Kind: EventEndTurn})
	frames := drain(out)
	require.Len(t, frames, 1)
	assert.Equal(t, 1, frames[0].Turn, "the oldest message survives")
}

func TestSession_RunServesJoinsUntilCancelled(t *testing.T) {
	s, _ := testSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	resp := make(chan JoinResponse, 1)
	s.Join() <- JoinRequest{Name: "a", Out: make(chan []byte, 8), Resp: resp}
	select {
	case r := <-resp:
		assert.Equal(t, s.ID(), r.Welcome.SessionID)
	case <-time.After(2 * time.Second):
		t.Fatal("no welcome")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}
