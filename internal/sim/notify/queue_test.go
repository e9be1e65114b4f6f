package notify

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPresenter struct {
	shown     []View
	cleared   []string
	destroyed []Element
}

func (p *recordingPresenter) Show(v View)        { p.shown = append(p.shown, v) }
func (p *recordingPresenter) Clear(id string)    { p.cleared = append(p.cleared, id) }
func (p *recordingPresenter) Destroy(e Element) { p.destroyed = append(p.destroyed, e) }

func titles(ms []*Message) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Title)
	}
	return out
}

func TestQueue_DisplaysOneAndKeepsOrder(t *testing.T) {
	p := &recordingPresenter{}
	q := NewQueue(p, nil)
	for i := 0; i < 4; i++ {
		q.Enqueue(NewMessage(fmt.Sprintf("m%d", i)), false)
	}
	require.NotNil(t, q.Displayed())
	assert.Equal(t, "m0", q.Displayed().Title)
	assert.Equal(t, []string{"m1", "m2", "m3"}, titles(q.Pending()))
	assert.Len(t, p.shown, 1)

	q.Enqueue(NewMessage("urgent"), true)
	assert.Equal(t, []string{"urgent", "m1", "m2", "m3"}, titles(q.Pending()))

	require.True(t, q.Dismiss(q.Displayed().ID, -1))
	assert.Equal(t, "urgent", q.Displayed().Title)
	assert.Equal(t, 4, q.Len())
}

func TestQueue_DismissIsIdempotent(t *testing.T) {
	q := NewQueue(nil, nil)
	m := NewMessage("only")
	calls := 0
	m.OnDismiss = func(int) { calls++ }
	q.Enqueue(m, false)

	require.True(t, q.Dismiss(m.ID, -1))
	assert.False(t, q.Dismiss(m.ID, -1))
	assert.False(t, q.Dismiss("unknown", -1))
	assert.Equal(t, 1, calls)
	assert.Nil(t, q.Displayed())
	assert.True(t, m.Dismissed())

	q.Enqueue(m, false)
	assert.Nil(t, q.Displayed(), "a dismissed message cannot come back")
}

func TestQueue_ChoiceLocksUntilAnswered(t *testing.T) {
	q := NewQueue(nil, nil)
	c := NewMessage("proceed?")
	c.Options = []string{"Proceed", "Cancel"}
	picked := -2
	c.OnDismiss = func(choice int) { picked = choice }
	q.Enqueue(c, false)
	q.Enqueue(NewMessage("later"), false)

	assert.True(t, q.Locked())
	assert.False(t, q.Dismiss(c.ID, -1), "a choice needs an answer")
	assert.False(t, q.Dismiss(c.ID, 2))
	assert.Equal(t, c, q.Displayed())

	require.True(t, q.Dismiss(c.ID, 1))
	assert.Equal(t, 1, picked)
	assert.Equal(t, "later", q.Displayed().Title)
	assert.False(t, q.Locked())
}

func TestQueue_LockHoldsBackNext(t *testing.T) {
	q := NewQueue(nil, nil)
	q.Lock()
	q.Enqueue(NewMessage("a"), false)
	assert.Nil(t, q.Displayed())
	q.Unlock()
	require.NotNil(t, q.Displayed())
	assert.Equal(t, "a", q.Displayed().Title)
}

func TestQueue_DiceDoneDismissesOnce(t *testing.T) {
	q := NewQueue(nil, nil)
	rolling := NewMessage("rolling")
	rolling.Dice = 2
	n := 0
	rolling.OnDismiss = func(int) { n++ }
	q.Enqueue(rolling, false)

	assert.True(t, q.DiceDone(rolling.ID))
	assert.False(t, q.DiceDone(rolling.ID))
	assert.False(t, q.Dismiss(rolling.ID, -1))
	assert.Equal(t, 1, n)

	plain := NewMessage("plain")
	q.Enqueue(plain, false)
	assert.False(t, q.DiceDone(plain.ID), "only rolling messages self-dismiss")
}

func withDice(title string, n int, transfer bool) *Message {
	m := NewMessage(title)
	m.TransferOnDismiss = transfer
	for i := 0; i < n; i++ {
		m.AddElement(NewElement(ElementDie, "d6", i+1, Point{X: 10 * i, Y: 5}))
		m.Elements[i].Z = i
	}
	return m
}

func TestQueue_TransferIntoAcceptingMessage(t *testing.T) {
	p := &recordingPresenter{}
	q := NewQueue(p, nil)
	rolling := withDice("rolling", 2, true)
	result := NewMessage("result")
	result.AcceptsTransfer = true
	result.AddElement(NewElement(ElementPortrait, "merchant", 0, Point{}))
	q.Enqueue(rolling, false)
	q.Enqueue(result, false)

	moved := append([]*Element(nil), rolling.Elements...)
	require.True(t, q.Dismiss(rolling.ID, -1))

	require.Equal(t, result, q.Displayed())
	require.Len(t, result.Elements, 3)
	assert.Equal(t, moved[0], result.Elements[0], "carried elements are prepended")
	assert.Equal(t, moved[1], result.Elements[1])
	assert.Equal(t, Point{X: 10, Y: 5}, result.Elements[1].Pos)
	assert.Equal(t, 1, result.Elements[1].Z)
	assert.Equal(t, rolling.ID, result.Elements[0].From)
	assert.Empty(t, p.destroyed)
	assert.Empty(t, rolling.Elements)
}

func TestQueue_TransferIntoMessageEnqueuedByCallback(t *testing.T) {
	q := NewQueue(nil, nil)
	rolling := withDice("rolling", 3, true)
	var result *Message
	rolling.OnDismiss = func(int) {
		result = NewMessage("result")
		result.AcceptsTransfer = true
		q.Enqueue(result, true)
	}
	q.Enqueue(rolling, false)
	require.True(t, q.Dismiss(rolling.ID, -1))
	require.NotNil(t, result)
	assert.Len(t, result.Elements, 3)
}

func TestQueue_TransferDestroyedWhenRejectedOrAlone(t *testing.T) {
	p := &recordingPresenter{}
	q := NewQueue(p, nil)
	rolling := withDice("rolling", 2, true)
	next := NewMessage("refuses")
	q.Enqueue(rolling, false)
	q.Enqueue(next, false)
	els := append([]*Element(nil), rolling.Elements...)
	q.Dismiss(rolling.ID, -1)

	assert.Empty(t, next.Elements)
	assert.Len(t, p.destroyed, 2)
	for _, e := range els {
		assert.True(t, e.Destroyed())
	}

	p2 := &recordingPresenter{}
	q2 := NewQueue(p2, nil)
	alone := withDice("alone", 2, true)
	q2.Enqueue(alone, false)
	q2.Dismiss(alone.ID, -1)
	assert.Len(t, p2.destroyed, 2)
	assert.Nil(t, q2.Displayed())
}

func TestQueue_NonTransferringMessageDestroysElements(t *testing.T) {
	p := &recordingPresenter{}
	q := NewQueue(p, nil)
	m := withDice("plain", 2, false)
	next := NewMessage("next")
	next.AcceptsTransfer = true
	q.Enqueue(m, false)
	q.Enqueue(next, false)
	q.Dismiss(m.ID, -1)
	assert.Len(t, p.destroyed, 2)
	assert.Empty(t, next.Elements)
}

func TestQueue_OrderingProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("one displayed, the rest pending in enqueue order modulo front insertions", prop.ForAll(
		func(fronts []bool) bool {
			if len(fronts) == 0 {
				return true
			}
			q := NewQueue(nil, nil)
			var model []string
			for i, front := range fronts {
				title := fmt.Sprintf("m%d", i)
				q.Enqueue(NewMessage(title), front)
				if i == 0 {
					continue
				}
				if front {
					model = append([]string{title}, model...)
				} else {
					model = append(model, title)
				}
			}
			if q.Displayed() == nil || q.Displayed().Title != "m0" {
				return false
			}
			got := titles(q.Pending())
			if len(got) != len(fronts)-1 {
				return false
			}
			for i := range got {
				if got[i] != model[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.Property("transfer conserves element count", prop.ForAll(
		func(n, own int, accepts bool) bool {
			p := &recordingPresenter{}
			q := NewQueue(p, nil)
			src := withDice("src", n, true)
			dst := withDice("dst", own, false)
			dst.AcceptsTransfer = accepts
			q.Enqueue(src, false)
			q.Enqueue(dst, false)
			q.Dismiss(src.ID, -1)
			if accepts {
				return len(dst.Elements) == n+own && len(p.destroyed) == 0
			}
			return len(dst.Elements) == own && len(p.destroyed) == n
		},
		gen.IntRange(0, 6),
		gen.IntRange(0, 3),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
