package notify

import (
	"io"
	"log"
)

// Presenter renders the displayed message. Implementations must not call
// back into the queue synchronously.
type Presenter interface {
	Show(v View)
	Clear(messageID string)
	Destroy(e Element)
}

type nopPresenter struct{}

func (nopPresenter) Show(View)       {}
func (nopPresenter) Clear(string)    {}
func (nopPresenter) Destroy(Element) {}

// Queue is the single-focus message pipeline. At most one message is
// displayed; the rest wait in order. All methods must be called from the
// session loop.
type Queue struct {
	displayed *Message
	pending   []*Message
	locked    bool

	// carry holds elements detached from the last dismissed message until
	// the next message is displayed.
	carry []*Element

	presenter Presenter
	log       *log.Logger
}

func NewQueue(p Presenter, logger *log.Logger) *Queue {
	if p == nil {
		p = nopPresenter{}
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Queue{presenter: p, log: logger}
}

func (q *Queue) Displayed() *Message { return q.displayed }

func (q *Queue) Pending() []*Message {
	out := make([]*Message, len(q.pending))
	copy(out, q.pending)
	return out
}

func (q *Queue) Len() int {
	n := len(q.pending)
	if q.displayed != nil {
		n++
	}
	return n
}

// Locked reports whether a new message may be shown right now.
func (q *Queue) Locked() bool {
	return q.locked || (q.displayed != nil && q.displayed.IsChoice())
}

// Lock holds back the next message, e.g. while the presenter animates.
func (q *Queue) Lock() { q.locked = true }

func (q *Queue) Unlock() {
	q.locked = false
	q.Advance()
}

// Enqueue appends m, or puts it ahead of every pending message when atFront
// is set. It is displayed at once if nothing else is.
func (q *Queue) Enqueue(m *Message, atFront bool) {
	if m == nil {
		return
	}
	if m.dismissed {
		q.log.Printf("notify: enqueue of dismissed message %s ignored", m.ID)
		return
	}
	if atFront {
		q.pending = append([]*Message{m}, q.pending...)
	} else {
		q.pending = append(q.pending, m)
	}
	q.Advance()
}

// EnqueueFront puts ms, in the given order, ahead of every pending message.
// Nothing is displayed until all of them are in place.
func (q *Queue) EnqueueFront(ms ...*Message) {
	live := make([]*Message, 0, len(ms))
	for _, m := range ms {
		if m == nil || m.dismissed {
			continue
		}
		live = append(live, m)
	}
	q.pending = append(live, q.pending...)
	q.Advance()
}

// Advance displays the next pending message if the screen is free. It is the
// only place a message becomes displayed.
func (q *Queue) Advance() bool {
	if q.displayed != nil || q.locked {
		q.settleCarry()
		return false
	}
	if len(q.pending) == 0 {
		q.settleCarry()
		return false
	}
	m := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	q.displayed = m

	if len(q.carry) > 0 {
		if m.AcceptsTransfer {
			m.Elements = append(q.carry, m.Elements...)
			q.carry = nil
		} else {
			q.destroy(q.carry)
			q.carry = nil
		}
	}
	q.presenter.Show(m.view(len(q.pending)))
	return true
}

// Dismiss removes the displayed message with the given id. choice must name
// one of the options of a choice message and is ignored otherwise. Dismissing
// anything but the displayed message is a logged no-op, which makes repeated
// dismissal safe.
func (q *Queue) Dismiss(id string, choice int) bool {
	m := q.displayed
	if m == nil || m.ID != id {
		q.log.Printf("notify: dismiss of non-displayed message %s ignored", id)
		return false
	}
	if m.IsChoice() {
		if choice < 0 || choice >= len(m.Options) {
			q.log.Printf("notify: invalid choice %d for message %s", choice, id)
			return false
		}
	} else {
		choice = -1
	}

	q.displayed = nil
	m.dismissed = true
	if m.TransferOnDismiss {
		for _, e := range m.Elements {
			e.From = m.ID
		}
		q.carry = append(q.carry, m.Elements...)
	} else {
		q.destroy(m.Elements)
	}
	m.Elements = nil
	q.presenter.Clear(m.ID)

	if m.OnDismiss != nil {
		m.OnDismiss(choice)
	}
	q.Advance()
	return true
}

// DiceDone is the presenter's signal that the dice animation of a rolling
// message finished. The message dismisses itself once.
func (q *Queue) DiceDone(id string) bool {
	m := q.displayed
	if m == nil || m.ID != id || m.Dice == 0 {
		return false
	}
	return q.Dismiss(id, -1)
}

// settleCarry destroys carried elements when no message is waiting to take
// them.
func (q *Queue) settleCarry() {
	if len(q.carry) == 0 || len(q.pending) > 0 {
		return
	}
	q.destroy(q.carry)
	q.carry = nil
}

func (q *Queue) destroy(els []*Element) {
	for _, e := range els {
		if e == nil || e.destroyed {
			continue
		}
		e.destroyed = true
		q.presenter.Destroy(*e)
	}
}
