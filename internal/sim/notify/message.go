package notify

import "github.com/google/uuid"

type ElementKind string

const (
	ElementDie      ElementKind = "DIE"
	ElementPortrait ElementKind = "PORTRAIT"
	ElementIcon     ElementKind = "ICON"
)

type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Element is a visual adjunct attached to a message: a die, a portrait, a
// produced-good icon. It belongs to exactly one message at a time.
type Element struct {
	ID    string      `json:"id"`
	Kind  ElementKind `json:"kind"`
	Label string      `json:"label,omitempty"`
	Value int         `json:"value,omitempty"`
	Pos   Point       `json:"pos"`
	Z     int         `json:"z"`
	// From is the message the element was carried over from, if any.
	From string `json:"from,omitempty"`

	destroyed bool
}

func NewElement(kind ElementKind, label string, value int, pos Point) *Element {
	return &Element{
		ID:    uuid.NewString(),
		Kind:  kind,
		Label: label,
		Value: value,
		Pos:   pos,
	}
}

func (e *Element) Destroyed() bool { return e.destroyed }

// Message is one entry of the queue. A message with Options is a choice: it
// locks the queue until the player picks one of them.
type Message struct {
	ID       string
	Title    string
	Lines    []string
	Options  []string
	Elements []*Element
	// Dice is the number of dice being animated. Rolling messages dismiss
	// themselves when the animation completes.
	Dice int

	TransferOnDismiss bool
	AcceptsTransfer   bool

	// OnDismiss runs once, after the message leaves the screen. choice is
	// the picked option index, or -1 for plain messages.
	OnDismiss func(choice int)

	dismissed bool
}

func NewMessage(title string, lines ...string) *Message {
	return &Message{
		ID:    uuid.NewString(),
		Title: title,
		Lines: lines,
	}
}

func (m *Message) IsChoice() bool  { return len(m.Options) > 0 }
func (m *Message) Dismissed() bool { return m.dismissed }

func (m *Message) AddElement(e *Element) *Message {
	if e != nil {
		m.Elements = append(m.Elements, e)
	}
	return m
}

// View is the immutable snapshot handed to the presenter.
type View struct {
	MessageID string    `json:"message_id"`
	Title     string    `json:"title"`
	Lines     []string  `json:"lines"`
	Options   []string  `json:"options,omitempty"`
	Dice      int       `json:"dice,omitempty"`
	Elements  []Element `json:"elements,omitempty"`
	Pending   int       `json:"pending"`
}

func (m *Message) view(pending int) View {
	v := View{
		MessageID: m.ID,
		Title:     m.Title,
		Lines:     append([]string(nil), m.Lines...),
		Options:   append([]string(nil), m.Options...),
		Dice:      m.Dice,
		Pending:   pending,
	}
	for _, e := range m.Elements {
		v.Elements = append(v.Elements, *e)
	}
	return v
}
