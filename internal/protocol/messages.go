package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	PlayerName      string            `json:"player_name"`
	Capabilities    HelloCapabilities `json:"capabilities"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	ClientID        string         `json:"client_id"`
	DiceSides       int            `json:"dice_sides"`
	Actions         []string       `json:"actions"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type CatalogDigests struct {
	ActionsDigest     string `json:"actions_digest"`
	CommoditiesDigest string `json:"commodities_digest"`
	TuningDigest      string `json:"tuning_digest,omitempty"`
}

// COMMAND (client -> server): start an action.
type CommandMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	Action          string    `json:"action"`
	UnitID          string    `json:"unit_id"`
	Target          TargetRef `json:"target"`
}

type TargetRef struct {
	X         int    `json:"x"`
	Y         int    `json:"y"`
	UnitID    string `json:"unit_id,omitempty"`
	Commodity string `json:"commodity,omitempty"`
	Building  string `json:"building,omitempty"`
}

// CHOICE (client -> server): answer the displayed choice message.
type ChoiceMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	MessageID       string `json:"message_id"`
	Choice          int    `json:"choice"`
}

// DISMISS and DICE_DONE (client -> server) share one shape.
type DismissMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	MessageID       string `json:"message_id"`
}

type EndTurnMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

// SHOW (server -> client): the message now displayed.
type ShowMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Message         MessageView `json:"message"`
}

type MessageView struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Lines    []string      `json:"lines"`
	Options  []string      `json:"options,omitempty"`
	Dice     int           `json:"dice,omitempty"`
	Elements []ElementView `json:"elements,omitempty"`
	Pending  int           `json:"pending"`
}

type ElementView struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	Label string `json:"label,omitempty"`
	Value int    `json:"value,omitempty"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Z     int    `json:"z"`
	From  string `json:"from,omitempty"`
}

// CLEAR (server -> client): the message left the screen.
type ClearMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	MessageID       string `json:"message_id"`
}

// DESTROY (server -> client): a side element is gone for good.
type DestroyMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Element         ElementView `json:"element"`
}

// STATE (server -> client): colony snapshot after every event.
type StateMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Turn            int            `json:"turn"`
	Treasury        int            `json:"treasury"`
	Debt            int            `json:"debt"`
	Prices          map[string]int `json:"prices"`
	Units           []UnitView     `json:"units"`
	Busy            bool           `json:"busy"`
}

type UnitView struct {
	ID       string         `json:"id"`
	Kind     string         `json:"kind"`
	Name     string         `json:"name"`
	X        int            `json:"x"`
	Y        int            `json:"y"`
	Movement int            `json:"movement"`
	Veteran  bool           `json:"veteran,omitempty"`
	Goods    map[string]int `json:"goods,omitempty"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}
