package protocol

import (
	"encoding/json"

	"github.com/Masterminds/semver/v3"
)

const Version = "1.0"

// Message types.
const (
	TypeHello    = "HELLO"
	TypeWelcome  = "WELCOME"
	TypeCommand  = "COMMAND"
	TypeChoice   = "CHOICE"
	TypeDismiss  = "DISMISS"
	TypeDiceDone = "DICE_DONE"
	TypeEndTurn  = "END_TURN"
	TypeShow     = "SHOW"
	TypeClear    = "CLEAR"
	TypeDestroy  = "DESTROY"
	TypeState    = "STATE"
	TypeError    = "ERROR"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// Compatible reports whether a client speaking version v can talk to this
// server: same major version, any minor or patch.
func Compatible(v string) bool {
	cv, err := semver.NewVersion(v)
	if err != nil {
		return false
	}
	return cv.Major() == semver.MustParse(Version).Major()
}
