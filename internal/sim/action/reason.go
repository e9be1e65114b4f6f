package action

import "errors"

var (
	ErrBusy        = errors.New("another action is in flight")
	ErrUnknownKind = errors.New("unknown action kind")
)

// Reason is a failed precondition. It is surfaced to the player once and
// leaves the world untouched.
type Reason struct {
	Code    string
	Message string
}

func (r *Reason) Error() string { return r.Code + ": " + r.Message }

func reason(code, msg string) *Reason { return &Reason{Code: code, Message: msg} }

// ReasonOf extracts the Reason from err, if any.
func ReasonOf(err error) (*Reason, bool) {
	var r *Reason
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
