package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrRateLimit       = "E_RATE_LIMIT"

	// Session routing/state.
	ErrBusy         = "E_BUSY"
	ErrUnknownUnit  = "E_UNKNOWN_UNIT"
	ErrUnknownKind  = "E_UNKNOWN_ACTION"
	ErrNotDisplayed = "E_NOT_DISPLAYED"

	// Action preconditions.
	ErrNoMovement    = "E_NO_MOVEMENT"
	ErrNoFunds       = "E_NO_FUNDS"
	ErrNoMinister    = "E_NO_MINISTER"
	ErrBadLocation   = "E_BAD_LOCATION"
	ErrBadUnit       = "E_BAD_UNIT"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrNoGoods       = "E_NO_GOODS"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrRateLimit:       {},
	ErrBusy:            {},
	ErrUnknownUnit:     {},
	ErrUnknownKind:     {},
	ErrNotDisplayed:    {},
	ErrNoMovement:      {},
	ErrNoFunds:         {},
	ErrNoMinister:      {},
	ErrBadLocation:     {},
	ErrBadUnit:         {},
	ErrInvalidTarget:   {},
	ErrNoGoods:         {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
