package game

import "fmt"

// RejectionReason classifies why an operation was refused. A rejected
// operation never mutates game state, so drivers that re-render from
// state may ignore the error; tests assert on the reason.
type RejectionReason int

const (
	WrongPhase RejectionReason = iota
	NotYourTurn
	CardNotInActiveZone
	IllegalPlay
	EmptyPile
	EmptyDeck
	AlreadyReady
	NothingSelected
	ResolutionPending
)

var reasonNames = []string{
	"WrongPhase",
	"NotYourTurn",
	"CardNotInActiveZone",
	"IllegalPlay",
	"EmptyPile",
	"EmptyDeck",
	"AlreadyReady",
	"NothingSelected",
	"ResolutionPending",
}

func (r RejectionReason) String() string {
	if r < 0 || int(r) >= len(reasonNames) {
		return "Unknown"
	}
	return reasonNames[r]
}

// Rejection is the error returned by a refused operation
type Rejection struct {
	Reason RejectionReason
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return fmt.Sprintf("rejected: %s", r.Reason)
	}
	return fmt.Sprintf("rejected: %s: %s", r.Reason, r.Detail)
}

func reject(reason RejectionReason) error {
	return &Rejection{Reason: reason}
}

func rejectf(reason RejectionReason, format string, args ...interface{}) error {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// ReasonOf extracts the rejection reason from an error, reporting
// whether err is a Rejection at all
func ReasonOf(err error) (RejectionReason, bool) {
	if rej, ok := err.(*Rejection); ok {
		return rej.Reason, true
	}
	return 0, false
}
