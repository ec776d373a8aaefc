package raffle

import "fmt"

// Operation is the user-facing flavour of a batch. Both call Sell.
type Operation string

const (
	OpSell     Operation = "sell"     // raffle owner sells reserved numbers
	OpPurchase Operation = "purchase" // buyer confirms their own reservations
)

func (o Operation) String() string { return string(o) }

// IsValid reports whether o is a known operation.
func (o Operation) IsValid() bool {
	return o == OpSell || o == OpPurchase
}

func (o Operation) pastTense() string {
	if o == OpPurchase {
		return "purchased"
	}
	return "sold"
}

// OutcomeKind classifies a settled batch.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomePartial OutcomeKind = "partial"
	OutcomeFailure OutcomeKind = "failure"
)

// Outcome is the combined result of one batch submission.
type Outcome struct {
	Operation Operation      `json:"operation"`
	Succeeded []int          `json:"succeeded"`
	Failed    []int          `json:"failed"`
	Errors    map[int]string `json:"errors,omitempty"`
}

// Kind classifies the outcome. A batch with no successes is a failure.
func (o Outcome) Kind() OutcomeKind {
	switch {
	case len(o.Succeeded) > 0 && len(o.Failed) == 0:
		return OutcomeSuccess
	case len(o.Succeeded) > 0:
		return OutcomePartial
	default:
		return OutcomeFailure
	}
}

// Message is the toast text for the outcome.
func (o Outcome) Message() string {
	switch o.Kind() {
	case OutcomeSuccess:
		if len(o.Succeeded) == 1 {
			return fmt.Sprintf("1 number %s successfully", o.Operation.pastTense())
		}
		return fmt.Sprintf("%d numbers %s successfully", len(o.Succeeded), o.Operation.pastTense())
	case OutcomePartial:
		return fmt.Sprintf("%d succeeded, %d failed", len(o.Succeeded), len(o.Failed))
	default:
		return fmt.Sprintf("No number could be %s, please try again", o.Operation.pastTense())
	}
}
