package model

import "time"

// ActivityAction names the remote mutation that was attempted.
type ActivityAction string

const (
	ActionReserve   ActivityAction = "reserve"
	ActionUnreserve ActivityAction = "unreserve"
	ActionSell      ActivityAction = "sell"
	ActionPurchase  ActivityAction = "purchase"
)

// Activity statuses.
const (
	ActivitySuccess  = "success"
	ActivityFailed   = "failed"
	ActivityRejected = "rejected" // precondition failure, no remote call
)

// Activity is one journal row for a per-number remote call.
type Activity struct {
	ID         int64          `json:"id"`
	RequestID  string         `json:"request_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	RaffleID   string         `json:"raffle_id"`
	Number     int            `json:"number"`
	Action     ActivityAction `json:"action"`
	Status     string         `json:"status"`
	Message    string         `json:"message,omitempty"`
	DurationMs int64          `json:"duration_ms"`
	CreatedAt  time.Time      `json:"created_at"`
}
