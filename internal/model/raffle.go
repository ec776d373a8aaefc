package model

import "time"

// Raffle is the read-only view of a raffle supplied by the remote service.
type Raffle struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	OwnerID      string    `json:"ownerId"`
	TotalNumbers int       `json:"totalNumbers"`
	TicketPrice  float64   `json:"ticketPrice"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt,omitempty"`
}

// IsOwner reports whether actorID created the raffle.
func (r Raffle) IsOwner(actorID string) bool {
	return actorID != "" && r.OwnerID == actorID
}
