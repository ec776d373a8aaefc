package model

import "time"

// SessionData is what the session store keeps for a logged-in actor.
type SessionData struct {
	ID          string    `json:"id"`
	ActorID     string    `json:"actor_id"`
	ActorName   string    `json:"actor_name"`
	RemoteToken string    `json:"remote_token"`
	CreatedAt   time.Time `json:"created_at"`
	RotatedAt   time.Time `json:"rotated_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}
