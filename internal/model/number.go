package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// NumberStatus is the lifecycle status of a raffle number.
type NumberStatus string

const (
	NumberActive   NumberStatus = "ACTIVE"
	NumberReserved NumberStatus = "RESERVED"
	NumberSold     NumberStatus = "SOLD"
)

func (s NumberStatus) String() string { return string(s) }

// IsValid reports whether s is one of the known statuses.
func (s NumberStatus) IsValid() bool {
	switch s {
	case NumberActive, NumberReserved, NumberSold:
		return true
	}
	return false
}

// ParseNumberStatus accepts any casing used by the remote service.
func ParseNumberStatus(v string) (NumberStatus, error) {
	s := NumberStatus(strings.ToUpper(strings.TrimSpace(v)))
	if !s.IsValid() {
		return "", fmt.Errorf("unknown number status %q", v)
	}
	return s, nil
}

// UnmarshalJSON normalizes the status casing.
func (s *NumberStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseNumberStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// RaffleNumber is one ticket slot of a raffle.
type RaffleNumber struct {
	RaffleID   string       `json:"raffleId"`
	Number     int          `json:"number"`
	Status     NumberStatus `json:"status"`
	ReservedBy string       `json:"reservedBy,omitempty"`
	Owner      string       `json:"owner,omitempty"`
	BuyerName  string       `json:"buyerName,omitempty"`
	BuyerPhone string       `json:"buyerPhone,omitempty"`
	Winner     bool         `json:"winner"`
}

// IsReservedBy reports whether the number is currently held by actorID.
func (n RaffleNumber) IsReservedBy(actorID string) bool {
	return n.Status == NumberReserved && actorID != "" && n.ReservedBy == actorID
}

// IsOwnedBy reports whether the sold number belongs to actorID.
func (n RaffleNumber) IsOwnedBy(actorID string) bool {
	if n.Status != NumberSold || actorID == "" {
		return false
	}
	return n.Owner == actorID || n.BuyerName == actorID
}
