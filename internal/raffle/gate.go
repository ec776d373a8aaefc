package raffle

import (
	"errors"

	"raffle-storefront/internal/model"
)

// ErrRaffleInactive is returned for any mutation attempted on an inactive raffle.
var ErrRaffleInactive = errors.New("this raffle is not active")

// RaffleSource returns the current view of a raffle.
type RaffleSource func() model.Raffle

// IsActive reports whether mutations are allowed on the raffle.
func IsActive(r model.Raffle) bool {
	return r.Active
}

// Gate guards every mutation behind the raffle's active flag. The source is
// consulted on every check; the result is never cached.
type Gate struct {
	source RaffleSource
}

// NewGate creates a gate reading the raffle from src.
func NewGate(src RaffleSource) Gate {
	return Gate{source: src}
}

// Raffle returns the raffle as currently seen by the gate.
func (g Gate) Raffle() model.Raffle {
	if g.source == nil {
		return model.Raffle{}
	}
	return g.source()
}

// Check returns ErrRaffleInactive when the raffle does not accept mutations.
func (g Gate) Check() error {
	if !IsActive(g.Raffle()) {
		return ErrRaffleInactive
	}
	return nil
}
