// Package raffle holds the interactive core of the storefront: the per-number
// cell state machine, the availability filter, the raffle activity gate and
// the batch sell/purchase aggregator.
package raffle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"raffle-storefront/internal/model"
)

// ErrNotReserver is returned when an actor clicks a number someone else reserved.
var ErrNotReserver = errors.New("this number is reserved by another participant")

// NumberService is the part of the raffle gateway a cell needs.
type NumberService interface {
	Reserve(ctx context.Context, raffleID string, number int) error
	Unreserve(ctx context.Context, raffleID string, number int) error
}

// CellCallbacks are invoked once per settled click. Any of them may be nil.
type CellCallbacks struct {
	OnReserveSuccess   func(number int)
	OnUnreserveSuccess func(number int)
	OnReserveError     func(message string)
}

// Transition describes one click outcome. Rejected is set when the click was
// refused before any remote call, Skipped when the click was a no-op.
type Transition struct {
	RaffleID string
	Number   int
	Action   model.ActivityAction
	Err      error
	Rejected bool
	Skipped  bool
	Duration time.Duration
}

// TransitionObserver is notified after every settled or rejected click.
type TransitionObserver func(ctx context.Context, t Transition)

type phase int

const (
	phaseIdle phase = iota
	phasePending
	phaseSettled
)

// Cell is the client-side state machine of one raffle number.
//
// A click applies the target state speculatively, marks the cell pending
// and issues the remote call. The call settles into either commit (keep the
// speculative state) or rollback (restore prev). While pending every click
// is a no-op, so there is at most one call in flight per number.
type Cell struct {
	mu sync.Mutex

	actorID   string
	gate      Gate
	remote    NumberService
	callbacks CellCallbacks
	observer  TransitionObserver

	current model.RaffleNumber
	prev    model.RaffleNumber // rollback target, valid while pending
	phase   phase
	synced  bool // a server read replaced current while pending
}

// CellOption configures a Cell.
type CellOption func(*Cell)

// WithCallbacks sets the click callbacks.
func WithCallbacks(cb CellCallbacks) CellOption {
	return func(c *Cell) { c.callbacks = cb }
}

// WithObserver sets the transition observer.
func WithObserver(obs TransitionObserver) CellOption {
	return func(c *Cell) { c.observer = obs }
}

// NewCell creates a cell seeded from the latest server read of n.
func NewCell(n model.RaffleNumber, actorID string, gate Gate, remote NumberService, opts ...CellOption) *Cell {
	c := &Cell{
		actorID: actorID,
		gate:    gate,
		remote:  remote,
		current: n,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CellView is the rendered state of a cell.
type CellView struct {
	Number     int                `json:"number"`
	Status     model.NumberStatus `json:"status"`
	ReservedBy string             `json:"reservedBy,omitempty"`
	Owner      string             `json:"owner,omitempty"`
	BuyerName  string             `json:"buyerName,omitempty"`
	BuyerPhone string             `json:"buyerPhone,omitempty"`
	Winner     bool               `json:"winner"`
	Pending    bool               `json:"pending"`
	Disabled   bool               `json:"disabled"`
	Mine       bool               `json:"mine"`
}

// Number returns the displayed state of the number.
func (c *Cell) Number() model.RaffleNumber {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Status returns the displayed status.
func (c *Cell) Status() model.NumberStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Status
}

// Pending reports whether a remote call is in flight.
func (c *Cell) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase == phasePending
}

// View renders the cell. Disabled reflects the gate at call time.
func (c *Cell) View() CellView {
	active := c.gate.Check() == nil

	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.current
	return CellView{
		Number:     n.Number,
		Status:     n.Status,
		ReservedBy: n.ReservedBy,
		Owner:      n.Owner,
		BuyerName:  n.BuyerName,
		BuyerPhone: n.BuyerPhone,
		Winner:     n.Winner,
		Pending:    c.phase == phasePending,
		Disabled:   !active || n.Status == model.NumberSold,
		Mine:       n.IsReservedBy(c.actorID) || n.IsOwnedBy(c.actorID),
	}
}

// Sync replaces the displayed state with a fresh server read. If a call is
// still in flight the read also becomes the rollback target; a later
// successful settle re-applies the confirmed transition on top of it.
func (c *Cell) Sync(fresh model.RaffleNumber) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if fresh.Number != c.current.Number {
		return
	}
	c.current = fresh
	if c.phase == phasePending {
		c.prev = fresh
		c.synced = true
		return
	}
	c.phase = phaseIdle
}

// applyAction returns n as it looks once action has been accepted for actorID.
func applyAction(n model.RaffleNumber, action model.ActivityAction, actorID string) model.RaffleNumber {
	switch action {
	case model.ActionReserve:
		n.Status = model.NumberReserved
		n.ReservedBy = actorID
	case model.ActionUnreserve:
		n.Status = model.NumberActive
		n.ReservedBy = ""
	}
	return n
}

// settled returns a channel already holding t.
func settled(t Transition) <-chan Transition {
	ch := make(chan Transition, 1)
	ch <- t
	close(ch)
	return ch
}

// Click drives one user click. The speculative state is applied before
// Click returns; the returned channel yields the Transition once it has
// settled (immediately for no-ops and rejected clicks) and is then closed.
// Click never panics and never leaves the cell pending after settling.
func (c *Cell) Click(ctx context.Context) <-chan Transition {
	// Evaluated outside c.mu: the gate source may take the board's lock.
	gateErr := c.gate.Check()

	c.mu.Lock()

	n := c.current
	if c.phase == phasePending || n.Status == model.NumberSold {
		c.mu.Unlock()
		return settled(Transition{RaffleID: n.RaffleID, Number: n.Number, Skipped: true})
	}

	action := model.ActionReserve
	if n.Status == model.NumberReserved {
		action = model.ActionUnreserve
	}

	if gateErr != nil {
		c.mu.Unlock()
		return settled(c.reject(ctx, n.RaffleID, n.Number, action, gateErr))
	}

	if action == model.ActionUnreserve && n.ReservedBy != c.actorID {
		c.mu.Unlock()
		return settled(c.reject(ctx, n.RaffleID, n.Number, action, ErrNotReserver))
	}

	c.prev = n
	c.current = applyAction(n, action, c.actorID)
	c.phase = phasePending
	c.synced = false
	c.mu.Unlock()

	done := make(chan Transition, 1)
	go c.settle(ctx, n.RaffleID, n.Number, action, done)
	return done
}

func (c *Cell) settle(ctx context.Context, raffleID string, number int, action model.ActivityAction, done chan Transition) {
	defer close(done)

	start := time.Now()
	err := c.call(ctx, raffleID, number, action)
	elapsed := time.Since(start)

	c.mu.Lock()
	switch {
	case err != nil:
		c.current = c.prev
	case c.synced && c.current.Status != model.NumberSold:
		// The confirmation is newer than any read taken mid-flight.
		c.current = applyAction(c.current, action, c.actorID)
	}
	c.prev = model.RaffleNumber{}
	c.phase = phaseSettled
	c.synced = false
	c.mu.Unlock()

	switch {
	case err != nil:
		if c.callbacks.OnReserveError != nil {
			c.callbacks.OnReserveError(err.Error())
		}
	case action == model.ActionReserve:
		if c.callbacks.OnReserveSuccess != nil {
			c.callbacks.OnReserveSuccess(number)
		}
	default:
		if c.callbacks.OnUnreserveSuccess != nil {
			c.callbacks.OnUnreserveSuccess(number)
		}
	}

	t := Transition{
		RaffleID: raffleID,
		Number:   number,
		Action:   action,
		Err:      err,
		Duration: elapsed,
	}
	if c.observer != nil {
		c.observer(ctx, t)
	}
	done <- t
}

// call runs the remote operation, turning a panic into an ordinary failure.
func (c *Cell) call(ctx context.Context, raffleID string, number int, action model.ActivityAction) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s of number %d failed: %v", action, number, r)
		}
	}()

	if c.remote == nil {
		return errors.New("raffle service not configured")
	}
	if action == model.ActionReserve {
		return c.remote.Reserve(ctx, raffleID, number)
	}
	return c.remote.Unreserve(ctx, raffleID, number)
}

func (c *Cell) reject(ctx context.Context, raffleID string, number int, action model.ActivityAction, err error) Transition {
	t := Transition{
		RaffleID: raffleID,
		Number:   number,
		Action:   action,
		Err:      err,
		Rejected: true,
	}
	if c.callbacks.OnReserveError != nil {
		c.callbacks.OnReserveError(err.Error())
	}
	if c.observer != nil {
		c.observer(ctx, t)
	}
	return t
}
