package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"raffle-storefront/internal/metrics"
	"raffle-storefront/internal/model"
	"raffle-storefront/internal/raffle"
)

// ErrUnknownNumber is returned for numbers the raffle does not have.
var ErrUnknownNumber = errors.New("number does not exist in this raffle")

// RaffleAPI is the slice of the gateway a board needs.
type RaffleAPI interface {
	GetRaffle(ctx context.Context, raffleID string) (model.Raffle, error)
	ListAllNumbers(ctx context.Context, raffleID string) ([]model.RaffleNumber, error)
	Reserve(ctx context.Context, raffleID string, number int) error
	Unreserve(ctx context.Context, raffleID string, number int) error
	Sell(ctx context.Context, raffleID string, number int) error
}

// RequestIDFunc extracts the request id recorded with journal rows.
type RequestIDFunc func(ctx context.Context) string

// BoardConfig wires a Board.
type BoardConfig struct {
	RaffleID       string
	ActorID        string
	API            RaffleAPI
	Journal        *ActivityService
	RequestID      RequestIDFunc
	CloseDelay     time.Duration
	MaxConcurrency int
}

// Board is one actor's live view of one raffle: the fetched number list,
// a cell per number and the batch modal.
type Board struct {
	raffleID  string
	actorID   string
	api       RaffleAPI
	journal   *ActivityService
	requestID RequestIDFunc

	mu      sync.RWMutex
	raffle  model.Raffle
	numbers []model.RaffleNumber
	cells   map[int]*raffle.Cell
	loaded  bool

	gate   raffle.Gate
	modal  *raffle.BatchModal
	toasts *ToastQueue
}

// NewBoard creates an empty board. Call Refresh before use.
func NewBoard(cfg BoardConfig) *Board {
	b := &Board{
		raffleID:  cfg.RaffleID,
		actorID:   cfg.ActorID,
		api:       cfg.API,
		journal:   cfg.Journal,
		requestID: cfg.RequestID,
		cells:     make(map[int]*raffle.Cell),
		toasts:    &ToastQueue{},
	}
	if b.requestID == nil {
		b.requestID = func(context.Context) string { return "" }
	}
	b.gate = raffle.NewGate(b.currentRaffle)

	b.modal = raffle.NewBatchModal(raffle.ModalConfig{
		RaffleID:   cfg.RaffleID,
		Operation:  raffle.OpPurchase,
		Gate:       b.gate,
		Aggregator: raffle.NewAggregator(cfg.API, cfg.MaxConcurrency, b.observeSale),
		Eligible:   b.Eligible,
		Refresh:    b.Refresh,
		Notifier:   b.toasts,
		CloseDelay: cfg.CloseDelay,
		OnSaleSuccess: func() {
			log.Printf("[Board] Batch committed on raffle %s by %s", cfg.RaffleID, cfg.ActorID)
		},
	})

	metrics.BoardOpened()
	return b
}

func (b *Board) currentRaffle() model.Raffle {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.raffle
}

// Raffle returns the last fetched raffle.
func (b *Board) Raffle() model.Raffle {
	return b.currentRaffle()
}

// IsOwner reports whether the board's actor created the raffle.
func (b *Board) IsOwner() bool {
	return b.currentRaffle().IsOwner(b.actorID)
}

// Operation is the batch kind offered to the actor.
func (b *Board) Operation() raffle.Operation {
	if b.IsOwner() {
		return raffle.OpSell
	}
	return raffle.OpPurchase
}

// Refresh re-fetches the raffle and the full number list, replaces the
// board's collection and re-synchronizes every cell.
func (b *Board) Refresh(ctx context.Context) error {
	r, err := b.api.GetRaffle(ctx, b.raffleID)
	if err != nil {
		return fmt.Errorf("failed to fetch raffle: %w", err)
	}
	numbers, err := b.api.ListAllNumbers(ctx, b.raffleID)
	if err != nil {
		return fmt.Errorf("failed to fetch numbers: %w", err)
	}

	fresh := make([]model.RaffleNumber, len(numbers))
	copy(fresh, numbers)
	sort.SliceStable(fresh, func(i, j int) bool { return fresh[i].Number < fresh[j].Number })

	b.mu.Lock()
	defer b.mu.Unlock()

	b.raffle = r
	b.numbers = fresh
	b.loaded = true

	seen := make(map[int]struct{}, len(fresh))
	for _, n := range fresh {
		seen[n.Number] = struct{}{}
		if cell, ok := b.cells[n.Number]; ok {
			cell.Sync(n)
			continue
		}
		b.cells[n.Number] = raffle.NewCell(n, b.actorID, b.gate, b.api,
			raffle.WithCallbacks(b.cellCallbacks()),
			raffle.WithObserver(b.observeTransition),
		)
	}
	for num := range b.cells {
		if _, ok := seen[num]; !ok {
			delete(b.cells, num)
		}
	}
	return nil
}

// refreshRaffle re-reads only the raffle so the gate sees the current flag.
func (b *Board) refreshRaffle(ctx context.Context) {
	r, err := b.api.GetRaffle(ctx, b.raffleID)
	if err != nil {
		log.Printf("[Board] Could not refresh raffle %s: %v", b.raffleID, err)
		return
	}
	b.mu.Lock()
	b.raffle = r
	b.mu.Unlock()
}

func (b *Board) cellCallbacks() raffle.CellCallbacks {
	return raffle.CellCallbacks{
		OnReserveSuccess: func(n int) {
			b.toasts.Success(fmt.Sprintf("Number %d reserved", n))
		},
		OnUnreserveSuccess: func(n int) {
			b.toasts.Success(fmt.Sprintf("Number %d released", n))
		},
		OnReserveError: func(msg string) {
			b.toasts.Error(msg)
		},
	}
}

// Click drives the cell of number and waits until the transition settles.
// The remote call runs on a context detached from ctx so a disconnecting
// client cannot abort it half-way.
func (b *Board) Click(ctx context.Context, number int) (raffle.CellView, raffle.Transition, error) {
	b.refreshRaffle(ctx)

	b.mu.RLock()
	cell, ok := b.cells[number]
	b.mu.RUnlock()
	if !ok {
		return raffle.CellView{}, raffle.Transition{}, ErrUnknownNumber
	}

	t := <-cell.Click(context.WithoutCancel(ctx))
	return cell.View(), t, t.Err
}

// BoardView is the rendered board fragment.
type BoardView struct {
	Raffle    model.Raffle      `json:"raffle"`
	Owner     bool              `json:"owner"`
	Disabled  bool              `json:"disabled"`
	Operation raffle.Operation  `json:"operation"`
	Cells     []raffle.CellView `json:"cells"`
	Batch     BatchView         `json:"batch"`
	Toasts    []Toast           `json:"toasts"`
}

// BatchView is the rendered batch modal.
type BatchView struct {
	Open      bool  `json:"open"`
	Selected  []int `json:"selected"`
	Eligible  []int `json:"eligible"`
	CanSubmit bool  `json:"canSubmit"`
}

// View renders the board for its actor and drains pending toasts. Buyers
// see the available numbers only; the owner sees every number.
func (b *Board) View() BoardView {
	b.mu.RLock()
	r := b.raffle
	cells := make([]*raffle.Cell, 0, len(b.numbers))
	for _, n := range b.numbers {
		if c, ok := b.cells[n.Number]; ok {
			cells = append(cells, c)
		}
	}
	b.mu.RUnlock()

	current := make([]model.RaffleNumber, len(cells))
	byNumber := make(map[int]*raffle.Cell, len(cells))
	for i, c := range cells {
		current[i] = c.Number()
		byNumber[current[i].Number] = c
	}

	visible := raffle.VisibleTo(r, current, b.actorID)
	views := make([]raffle.CellView, 0, len(visible))
	for _, n := range visible {
		views = append(views, byNumber[n.Number].View())
	}

	return BoardView{
		Raffle:    r,
		Owner:     r.IsOwner(b.actorID),
		Disabled:  !raffle.IsActive(r),
		Operation: b.Operation(),
		Cells:     views,
		Batch:     b.BatchView(),
		Toasts:    b.toasts.Drain(),
	}
}

// BatchView renders the batch modal state.
func (b *Board) BatchView() BatchView {
	return BatchView{
		Open:      b.modal.IsOpen(),
		Selected:  b.modal.Selected(),
		Eligible:  b.Eligible(),
		CanSubmit: b.modal.CanSubmit(),
	}
}

// Eligible returns the numbers the actor may put in a batch: every reserved
// number for the owner, the actor's own reservations for a buyer.
func (b *Board) Eligible() []int {
	b.mu.RLock()
	r := b.raffle
	cells := make([]*raffle.Cell, 0, len(b.cells))
	for _, c := range b.cells {
		cells = append(cells, c)
	}
	b.mu.RUnlock()

	owner := r.IsOwner(b.actorID)
	out := []int{}
	for _, c := range cells {
		n := c.Number()
		if n.Status != model.NumberReserved {
			continue
		}
		if owner || n.IsReservedBy(b.actorID) {
			out = append(out, n.Number)
		}
	}
	sort.Ints(out)
	return out
}

// OpenBatch opens the batch modal.
func (b *Board) OpenBatch() BatchView {
	b.modal.Open()
	return b.BatchView()
}

// CloseBatch closes the modal and clears the selection.
func (b *Board) CloseBatch() BatchView {
	b.modal.Close()
	return b.BatchView()
}

// ToggleBatch flips one number in the selection.
func (b *Board) ToggleBatch(number int) (BatchView, error) {
	if _, err := b.modal.Toggle(number); err != nil {
		return b.BatchView(), err
	}
	return b.BatchView(), nil
}

// ToggleAllBatch is the select-all / deselect-all action.
func (b *Board) ToggleAllBatch() (BatchView, error) {
	if err := b.modal.ToggleAll(); err != nil {
		return b.BatchView(), err
	}
	return b.BatchView(), nil
}

// SubmitBatch runs the batch with the operation matching the actor's role.
func (b *Board) SubmitBatch(ctx context.Context) (raffle.Outcome, error) {
	b.refreshRaffle(ctx)

	b.modal.SetOperation(b.Operation())
	out, err := b.modal.Submit(context.WithoutCancel(ctx))
	if err != nil {
		return out, err
	}
	metrics.ObserveBatch(string(out.Operation), string(out.Kind()))
	return out, nil
}

// Close releases the board. Pending calls still settle.
func (b *Board) Close() {
	b.modal.Close()
	metrics.BoardClosed()
}

func (b *Board) observeTransition(ctx context.Context, t raffle.Transition) {
	result := metrics.ResultCommitted
	status := model.ActivitySuccess
	msg := ""
	switch {
	case t.Rejected:
		result = metrics.ResultRejected
		status = model.ActivityRejected
		msg = t.Err.Error()
	case t.Err != nil:
		result = metrics.ResultRolledBack
		status = model.ActivityFailed
		msg = t.Err.Error()
	}
	metrics.ObserveTransition(string(t.Action), result, t.Duration.Seconds())

	b.journal.Record(&model.Activity{
		RequestID:  b.requestID(ctx),
		ActorID:    b.actorID,
		RaffleID:   t.RaffleID,
		Number:     t.Number,
		Action:     t.Action,
		Status:     status,
		Message:    msg,
		DurationMs: t.Duration.Milliseconds(),
	})
}

func (b *Board) observeSale(ctx context.Context, op raffle.Operation, raffleID string, number int, err error, elapsed time.Duration) {
	metrics.ObserveSale(string(op), elapsed.Seconds())

	action := model.ActionPurchase
	if op == raffle.OpSell {
		action = model.ActionSell
	}
	status, msg := model.ActivitySuccess, ""
	if err != nil {
		status, msg = model.ActivityFailed, err.Error()
	}

	b.journal.Record(&model.Activity{
		RequestID:  b.requestID(ctx),
		ActorID:    b.actorID,
		RaffleID:   raffleID,
		Number:     number,
		Action:     action,
		Status:     status,
		Message:    msg,
		DurationMs: elapsed.Milliseconds(),
	})
}
