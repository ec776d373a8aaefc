package raffle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrEmptySelection is returned when a batch is submitted with nothing selected.
	ErrEmptySelection = errors.New("select at least one reserved number")
	// ErrModalClosed is returned for batch actions while the modal is closed.
	ErrModalClosed = errors.New("the batch dialog is not open")
	// ErrBatchInProgress is returned when a submission is already running.
	ErrBatchInProgress = errors.New("a batch is already being processed")
	// ErrNotSelectable is returned when toggling a number that is not eligible.
	ErrNotSelectable = errors.New("only reserved numbers can be selected")
)

// Seller is the part of the raffle gateway the aggregator needs.
type Seller interface {
	Sell(ctx context.Context, raffleID string, number int) error
}

// SaleObserver is notified once per settled sale call.
type SaleObserver func(ctx context.Context, op Operation, raffleID string, number int, err error, elapsed time.Duration)

// Aggregator fans a batch out into one Sell call per number and waits for
// every call to settle. A failed call never cancels the others.
type Aggregator struct {
	seller   Seller
	limit    int
	observer SaleObserver
}

// NewAggregator creates an aggregator. maxConcurrency <= 0 means unbounded.
func NewAggregator(seller Seller, maxConcurrency int, observer SaleObserver) *Aggregator {
	return &Aggregator{seller: seller, limit: maxConcurrency, observer: observer}
}

type saleResult struct {
	number int
	err    error
}

// Run sells every number and classifies the results. Succeeded and Failed
// keep the order of numbers.
func (a *Aggregator) Run(ctx context.Context, raffleID string, op Operation, numbers []int) Outcome {
	results := make([]saleResult, len(numbers))

	var g errgroup.Group
	if a.limit > 0 {
		g.SetLimit(a.limit)
	}
	for i, n := range numbers {
		i, n := i, n
		g.Go(func() error {
			start := time.Now()
			err := a.sell(ctx, raffleID, n)
			results[i] = saleResult{number: n, err: err}
			if a.observer != nil {
				a.observer(ctx, op, raffleID, n, err, time.Since(start))
			}
			return nil
		})
	}
	_ = g.Wait()

	out := Outcome{Operation: op, Succeeded: []int{}, Failed: []int{}}
	for _, r := range results {
		if r.err != nil {
			out.Failed = append(out.Failed, r.number)
			if out.Errors == nil {
				out.Errors = make(map[int]string)
			}
			out.Errors[r.number] = r.err.Error()
			continue
		}
		out.Succeeded = append(out.Succeeded, r.number)
	}
	return out
}

func (a *Aggregator) sell(ctx context.Context, raffleID string, number int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sale of number %d failed: %v", number, r)
		}
	}()
	if a.seller == nil {
		return errors.New("raffle service not configured")
	}
	return a.seller.Sell(ctx, raffleID, number)
}

// Notifier receives the user-facing toasts of a batch.
type Notifier interface {
	Success(message string)
	Warning(message string)
	Error(message string)
}

// ModalConfig wires a BatchModal.
type ModalConfig struct {
	RaffleID   string
	Operation  Operation
	Gate       Gate
	Aggregator *Aggregator
	// Eligible returns the numbers currently selectable (the Reserved set
	// for this operation).
	Eligible func() []int
	// Refresh re-fetches the list from the raffle service.
	Refresh    func(ctx context.Context) error
	Notifier   Notifier
	CloseDelay time.Duration

	OnSaleSuccess func()
	OnClose       func()
}

// BatchModal hosts a selection and submits it through the aggregator.
type BatchModal struct {
	cfg       ModalConfig
	selection *Selection

	mu         sync.Mutex
	open       bool
	submitting bool
	closeTimer *time.Timer
}

// NewBatchModal creates a closed modal.
func NewBatchModal(cfg ModalConfig) *BatchModal {
	if cfg.Eligible == nil {
		cfg.Eligible = func() []int { return nil }
	}
	return &BatchModal{cfg: cfg, selection: NewSelection()}
}

// Operation returns the batch kind of the modal.
func (m *BatchModal) Operation() Operation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.Operation
}

// SetOperation changes the batch kind used by the next submission.
func (m *BatchModal) SetOperation(op Operation) {
	if !op.IsValid() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.Operation = op
}

// Open shows the modal with an empty selection.
func (m *BatchModal) Open() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopTimerLocked()
	if !m.open {
		m.selection.Clear()
	}
	m.open = true
}

// Close hides the modal and clears the selection.
func (m *BatchModal) Close() {
	m.mu.Lock()
	wasOpen := m.open
	m.stopTimerLocked()
	m.open = false
	m.selection.Clear()
	m.mu.Unlock()

	if wasOpen && m.cfg.OnClose != nil {
		m.cfg.OnClose()
	}
}

func (m *BatchModal) stopTimerLocked() {
	if m.closeTimer != nil {
		m.closeTimer.Stop()
		m.closeTimer = nil
	}
}

// IsOpen reports whether the modal is shown.
func (m *BatchModal) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// Selected returns the selected numbers in ascending order.
func (m *BatchModal) Selected() []int {
	return m.selection.Numbers()
}

// Toggle flips one eligible number.
func (m *BatchModal) Toggle(number int) (bool, error) {
	if !m.IsOpen() {
		return false, ErrModalClosed
	}
	if !contains(m.cfg.Eligible(), number) {
		return false, ErrNotSelectable
	}
	return m.selection.Toggle(number), nil
}

// ToggleAll selects every eligible number, or clears the selection when it
// already holds exactly that set.
func (m *BatchModal) ToggleAll() error {
	if !m.IsOpen() {
		return ErrModalClosed
	}
	m.selection.ToggleAll(m.cfg.Eligible())
	return nil
}

// CanSubmit reports whether the submit control is enabled.
func (m *BatchModal) CanSubmit() bool {
	if m.cfg.Gate.Check() != nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open && !m.submitting && m.selection.Len() > 0
}

// Submit runs the batch. Precondition failures (closed modal, inactive
// raffle, empty selection) are returned as errors before any remote call;
// every other result, including total failure, is an Outcome.
func (m *BatchModal) Submit(ctx context.Context) (Outcome, error) {
	if err := m.cfg.Gate.Check(); err != nil {
		m.notifyError(err.Error())
		return Outcome{}, err
	}

	m.mu.Lock()
	if !m.open {
		m.mu.Unlock()
		return Outcome{}, ErrModalClosed
	}
	if m.submitting {
		m.mu.Unlock()
		return Outcome{}, ErrBatchInProgress
	}
	numbers := m.selection.Numbers()
	if len(numbers) == 0 {
		m.mu.Unlock()
		m.notifyWarning(ErrEmptySelection.Error())
		return Outcome{}, ErrEmptySelection
	}
	op := m.cfg.Operation
	m.submitting = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.submitting = false
		m.mu.Unlock()
	}()

	outcome := m.cfg.Aggregator.Run(ctx, m.cfg.RaffleID, op, numbers)
	m.selection.Remove(outcome.Succeeded...)

	if len(outcome.Succeeded) > 0 && m.cfg.Refresh != nil {
		if err := m.cfg.Refresh(ctx); err != nil {
			m.notifyWarning("Could not refresh the numbers list: " + err.Error())
		} else {
			m.selection.Retain(m.cfg.Eligible())
		}
	}

	switch outcome.Kind() {
	case OutcomeSuccess:
		m.selection.Clear()
		m.notifySuccess(outcome.Message())
		if m.cfg.OnSaleSuccess != nil {
			m.cfg.OnSaleSuccess()
		}
		m.scheduleClose()
	case OutcomePartial:
		m.notifyWarning(outcome.Message())
	default:
		m.notifyError(outcome.Message())
	}
	return outcome, nil
}

func (m *BatchModal) scheduleClose() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopTimerLocked()
	if m.cfg.CloseDelay <= 0 {
		go m.Close()
		return
	}
	m.closeTimer = time.AfterFunc(m.cfg.CloseDelay, m.Close)
}

func (m *BatchModal) notifySuccess(msg string) {
	if m.cfg.Notifier != nil {
		m.cfg.Notifier.Success(msg)
	}
}

func (m *BatchModal) notifyWarning(msg string) {
	if m.cfg.Notifier != nil {
		m.cfg.Notifier.Warning(msg)
	}
}

func (m *BatchModal) notifyError(msg string) {
	if m.cfg.Notifier != nil {
		m.cfg.Notifier.Error(msg)
	}
}

func contains(list []int, n int) bool {
	for _, v := range list {
		if v == n {
			return true
		}
	}
	return false
}
