package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"raffle-storefront/internal/middleware"
	"raffle-storefront/internal/raffle"
	"raffle-storefront/internal/service"
	"raffle-storefront/pkg/apierror"
	"raffle-storefront/pkg/response"
)

// BoardHandler serves the interactive raffle board and its batch dialog.
type BoardHandler struct {
	storefront *service.Storefront
}

// NewBoardHandler creates a new board handler.
func NewBoardHandler(storefront *service.Storefront) *BoardHandler {
	return &BoardHandler{storefront: storefront}
}

// ClickResponse is returned for a settled cell click.
type ClickResponse struct {
	Cell   raffle.CellView `json:"cell"`
	Action string          `json:"action,omitempty"`
	Noop   bool            `json:"noop"`
}

// SubmitResponse is returned for a settled batch.
type SubmitResponse struct {
	Outcome raffle.Outcome     `json:"outcome"`
	Kind    raffle.OutcomeKind `json:"kind"`
	Batch   service.BatchView  `json:"batch"`
}

// board resolves the session's board for the raffleID URL param. When
// reload is set an already loaded board is refreshed from the service.
func (h *BoardHandler) board(w http.ResponseWriter, r *http.Request, reload bool) (*service.Board, bool) {
	sess := middleware.GetSession(r.Context())
	if sess == nil {
		response.Error(w, apierror.Unauthorized("authentication required"))
		return nil, false
	}

	raffleID := strings.TrimSpace(chi.URLParam(r, "raffleID"))
	if raffleID == "" {
		response.Error(w, apierror.BadRequest("raffle id is required"))
		return nil, false
	}

	if b, ok := h.storefront.LoadedBoard(sess, raffleID); ok {
		if reload {
			if err := b.Refresh(r.Context()); err != nil {
				response.Error(w, apiError(err))
				return nil, false
			}
		}
		return b, true
	}

	b, err := h.storefront.Board(r.Context(), sess, raffleID)
	if err != nil {
		response.Error(w, apiError(err))
		return nil, false
	}
	return b, true
}

func numberParam(r *http.Request) (int, error) {
	n, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || n < 1 {
		return 0, apierror.BadRequest("number must be a positive integer")
	}
	return n, nil
}

// GetBoard handles GET /api/v1/raffles/{raffleID}/board
func (h *BoardHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	b, ok := h.board(w, r, true)
	if !ok {
		return
	}
	response.OK(w, b.View())
}

// Click handles POST /api/v1/raffles/{raffleID}/numbers/{number}/click
// The response is written after the remote call settles. On failure the
// rollback is already applied and the error is queued as a toast.
func (h *BoardHandler) Click(w http.ResponseWriter, r *http.Request) {
	number, err := numberParam(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	b, ok := h.board(w, r, false)
	if !ok {
		return
	}

	view, t, err := b.Click(r.Context(), number)
	if err != nil {
		response.Error(w, apiError(err))
		return
	}

	response.OK(w, ClickResponse{
		Cell:   view,
		Action: string(t.Action),
		Noop:   t.Skipped,
	})
}

// OpenBatch handles POST /api/v1/raffles/{raffleID}/batch/open
func (h *BoardHandler) OpenBatch(w http.ResponseWriter, r *http.Request) {
	b, ok := h.board(w, r, true)
	if !ok {
		return
	}
	response.OK(w, b.OpenBatch())
}

// CloseBatch handles POST /api/v1/raffles/{raffleID}/batch/close
func (h *BoardHandler) CloseBatch(w http.ResponseWriter, r *http.Request) {
	b, ok := h.board(w, r, false)
	if !ok {
		return
	}
	response.OK(w, b.CloseBatch())
}

// ToggleBatch handles POST /api/v1/raffles/{raffleID}/batch/toggle/{number}
func (h *BoardHandler) ToggleBatch(w http.ResponseWriter, r *http.Request) {
	number, err := numberParam(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	b, ok := h.board(w, r, false)
	if !ok {
		return
	}

	view, err := b.ToggleBatch(number)
	if err != nil {
		response.Error(w, apiError(err))
		return
	}
	response.OK(w, view)
}

// ToggleAllBatch handles POST /api/v1/raffles/{raffleID}/batch/toggle-all
func (h *BoardHandler) ToggleAllBatch(w http.ResponseWriter, r *http.Request) {
	b, ok := h.board(w, r, false)
	if !ok {
		return
	}

	view, err := b.ToggleAllBatch()
	if err != nil {
		response.Error(w, apiError(err))
		return
	}
	response.OK(w, view)
}

// SubmitBatch handles POST /api/v1/raffles/{raffleID}/batch/submit
// Partial and total failures are reported as 200 with the classified
// outcome; only precondition failures are errors.
func (h *BoardHandler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	b, ok := h.board(w, r, false)
	if !ok {
		return
	}

	outcome, err := b.SubmitBatch(r.Context())
	if err != nil {
		response.Error(w, apiError(err))
		return
	}

	response.JSONWithMessage(w, http.StatusOK, SubmitResponse{
		Outcome: outcome,
		Kind:    outcome.Kind(),
		Batch:   b.BatchView(),
	}, outcome.Message())
}
