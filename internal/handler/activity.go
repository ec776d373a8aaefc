package handler

import (
	"net/http"
	"strconv"

	"raffle-storefront/internal/middleware"
	"raffle-storefront/internal/service"
	"raffle-storefront/pkg/apierror"
	"raffle-storefront/pkg/response"
)

// ActivityHandler lists the actor's journal of remote calls.
type ActivityHandler struct {
	activity *service.ActivityService
}

// NewActivityHandler creates a new activity handler.
func NewActivityHandler(activity *service.ActivityService) *ActivityHandler {
	return &ActivityHandler{activity: activity}
}

// List handles GET /api/v1/activity?page&limit
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	if sess == nil {
		response.Error(w, apierror.Unauthorized("authentication required"))
		return
	}
	if h.activity == nil {
		response.Error(w, apierror.ServiceUnavailable("activity journal is not configured"))
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	items, total, err := h.activity.List(r.Context(), sess.ActorID(), page, limit)
	if err != nil {
		response.Error(w, apierror.InternalError("failed to list activity"))
		return
	}

	response.JSONWithMeta(w, http.StatusOK, items, page, limit, total)
}
