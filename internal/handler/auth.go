package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"raffle-storefront/internal/gateway"
	"raffle-storefront/internal/middleware"
	"raffle-storefront/internal/service"
	"raffle-storefront/pkg/apierror"
	"raffle-storefront/pkg/response"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// AuthHandler handles login, token rotation and logout.
type AuthHandler struct {
	storefront *service.Storefront
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(storefront *service.Storefront) *AuthHandler {
	return &AuthHandler{storefront: storefront}
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents the response for login.
type LoginResponse struct {
	Token     string `json:"token"`
	ActorID   string `json:"actor_id"`
	ActorName string `json:"actor_name"`
	ExpiresAt string `json:"expires_at"`
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	req.Email = strings.TrimSpace(req.Email)
	if err := validate.Struct(req); err != nil {
		response.Error(w, validationError(err))
		return
	}

	sess, err := h.storefront.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		var gwErr *gateway.Error
		if errors.As(err, &gwErr) && gwErr.StatusCode < 500 {
			response.Error(w, apierror.Unauthorized(gwErr.Message))
			return
		}
		response.Error(w, apiError(err))
		return
	}

	data := sess.Data()
	response.Created(w, LoginResponse{
		Token:     sess.StorefrontToken(),
		ActorID:   data.ActorID,
		ActorName: data.ActorName,
		ExpiresAt: data.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Refresh handles POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	if sess == nil {
		response.Error(w, apierror.Unauthorized("authentication required"))
		return
	}

	if err := h.storefront.Refresh(r.Context(), sess); err != nil {
		response.Error(w, apiError(err))
		return
	}

	response.OK(w, map[string]interface{}{
		"status":     "refreshed",
		"expires_at": sess.Data().ExpiresAt,
	})
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	if sess == nil {
		response.Error(w, apierror.Unauthorized("authentication required"))
		return
	}

	if err := h.storefront.Logout(r.Context(), sess); err != nil {
		response.Error(w, apierror.InternalError("failed to end session"))
		return
	}

	response.NoContent(w)
}

func validationError(err error) *apierror.Error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apierror.BadRequest(err.Error())
	}

	details := make([]apierror.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg := fe.Field() + " is invalid"
		switch fe.Tag() {
		case "required":
			msg = fe.Field() + " is required"
		case "email":
			msg = fe.Field() + " must be a valid email address"
		}
		details = append(details, apierror.FieldError{Field: strings.ToLower(fe.Field()), Message: msg})
	}
	return apierror.ValidationError("request validation failed", details...)
}
