package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// envelope is the uniform response shape of the raffle service.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
	Meta    *PageMeta       `json:"meta,omitempty"`
}

// PageMeta is the pagination block attached to list responses.
type PageMeta struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// Error is a rejection reported by the raffle service, either as a
// non-success envelope or a non-2xx status. Message is passed through
// verbatim; the service defines no structured codes for business
// rejections, so Code is only informational.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

// ErrUnauthorized matches any *Error with a 401 status.
var ErrUnauthorized = errors.New("raffle service rejected the session token")

// Is lets errors.Is(err, ErrUnauthorized) work on rejections.
func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// errorBody covers `"error": {"code": "...", "message": "..."}`.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// rejection builds the *Error for a failed envelope. The message is taken
// from `message`, then `error.message`, then `error` as a plain string,
// then the HTTP status text.
func rejection(status int, env *envelope) *Error {
	e := &Error{StatusCode: status}
	if env != nil {
		e.Message = strings.TrimSpace(env.Message)
		if len(env.Error) > 0 {
			var body errorBody
			var text string
			switch {
			case json.Unmarshal(env.Error, &body) == nil:
				e.Code = body.Code
				if e.Message == "" {
					e.Message = strings.TrimSpace(body.Message)
				}
			case json.Unmarshal(env.Error, &text) == nil:
				if e.Message == "" {
					e.Message = strings.TrimSpace(text)
				}
			}
		}
	}
	if e.Message == "" {
		if text := http.StatusText(status); text != "" && status >= 300 {
			e.Message = text
		} else {
			e.Message = "request rejected by raffle service"
		}
	}
	return e
}

// decodeData unmarshals the envelope payload into out when both are present.
func decodeData(env *envelope, out interface{}) error {
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}
