package handler

import (
	"errors"
	"log"

	"raffle-storefront/internal/gateway"
	"raffle-storefront/internal/raffle"
	"raffle-storefront/internal/service"
	"raffle-storefront/internal/session"
	"raffle-storefront/pkg/apierror"
)

// apiError maps domain and gateway errors onto the storefront envelope.
// Messages from the raffle service are passed through verbatim.
func apiError(err error) *apierror.Error {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, raffle.ErrRaffleInactive),
		errors.Is(err, raffle.ErrEmptySelection):
		return apierror.Unprocessable(err.Error())
	case errors.Is(err, raffle.ErrNotReserver),
		errors.Is(err, raffle.ErrNotSelectable),
		errors.Is(err, raffle.ErrBatchInProgress):
		return apierror.Conflict(err.Error())
	case errors.Is(err, raffle.ErrModalClosed):
		return apierror.Conflict(err.Error())
	case errors.Is(err, service.ErrUnknownNumber):
		return apierror.NotFound(err.Error())
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrInvalidToken),
		errors.Is(err, gateway.ErrNoSession),
		errors.Is(err, gateway.ErrUnauthorized):
		return apierror.Unauthorized(err.Error())
	}

	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		if gwErr.StatusCode == 404 {
			return apierror.NotFound(gwErr.Message)
		}
		return apierror.Conflict(gwErr.Message)
	}

	log.Printf("[Handler] Upstream failure: %v", err)
	return apierror.BadGateway("raffle service is unavailable, please try again")
}
