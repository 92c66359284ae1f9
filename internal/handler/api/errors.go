package api

import (
	"errors"

	domrepo "MoexPull/internal/domain/repository"
	"MoexPull/internal/usecase"
	xhttp "MoexPull/pkg/http"
)

// appError maps usecase errors onto HTTP errors. Unknown errors pass through
// and end up as 500.
func appError(err error) error {
	switch {
	case errors.Is(err, domrepo.ErrHoldingNotFound):
		return xhttp.NotFoundError("holding not found").WithError(err)
	case errors.Is(err, usecase.ErrInvalidHolding):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, usecase.ErrAlreadySold):
		return xhttp.ConflictError("holding already sold").WithError(err)
	case errors.Is(err, usecase.ErrFeedUnavailable):
		return xhttp.UpstreamError("MOEX feed unavailable").WithError(err)
	}
	return err
}
