package service

import (
	"errors"

	apperrors "workingonit/backend/internal/errors"
	"workingonit/backend/internal/model"
	"workingonit/backend/internal/session"
)

// toAPIError maps domain errors onto HTTP-facing errors. Unknown errors are
// logged by the caller and reported as internal.
func toAPIError(err error, internalMessage string) *apperrors.APIError {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		return apperrors.Validation(verr.Error(), verr.Errors)
	case errors.Is(err, session.ErrInvalidTransition):
		return apperrors.Conflict("invalid_transition", err.Error(), nil)
	case errors.Is(err, model.ErrNotFound):
		return apperrors.NotFound("not_found", err.Error())
	default:
		return apperrors.Internal(internalMessage)
	}
}
