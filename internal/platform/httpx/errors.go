// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/commerceops/opsdash/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807. Internal
// causes are never written to the client.
func RespondError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(verrs))
		return
	}
	switch shared.KindOf(err) {
	case shared.KindNotFound:
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case shared.KindInvalidArgument:
		Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
	case shared.KindInvalidTransition:
		Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case shared.KindConflict:
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// StatusOf returns the status RespondError would write for err.
func StatusOf(err error) int {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return http.StatusBadRequest
	}
	switch shared.KindOf(err) {
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindInvalidArgument:
		return http.StatusBadRequest
	case shared.KindInvalidTransition, shared.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func validationDetail(errs validator.ValidationErrors) string {
	if len(errs) == 0 {
		return ""
	}
	first := errs[0]
	return first.Field() + " failed " + first.Tag()
}
