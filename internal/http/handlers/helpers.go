package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"imenu-order-services/internal/apperr"
	"imenu-order-services/internal/middleware"
	"imenu-order-services/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var errMissingParam = errors.New("missing param")

func zapError(err error) zap.Field {
	return zap.Error(err)
}

func readPathString(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

func readPathInt64(r *http.Request, key string) (int64, error) {
	value := readPathString(r, key)
	if value == "" {
		return 0, errMissingParam
	}
	var out int64
	_, err := fmt.Sscan(value, &out)
	return out, err
}

// decodeBody unmarshals and validates a JSON request body. A false return
// means the rejection has already been written.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_BODY", "Request body is not valid JSON")
		return false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(dst); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) && len(verrs) > 0 {
				response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR",
					fmt.Sprintf("Field %q failed on the %q rule", verrs[0].Field(), verrs[0].Tag()))
				return false
			}
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Request body failed validation")
			return false
		}
	}
	return true
}

// mustAuth pulls the request identity placed by the auth middleware.
func mustAuth(w http.ResponseWriter, r *http.Request) (*middleware.AuthContext, bool) {
	ac, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authorization token required")
		return nil, false
	}
	return ac, true
}

// writeEngineError maps the domain error taxonomy onto HTTP rejections.
// Unclassified errors become an opaque 500 so internals never leak.
func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	var (
		validationErr *apperr.ValidationError
		conflictErr   *apperr.StateConflictError
		capacityErr   *apperr.CapacityError
		shiftErr      *apperr.ShiftClosedError
	)

	switch {
	case errors.As(err, &validationErr):
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", validationErr.Error())
	case errors.As(err, &conflictErr):
		response.ErrorDetails(w, http.StatusConflict, "STATE_CONFLICT", conflictErr.Error(), map[string]any{
			"currentStatus": conflictErr.Current,
		})
	case errors.As(err, &capacityErr):
		response.ErrorDetails(w, http.StatusConflict, "INSUFFICIENT_CAPACITY", capacityErr.Error(), map[string]any{
			"requested":      capacityErr.Requested,
			"remainingSeats": capacityErr.Remaining,
		})
	case errors.As(err, &shiftErr):
		details := map[string]any{}
		if shiftErr.Wait > 0 {
			details["nextShiftInMinutes"] = int(shiftErr.Wait / time.Minute)
		}
		response.ErrorDetails(w, http.StatusForbidden, "OUTSIDE_SHIFT", shiftErr.Error(), details)
	case errors.Is(err, apperr.ErrNotFound):
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
	case errors.Is(err, apperr.ErrForbidden):
		response.Error(w, http.StatusForbidden, "FORBIDDEN", "You do not have permission to access this resource")
	default:
		if h.Logger != nil {
			h.Logger.Error("unhandled operation error", zapError(err))
		}
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
	}
}
