package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/fpang/tripstory/internal/apperr"
	"github.com/fpang/tripstory/internal/journey"
)

// --- JSON Helpers ---

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// httpError sends a JSON error response. The clientMsg is returned to the caller.
// Optional internalDetails are logged server-side but never sent to the client.
func httpError(w http.ResponseWriter, status int, clientMsg string, internalDetails ...string) {
	if len(internalDetails) > 0 {
		log.Error().
			Int("status", status).
			Str("clientMsg", clientMsg).
			Strs("internalDetails", internalDetails).
			Msg("HTTP error with internal details")
	}
	respondJSON(w, status, map[string]string{"error": clientMsg})
}

// respondErr maps err to a status. Validation and conflict messages are safe
// to show; anything else is replaced by fallbackMsg and logged.
func respondErr(w http.ResponseWriter, err error, fallbackMsg string) {
	status := statusFor(err)
	if status == http.StatusBadRequest || status == http.StatusConflict {
		httpError(w, status, err.Error())
		return
	}
	httpError(w, status, fallbackMsg, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, journey.ErrBusy), errors.Is(err, journey.ErrWrongState), errors.Is(err, journey.ErrReset):
		return http.StatusConflict
	case errors.Is(err, journey.ErrNoGenerator):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUpstream, apperr.KindTransport:
		return http.StatusBadGateway
	case apperr.KindExhaustion:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads the request body into v, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		httpError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
