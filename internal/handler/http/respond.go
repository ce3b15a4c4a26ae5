package http

import (
	"net/http"

	"github.com/solanagram/solanagram/internal/logger"
	"github.com/solanagram/solanagram/internal/utils"
	"github.com/solanagram/solanagram/models"
)

// ok writes the success envelope with an optional payload.
func ok(w http.ResponseWriter, status int, message string, data any) {
	_, _ = utils.WriteJSON(w, models.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	}, status)
}

// fail maps err through the error taxonomy and writes the failure envelope.
// Internal errors stay opaque: the body carries only the localized message
// and the request trace id for correlation with server logs.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromRequest(r)
	mapping, retryAfter := mapError(err)

	resp := models.APIResponse{
		Success:    false,
		Error:      mapping.message,
		ErrorCode:  mapping.code,
		RetryAfter: retryAfter,
	}

	if mapping.status >= http.StatusInternalServerError {
		resp.TraceID = utils.GetTraceIDFromContext(r.Context())
		log.Error().Err(err).Int("status", mapping.status).Msg("request failed")
	} else {
		log.Warn().Err(err).Int("status", mapping.status).Msg("request rejected")
	}

	_, _ = utils.WriteJSON(w, resp, mapping.status)
}
