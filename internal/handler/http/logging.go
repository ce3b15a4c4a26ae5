package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/solanagram/solanagram/internal/service"
	"github.com/solanagram/solanagram/internal/store"
	"github.com/solanagram/solanagram/internal/utils"
)

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func pageParams(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}

func (h *Handler) listLoggingSessions(w http.ResponseWriter, r *http.Request) {
	userID, found := utils.GetUserIDFromContext(r.Context())
	if !found {
		fail(w, r, service.ErrTokenIsExpiredOrInvalid)
		return
	}

	sessions, err := h.services.Logging.ListSessions(r.Context(), userID)
	if err != nil {
		fail(w, r, err)
		return
	}

	ok(w, http.StatusOK, "", map[string]any{"sessions": sessions, "count": len(sessions)})
}

type startLoggingRequest struct {
	ChatID int64 `json:"chat_id"`
}

// startLogging launches a logging worker for the chat. A second start for
// the same chat conflicts with 409/ALREADY_ACTIVE.
func (h *Handler) startLogging(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, found := utils.GetUserIDFromContext(ctx)
	if !found {
		fail(w, r, service.ErrTokenIsExpiredOrInvalid)
		return
	}

	var req startLoggingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, r, service.ErrInvalidDataProvided)
		return
	}

	session, err := h.services.Logging.StartLogging(ctx, userID, req.ChatID)
	if err != nil {
		fail(w, r, err)
		return
	}

	ok(w, http.StatusCreated, "logging started", map[string]any{
		"session_id":     session.ID,
		"container_name": session.ContainerName,
		"status":         session.ContainerStatus,
	})
}

func (h *Handler) stopLogging(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, found := utils.GetUserIDFromContext(ctx)
	if !found {
		fail(w, r, service.ErrTokenIsExpiredOrInvalid)
		return
	}

	sessionID, err := pathID(r, "id")
	if err != nil {
		fail(w, r, service.ErrInvalidDataProvided)
		return
	}

	if err := h.services.Logging.StopLogging(ctx, userID, sessionID); err != nil {
		fail(w, r, err)
		return
	}

	ok(w, http.StatusOK, "logging stopped", nil)
}

func (h *Handler) deleteLogging(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, found := utils.GetUserIDFromContext(ctx)
	if !found {
		fail(w, r, service.ErrTokenIsExpiredOrInvalid)
		return
	}

	sessionID, err := pathID(r, "id")
	if err != nil {
		fail(w, r, service.ErrInvalidDataProvided)
		return
	}

	if err := h.services.Logging.DeleteLogging(ctx, userID, sessionID); err != nil {
		fail(w, r, err)
		return
	}

	ok(w, http.StatusOK, "logging removed", nil)
}

func (h *Handler) loggingMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, found := utils.GetUserIDFromContext(ctx)
	if !found {
		fail(w, r, service.ErrTokenIsExpiredOrInvalid)
		return
	}

	sessionID, err := pathID(r, "session_id")
	if err != nil {
		fail(w, r, service.ErrInvalidDataProvided)
		return
	}

	limit, offset := pageParams(r)
	page, err := h.services.Logging.SessionMessages(ctx, userID, sessionID, limit, offset)
	if err != nil {
		fail(w, r, err)
		return
	}

	ok(w, http.StatusOK, "", page)
}

func (h *Handler) chatLoggingStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, found := utils.GetUserIDFromContext(ctx)
	if !found {
		fail(w, r, service.ErrTokenIsExpiredOrInvalid)
		return
	}

	chatID, err := pathID(r, "chat_id")
	if err != nil {
		fail(w, r, service.ErrInvalidDataProvided)
		return
	}

	session, err := h.services.Logging.ChatStatus(ctx, userID, chatID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			ok(w, http.StatusOK, "", map[string]any{"active": false})
			return
		}
		fail(w, r, err)
		return
	}

	ok(w, http.StatusOK, "", map[string]any{
		"active":  true,
		"session": session,
	})
}
