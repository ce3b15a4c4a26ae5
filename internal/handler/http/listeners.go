package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/solanagram/solanagram/internal/service"
	"github.com/solanagram/solanagram/internal/utils"
	"github.com/solanagram/solanagram/models"
)

func (h *Handler) listListeners(w http.ResponseWriter, r *http.Request) {
	userID, found := utils.GetUserIDFromContext(r.Context())
	if !found {
		fail(w, r, service.ErrTokenIsExpiredOrInvalid)
		return
	}

	listeners, err := h.services.Listener.ListListeners(r.Context(), userID)
	if err != nil {
		fail(w, r, err)
		return
	}

	ok(w, http.StatusOK, "", map[string]any{"listeners": listeners, "count": len(listeners)})
}

type startListenerRequest struct {
	SourceChatID int64 `json:"source_chat_id"`
}

func (h *Handler) startListener(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, found := utils.GetUserIDFromContext(ctx)
	if !found {
		fail(w, r, service.ErrTokenIsExpiredOrInvalid)
		return
	}

	var req startListenerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, r, service.ErrInvalidDataProvided)
		return
	}

	listener, err := h.services.Listener.StartListener(ctx, userID, req.SourceChatID)
	if err != nil {
		fail(w, r, err)
		return
	}

	ok(w, http.StatusCreated, "listener started", map[string]any{
		"listener_id":    listener.ID,
		"container_name": listener.ContainerName,
		"status":         listener.ContainerStatus,
	})
}

func (h *Handler) getListener(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, found := utils.GetUserIDFromContext(ctx)
	if !found {
		fail(w, r, service.ErrTokenIsExpiredOrInvalid)
		return
	}

	listenerID, err := pathID(r, "id")
	if err != nil {
		fail(w, r, service.ErrInvalidDataProvided)
		return
	}

	listener, err := h.services.Listener.GetListener(ctx, userID, listenerID)
	if err != nil {
		fail(w, r, err)
		return
	}

	ok(w, http.StatusOK, "", listener)
}

func (h *Handler) stopListener(w http.ResponseWriter, r *http.Request) {
	h.listenerAction(w, r, h.services.Listener.StopListener, "listener stopped")
}

func (h *Handler) restartListener(w http.ResponseWriter, r *http.Request) {
	h.listenerAction(w, r, h.services.Listener.RestartListener, "listener restarted")
}

func (h *Handler) deleteListener(w http.ResponseWriter, r *http.Request) {
	h.listenerAction(w, r, h.services.Listener.DeleteListener, "listener removed")
}

func (h *Handler) listenerAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, userID, listenerID int64) error, message string) {
	ctx := r.Context()
	userID, found := utils.GetUserIDFromContext(ctx)
	if !found {
		fail(w, r, service.ErrTokenIsExpiredOrInvalid)
		return
	}

	listenerID, err := pathID(r, "id")
	if err != nil {
		fail(w, r, service.ErrInvalidDataProvided)
		return
	}

	if err := action(ctx, userID, listenerID); err != nil {
		fail(w, r, err)
		return
	}

	ok(w, http.StatusOK, message, nil)
}

func (h *Handler) listElaborations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, found := utils.GetUserIDFromContext(ctx)
	if !found {
		fail(w, r, service.ErrTokenIsExpiredOrInvalid)
		return
	}

	listenerID, err := pathID(r, "id")
	if err != nil {
		fail(w, r, service.ErrInvalidDataProvided)
		return
	}

	listener, err := h.services.Listener.GetListener(ctx, userID, listenerID)
	if err != nil {
		fail(w, r, err)
		return
	}

	ok(w, http.StatusOK, "", map[string]any{"elaborations": listener.Elaborations})
}

type elaborationRequest struct {
	Type     models.ElaborationType   `json:"type"`
	Name     string                   `json:"name"`
	Config   models.ElaborationConfig `json:"config"`
	IsActive *bool                    `json:"is_active,omitempty"`
	Priority int                      `json:"priority"`
}

func (h *Handler) addElaboration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, found := utils.GetUserIDFromContext(ctx)
	if !found {
		fail(w, r, service.ErrTokenIsExpiredOrInvalid)
		return
	}

	listenerID, err := pathID(r, "id")
	if err != nil {
		fail(w, r, service.ErrInvalidDataProvided)
		return
	}

	var req elaborationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, r, service.ErrInvalidDataProvided)
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	created, err := h.services.Listener.AddElaboration(ctx, userID, models.MessageElaboration{
		ListenerID: listenerID,
		Type:       req.Type,
		Name:       req.Name,
		Config:     req.Config,
		IsActive:   active,
		Priority:   req.Priority,
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	ok(w, http.StatusCreated, "elaboration added", created)
}

func (h *Handler) updateElaboration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, found := utils.GetUserIDFromContext(ctx)
	if !found {
		fail(w, r, service.ErrTokenIsExpiredOrInvalid)
		return
	}

	listenerID, err := pathID(r, "id")
	if err != nil {
		fail(w, r, service.ErrInvalidDataProvided)
		return
	}
	elaborationID, err := pathID(r, "eid")
	if err != nil {
		fail(w, r, service.ErrInvalidDataProvided)
		return
	}

	var req elaborationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, r, service.ErrInvalidDataProvided)
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	err = h.services.Listener.UpdateElaboration(ctx, userID, models.MessageElaboration{
		ID:         elaborationID,
		ListenerID: listenerID,
		Type:       req.Type,
		Name:       req.Name,
		Config:     req.Config,
		IsActive:   active,
		Priority:   req.Priority,
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	ok(w, http.StatusOK, "elaboration updated", nil)
}

func (h *Handler) deleteElaboration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, found := utils.GetUserIDFromContext(ctx)
	if !found {
		fail(w, r, service.ErrTokenIsExpiredOrInvalid)
		return
	}

	listenerID, err := pathID(r, "id")
	if err != nil {
		fail(w, r, service.ErrInvalidDataProvided)
		return
	}
	elaborationID, err := pathID(r, "eid")
	if err != nil {
		fail(w, r, service.ErrInvalidDataProvided)
		return
	}

	if err := h.services.Listener.DeleteElaboration(ctx, userID, listenerID, elaborationID); err != nil {
		fail(w, r, err)
		return
	}

	ok(w, http.StatusOK, "elaboration removed", nil)
}

func (h *Handler) listenerMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, found := utils.GetUserIDFromContext(ctx)
	if !found {
		fail(w, r, service.ErrTokenIsExpiredOrInvalid)
		return
	}

	listenerID, err := pathID(r, "id")
	if err != nil {
		fail(w, r, service.ErrInvalidDataProvided)
		return
	}

	limit, offset := pageParams(r)
	page, err := h.services.Listener.ListenerMessages(ctx, userID, listenerID, limit, offset)
	if err != nil {
		fail(w, r, err)
		return
	}

	ok(w, http.StatusOK, "", page)
}

func (h *Handler) cleanupOrphaned(w http.ResponseWriter, r *http.Request) {
	retired, err := h.services.Listener.CleanupOrphaned(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}

	ok(w, http.StatusOK, "cleanup completed", map[string]any{"retired": retired})
}
