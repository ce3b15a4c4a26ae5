package http

import (
	"encoding/json"
	"net/http"

	"github.com/solanagram/solanagram/internal/service"
	"github.com/solanagram/solanagram/internal/utils"
)

// getChats returns the caller's dialog list: groups, channels, users and
// bots. An expired Telegram authorization surfaces as
// error_code=TELEGRAM_SESSION_EXPIRED.
func (h *Handler) getChats(w http.ResponseWriter, r *http.Request) {
	userID, found := utils.GetUserIDFromContext(r.Context())
	if !found {
		fail(w, r, service.ErrTokenIsExpiredOrInvalid)
		return
	}

	chats, err := h.services.Telegram.GetChats(r.Context(), userID)
	if err != nil {
		fail(w, r, err)
		return
	}

	ok(w, http.StatusOK, "", map[string]any{"chats": chats, "count": len(chats)})
}

// getProfile returns the caller's account summary. The api hash itself is
// never exposed, only its presence.
func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	userID, found := utils.GetUserIDFromContext(r.Context())
	if !found {
		fail(w, r, service.ErrTokenIsExpiredOrInvalid)
		return
	}

	user, err := h.services.Auth.ValidateSession(r.Context(), userID)
	if err != nil {
		fail(w, r, err)
		return
	}

	ok(w, http.StatusOK, "", map[string]any{
		"user_id":              user.UserID,
		"phone":                user.Phone,
		"api_id":               user.APIID,
		"api_credentials_set":  user.HasAPICredentials(),
		"telegram_session_set": user.HasTelegramSession(),
		"created_at":           user.CreatedAt,
		"last_login":           user.LastLogin,
	})
}

type updateProfileRequest struct {
	APIID   int    `json:"api_id,omitempty"`
	APIHash string `json:"api_hash,omitempty"`
}

// updateProfile currently only supports replacing the api credentials,
// mirroring update-credentials for the profile page.
func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, found := utils.GetUserIDFromContext(ctx)
	if !found {
		fail(w, r, service.ErrTokenIsExpiredOrInvalid)
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, r, service.ErrInvalidDataProvided)
		return
	}

	if req.APIID != 0 || req.APIHash != "" {
		if err := h.services.Auth.UpdateCredentials(ctx, userID, req.APIID, req.APIHash); err != nil {
			fail(w, r, err)
			return
		}
	}

	ok(w, http.StatusOK, "profile updated", nil)
}
