package http

import (
	"encoding/json"
	"net/http"

	"github.com/solanagram/solanagram/internal/logger"
	"github.com/solanagram/solanagram/internal/service"
	"github.com/solanagram/solanagram/internal/utils"
	"github.com/solanagram/solanagram/models"
)

type registerRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
	APIID    int    `json:"api_id"`
	APIHash  string `json:"api_hash"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Err(err).Msg("invalid JSON was passed")
		fail(w, r, service.ErrInvalidDataProvided)
		return
	}

	registeredUser, err := h.services.Auth.RegisterUser(ctx, req.Phone, req.Password, req.APIID, req.APIHash)
	if err != nil {
		fail(w, r, err)
		return
	}

	log.Info().Int64("id", registeredUser.UserID).Msg("user registered")
	ok(w, http.StatusCreated, "registered", map[string]any{"user_id": registeredUser.UserID})
}

type loginRequest struct {
	Phone        string `json:"phone_number"`
	Password     string `json:"password"`
	ForceNewCode bool   `json:"force_new_code,omitempty"`
}

// login verifies the platform password and triggers the Telegram send-code
// step (or reports a still-valid cached code).
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Err(err).Msg("invalid JSON was passed")
		fail(w, r, service.ErrInvalidDataProvided)
		return
	}

	user, err := h.services.Auth.Login(ctx, req.Phone, req.Password)
	if err != nil {
		fail(w, r, err)
		return
	}

	result, err := h.services.Telegram.SendLoginCode(ctx, user.Phone, req.ForceNewCode)
	if err != nil {
		fail(w, r, err)
		return
	}

	ok(w, http.StatusOK, result.Status, map[string]any{
		"cached":     result.Cached,
		"rate_limit": result.Counter,
	})
}

type verifyCodeRequest struct {
	Phone    string `json:"phone_number"`
	Code     string `json:"code"`
	Password string `json:"password,omitempty"`
}

// verifyCode completes sign-in (with optional 2FA password) and issues the
// platform JWT.
func (h *Handler) verifyCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	var req verifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Err(err).Msg("invalid JSON was passed")
		fail(w, r, service.ErrInvalidDataProvided)
		return
	}

	user, err := h.services.Telegram.VerifyLoginCode(ctx, req.Phone, req.Code, req.Password)
	if err != nil {
		fail(w, r, err)
		return
	}

	token, err := h.services.Auth.CreateToken(ctx, user)
	if err != nil {
		fail(w, r, err)
		return
	}

	ok(w, http.StatusOK, "authorized", models.LoginResult{
		SessionToken: token.SignedString,
		UserID:       user.UserID,
		Phone:        user.Phone,
	})
}

func (h *Handler) checkCachedCode(w http.ResponseWriter, r *http.Request) {
	phone := r.URL.Query().Get("phone")
	if phone == "" {
		fail(w, r, service.ErrInvalidDataProvided)
		return
	}

	status, err := h.services.Telegram.CheckCachedCode(r.Context(), phone)
	if err != nil {
		fail(w, r, err)
		return
	}

	ok(w, http.StatusOK, "", status)
}

type phoneRequest struct {
	Phone string `json:"phone_number"`
	Code  string `json:"code,omitempty"`
}

// useCachedCode completes a login with a previously verified code.
func (h *Handler) useCachedCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req phoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Phone == "" || req.Code == "" {
		fail(w, r, service.ErrInvalidDataProvided)
		return
	}

	user, err := h.services.Telegram.UseCachedCode(ctx, req.Phone, req.Code)
	if err != nil {
		fail(w, r, err)
		return
	}

	token, err := h.services.Auth.CreateToken(ctx, user)
	if err != nil {
		fail(w, r, err)
		return
	}

	ok(w, http.StatusOK, "authorized", models.LoginResult{
		SessionToken: token.SignedString,
		UserID:       user.UserID,
		Phone:        user.Phone,
	})
}

func (h *Handler) clearCachedCode(w http.ResponseWriter, r *http.Request) {
	var req phoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Phone == "" {
		fail(w, r, service.ErrInvalidDataProvided)
		return
	}

	if err := h.services.Telegram.ClearCachedCode(r.Context(), req.Phone); err != nil {
		fail(w, r, err)
		return
	}

	ok(w, http.StatusOK, "cleared", nil)
}

func (h *Handler) smsStatus(w http.ResponseWriter, r *http.Request) {
	phone := r.URL.Query().Get("phone")
	if phone == "" {
		fail(w, r, service.ErrInvalidDataProvided)
		return
	}

	status, err := h.services.Telegram.SMSStatus(r.Context(), phone)
	if err != nil {
		fail(w, r, err)
		return
	}

	ok(w, http.StatusOK, "", status)
}

// validateSession confirms the JWT subject still exists and is active.
func (h *Handler) validateSession(w http.ResponseWriter, r *http.Request) {
	userID, found := utils.GetUserIDFromContext(r.Context())
	if !found {
		fail(w, r, service.ErrTokenIsExpiredOrInvalid)
		return
	}

	if _, err := h.services.Auth.ValidateSession(r.Context(), userID); err != nil {
		fail(w, r, err)
		return
	}

	ok(w, http.StatusOK, "", map[string]any{"session_valid": true})
}

// reactivateSession rehydrates the stored Telegram session or requests a
// fresh login code.
func (h *Handler) reactivateSession(w http.ResponseWriter, r *http.Request) {
	userID, found := utils.GetUserIDFromContext(r.Context())
	if !found {
		fail(w, r, service.ErrTokenIsExpiredOrInvalid)
		return
	}

	result, err := h.services.Telegram.Reactivate(r.Context(), userID)
	if err != nil {
		fail(w, r, err)
		return
	}

	ok(w, http.StatusOK, result.Status, map[string]any{
		"rate_limit": result.Counter,
	})
}

type sessionCodeRequest struct {
	Code     string `json:"code"`
	Password string `json:"password,omitempty"`
}

func (h *Handler) verifySessionCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, found := utils.GetUserIDFromContext(ctx)
	if !found {
		fail(w, r, service.ErrTokenIsExpiredOrInvalid)
		return
	}

	var req sessionCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		fail(w, r, service.ErrInvalidDataProvided)
		return
	}

	if _, err := h.services.Telegram.VerifySessionCode(ctx, userID, req.Code, req.Password); err != nil {
		fail(w, r, err)
		return
	}

	ok(w, http.StatusOK, "authorized", nil)
}

type updateCredentialsRequest struct {
	APIID   int    `json:"api_id"`
	APIHash string `json:"api_hash"`
}

func (h *Handler) updateCredentials(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, found := utils.GetUserIDFromContext(ctx)
	if !found {
		fail(w, r, service.ErrTokenIsExpiredOrInvalid)
		return
	}

	var req updateCredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, r, service.ErrInvalidDataProvided)
		return
	}

	if err := h.services.Auth.UpdateCredentials(ctx, userID, req.APIID, req.APIHash); err != nil {
		fail(w, r, err)
		return
	}

	ok(w, http.StatusOK, "credentials updated", nil)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, found := utils.GetUserIDFromContext(ctx)
	if !found {
		fail(w, r, service.ErrTokenIsExpiredOrInvalid)
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, r, service.ErrInvalidDataProvided)
		return
	}

	if err := h.services.Auth.ChangePassword(ctx, userID, req.CurrentPassword, req.NewPassword); err != nil {
		fail(w, r, err)
		return
	}

	ok(w, http.StatusOK, "password changed", nil)
}
