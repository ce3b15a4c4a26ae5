package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/solanagram/solanagram/internal/bridge"
	"github.com/solanagram/solanagram/internal/crypto"
	"github.com/solanagram/solanagram/internal/logger"
	"github.com/solanagram/solanagram/internal/metrics"
	"github.com/solanagram/solanagram/internal/session"
	"github.com/solanagram/solanagram/internal/store"
	"github.com/solanagram/solanagram/internal/telegram"
	"github.com/solanagram/solanagram/models"
)

// Send-code outcome statuses surfaced to the frontend.
const (
	StatusCodeSent            = "code_sent"
	StatusCachedCodeAvailable = "cached_code_available"
	StatusAuthorized          = "authorized"
)

// SendCodeResult is the outcome of a send-code operation.
type SendCodeResult struct {
	Status  string
	Cached  bool
	Counter models.SMSCounterStatus
}

// ReactivateResult is the outcome of a session-reactivation attempt.
type ReactivateResult struct {
	Status string
	SendCodeResult
}

// telegramService implements the auth-flow state machine (send-code /
// verify-code / 2FA / reactivate) and dialog browsing over the bridge.
// All client interaction happens inside bridge operations while holding the
// phone's single-flight lock, so transitions for one phone are strictly
// serialized.
type telegramService struct {
	users   store.UserRepository
	cipher  *crypto.Cipher
	manager *session.Manager
	bridge  *bridge.Bridge
	codes   session.CodeCache
	sms     session.SMSCounter
	metrics *metrics.LoginMetrics

	callTimeout time.Duration
	logger      *logger.Logger
}

// NewTelegramService wires the Telegram auth-flow service.
func NewTelegramService(users store.UserRepository, cipher *crypto.Cipher, manager *session.Manager, b *bridge.Bridge,
	codes session.CodeCache, sms session.SMSCounter, m *metrics.LoginMetrics, callTimeout time.Duration, log *logger.Logger) TelegramService {
	return &telegramService{
		users:       users,
		cipher:      cipher,
		manager:     manager,
		bridge:      b,
		codes:       codes,
		sms:         sms,
		metrics:     m,
		callTimeout: callTimeout,
		logger:      log,
	}
}

// requireCredentials loads the account and checks api credentials presence.
func (s *telegramService) requireCredentials(ctx context.Context, phone string) (models.User, error) {
	user, err := s.users.FindUserByPhone(ctx, phone)
	if err != nil {
		return models.User{}, err
	}
	if !user.HasAPICredentials() {
		return models.User{}, ErrMissingCredentials
	}
	return user, nil
}

// SendLoginCode implements the send_code operation of the auth state
// machine. A still-valid pending code short-circuits without touching
// Telegram unless forceNew is set.
func (s *telegramService) SendLoginCode(ctx context.Context, phone string, forceNew bool) (SendCodeResult, error) {
	log := logger.FromContext(ctx)
	started := time.Now()

	if _, err := s.requireCredentials(ctx, phone); err != nil {
		return SendCodeResult{}, err
	}

	if forceNew {
		_ = s.codes.Delete(ctx, phone)
	} else if pending, ok, err := s.codes.Get(ctx, phone); err == nil && ok && pending.CodeHash != "" {
		counter, _ := s.sms.Status(ctx, phone)
		log.Debug().Str("phone", phone).Msg("reusing pending code, telegram not called")
		return SendCodeResult{Status: StatusCachedCodeAvailable, Cached: true, Counter: counter}, nil
	}

	counter, err := s.sms.Status(ctx, phone)
	if err == nil && counter.Remaining == 0 {
		return SendCodeResult{Counter: counter}, ErrSMSLimitExceeded
	}

	result, err := s.bridge.Run(ctx, func(ctx context.Context) (any, error) {
		unlock := s.manager.Registry().Lock(phone)
		defer unlock()

		sent, err := s.sendCodeOnce(ctx, phone)
		if telegram.IsRetryable(err) {
			// Transport drop mid-send: evict the half-open client and retry
			// exactly once.
			s.manager.Evict(phone)
			sent, err = s.sendCodeOnce(ctx, phone)
		}
		if err != nil {
			return nil, err
		}
		return sent, nil
	})
	if err != nil {
		s.metrics.ObserveLogin(time.Since(started), false)
		if fw, ok := telegram.AsFloodWait(err); ok {
			s.metrics.ObserveFloodWait()
			_ = s.sms.SyncFloodWait(ctx, phone, time.Duration(fw.Seconds)*time.Second)
		}
		if errors.Is(err, bridge.ErrSystemBusy) {
			s.metrics.ObserveBridgeRejected()
		}
		return SendCodeResult{}, err
	}

	sent := result.(telegram.SentCode)
	expiry := session.PendingCodeTTL
	if sent.Timeout > 0 && time.Duration(sent.Timeout)*time.Second < expiry {
		expiry = time.Duration(sent.Timeout) * time.Second
	}
	if err := s.codes.Put(ctx, &session.PendingCode{
		Phone:     phone,
		CodeHash:  sent.PhoneCodeHash,
		ExpiresAt: time.Now().Add(expiry),
	}); err != nil {
		log.Warn().Err(err).Msg("pending code cache write failed")
	}

	counter, _ = s.sms.Increment(ctx, phone)
	s.metrics.ObserveLogin(time.Since(started), true)

	return SendCodeResult{Status: StatusCodeSent, Counter: counter}, nil
}

func (s *telegramService) sendCodeOnce(ctx context.Context, phone string) (telegram.SentCode, error) {
	handle, err := s.manager.EnsureConnectedLocked(ctx, phone)
	if err != nil {
		return telegram.SentCode{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	return handle.Client.SendCode(callCtx, phone)
}

// VerifyLoginCode implements the verify_code operation, including the 2FA
// branch and the cached-code fast path. On success the exported session blob
// is wrapped and persisted, and the entered code is kept for reuse within
// the cached-code window.
func (s *telegramService) VerifyLoginCode(ctx context.Context, phone, code, password string) (models.User, error) {
	log := logger.FromContext(ctx)
	started := time.Now()

	if phone == "" || code == "" {
		return models.User{}, ErrInvalidDataProvided
	}

	user, err := s.requireCredentials(ctx, phone)
	if err != nil {
		return models.User{}, err
	}

	pending, ok, err := s.codes.Get(ctx, phone)
	if err != nil || !ok {
		return models.User{}, telegram.ErrCodeExpired
	}

	// Fast path: the code was already verified once and the session is
	// still stored; complete login locally without touching Telegram.
	if pending.Code != "" && pending.Code == code && user.HasTelegramSession() {
		s.metrics.ObserveLogin(time.Since(started), true)
		s.markLogin(ctx, user.UserID)
		return user, nil
	}

	_, err = s.bridge.Run(ctx, func(ctx context.Context) (any, error) {
		unlock := s.manager.Registry().Lock(phone)
		defer unlock()

		handle, err := s.manager.EnsureConnectedLocked(ctx, phone)
		if err != nil {
			return nil, err
		}

		callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
		defer cancel()

		signErr := handle.Client.SignIn(callCtx, phone, code, pending.CodeHash)
		if errors.Is(signErr, telegram.ErrNeeds2FA) {
			if password == "" {
				return nil, telegram.ErrNeeds2FA
			}
			signErr = handle.Client.SignInPassword(callCtx, password)
		}
		if signErr != nil {
			return nil, signErr
		}

		blob, err := handle.Client.ExportSession()
		if err != nil {
			return nil, err
		}
		wrapped, err := s.cipher.Wrap(blob)
		if err != nil {
			return nil, err
		}
		if err := s.users.UpdateTelegramSession(ctx, user.UserID, wrapped); err != nil {
			return nil, err
		}

		handle.Authorized = true
		return nil, nil
	})
	if err != nil {
		s.metrics.ObserveLogin(time.Since(started), false)
		switch {
		case errors.Is(err, telegram.ErrCodeInvalid):
			pending.Attempts++
			_ = s.codes.Put(ctx, pending)
		case errors.Is(err, telegram.ErrCodeExpired):
			_ = s.codes.Delete(ctx, phone)
		}
		if fw, ok := telegram.AsFloodWait(err); ok {
			s.metrics.ObserveFloodWait()
			_ = s.sms.SyncFloodWait(ctx, phone, time.Duration(fw.Seconds)*time.Second)
		}
		return models.User{}, err
	}

	// Keep the verified code for reuse within the cached-code window.
	if err := s.codes.Put(ctx, &session.PendingCode{
		Phone:     phone,
		CodeHash:  pending.CodeHash,
		Code:      code,
		ExpiresAt: time.Now().Add(session.CachedCodeTTL),
	}); err != nil {
		log.Warn().Err(err).Msg("cached code write failed")
	}

	s.metrics.ObserveLogin(time.Since(started), true)
	s.markLogin(ctx, user.UserID)
	return user, nil
}

func (s *telegramService) markLogin(ctx context.Context, userID int64) {
	if err := s.users.UpdateLastLogin(ctx, userID); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Int64("user_id", userID).Msg("last_login update failed")
	}
}

// CheckCachedCode reports whether a still-valid verified code exists.
func (s *telegramService) CheckCachedCode(ctx context.Context, phone string) (models.CachedCodeStatus, error) {
	pending, ok, err := s.codes.Get(ctx, phone)
	if err != nil {
		return models.CachedCodeStatus{}, err
	}
	if !ok || pending.Code == "" {
		return models.CachedCodeStatus{HasCachedCode: false}, nil
	}

	return models.CachedCodeStatus{
		HasCachedCode: true,
		CachedCode:    pending.Code,
		ExpiresIn:     int(time.Until(pending.ExpiresAt).Seconds()),
	}, nil
}

// UseCachedCode completes a login with a previously verified code without a
// Telegram round trip.
func (s *telegramService) UseCachedCode(ctx context.Context, phone, code string) (models.User, error) {
	user, err := s.requireCredentials(ctx, phone)
	if err != nil {
		return models.User{}, err
	}

	pending, ok, err := s.codes.Get(ctx, phone)
	if err != nil || !ok || pending.Code == "" || !user.HasTelegramSession() {
		return models.User{}, ErrNoCachedCode
	}
	if pending.Code != code {
		return models.User{}, ErrCachedCodeMismatch
	}

	s.markLogin(ctx, user.UserID)
	return user, nil
}

// ClearCachedCode invalidates the pending/cached code for phone.
func (s *telegramService) ClearCachedCode(ctx context.Context, phone string) error {
	return s.codes.Delete(ctx, phone)
}

// SMSStatus reports the per-phone send-code budget.
func (s *telegramService) SMSStatus(ctx context.Context, phone string) (models.SMSCounterStatus, error) {
	return s.sms.Status(ctx, phone)
}

// Reactivate rehydrates the user's stored session. If the who-am-I probe
// confirms authorization the flow ends immediately; otherwise a fresh code
// is requested.
func (s *telegramService) Reactivate(ctx context.Context, userID int64) (ReactivateResult, error) {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		return ReactivateResult{}, err
	}
	if !user.HasAPICredentials() {
		return ReactivateResult{}, ErrMissingCredentials
	}

	result, err := s.bridge.Run(ctx, func(ctx context.Context) (any, error) {
		unlock := s.manager.Registry().Lock(user.Phone)
		defer unlock()

		handle, err := s.manager.EnsureConnectedLocked(ctx, user.Phone)
		if err != nil {
			return nil, err
		}
		return handle.Authorized, nil
	})
	if err != nil {
		return ReactivateResult{}, err
	}

	if authorized := result.(bool); authorized {
		return ReactivateResult{Status: StatusAuthorized}, nil
	}

	// Stored blob no longer authorizes: fall back to a fresh code.
	sendResult, err := s.SendLoginCode(ctx, user.Phone, true)
	if err != nil {
		return ReactivateResult{}, err
	}
	return ReactivateResult{Status: sendResult.Status, SendCodeResult: sendResult}, nil
}

// VerifySessionCode completes a reactivation for the JWT subject.
func (s *telegramService) VerifySessionCode(ctx context.Context, userID int64, code, password string) (models.User, error) {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		return models.User{}, err
	}
	return s.VerifyLoginCode(ctx, user.Phone, code, password)
}

// GetChats returns the caller's dialog list. An AUTH_KEY_UNREGISTERED class
// failure clears the stored session blob and evicts the cached client, so
// the caller sees TELEGRAM_SESSION_EXPIRED and can re-authenticate.
func (s *telegramService) GetChats(ctx context.Context, userID int64) ([]models.Chat, error) {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.HasAPICredentials() {
		return nil, ErrMissingCredentials
	}

	result, err := s.bridge.Run(ctx, func(ctx context.Context) (any, error) {
		unlock := s.manager.Registry().Lock(user.Phone)
		defer unlock()

		chats, err := s.dialogsOnce(ctx, user.Phone)
		if telegram.IsRetryable(err) {
			s.manager.Evict(user.Phone)
			chats, err = s.dialogsOnce(ctx, user.Phone)
		}
		if err != nil {
			return nil, err
		}
		return chats, nil
	})
	if err != nil {
		if errors.Is(err, telegram.ErrAuthorizationLost) {
			if clearErr := s.users.ClearTelegramSession(ctx, userID); clearErr != nil {
				s.logger.Error().Err(clearErr).Int64("user_id", userID).Msg("session blob clear failed")
			}
			s.manager.Evict(user.Phone)
		}
		return nil, err
	}

	chats, ok := result.([]models.Chat)
	if !ok {
		return nil, fmt.Errorf("unexpected dialogs result type %T", result)
	}
	return chats, nil
}

func (s *telegramService) dialogsOnce(ctx context.Context, phone string) ([]models.Chat, error) {
	handle, err := s.manager.EnsureConnectedLocked(ctx, phone)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	return handle.Client.Dialogs(callCtx, 100)
}

// ResolveChat resolves one chat from the caller's dialog list, used by the
// logging/listener start flows to fill chat metadata.
func (s *telegramService) ResolveChat(ctx context.Context, userID, chatID int64) (models.Chat, error) {
	chats, err := s.GetChats(ctx, userID)
	if err != nil {
		return models.Chat{}, err
	}
	for _, chat := range chats {
		if chat.ID == chatID {
			return chat, nil
		}
	}
	return models.Chat{}, ErrInvalidDataProvided
}
