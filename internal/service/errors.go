package service

import "errors"

// Sentinel errors returned by the service layer. Matched with [errors.Is]
// by the HTTP error mapper.
var (
	// ErrInvalidDataProvided is returned when a request fails basic
	// validation (missing fields, malformed phone, bad api_id).
	ErrInvalidDataProvided = errors.New("invalid data provided")

	// ErrInvalidPhone is returned when the phone is not in E.164 form.
	ErrInvalidPhone = errors.New("invalid phone number format")

	// ErrWrongPassword is returned when the platform password does not
	// match the stored hash.
	ErrWrongPassword = errors.New("wrong password")

	// ErrUserInactive is returned when a JWT subject resolves to a
	// deactivated account.
	ErrUserInactive = errors.New("user is not active")

	// ErrTokenIsExpiredOrInvalid is the normalized form of every JWT
	// validation failure.
	ErrTokenIsExpiredOrInvalid = errors.New("token is expired or invalid")

	// ErrTokenCreationFailed is returned when JWT signing fails.
	ErrTokenCreationFailed = errors.New("token creation failed")

	// ErrMissingCredentials is returned when a Telegram operation is
	// requested for a user who has not stored api_id/api_hash.
	ErrMissingCredentials = errors.New("api credentials not set")

	// ErrSMSLimitExceeded is returned when the per-phone send-code budget
	// for the current window is spent.
	ErrSMSLimitExceeded = errors.New("sms code limit exceeded")

	// ErrNoCachedCode is returned by use-cached-code when no still-valid
	// verified code exists for the phone.
	ErrNoCachedCode = errors.New("no cached code available")

	// ErrCachedCodeMismatch is returned by use-cached-code when the
	// supplied code differs from the cached one.
	ErrCachedCodeMismatch = errors.New("cached code mismatch")

	// ErrRedirectAlreadyConfigured is returned when a second redirect
	// elaboration is requested for one listener.
	ErrRedirectAlreadyConfigured = errors.New("listener already has a redirect")
)
