package http

import (
	"errors"
	"net/http"

	"github.com/solanagram/solanagram/internal/app"
	"github.com/solanagram/solanagram/internal/bridge"
	"github.com/solanagram/solanagram/internal/service"
	"github.com/solanagram/solanagram/internal/store"
	"github.com/solanagram/solanagram/internal/supervisor"
	"github.com/solanagram/solanagram/internal/telegram"
	"github.com/solanagram/solanagram/models"
)

// errorMapping pairs the HTTP status with the localized message and the
// stable error code of the §7 taxonomy.
type errorMapping struct {
	status  int
	message string
	code    string
}

var errorStatusMap = map[error]errorMapping{
	ErrEmptyAuthorizationHeader:   {http.StatusUnauthorized, app.MsgTokenInvalid, ""},
	ErrInvalidAuthorizationHeader: {http.StatusUnauthorized, app.MsgTokenInvalid, ""},
	ErrEmptyToken:                 {http.StatusUnauthorized, app.MsgTokenInvalid, ""},

	service.ErrInvalidDataProvided:     {http.StatusBadRequest, app.MsgRequiredFields, ""},
	service.ErrInvalidPhone:            {http.StatusBadRequest, app.MsgInvalidPhone, ""},
	service.ErrWrongPassword:           {http.StatusUnauthorized, app.MsgInvalidCredentials, ""},
	service.ErrUserInactive:            {http.StatusUnauthorized, app.MsgInvalidCredentials, ""},
	service.ErrTokenIsExpiredOrInvalid: {http.StatusUnauthorized, app.MsgTokenInvalid, ""},
	service.ErrMissingCredentials:      {http.StatusBadRequest, app.MsgAPICredentialsNotSet, models.ErrCodeCredentialsNotSet},
	service.ErrSMSLimitExceeded:        {http.StatusTooManyRequests, app.MsgSMSLimitExceeded, models.ErrCodeSMSLimitExceeded},
	service.ErrNoCachedCode:            {http.StatusNotFound, app.MsgNoCachedCode, ""},
	service.ErrCachedCodeMismatch:      {http.StatusUnauthorized, app.MsgVerificationCodeInvalid, models.ErrCodeCodeInvalid},
	service.ErrRedirectAlreadyConfigured: {
		http.StatusConflict, app.MsgRedirectExists, ""},

	telegram.ErrCodeInvalid:        {http.StatusUnauthorized, app.MsgVerificationCodeInvalid, models.ErrCodeCodeInvalid},
	telegram.ErrCodeExpired:        {http.StatusUnauthorized, app.MsgVerificationExpired, models.ErrCodeCodeExpired},
	telegram.ErrNeeds2FA:           {http.StatusUnauthorized, app.MsgPassword2FARequired, models.ErrCodeNeeds2FA},
	telegram.ErrPasswordInvalid:    {http.StatusUnauthorized, app.MsgPassword2FAInvalid, models.ErrCodePasswordInvalid},
	telegram.ErrAuthorizationLost:  {http.StatusUnauthorized, app.MsgSessionExpired, models.ErrCodeSessionExpired},
	telegram.ErrCredentialsInvalid: {http.StatusBadRequest, app.MsgAPICredentialsInvalid, models.ErrCodeCredentialsInvalid},
	telegram.ErrConnectUnavailable: {http.StatusServiceUnavailable, app.MsgConnectUnavailable, models.ErrCodeConnectUnavailable},

	bridge.ErrSystemBusy: {http.StatusServiceUnavailable, app.MsgSystemBusy, models.ErrCodeSystemBusy},
	bridge.ErrTimeout:    {http.StatusServiceUnavailable, app.MsgConnectUnavailable, models.ErrCodeConnectUnavailable},

	store.ErrPhoneAlreadyExists:    {http.StatusConflict, app.MsgPhoneExists, ""},
	store.ErrNoUserWasFound:        {http.StatusNotFound, app.MsgNotFound, ""},
	store.ErrSessionAlreadyActive:  {http.StatusConflict, app.MsgAlreadyActive, models.ErrCodeAlreadyActive},
	store.ErrSessionNotFound:       {http.StatusNotFound, app.MsgNotFound, ""},
	store.ErrListenerAlreadyExists: {http.StatusConflict, app.MsgListenerExists, models.ErrCodeAlreadyActive},
	store.ErrListenerNotFound:      {http.StatusNotFound, app.MsgNotFound, ""},
	store.ErrElaborationExists:     {http.StatusConflict, app.MsgRedirectExists, ""},
	store.ErrElaborationNotFound:   {http.StatusNotFound, app.MsgNotFound, ""},
	store.ErrRedirectExists:        {http.StatusConflict, app.MsgRedirectExists, ""},

	supervisor.ErrContainerLaunchFailed: {http.StatusInternalServerError, app.MsgContainerLaunchFailed, ""},
	supervisor.ErrMissingCredentials:    {http.StatusBadRequest, app.MsgAPICredentialsNotSet, models.ErrCodeCredentialsNotSet},
	supervisor.ErrNoTelegramSession:     {http.StatusUnauthorized, app.MsgSessionExpired, models.ErrCodeSessionExpired},
}

// mapError resolves err to its HTTP mapping. Flood waits carry their
// retry-after seconds; unknown errors collapse to an opaque 500.
func mapError(err error) (errorMapping, int) {
	if fw, ok := telegram.AsFloodWait(err); ok {
		return errorMapping{http.StatusTooManyRequests, app.MsgFloodWait, models.ErrCodeFloodWait}, fw.Seconds
	}

	for target, mapping := range errorStatusMap {
		if errors.Is(err, target) {
			return mapping, 0
		}
	}

	return errorMapping{http.StatusInternalServerError, app.MsgUnexpectedError, ""}, 0
}
