package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(h.withTraceID)
	router.Use(h.withLogging)

	// observability, no auth
	router.Get("/health", h.health)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/api/metrics/login-performance", h.loginPerformance)

	// routes without authorization
	router.Group(func(r chi.Router) {
		r.Post("/api/auth/register", h.register)
		r.Post("/api/auth/login", h.login)
		r.Post("/api/auth/verify-code", h.verifyCode)
		r.Get("/api/auth/check-cached-code", h.checkCachedCode)
		r.Post("/api/auth/use-cached-code", h.useCachedCode)
		r.Post("/api/auth/clear-cached-code", h.clearCachedCode)
		r.Get("/api/auth/sms-status", h.smsStatus)
	})

	// routes behind JWT auth
	router.Group(func(r chi.Router) {
		r.Use(h.auth)

		r.Get("/api/auth/validate-session", h.validateSession)
		r.Post("/api/auth/reactivate-session", h.reactivateSession)
		r.Post("/api/auth/verify-session-code", h.verifySessionCode)
		r.Put("/api/auth/update-credentials", h.updateCredentials)
		r.Post("/api/auth/change-password", h.changePassword)

		r.Get("/api/user/profile", h.getProfile)
		r.Put("/api/user/profile", h.updateProfile)

		r.Get("/api/telegram/get-chats", h.getChats)

		r.Get("/api/logging/sessions", h.listLoggingSessions)
		r.Post("/api/logging/sessions", h.startLogging)
		r.Post("/api/logging/sessions/{id}/stop", h.stopLogging)
		r.Delete("/api/logging/sessions/{id}", h.deleteLogging)
		r.Get("/api/logging/messages/{session_id}", h.loggingMessages)
		r.Get("/api/logging/chat/{chat_id}/status", h.chatLoggingStatus)

		r.Get("/api/listeners", h.listListeners)
		r.Post("/api/listeners", h.startListener)
		r.Get("/api/listeners/{id}", h.getListener)
		r.Post("/api/listeners/{id}/stop", h.stopListener)
		r.Post("/api/listeners/{id}/restart", h.restartListener)
		r.Delete("/api/listeners/{id}", h.deleteListener)
		r.Get("/api/listeners/{id}/elaborations", h.listElaborations)
		r.Post("/api/listeners/{id}/elaborations", h.addElaboration)
		r.Put("/api/listeners/{id}/elaborations/{eid}", h.updateElaboration)
		r.Delete("/api/listeners/{id}/elaborations/{eid}", h.deleteElaboration)
		r.Get("/api/listeners/{id}/messages", h.listenerMessages)
		r.Post("/api/listeners/cleanup-orphaned", h.cleanupOrphaned)
	})

	return router
}
