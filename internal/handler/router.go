package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/tzkeeper/internal/metrics"
	"github.com/hitoshi/tzkeeper/internal/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger        *slog.Logger
	HealthChecker HealthChecker
	State         StateSource
	Notifications NotificationSource
	Syncer        Syncer
	Gatherer      prometheus.Gatherer
}

// NewRouter はミラーデーモンの全エンドポイントを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → SecurityHeaders
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	r.Get("/health", NewHealthHandler(deps.HealthChecker, deps.State))

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	h := NewStateHandler(deps.State, deps.Notifications, deps.Syncer)
	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.GetState)
		r.Get("/notifications", h.GetNotifications)
		r.Post("/sync", h.TriggerSync)
	})

	return r
}
