// Package handler はミラーデーモンのHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/tzkeeper/internal/middleware"
	"github.com/hitoshi/tzkeeper/internal/notify"
	"github.com/hitoshi/tzkeeper/internal/store"
)

// StateSource はストア全体のスナップショットを返す。store.Hubが実装する。
type StateSource interface {
	Snapshot() store.State
}

// NotificationSource は表示待ちの通知を取り出す。notify.Queueが実装する。
type NotificationSource interface {
	Drain() []notify.Message
}

// Syncer はストアの即時再取得を行う。
type Syncer interface {
	RunOnce(ctx context.Context) error
}

// StateHandler は状態と通知を公開するHTTPハンドラー。
type StateHandler struct {
	state         StateSource
	notifications NotificationSource
	syncer        Syncer
}

// NewStateHandler はStateHandlerを生成する。
func NewStateHandler(state StateSource, notifications NotificationSource, syncer Syncer) *StateHandler {
	return &StateHandler{
		state:         state,
		notifications: notifications,
		syncer:        syncer,
	}
}

// notificationsResponse は通知取得のレスポンス。
type notificationsResponse struct {
	Notifications []notify.Message `json:"notifications"`
}

// GetState はGET /api/state を処理する。セッションのトークンは含めない。
func (h *StateHandler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.state.Snapshot())
}

// GetNotifications はGET /api/notifications を処理する。取り出した通知はキューから消える。
func (h *StateHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	msgs := h.notifications.Drain()
	if msgs == nil {
		msgs = []notify.Message{}
	}
	writeJSON(w, http.StatusOK, notificationsResponse{Notifications: msgs})
}

// TriggerSync はPOST /api/sync を処理する。同期完了後の状態を返す。
func (h *StateHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if h.syncer == nil {
		middleware.WriteErrorResponse(w, http.StatusNotImplemented, "sync is not available", "system")
		return
	}
	if err := h.syncer.RunOnce(r.Context()); err != nil {
		slog.Warn("manual sync failed",
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.state.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
