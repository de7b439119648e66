package handler

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker は依存先の疎通確認を行う。*sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// healthResponse はヘルスチェックのレスポンス。
type healthResponse struct {
	Status        string `json:"status"`
	Authenticated bool   `json:"authenticated"`
}

// NewHealthHandler はGET /health のハンドラーを返す。
// checkerがnilでなければ疎通確認を行い、失敗時は503を返す。
func NewHealthHandler(checker HealthChecker, state StateSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
				return
			}
		}

		resp := healthResponse{Status: "ok"}
		if state != nil {
			resp.Authenticated = state.Snapshot().Session.Authenticated
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
