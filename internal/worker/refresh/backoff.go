package refresh

import (
	"errors"
	"net/http"
	"time"

	"github.com/hitoshi/tzkeeper/internal/model"
)

// CycleResult はリフレッシュ1サイクルの結果の分類。
type CycleResult int

const (
	// CycleResultOK は全タスク成功。
	CycleResultOK CycleResult = iota
	// CycleResultSkipped は未ログインのため実行しなかった。
	CycleResultSkipped
	// CycleResultStop はセッション失効など再ログインまで再試行しても無駄なエラー。
	CycleResultStop
	// CycleResultBackoff はネットワーク障害や429/5xxなど時間を置けば回復しうるエラー。
	CycleResultBackoff
	// CycleResultFailed はその他のエラー。次のサイクルで通常どおり再試行する。
	CycleResultFailed
)

// maxBackoff は指数バックオフの最大遅延。
const maxBackoff = 30 * time.Minute

// ClassifyError はストア操作のエラーをサイクル結果に分類する。
func ClassifyError(err error) CycleResult {
	var netErr *model.NetworkError
	var httpErr *model.HTTPError
	switch {
	case err == nil:
		return CycleResultOK
	case errors.Is(err, model.ErrNotAuthenticated):
		return CycleResultSkipped
	case errors.Is(err, model.ErrAuthExpired):
		return CycleResultStop
	case errors.As(err, &netErr):
		return CycleResultBackoff
	case errors.As(err, &httpErr):
		if httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500 {
			return CycleResultBackoff
		}
		return CycleResultFailed
	default:
		return CycleResultFailed
	}
}

// CalculateBackoff は連続エラー回数に基づいて次回実行までの遅延を計算する。
// 初回はinterval、2倍ずつ増加し、maxBackoffで頭打ちになる。
func CalculateBackoff(interval time.Duration, consecutiveErrors int) time.Duration {
	delay := interval
	if delay > maxBackoff {
		return maxBackoff
	}
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
