// Package refresh はミラーデーモンのバックグラウンド再取得処理を提供する。
// 一定間隔でストアを最新化し、上流の障害時は指数バックオフで間隔を空ける。
package refresh

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/tzkeeper/internal/auth"
	"github.com/hitoshi/tzkeeper/internal/model"
)

// Task は1サイクルで実行する再取得処理。
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler はTaskを定期的に並列実行する。
// 未ログインの間はサイクルをスキップし、回復しうる障害が続く間は実行を間引く。
type Scheduler struct {
	tasks    []Task
	sessions auth.SessionSource
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time

	mu                sync.Mutex
	consecutiveErrors int
	nextRunAt         time.Time
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// intervalが0以下の場合はデフォルト値1分を使用する。
func NewScheduler(tasks []Task, sessions auth.SessionSource, logger *slog.Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		tasks:    tasks,
		sessions: sessions,
		logger:   logger,
		interval: interval,
		now:      time.Now,
	}
}

// Start はintervalごとのティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("refresh scheduler started",
		slog.Duration("interval", s.interval),
		slog.Int("task_count", len(s.tasks)),
	)

	// 起動直後に1回実行
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("refresh scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if wait := s.backoffRemaining(); wait > 0 {
		s.logger.Debug("refresh cycle deferred by backoff",
			slog.Duration("remaining", wait),
		)
		return
	}
	if err := s.RunOnce(ctx); err != nil && !errors.Is(err, model.ErrNotAuthenticated) {
		s.logger.Error("refresh cycle failed",
			slog.String("error", err.Error()),
		)
	}
}

// RunOnce は全Taskを1回ずつ並列に実行し、完了を待つ。
// 未ログインの場合は何もせずmodel.ErrNotAuthenticatedを返す。
// 失敗したTaskのエラーはまとめて返す。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if s.sessions == nil {
		return model.ErrNotAuthenticated
	}
	if _, ok := s.sessions.Current(); !ok {
		s.logger.Info("refresh skipped: not authenticated")
		return model.ErrNotAuthenticated
	}

	start := s.now()
	errs := make([]error, len(s.tasks))
	var wg sync.WaitGroup
	for i, task := range s.tasks {
		wg.Add(1)
		go func(i int, task Task) {
			defer wg.Done()
			if err := task.Run(ctx); err != nil {
				s.logger.Warn("refresh task failed",
					slog.String("task", task.Name),
					slog.String("error", err.Error()),
				)
				errs[i] = err
			}
		}(i, task)
	}
	wg.Wait()

	err := errors.Join(errs...)
	s.record(classifyAll(errs))

	s.logger.Info("refresh cycle completed",
		slog.Int("task_count", len(s.tasks)),
		slog.Bool("ok", err == nil),
		slog.Float64("duration_ms", float64(s.now().Sub(start).Milliseconds())),
	)
	return err
}

// classifyAll は複数のエラーのうち最も重い分類を返す。
func classifyAll(errs []error) CycleResult {
	result := CycleResultOK
	for _, err := range errs {
		switch r := ClassifyError(err); r {
		case CycleResultBackoff:
			return r
		case CycleResultStop, CycleResultFailed, CycleResultSkipped:
			if result == CycleResultOK {
				result = r
			}
		}
	}
	return result
}

func (s *Scheduler) record(result CycleResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if result != CycleResultBackoff {
		s.consecutiveErrors = 0
		s.nextRunAt = time.Time{}
		return
	}

	delay := CalculateBackoff(s.interval, s.consecutiveErrors)
	s.consecutiveErrors++
	s.nextRunAt = s.now().Add(delay)
	s.logger.Warn("upstream unavailable, backing off",
		slog.Int("consecutive_errors", s.consecutiveErrors),
		slog.Duration("delay", delay),
	)
}

func (s *Scheduler) backoffRemaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nextRunAt.IsZero() {
		return 0
	}
	return s.nextRunAt.Sub(s.now())
}
