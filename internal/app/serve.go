package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/tzkeeper/internal/handler"
	"github.com/hitoshi/tzkeeper/internal/worker/refresh"
)

// refreshTasks はミラーデーモンが定期的に再取得する処理を返す。
func (a *App) refreshTasks() []refresh.Task {
	return []refresh.Task{
		{Name: "timezones.own", Run: a.Hub.Timezones.FetchOwn},
		{Name: "timezones.catalog", Run: a.Hub.Timezones.FetchAll},
		{Name: "profile", Run: func(ctx context.Context) error {
			_, err := a.Hub.Profile.Fetch(ctx)
			return err
		}},
	}
}

// NewServer はミラーデーモンのHTTPサーバーとリフレッシュスケジューラを生成する。
func (a *App) NewServer() (*http.Server, *refresh.Scheduler) {
	scheduler := refresh.NewScheduler(a.refreshTasks(), a.Sessions, a.Logger, a.Config.SyncInterval)

	deps := &handler.RouterDeps{
		Logger:        a.Logger,
		State:         a.Hub,
		Notifications: a.Queue,
		Syncer:        scheduler,
		Gatherer:      a.Registry,
	}
	if a.db != nil {
		deps.HealthChecker = a.db
	}

	server := &http.Server{
		Addr:         ":" + a.Config.ServerPort,
		Handler:      handler.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server, scheduler
}

// Serve はミラーデーモンを起動し、ctxがキャンセルされるまでブロックする。
// キャンセル後はグレースフルシャットダウンを行う。
func (a *App) Serve(ctx context.Context) error {
	server, scheduler := a.NewServer()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go scheduler.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("mirror server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down mirror server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.Logger.Info("mirror server stopped gracefully")
	return nil
}
