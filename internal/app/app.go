package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/tzkeeper/internal/apiclient"
	"github.com/hitoshi/tzkeeper/internal/auth"
	"github.com/hitoshi/tzkeeper/internal/config"
	"github.com/hitoshi/tzkeeper/internal/database"
	"github.com/hitoshi/tzkeeper/internal/logger"
	"github.com/hitoshi/tzkeeper/internal/metrics"
	"github.com/hitoshi/tzkeeper/internal/navigation"
	"github.com/hitoshi/tzkeeper/internal/notify"
	"github.com/hitoshi/tzkeeper/internal/repository"
	"github.com/hitoshi/tzkeeper/internal/security"
	"github.com/hitoshi/tzkeeper/internal/session"
	"github.com/hitoshi/tzkeeper/internal/store"
	"github.com/prometheus/client_golang/prometheus"
)

// App はクライアントの全依存関係をワイヤリングした結果を保持する。
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Sessions *session.Store
	History  *navigation.History
	Queue    *notify.Queue
	Hub      *store.Hub

	Users     *apiclient.UserClient
	Timezones *apiclient.TimezoneClient

	Registry *prometheus.Registry

	// db はSESSION_BACKEND=postgres の場合のみ設定される。
	db *sql.DB
}

// Init はアプリケーションの初期化を行う。
// 環境変数（とCONFIG_FILE）からConfigを読み込み、JSON構造化ログをセットアップする。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, "info")

	// 2. 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたレベルでロガーを作り直す
	return cfg, logger.SetupDefault(w, cfg.LogLevel), nil
}

// Build はConfigから全コンポーネントを生成し、永続化済みのセッションを復元する。
func Build(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{Config: cfg, Logger: log}

	// 1. セッションの保存先
	persister, err := a.openPersister(ctx)
	if err != nil {
		return nil, err
	}

	// 2. 画面遷移と通知
	a.History = navigation.NewHistory(navigation.RouteLanding)
	a.Queue = notify.NewQueue()
	a.Sessions = session.NewStore(persister, a.History, log)

	// 3. メトリクス
	a.Registry = prometheus.NewRegistry()
	collector := metrics.NewCollector(a.Registry)

	// 4. APIクライアント
	httpClient, err := security.NewHTTPClient(security.HTTPClientOptions{
		Timeout:              cfg.APITimeout,
		BlockPrivateNetworks: cfg.APIBlockPrivateNetworks,
		BaseURL:              cfg.APIBaseURL,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create http client: %w", err)
	}
	// 401時はAccountStore経由で各ストアも初期化する。ストア生成後に差し替える。
	terminator := &expiryRelay{target: a.Sessions}
	client, err := apiclient.NewClient(cfg.APIBaseURL, httpClient, log,
		apiclient.WithHeaderSource(auth.NewHeaderProvider(a.Sessions)),
		apiclient.WithSessionTerminator(terminator),
		apiclient.WithRateLimit(cfg.APIRateLimit, cfg.APIRateBurst),
		apiclient.WithMetrics(collector),
		apiclient.WithSanitizer(security.NewMessageSanitizer()),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create api client: %w", err)
	}
	a.Users = apiclient.NewUserClient(client)
	a.Timezones = apiclient.NewTimezoneClient(client)

	// 5. ストア
	effects := store.NewCoordinator(a.History, a.Queue)
	timezones := store.NewTimezoneStore(a.Timezones, a.Sessions, effects, collector, log)
	profile := store.NewProfileStore(a.Users, a.Sessions, effects, collector, log)
	directory := store.NewDirectoryStore(a.Users, effects, collector, log)
	account := store.NewAccountStore(a.Users, a.Sessions, effects, collector, log,
		timezones, profile, directory)
	terminator.target = account

	a.Hub = &store.Hub{
		Sessions:  a.Sessions,
		Account:   account,
		Timezones: timezones,
		Profile:   profile,
		Users:     directory,
	}

	// 6. 前回のセッションを復元
	if err := a.Sessions.Restore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func (a *App) openPersister(ctx context.Context) (session.Persister, error) {
	cfg := a.Config
	if cfg.SessionBackend != config.SessionBackendPostgres {
		return session.NewFilePersister(cfg.SessionFile, cfg.SessionKey), nil
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.Logger.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	a.db = db
	return repository.NewPostgresSessionRepo(db, cfg.SessionKey), nil
}

// Close は保持しているリソースを解放する。
func (a *App) Close() {
	if a.db != nil {
		a.db.Close()
		a.db = nil
	}
}

// FlushNotifications は表示待ちの通知を取り出してwに書き出す。
func (a *App) FlushNotifications(w io.Writer) {
	for _, msg := range a.Queue.Drain() {
		prefix := "OK"
		if msg.Level == notify.LevelError {
			prefix = "ERROR"
		}
		fmt.Fprintf(w, "%s: %s\n", prefix, msg.Text)
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for migrate")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}

// expiryRelay はAPIクライアントからの自動ログアウトを現在の破棄先へ渡す。
type expiryRelay struct {
	target apiclient.SessionTerminator
}

func (r *expiryRelay) Expire(ctx context.Context) {
	r.target.Expire(ctx)
}
