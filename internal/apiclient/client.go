// Package apiclient はタイムゾーン管理APIの型付きクライアントを提供する。
//
// 全リクエストは同じ応答解釈ポリシーに従う。
//   - 2xx: 空でないボディをJSONとして解析して返す
//   - 2xx以外: サーバーのmessageフィールド、なければステータステキストを持つ *model.HTTPError
//   - 認証付きリクエストへの401: 自動ログアウトを実行してからエラーを返す（呼び出し単位で無効化可能）
//   - レスポンスを受信できない場合: *model.NetworkError
//   - 2xxのボディがJSONでない場合: *model.ParseError
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/tzkeeper/internal/model"
	"golang.org/x/time/rate"
)

// HeaderRequestID はリクエスト追跡用のヘッダー名。
const HeaderRequestID = "X-Request-ID"

// maxBodySize はレスポンスボディの読み取り上限。
const maxBodySize = 1 << 20

// HeaderSource は認証付きリクエストに付与するヘッダーを返す。
type HeaderSource interface {
	Headers() map[string]string
}

// SessionTerminator は401応答時にセッションを破棄する。
type SessionTerminator interface {
	Expire(ctx context.Context)
}

// MessageSanitizer はサーバーから受け取ったメッセージを表示用に整形する。
type MessageSanitizer interface {
	SanitizeMessage(raw string) string
}

// MetricsRecorder はリクエスト結果を記録する。
type MetricsRecorder interface {
	RecordRequest(operation string, statusCode int, duration time.Duration)
	RecordNetworkError(operation string)
	RecordAutoLogout()
}

// Client はAPIリクエストの送信と応答解釈を担う。
// UserClientとTimezoneClientはこれを共有する。
type Client struct {
	httpClient   *http.Client
	logger       *slog.Logger
	baseURL      string
	headers      HeaderSource
	terminator   SessionTerminator
	limiter      *rate.Limiter
	metrics      MetricsRecorder
	sanitizer    MessageSanitizer
	newRequestID func() string
}

// Option はClientの任意設定。
type Option func(*Client)

// WithHeaderSource は認証ヘッダーの取得元を設定する。
func WithHeaderSource(h HeaderSource) Option {
	return func(c *Client) { c.headers = h }
}

// WithSessionTerminator は401応答時に呼ばれるセッション破棄処理を設定する。
func WithSessionTerminator(t SessionTerminator) Option {
	return func(c *Client) { c.terminator = t }
}

// WithRateLimit は毎秒rリクエスト、バーストburstのクライアント側スロットリングを有効にする。
// rが0以下の場合は無効。
func WithRateLimit(r float64, burst int) Option {
	return func(c *Client) {
		if r <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(r), burst)
	}
}

// WithMetrics はメトリクスの記録先を設定する。
func WithMetrics(m MetricsRecorder) Option {
	return func(c *Client) { c.metrics = m }
}

// WithSanitizer はサーバーメッセージの整形処理を設定する。
func WithSanitizer(s MessageSanitizer) Option {
	return func(c *Client) { c.sanitizer = s }
}

// NewClient はClientを生成する。baseURLは末尾のスラッシュを除いて保持する。
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, model.NewInvalidArgumentError(fmt.Sprintf("invalid base URL %q", baseURL))
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		httpClient:   httpClient,
		logger:       logger,
		baseURL:      strings.TrimRight(baseURL, "/"),
		newRequestID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL は設定されたAPIのベースURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// callOptions は呼び出し単位の設定。
type callOptions struct {
	autoLogout bool
}

// CallOption は呼び出し単位の設定を変更する。
type CallOption func(*callOptions)

// WithoutAutoLogout はこの呼び出しに限り401応答時の自動ログアウトを無効にする。
func WithoutAutoLogout() CallOption {
	return func(o *callOptions) { o.autoLogout = false }
}

func resolveCallOptions(opts []CallOption) callOptions {
	o := callOptions{autoLogout: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// request は1回のAPI呼び出しの記述。
type request struct {
	operation     string
	method        string
	segments      []string
	body          any
	authenticated bool
	header        http.Header
}

// path はセグメントをエスケープして連結したパスを返す。
func (r request) path() string {
	var b strings.Builder
	for _, s := range r.segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

// errorBody はエラーレスポンスのボディ形式。
type errorBody struct {
	Message string `json:"message"`
}

// do はリクエストを送信し、応答解釈ポリシーに従って結果をoutへ格納する。
func (c *Client) do(ctx context.Context, req request, out any, opts ...CallOption) error {
	callOpts := resolveCallOptions(opts)
	path := req.path()
	requestID := c.newRequestID()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &model.NetworkError{Op: req.operation, Err: err}
		}
	}

	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", req.operation, err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", req.operation, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set(HeaderRequestID, requestID)
	if req.authenticated && c.headers != nil {
		for k, v := range c.headers.Headers() {
			httpReq.Header.Set(k, v)
		}
	}
	for k, vs := range req.header {
		httpReq.Header.Del(k)
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("api request failed",
			slog.String("method", req.method),
			slog.String("path", path),
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		if c.metrics != nil {
			c.metrics.RecordNetworkError(req.operation)
		}
		return &model.NetworkError{Op: req.operation, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if c.metrics != nil {
		c.metrics.RecordRequest(req.operation, resp.StatusCode, time.Since(start))
	}
	if err != nil {
		return &model.NetworkError{Op: req.operation, Err: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(bytes.TrimSpace(raw)) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			c.logger.Error("failed to parse api response",
				slog.String("method", req.method),
				slog.String("path", path),
				slog.Int("http_status", resp.StatusCode),
				slog.String("request_id", requestID),
				slog.String("error", err.Error()),
			)
			return &model.ParseError{Op: req.operation, Err: err}
		}
		return nil
	}

	httpErr := &model.HTTPError{
		StatusCode: resp.StatusCode,
		Message:    c.errorMessage(resp, raw),
	}
	c.logger.Warn("api returned error status",
		slog.String("method", req.method),
		slog.String("path", path),
		slog.Int("http_status", resp.StatusCode),
		slog.String("request_id", requestID),
	)

	if httpErr.AuthExpired() && req.authenticated && callOpts.autoLogout && c.terminator != nil {
		c.logger.Warn("authentication rejected, logging out",
			slog.String("path", path),
			slog.String("request_id", requestID),
		)
		if c.metrics != nil {
			c.metrics.RecordAutoLogout()
		}
		c.terminator.Expire(context.WithoutCancel(ctx))
	}

	return httpErr
}

// errorMessage はmessageフィールド、なければステータステキストを返す。
func (c *Client) errorMessage(resp *http.Response, raw []byte) string {
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err == nil && eb.Message != "" {
		msg := eb.Message
		if c.sanitizer != nil {
			msg = c.sanitizer.SanitizeMessage(msg)
		}
		if msg != "" {
			return msg
		}
	}
	return statusText(resp)
}

// statusText はレスポンスのReason-Phrase、なければ標準のステータステキストを返す。
func statusText(resp *http.Response) string {
	if _, reason, ok := strings.Cut(resp.Status, " "); ok && reason != "" {
		return reason
	}
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return fmt.Sprintf("HTTP %d", resp.StatusCode)
}
