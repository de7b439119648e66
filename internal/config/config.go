// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// セッションの永続化先
const (
	SessionBackendFile     = "file"
	SessionBackendPostgres = "postgres"
)

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// API
	APIBaseURL              string
	APITimeout              time.Duration
	APIRateLimit            float64
	APIRateBurst            int
	APIBlockPrivateNetworks bool

	// Session
	SessionBackend string
	SessionFile    string
	SessionKey     string

	// Database（SessionBackend=postgres の場合のみ必須）
	DatabaseURL string

	// Server
	ServerPort   string
	SyncInterval time.Duration

	// Logging
	LogLevel string
}

// source は環境変数とYAMLファイルの値を順に参照する。環境変数が優先される。
type source struct {
	file map[string]string
}

// Load は環境変数からConfigを読み込む。
// CONFIG_FILE が指定されている場合はそのYAMLファイルの値を既定値として使う。
// 必須項目が未設定の場合はまとめてエラーを返す。
func Load() (*Config, error) {
	src := source{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		values, err := readFile(path)
		if err != nil {
			return nil, err
		}
		src.file = values
	}
	return load(src)
}

func load(src source) (*Config, error) {
	cfg := &Config{}

	// Optional fields with defaults
	cfg.SessionBackend = strings.ToLower(src.getString("SESSION_BACKEND", SessionBackendFile))
	cfg.SessionFile = src.getString("SESSION_FILE", ".tzkeeper/session.json")
	cfg.SessionKey = src.getString("SESSION_KEY", "user")
	cfg.APITimeout = src.getDuration("API_TIMEOUT", 0)
	cfg.APIRateLimit = src.getFloat("API_RATE_LIMIT", 0)
	cfg.APIRateBurst = src.getInt("API_RATE_BURST", 10)
	cfg.APIBlockPrivateNetworks = src.getBool("API_BLOCK_PRIVATE_NETWORKS", false)
	cfg.ServerPort = src.getString("SERVER_PORT", "8080")
	cfg.SyncInterval = src.getDuration("SYNC_INTERVAL", time.Minute)
	cfg.LogLevel = strings.ToLower(src.getString("LOG_LEVEL", "info"))

	// Required fields
	var missing []string

	cfg.APIBaseURL = src.getString("API_BASE_URL", "")
	if cfg.APIBaseURL == "" {
		missing = append(missing, "API_BASE_URL")
	}

	cfg.DatabaseURL = src.getString("DATABASE_URL", "")
	if cfg.SessionBackend == SessionBackendPostgres && cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	switch cfg.SessionBackend {
	case SessionBackendFile, SessionBackendPostgres:
	default:
		return nil, fmt.Errorf("unsupported SESSION_BACKEND %q", cfg.SessionBackend)
	}

	return cfg, nil
}

// readFile はYAMLファイルをトップレベルのキーと値の組として読み込む。
// キーは環境変数名と同じ表記を使う。
func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v.(type) {
		case map[string]any, []any:
			return nil, errors.New("config file " + path + ": nested value for " + k + " is not supported")
		case nil:
			continue
		}
		values[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return values, nil
}

func (s source) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.file[key]
}

func (s source) getString(key, defaultVal string) string {
	if v := s.lookup(key); v != "" {
		return v
	}
	return defaultVal
}

func (s source) getInt(key string, defaultVal int) int {
	v := s.lookup(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func (s source) getFloat(key string, defaultVal float64) float64 {
	v := s.lookup(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func (s source) getBool(key string, defaultVal bool) bool {
	v := s.lookup(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func (s source) getDuration(key string, defaultVal time.Duration) time.Duration {
	v := s.lookup(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
