// Package repository はセッションのPostgreSQL永続化を提供する。
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/tzkeeper/internal/model"
	"github.com/hitoshi/tzkeeper/internal/session"
)

// PostgresSessionRepo はclient_sessionsテーブルの1行をセッションの保存先として使うPersister。
// 複数のクライアントが同じデータベースを共有できるよう、行はstorage_keyで区別する。
type PostgresSessionRepo struct {
	db  *sql.DB
	key string
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。keyが空の場合はsession.DefaultKeyを使う。
func NewPostgresSessionRepo(db *sql.DB, key string) *PostgresSessionRepo {
	if key == "" {
		key = session.DefaultKey
	}
	return &PostgresSessionRepo{db: db, key: key}
}

// Load は保存済みセッションを取得する。存在しない場合はnilを返す。
func (r *PostgresSessionRepo) Load(ctx context.Context) (*model.Session, error) {
	sess := &model.Session{}
	err := r.db.QueryRowContext(ctx,
		`SELECT access_token, username
		 FROM client_sessions
		 WHERE storage_key = $1`,
		r.key,
	).Scan(&sess.AccessToken, &sess.Username)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if !sess.Valid() {
		return nil, nil
	}
	return sess, nil
}

// Save はセッションを保存する。既存の行は上書きする。
func (r *PostgresSessionRepo) Save(ctx context.Context, s model.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO client_sessions (storage_key, access_token, username, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (storage_key)
		 DO UPDATE SET access_token = EXCLUDED.access_token,
		               username = EXCLUDED.username,
		               updated_at = now()`,
		r.key, s.AccessToken, s.Username,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Clear は保存済みセッションを削除する。
func (r *PostgresSessionRepo) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM client_sessions WHERE storage_key = $1`,
		r.key,
	)
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// compile-time interface check
var _ session.Persister = (*PostgresSessionRepo)(nil)
