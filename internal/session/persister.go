// Package session は認証済みセッションの状態管理と永続化を提供する。
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hitoshi/tzkeeper/internal/model"
)

// DefaultKey はセッションを保存する固定キー。
const DefaultKey = "user"

// Persister はセッションの永続化インターフェース。
// ページ再読み込み（プロセス再起動）をまたいでセッションを維持するために使う。
type Persister interface {
	// Load は保存済みセッションを取得する。存在しない場合はnilを返す。
	Load(ctx context.Context) (*model.Session, error)
	// Save はセッションを保存する。既存の値は上書きする。
	Save(ctx context.Context, session model.Session) error
	// Clear は保存済みセッションを削除する。存在しない場合もエラーにしない。
	Clear(ctx context.Context) error
}

// FilePersister はJSONファイルをキー・バリューストアとして使うPersister。
// ファイルは {"<key>": {"access_token": "...", "username": "..."}} の形式で、
// 他のキーの値は保持したまま自分のキーだけを読み書きする。
type FilePersister struct {
	path string
	key  string
}

// NewFilePersister はFilePersisterを生成する。keyが空の場合はDefaultKeyを使う。
func NewFilePersister(path, key string) *FilePersister {
	if key == "" {
		key = DefaultKey
	}
	return &FilePersister{path: path, key: key}
}

// Path は保存先ファイルパスを返す。
func (p *FilePersister) Path() string {
	return p.path
}

// Load は保存済みセッションを取得する。
func (p *FilePersister) Load(_ context.Context) (*model.Session, error) {
	entries, err := p.readAll()
	if err != nil {
		return nil, err
	}

	raw, ok := entries[p.key]
	if !ok {
		return nil, nil
	}

	var sess model.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session %q: %w", p.key, err)
	}
	if !sess.Valid() {
		return nil, nil
	}
	return &sess, nil
}

// Save はセッションを保存する。
func (p *FilePersister) Save(_ context.Context, session model.Session) error {
	entries, err := p.readAll()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	entries[p.key] = raw

	return p.writeAll(entries)
}

// Clear は保存済みセッションを削除する。
// 他のキーが残っていない場合はファイル自体を削除する。
func (p *FilePersister) Clear(_ context.Context) error {
	entries, err := p.readAll()
	if err != nil {
		return err
	}
	if _, ok := entries[p.key]; !ok {
		return nil
	}
	delete(entries, p.key)

	if len(entries) == 0 {
		if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove session file: %w", err)
		}
		return nil
	}
	return p.writeAll(entries)
}

func (p *FilePersister) readAll() (map[string]json.RawMessage, error) {
	entries := make(map[string]json.RawMessage)

	payload, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return entries, nil
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}
	if len(payload) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}
	return entries, nil
}

// writeAll は一時ファイルに書き込んでからrenameし、途中状態のファイルを残さない。
func (p *FilePersister) writeAll(entries map[string]json.RawMessage) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	payload, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p.path), ".session-*.json")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Rename(tmpName, p.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

// compile-time interface check
var _ Persister = (*FilePersister)(nil)
