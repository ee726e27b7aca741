package chatstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-go-golems/docchat/pkg/chat"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// SQLiteConversationStore keeps conversations in a single table, one row per
// chat with the messages serialized as JSON.
type SQLiteConversationStore struct {
	db *sql.DB
}

var _ ConversationStore = &SQLiteConversationStore{}

func NewSQLiteConversationStore(dsn string) (*SQLiteConversationStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite conversation store: dsn is empty")
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite conversation store: open")
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteConversationStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// SQLiteConversationDSNForFile builds a WAL-mode DSN for a file path.
func SQLiteConversationDSNForFile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("path is empty")
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path), nil
}

func (s *SQLiteConversationStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteConversationStore) migrate() error {
	if s == nil || s.db == nil {
		return errors.New("sqlite conversation store: db is nil")
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			chat_id TEXT NOT NULL PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			created_at_ms INTEGER NOT NULL,
			last_activity_ms INTEGER NOT NULL,
			messages_json TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE INDEX IF NOT EXISTS conversations_by_created ON conversations(created_at_ms DESC, last_activity_ms DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrap(err, "sqlite conversation store: migrate")
		}
	}
	return nil
}

func (s *SQLiteConversationStore) UpsertConversation(ctx context.Context, conv chat.Conversation) error {
	conv.ID = normalizeChatID(conv.ID)
	if conv.ID == "" {
		return errors.New("sqlite conversation store: chat id is empty")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "sqlite conversation store: begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	if err := upsert(ctx, tx, conv, time.Now().UnixMilli(), true); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "sqlite conversation store: commit")
	}
	return nil
}

func (s *SQLiteConversationStore) SyncHistory(ctx context.Context, convs []chat.Conversation) error {
	if len(convs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "sqlite conversation store: begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, conv := range convs {
		conv.ID = normalizeChatID(conv.ID)
		if conv.ID == "" {
			continue
		}
		if err := upsert(ctx, tx, conv, now, false); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "sqlite conversation store: commit")
	}
	return nil
}

func upsert(ctx context.Context, tx *sql.Tx, conv chat.Conversation, now int64, replaceMessages bool) error {
	msgs := conv.Messages
	if msgs == nil {
		msgs = chat.Messages{}
	}
	raw, err := json.Marshal(msgs)
	if err != nil {
		return errors.Wrap(err, "sqlite conversation store: marshal messages")
	}
	created := createdAtMs(conv)
	insertCreated := created
	if insertCreated == 0 {
		insertCreated = now
	}
	replace := 0
	if replaceMessages || len(conv.Messages) > 0 {
		replace = 1
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations(chat_id, title, created_at_ms, last_activity_ms, messages_json)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			title = CASE WHEN excluded.title != '' THEN excluded.title ELSE conversations.title END,
			created_at_ms = CASE WHEN ? > 0 THEN ? ELSE conversations.created_at_ms END,
			last_activity_ms = MAX(conversations.last_activity_ms, excluded.last_activity_ms),
			messages_json = CASE WHEN ? = 1 THEN excluded.messages_json ELSE conversations.messages_json END
	`, conv.ID, conv.Title, insertCreated, now, string(raw), created, created, replace)
	if err != nil {
		return errors.Wrapf(err, "sqlite conversation store: upsert %s", conv.ID)
	}
	return nil
}

func (s *SQLiteConversationStore) GetConversation(ctx context.Context, chatID string) (chat.Conversation, bool, error) {
	chatID = normalizeChatID(chatID)
	if chatID == "" {
		return chat.Conversation{}, false, errors.New("sqlite conversation store: chat id is empty")
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT chat_id, title, created_at_ms, messages_json
		FROM conversations
		WHERE chat_id = ?
	`, chatID)
	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Conversation{}, false, nil
	}
	if err != nil {
		return chat.Conversation{}, false, err
	}
	return conv, true, nil
}

func (s *SQLiteConversationStore) ListConversations(ctx context.Context, limit int) ([]chat.Conversation, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT chat_id, title, created_at_ms, messages_json
		FROM conversations
		ORDER BY created_at_ms DESC, last_activity_ms DESC, chat_id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite conversation store: list")
	}
	defer func() { _ = rows.Close() }()

	var out []chat.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlite conversation store: list rows")
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(r rowScanner) (chat.Conversation, error) {
	var (
		conv    chat.Conversation
		created int64
		raw     string
	)
	if err := r.Scan(&conv.ID, &conv.Title, &created, &raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return chat.Conversation{}, err
		}
		return chat.Conversation{}, errors.Wrap(err, "sqlite conversation store: scan")
	}
	conv.CreatedAt = timestampFromMs(created)
	if err := json.Unmarshal([]byte(raw), &conv.Messages); err != nil {
		return chat.Conversation{}, errors.Wrapf(err, "sqlite conversation store: decode messages for %s", conv.ID)
	}
	return conv, nil
}
