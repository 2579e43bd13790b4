package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/campuslink/realtime/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	banned      INTEGER NOT NULL DEFAULT 0,
	last_active DATETIME,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	id                   TEXT PRIMARY KEY,
	conversation_id      TEXT NOT NULL,
	sender_id            TEXT NOT NULL,
	receiver_id          TEXT NOT NULL,
	body                 TEXT NOT NULL DEFAULT '',
	kind                 TEXT NOT NULL DEFAULT 'text',
	attachments          TEXT NOT NULL DEFAULT '[]',
	is_read              INTEGER NOT NULL DEFAULT 0,
	deleted_for_everyone INTEGER NOT NULL DEFAULT 0,
	created_at           DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation
	ON messages (conversation_id, created_at DESC);

CREATE TABLE IF NOT EXISTS message_deletions (
	message_id TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	PRIMARY KEY (message_id, user_id)
);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and applies the schema.
// Use ":memory:" for an ephemeral database in tests.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateUser inserts a user record synced from the platform.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *store.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, banned, last_active, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Banned, nullTime(u.LastActive), u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*store.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, banned, last_active, created_at FROM users WHERE id = ?`, id)

	var u store.User
	var lastActive sql.NullTime
	if err := row.Scan(&u.ID, &u.Name, &u.Banned, &lastActive, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if lastActive.Valid {
		u.LastActive = lastActive.Time
	}
	return &u, nil
}

// TouchLastActive stamps the user's last_active to now.
func (s *SQLiteStore) TouchLastActive(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_active = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("touch last_active: %w", err)
	}
	return nil
}

// CreateMessage persists a new message.
func (s *SQLiteStore) CreateMessage(ctx context.Context, m *store.Message) error {
	attachments, err := json.Marshal(m.Attachments)
	if err != nil {
		return fmt.Errorf("marshal attachments: %w", err)
	}
	if m.Attachments == nil {
		attachments = []byte("[]")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages
			(id, conversation_id, sender_id, receiver_id, body, kind, attachments, is_read, deleted_for_everyone, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.SenderID, m.ReceiverID, m.Body, string(m.Kind),
		string(attachments), m.Read, m.DeletedForAll, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// GetMessage retrieves a message by ID with its deletion markers.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*store.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, conversation_id, sender_id, receiver_id, body, kind, attachments, is_read, deleted_for_everyone, created_at
		 FROM messages WHERE id = ?`, id)

	m, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM message_deletions WHERE message_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query deletions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan deletion: %w", err)
		}
		m.DeletedFor = append(m.DeletedFor, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deletions: %w", err)
	}

	return m, nil
}

// ListMessages returns conversation messages visible to viewerID, newest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID, viewerID string, limit int, beforeID *string) ([]*store.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, conversation_id, sender_id, receiver_id, body, kind, attachments, is_read, deleted_for_everyone, created_at
		FROM messages m
		WHERE conversation_id = ?
		  AND deleted_for_everyone = 0
		  AND NOT EXISTS (
			SELECT 1 FROM message_deletions d
			WHERE d.message_id = m.id AND d.user_id = ?
		  )`
	args := []any{conversationID, viewerID}

	if beforeID != nil {
		query += ` AND created_at < (SELECT created_at FROM messages WHERE id = ?)`
		args = append(args, *beforeID)
	}

	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

// MarkConversationRead flags all unread messages addressed to readerID.
func (s *SQLiteStore) MarkConversationRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET is_read = 1
		 WHERE conversation_id = ? AND receiver_id = ? AND is_read = 0`,
		conversationID, readerID,
	)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// MarkDeletedForUser adds a per-user soft-delete marker.
func (s *SQLiteStore) MarkDeletedForUser(ctx context.Context, messageID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO message_deletions (message_id, user_id) VALUES (?, ?)`,
		messageID, userID,
	)
	if err != nil {
		return fmt.Errorf("mark deleted for user: %w", err)
	}
	return nil
}

// MarkDeletedForAll sets the global soft-delete marker.
func (s *SQLiteStore) MarkDeletedForAll(ctx context.Context, messageID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE messages SET deleted_for_everyone = 1 WHERE id = ?`, messageID)
	if err != nil {
		return fmt.Errorf("mark deleted for all: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*store.Message, error) {
	var m store.Message
	var kind, attachments string
	if err := row.Scan(
		&m.ID, &m.ConversationID, &m.SenderID, &m.ReceiverID, &m.Body,
		&kind, &attachments, &m.Read, &m.DeletedForAll, &m.CreatedAt,
	); err != nil {
		return nil, err
	}
	m.Kind = store.MessageKind(kind)
	if err := json.Unmarshal([]byte(attachments), &m.Attachments); err != nil {
		return nil, fmt.Errorf("unmarshal attachments: %w", err)
	}
	return &m, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
