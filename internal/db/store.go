package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/mozzarellastix/SWE-App/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("already exists")
)

// Store handles the users and messages tables.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at path and migrates it.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_fk=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := New(db)
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// New wraps an already opened database without migrating it.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sender_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			receiver_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			content TEXT NOT NULL CHECK (content <> ''),
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			is_read INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, receiver_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages(receiver_id, is_read);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateUser inserts a local account.
func (s *Store) CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		username, email, passwordHash, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("user %q: %w", username, ErrConflict)
		}
		return nil, fmt.Errorf("insert user %q: %w", username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}, nil
}

// UpsertUser inserts a user with a caller-chosen ID, or refreshes its name and
// email if the ID already exists. Used for identities minted outside the
// database, such as tailnet users.
func (s *Store) UpsertUser(ctx context.Context, u *models.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			email = excluded.email
	`, u.ID, u.Username, u.Email, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %q: %w", u.Username, ErrConflict)
		}
		return fmt.Errorf("upsert user %d: %w", u.ID, err)
	}
	return nil
}

// GetUser returns a user by ID.
func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByUsername returns a user by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateMessage stores a new unread message and returns it with its assigned ID.
func (s *Store) CreateMessage(ctx context.Context, senderID, receiverID int64, content string) (*models.ChatMessage, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (sender_id, receiver_id, content, created_at, is_read) VALUES (?, ?, ?, ?, 0)`,
		senderID, receiverID, content, now)
	if err != nil {
		return nil, fmt.Errorf("insert message %d->%d: %w", senderID, receiverID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.ChatMessage{
		ID:         id,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  now,
	}, nil
}

// GetConversation returns up to limit messages exchanged between a and b,
// oldest first. If beforeID is non-zero only messages ordered before that
// message are considered; it must itself belong to the conversation, or
// ErrNotFound is returned.
func (s *Store) GetConversation(ctx context.Context, a, b int64, limit int, beforeID int64) ([]models.ChatMessage, error) {
	var rows *sql.Rows
	var err error
	if beforeID != 0 {
		var beforeTime time.Time
		err = s.db.QueryRowContext(ctx, `
			SELECT created_at FROM messages
			WHERE id = ? AND ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))
		`, beforeID, a, b, b, a).Scan(&beforeTime)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, sender_id, receiver_id, content, created_at, is_read
			FROM messages
			WHERE ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))
				AND (created_at < ? OR (created_at = ? AND id < ?))
			ORDER BY created_at DESC, id DESC LIMIT ?
		`, a, b, b, a, beforeTime, beforeTime, beforeID, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, sender_id, receiver_id, content, created_at, is_read
			FROM messages
			WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
			ORDER BY created_at DESC, id DESC LIMIT ?
		`, a, b, b, a, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.CreatedAt, &m.IsRead); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	// Reverse to get chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, rows.Err()
}

// MarkRead flags every unread message from senderID to receiverID as read and
// returns how many rows changed.
func (s *Store) MarkRead(ctx context.Context, receiverID, senderID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET is_read = 1 WHERE receiver_id = ? AND sender_id = ? AND is_read = 0`,
		receiverID, senderID)
	if err != nil {
		return 0, fmt.Errorf("mark read %d->%d: %w", senderID, receiverID, err)
	}
	return res.RowsAffected()
}

// ListConversations returns one summary per counterpart of userID, most
// recently active first.
func (s *Store) ListConversations(ctx context.Context, userID int64) ([]models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.sender_id, m.receiver_id, m.content, m.created_at, m.is_read,
			u.id, u.username, u.email, u.created_at,
			(SELECT COUNT(*) FROM messages x
				WHERE x.sender_id = u.id AND x.receiver_id = ? AND x.is_read = 0)
		FROM messages m
		JOIN users u ON u.id = CASE WHEN m.sender_id = ? THEN m.receiver_id ELSE m.sender_id END
		WHERE m.id IN (
			SELECT MAX(id) FROM messages
			WHERE sender_id = ? OR receiver_id = ?
			GROUP BY CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END
		)
		ORDER BY m.created_at DESC, m.id DESC
	`, userID, userID, userID, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		var c models.Conversation
		m := &c.LastMessage
		u := &c.Counterpart
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.CreatedAt, &m.IsRead,
			&u.ID, &u.Username, &u.Email, &u.CreatedAt, &c.UnreadCount); err != nil {
			return nil, err
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
