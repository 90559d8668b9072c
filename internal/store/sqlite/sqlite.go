package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/richgram/richgram-server/internal/store"
)

// Schema is applied on startup. Message IDs come from a single
// AUTOINCREMENT counter, which is the global sequence the rest of the
// system relies on for ordering.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	avatar_url    TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS friendships (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	requester  TEXT NOT NULL,
	addressee  TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (requester, addressee)
);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	sender     TEXT NOT NULL,
	receiver   TEXT NOT NULL DEFAULT '',
	kind       TEXT NOT NULL DEFAULT 'text',
	body       TEXT NOT NULL DEFAULT '',
	file_url   TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages(receiver, id);
CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender, receiver, id);
CREATE INDEX IF NOT EXISTS idx_friendships_addressee ON friendships(addressee, status);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the database file, applies the schema, and returns the store.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup opens the database and runs a setup function before use.
// Tests use it to apply a custom schema against :memory:.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also serializes
	// message appends so sequence assignment is atomic.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
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

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ==== UserStore implementation ====

// CreateUser inserts a new user.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash, avatarURL string) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash, avatar_url)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, username, passwordHash, avatarURL); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("username %q: %w", username, store.ErrConflict)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return s.GetUserByUsername(ctx, username)
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, avatar_url, created_at
		FROM users
		WHERE username = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.AvatarURL,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", username, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// escapeLike neutralizes LIKE metacharacters so a search query matches
// them literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// SearchUsers returns users whose username contains query, excluding one
// username. SQLite LIKE is case-insensitive for ASCII by default.
func (s *SQLiteStore) SearchUsers(ctx context.Context, query, excluding string, limit int) ([]*store.User, error) {
	stmt := `
		SELECT id, username, password_hash, avatar_url, created_at
		FROM users
		WHERE username LIKE ? ESCAPE '\' AND username != ?
		ORDER BY username ASC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, stmt, "%"+escapeLike(query)+"%", excluding, limit)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*store.User
	for rows.Next() {
		var user store.User
		if err := rows.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.AvatarURL, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &user)
	}

	return users, rows.Err()
}

// RenameUser changes a username and cascades it through every table that
// references usernames, in one transaction.
func (s *SQLiteStore) RenameUser(ctx context.Context, oldName, newName string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `UPDATE users SET username = ? WHERE username = ?`, newName, oldName)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("username %q: %w", newName, store.ErrConflict)
		}
		return fmt.Errorf("rename user: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user %q: %w", oldName, store.ErrNotFound)
	}

	cascades := []string{
		`UPDATE friendships SET requester = ? WHERE requester = ?`,
		`UPDATE friendships SET addressee = ? WHERE addressee = ?`,
		`UPDATE messages SET sender = ? WHERE sender = ?`,
		`UPDATE messages SET receiver = ? WHERE receiver = ?`,
	}
	for _, stmt := range cascades {
		if _, err := tx.ExecContext(ctx, stmt, newName, oldName); err != nil {
			return fmt.Errorf("cascade rename: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// UpdateAvatar replaces the avatar URL for a user.
func (s *SQLiteStore) UpdateAvatar(ctx context.Context, username, avatarURL string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET avatar_url = ? WHERE username = ?`, avatarURL, username)
	if err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user %q: %w", username, store.ErrNotFound)
	}
	return nil
}

// ==== FriendshipStore implementation ====

// CreateFriendship inserts a pending record.
func (s *SQLiteStore) CreateFriendship(ctx context.Context, requester, addressee string) (*store.Friendship, error) {
	query := `
		INSERT INTO friendships (requester, addressee, status)
		VALUES (?, ?, 'pending')
	`
	if _, err := s.db.ExecContext(ctx, query, requester, addressee); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("friendship %s/%s: %w", requester, addressee, store.ErrConflict)
		}
		return nil, fmt.Errorf("insert friendship: %w", err)
	}

	return s.GetFriendship(ctx, requester, addressee)
}

// GetFriendship finds the record for the unordered pair.
func (s *SQLiteStore) GetFriendship(ctx context.Context, a, b string) (*store.Friendship, error) {
	query := `
		SELECT id, requester, addressee, status, created_at, updated_at
		FROM friendships
		WHERE (requester = ? AND addressee = ?) OR (requester = ? AND addressee = ?)
	`
	var f store.Friendship
	var status string
	err := s.db.QueryRowContext(ctx, query, a, b, b, a).Scan(
		&f.ID,
		&f.Requester,
		&f.Addressee,
		&status,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("friendship %s/%s: %w", a, b, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query friendship: %w", err)
	}
	f.Status = store.FriendshipStatus(status)
	return &f, nil
}

// UpdateFriendshipStatus transitions the record with the exact direction.
func (s *SQLiteStore) UpdateFriendshipStatus(ctx context.Context, requester, addressee string, status store.FriendshipStatus) error {
	query := `
		UPDATE friendships
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE requester = ? AND addressee = ?
	`
	result, err := s.db.ExecContext(ctx, query, string(status), requester, addressee)
	if err != nil {
		return fmt.Errorf("update friendship status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("friendship %s/%s: %w", requester, addressee, store.ErrNotFound)
	}
	return nil
}

// DeleteFriendship removes the record for the unordered pair.
func (s *SQLiteStore) DeleteFriendship(ctx context.Context, a, b string) error {
	query := `
		DELETE FROM friendships
		WHERE (requester = ? AND addressee = ?) OR (requester = ? AND addressee = ?)
	`
	if _, err := s.db.ExecContext(ctx, query, a, b, b, a); err != nil {
		return fmt.Errorf("delete friendship: %w", err)
	}
	return nil
}

// ListFriends returns users with an accepted friendship with username.
func (s *SQLiteStore) ListFriends(ctx context.Context, username string) ([]*store.User, error) {
	query := `
		SELECT u.id, u.username, u.password_hash, u.avatar_url, u.created_at
		FROM friendships f
		JOIN users u ON u.username = CASE WHEN f.requester = ? THEN f.addressee ELSE f.requester END
		WHERE (f.requester = ? OR f.addressee = ?) AND f.status = 'accepted'
		ORDER BY u.username ASC
	`
	return s.queryUsers(ctx, query, username, username, username)
}

// ListIncomingRequests returns requester users of pending requests
// addressed to username.
func (s *SQLiteStore) ListIncomingRequests(ctx context.Context, username string) ([]*store.User, error) {
	query := `
		SELECT u.id, u.username, u.password_hash, u.avatar_url, u.created_at
		FROM friendships f
		JOIN users u ON u.username = f.requester
		WHERE f.addressee = ? AND f.status = 'pending'
		ORDER BY f.created_at ASC
	`
	return s.queryUsers(ctx, query, username)
}

func (s *SQLiteStore) queryUsers(ctx context.Context, query string, args ...any) ([]*store.User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*store.User
	for rows.Next() {
		var user store.User
		if err := rows.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.AvatarURL, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &user)
	}

	return users, rows.Err()
}

// IsAccepted reports whether the pair has an accepted friendship.
func (s *SQLiteStore) IsAccepted(ctx context.Context, a, b string) (bool, error) {
	query := `
		SELECT 1 FROM friendships
		WHERE ((requester = ? AND addressee = ?) OR (requester = ? AND addressee = ?))
		AND status = 'accepted'
	`
	var exists int
	err := s.db.QueryRowContext(ctx, query, a, b, b, a).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query friendship: %w", err)
	}
	return true, nil
}

// ==== MessageStore implementation ====

// AppendMessage persists a message and assigns its sequence number.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *store.Message) error {
	query := `
		INSERT INTO messages (sender, receiver, kind, body, file_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, msg.Sender, msg.Receiver, string(msg.Kind), msg.Body, msg.FileURL, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	msg.ID = id
	return nil
}

// ListGlobalMessages returns the full global history, oldest first.
func (s *SQLiteStore) ListGlobalMessages(ctx context.Context) ([]*store.Message, error) {
	query := `
		SELECT id, sender, receiver, kind, body, file_url, created_at
		FROM messages
		WHERE receiver = ''
		ORDER BY id ASC
	`
	return s.queryMessages(ctx, query)
}

// ListPrivateMessages returns the history between a and b in either
// direction, oldest first.
func (s *SQLiteStore) ListPrivateMessages(ctx context.Context, a, b string) ([]*store.Message, error) {
	query := `
		SELECT id, sender, receiver, kind, body, file_url, created_at
		FROM messages
		WHERE (sender = ? AND receiver = ?) OR (sender = ? AND receiver = ?)
		ORDER BY id ASC
	`
	return s.queryMessages(ctx, query, a, b, b, a)
}

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...any) ([]*store.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		var msg store.Message
		var kind string
		if err := rows.Scan(&msg.ID, &msg.Sender, &msg.Receiver, &kind, &msg.Body, &msg.FileURL, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Kind = store.MessageKind(kind)
		messages = append(messages, &msg)
	}

	return messages, rows.Err()
}

// Ensure SQLiteStore implements store.Store
var _ store.Store = (*SQLiteStore)(nil)
