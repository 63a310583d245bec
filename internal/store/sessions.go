package store

import (
	"context"
	"fmt"
	"time"
)

// Session is the server-side record of a local login. Only the token hash is stored.
type Session struct {
	ID        string `db:"id" json:"id"`
	UserID    string `db:"user_id" json:"user_id"`
	TokenHash string `db:"token_hash" json:"-"`
	ExpiresAt int64  `db:"expires_at" json:"expires_at"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}

const sessionColumns = "id, user_id, token_hash, expires_at, created_at"

func (s *Store) CreateSession(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*Session, error) {
	if userID == "" || tokenHash == "" {
		return nil, invalid("session user and token hash are required")
	}

	sess := &Session{
		ID:        newID(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt.UnixMilli(),
		CreatedAt: s.stamp(),
	}

	query := s.db.Rebind(`INSERT INTO sessions (` + sessionColumns + `) VALUES (?, ?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, query, sess.ID, sess.UserID, sess.TokenHash, sess.ExpiresAt, sess.CreatedAt); err != nil {
		return nil, wrapWrite(err, "session")
	}

	return sess, nil
}

// GetSessionByTokenHash returns a live session. Expired rows are reported as not found.
func (s *Store) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*Session, error) {
	var sess Session
	err := s.db.GetContext(ctx, &sess,
		s.db.Rebind(`SELECT `+sessionColumns+` FROM sessions WHERE token_hash = ? AND expires_at > ?`), tokenHash, s.stamp())
	if err != nil {
		return nil, wrapGet(err, "session")
	}
	return &sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, tokenHash string) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM sessions WHERE token_hash = ?`), tokenHash); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *Store) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM sessions WHERE expires_at <= ?`), now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return res.RowsAffected()
}
