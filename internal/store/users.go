package store

import (
	"context"
	"strings"
)

const (
	RoleAdmin     = "admin"
	RoleCandidate = "candidate"
)

type User struct {
	ID            string `db:"id" json:"id"`
	Email         string `db:"email" json:"email"`
	Name          string `db:"name" json:"name"`
	Role          string `db:"role" json:"role"`
	Onboarded     bool   `db:"onboarded" json:"onboarded"`
	PasswordHash  string `db:"password_hash" json:"-"`
	RemoteSubject string `db:"remote_subject" json:"-"`
	CreatedAt     int64  `db:"created_at" json:"created_at"`
	UpdatedAt     int64  `db:"updated_at" json:"updated_at"`
}

type UserPatch struct {
	Name          *string `json:"name"`
	Role          *string `json:"role"`
	Onboarded     *bool   `json:"onboarded"`
	PasswordHash  *string `json:"password_hash"`
	RemoteSubject *string `json:"remote_subject"`
}

const userColumns = "id, email, name, role, onboarded, password_hash, remote_subject, created_at, updated_at"

func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleCandidate
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser inserts a user. Email is normalized and must be unique.
func (s *Store) CreateUser(ctx context.Context, u *User) (*User, error) {
	u.Email = normalizeEmail(u.Email)
	if u.Email == "" {
		return nil, invalid("email is required")
	}
	if !ValidRole(u.Role) {
		return nil, invalid("unknown role %q", u.Role)
	}

	now := s.stamp()
	u.ID = newID()
	u.CreatedAt = now
	u.UpdatedAt = now

	query := s.db.Rebind(`INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Email, u.Name, u.Role, u.Onboarded, u.PasswordHash, u.RemoteSubject, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return nil, wrapWrite(err, "user")
	}

	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, s.db.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if err != nil {
		return nil, wrapGet(err, "user")
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, s.db.Rebind(`SELECT `+userColumns+` FROM users WHERE email = ?`), normalizeEmail(email))
	if err != nil {
		return nil, wrapGet(err, "user")
	}
	return &u, nil
}

// GetUserByRemoteSubject finds the user linked to a managed-auth identity.
func (s *Store) GetUserByRemoteSubject(ctx context.Context, subject string) (*User, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, invalid("remote subject is required")
	}

	var u User
	err := s.db.GetContext(ctx, &u, s.db.Rebind(`SELECT `+userColumns+` FROM users WHERE remote_subject = ?`), subject)
	if err != nil {
		return nil, wrapGet(err, "user")
	}
	return &u, nil
}

func (s *Store) PatchUser(ctx context.Context, id string, patch Patch) (*User, error) {
	var p UserPatch
	if err := decodePatch(patch, &p); err != nil {
		return nil, err
	}

	sets := &setList{}
	if p.Name != nil {
		sets.add("name", strings.TrimSpace(*p.Name))
	}
	if p.Role != nil {
		if !ValidRole(*p.Role) {
			return nil, invalid("unknown role %q", *p.Role)
		}
		sets.add("role", *p.Role)
	}
	if p.Onboarded != nil {
		sets.add("onboarded", *p.Onboarded)
	}
	if p.PasswordHash != nil {
		sets.add("password_hash", *p.PasswordHash)
	}
	if p.RemoteSubject != nil {
		sets.add("remote_subject", strings.TrimSpace(*p.RemoteSubject))
	}

	if err := s.update(ctx, s.db, "users", id, sets); err != nil {
		return nil, err
	}

	return s.GetUser(ctx, id)
}

// CountCandidates returns the number of candidate accounts.
func (s *Store) CountCandidates(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, s.db.Rebind(`SELECT COUNT(*) FROM users WHERE role = ?`), RoleCandidate)
	if err != nil {
		return 0, wrapGet(err, "candidate count")
	}
	return n, nil
}
