package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Knowledge is interviewer context: company facts, role notes and question banks
// fed to the interview assistant as its system prompt.
type Knowledge struct {
	ID        string `db:"id" json:"id"`
	OwnerID   string `db:"owner_id" json:"owner_id" yaml:"-"`
	IsDefault bool   `db:"is_default" json:"is_default" yaml:"default"`
	Title     string `db:"title" json:"title" yaml:"title"`
	Content   string `db:"content" json:"content" yaml:"content"`
	CreatedAt int64  `db:"created_at" json:"created_at" yaml:"-"`
	UpdatedAt int64  `db:"updated_at" json:"updated_at" yaml:"-"`
}

type KnowledgePatch struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

const knowledgeColumns = "id, owner_id, is_default, title, content, created_at, updated_at"

// CreateKnowledge inserts an entry. A default entry replaces the previous default.
func (s *Store) CreateKnowledge(ctx context.Context, k *Knowledge) (*Knowledge, error) {
	if strings.TrimSpace(k.OwnerID) == "" {
		return nil, invalid("knowledge owner is required")
	}

	now := s.stamp()
	k.ID = newID()
	k.Title = strings.TrimSpace(k.Title)
	k.CreatedAt = now
	k.UpdatedAt = now

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if k.IsDefault {
		if err := s.clearDefault(ctx, tx); err != nil {
			return nil, err
		}
	}

	query := s.db.Rebind(`INSERT INTO knowledge_base (` + knowledgeColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, query, k.ID, k.OwnerID, k.IsDefault, k.Title, k.Content, k.CreatedAt, k.UpdatedAt); err != nil {
		return nil, wrapWrite(err, "knowledge")
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit knowledge: %w", err)
	}

	return k, nil
}

func (s *Store) GetKnowledge(ctx context.Context, id string) (*Knowledge, error) {
	var k Knowledge
	err := s.db.GetContext(ctx, &k, s.db.Rebind(`SELECT `+knowledgeColumns+` FROM knowledge_base WHERE id = ?`), id)
	if err != nil {
		return nil, wrapGet(err, "knowledge")
	}
	return &k, nil
}

// GetDefaultKnowledge returns the entry served when a caller has none of its own.
func (s *Store) GetDefaultKnowledge(ctx context.Context) (*Knowledge, error) {
	var k Knowledge
	err := s.db.GetContext(ctx, &k,
		s.db.Rebind(`SELECT `+knowledgeColumns+` FROM knowledge_base WHERE is_default = ? ORDER BY updated_at DESC LIMIT 1`), true)
	if err != nil {
		return nil, wrapGet(err, "default knowledge")
	}
	return &k, nil
}

func (s *Store) GetKnowledgeByUserID(ctx context.Context, ownerID string) (*Knowledge, error) {
	var k Knowledge
	err := s.db.GetContext(ctx, &k,
		s.db.Rebind(`SELECT `+knowledgeColumns+` FROM knowledge_base WHERE owner_id = ? ORDER BY updated_at DESC LIMIT 1`), ownerID)
	if err != nil {
		return nil, wrapGet(err, "knowledge")
	}
	return &k, nil
}

// ResolveKnowledge returns the owner's entry, falling back to the default one.
func (s *Store) ResolveKnowledge(ctx context.Context, ownerID string) (*Knowledge, error) {
	if ownerID != "" {
		k, err := s.GetKnowledgeByUserID(ctx, ownerID)
		if err == nil {
			return k, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	return s.GetDefaultKnowledge(ctx)
}

// UpsertKnowledge patches the owner's entry or inserts it when missing.
func (s *Store) UpsertKnowledge(ctx context.Context, ownerID string, patch Patch) (*Knowledge, error) {
	var p KnowledgePatch
	if err := decodePatch(patch, &p); err != nil {
		return nil, err
	}

	existing, err := s.GetKnowledgeByUserID(ctx, ownerID)
	if errors.Is(err, ErrNotFound) {
		k := &Knowledge{OwnerID: ownerID}
		if p.Title != nil {
			k.Title = *p.Title
		}
		if p.Content != nil {
			k.Content = *p.Content
		}
		return s.CreateKnowledge(ctx, k)
	}
	if err != nil {
		return nil, err
	}

	sets := &setList{}
	if p.Title != nil {
		sets.add("title", strings.TrimSpace(*p.Title))
	}
	if p.Content != nil {
		sets.add("content", *p.Content)
	}

	if err := s.update(ctx, s.db, "knowledge_base", existing.ID, sets); err != nil {
		return nil, err
	}

	return s.GetKnowledge(ctx, existing.ID)
}

// SetDefaultKnowledge makes the entry the only default one.
func (s *Store) SetDefaultKnowledge(ctx context.Context, id string) (*Knowledge, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := s.clearDefault(ctx, tx); err != nil {
		return nil, err
	}

	sets := &setList{}
	sets.add("is_default", true)
	if err := s.update(ctx, tx, "knowledge_base", id, sets); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit default knowledge: %w", err)
	}

	return s.GetKnowledge(ctx, id)
}

func (s *Store) clearDefault(ctx context.Context, q execer) error {
	_, err := q.ExecContext(ctx,
		s.db.Rebind(`UPDATE knowledge_base SET is_default = ?, updated_at = ? WHERE is_default = ?`), false, s.stamp(), true)
	if err != nil {
		return fmt.Errorf("clear default knowledge: %w", err)
	}
	return nil
}
