package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Patch is a partial document update keyed by json field name.
type Patch map[string]any

// decodePatch decodes a patch into a typed struct of pointer fields.
// Unknown keys are rejected so typos do not silently become no-ops.
func decodePatch(patch Patch, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return err
	}

	if err := decoder.Decode(map[string]any(patch)); err != nil {
		return fmt.Errorf("decode patch: %v: %w", err, ErrInvalid)
	}

	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type setList struct {
	columns []string
	args    []any

	guards    []string
	guardArgs []any
}

func (s *setList) add(column string, value any) {
	s.columns = append(s.columns, column+" = ?")
	s.args = append(s.args, value)
}

// guard adds a condition the row must still meet when the update runs.
func (s *setList) guard(cond string, args ...any) {
	s.guards = append(s.guards, cond)
	s.guardArgs = append(s.guardArgs, args...)
}

// update applies the set list to the row with the given id, bumping updated_at
// even when nothing else changes. A row that is missing or fails a guard
// reports ErrNotFound.
func (s *Store) update(ctx context.Context, q execer, table, id string, sets *setList) error {
	sets.add("updated_at", s.stamp())

	where := append([]string{"id = ?"}, sets.guards...)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", table, strings.Join(sets.columns, ", "), strings.Join(where, " AND "))
	args := append(append(sets.args, id), sets.guardArgs...)

	res, err := q.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return wrapWrite(err, table)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", table, id, ErrNotFound)
	}

	return nil
}
