// Package store is the data-access layer. Collections are plain SQL tables
// with one index per access pattern; documents carry a uuid id and unix
// millisecond created_at/updated_at stamps.
package store

import (
	"context"
	"database/sql/driver"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Store struct {
	db     *sqlx.DB
	driver string
	now    func() time.Time
}

// Open connects to the database with the given driver and verifies the connection.
func Open(ctx context.Context, driverName, dsn string) (*Store, error) {
	driverName = strings.ToLower(strings.TrimSpace(driverName))
	if driverName != DriverSQLite && driverName != DriverPostgres {
		return nil, fmt.Errorf("unsupported database driver: %q", driverName)
	}

	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	db, err := sqlx.ConnectContext(ctx, driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driverName, err)
	}

	// SQLite allows a single writer; serialize access instead of fighting SQLITE_BUSY.
	if driverName == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	return New(db), nil
}

// New wraps an existing connection.
func New(db *sqlx.DB) *Store {
	return &Store{
		db:     db,
		driver: db.DriverName(),
		now:    time.Now,
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SetClock replaces the time source. Used by tests.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Migrate applies all pending migrations.
func (s *Store) Migrate(ctx context.Context) error {
	m, release, err := s.migrator(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}

	return nil
}

// MigrateDown rolls back all migrations.
func (s *Store) MigrateDown(ctx context.Context) error {
	m, release, err := s.migrator(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}

	return nil
}

// MigrationVersion reports the current schema version.
func (s *Store) MigrationVersion(ctx context.Context) (uint, bool, error) {
	m, release, err := s.migrator(ctx)
	if err != nil {
		return 0, false, err
	}
	defer release()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}

	return version, dirty, err
}

// migrator builds a migrate instance over the shared pool. The release func
// must be used instead of m.Close: closing the sqlite driver closes the pool.
func (s *Store) migrator(ctx context.Context) (*migrate.Migrate, func(), error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, nil, fmt.Errorf("open migrations: %w", err)
	}

	switch s.driver {
	case DriverSQLite:
		instance, err := migratesqlite.WithInstance(s.db.DB, &migratesqlite.Config{})
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite migrate driver: %w", err)
		}
		m, err := migrate.NewWithInstance("iofs", src, DriverSQLite, instance)
		if err != nil {
			return nil, nil, fmt.Errorf("create migrator: %w", err)
		}
		return m, func() { _ = src.Close() }, nil

	case DriverPostgres:
		conn, err := s.db.Conn(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("acquire migration connection: %w", err)
		}
		instance, err := migratepg.WithConnection(ctx, conn, &migratepg.Config{})
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("postgres migrate driver: %w", err)
		}
		m, err := migrate.NewWithInstance("iofs", src, DriverPostgres, instance)
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("create migrator: %w", err)
		}
		return m, func() { _, _ = m.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("migrations are not supported for driver %q", s.driver)
	}
}

func (s *Store) stamp() int64 {
	return s.now().UnixMilli()
}

func newID() string {
	return uuid.NewString()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// StringList is a string slice persisted as a JSON array.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}

	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}

	return string(data), nil
}

func (l *StringList) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("scan string list: unsupported type %T", src)
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		*l = StringList{}
		return nil
	}

	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("scan string list: %w", err)
	}

	*l = out
	return nil
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
