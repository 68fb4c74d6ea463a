package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/fpang/tripstory/internal/apperr"
	"github.com/fpang/tripstory/internal/journey"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore implements Store on a local SQLite file.
type SQLiteStore struct {
	conn    *sql.DB
	owner   string
	writeMu sync.Mutex
	now     func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at path in WAL mode and
// ensures the schema exists.
func OpenSQLite(ctx context.Context, path, owner string) (*SQLiteStore, error) {
	if owner == "" {
		owner = DefaultOwner
	}
	dsn := path + "?_journal=WAL&_fk=1&_busy_timeout=5000"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite allows one writer at a time.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = 10000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			log.Warn().Err(err).Str("pragma", pragma).Msg("Failed to apply SQLite pragma")
		}
	}

	if _, err := conn.ExecContext(ctx, schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	log.Info().Str("path", path).Str("owner", owner).Msg("SQLite store opened")
	return &SQLiteStore{conn: conn, owner: owner, now: time.Now}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

func (s *SQLiteStore) Append(ctx context.Context, url string) error {
	e, err := newEntry(url, s.now())
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO gallery (id, owner, url, created_at) VALUES (?, ?, ?, ?)`,
		e.ID, s.owner, e.URL, e.CreatedAt)
	if err != nil {
		return apperr.Transport("sqlite insert", fmt.Errorf("insert gallery photo: %w", err))
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, url, created_at FROM gallery WHERE owner = ? ORDER BY created_at, rowid`,
		s.owner)
	if err != nil {
		return nil, apperr.Transport("sqlite query", fmt.Errorf("query gallery: %w", err))
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.URL, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan gallery row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gallery: %w", err)
	}
	return entries, nil
}

func (s *SQLiteStore) PutRoute(ctx context.Context, r *journey.Route) error {
	if r == nil {
		return apperr.Validation("put route", journey.ErrNoRoute)
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal route: %w", err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO routes (owner, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(owner) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		s.owner, string(data), s.now().Unix())
	if err != nil {
		return apperr.Transport("sqlite upsert", fmt.Errorf("save route: %w", err))
	}
	return nil
}

func (s *SQLiteStore) GetRoute(ctx context.Context) (*journey.Route, error) {
	var data string
	err := s.conn.QueryRowContext(ctx, `SELECT data FROM routes WHERE owner = ?`, s.owner).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Transport("sqlite query", fmt.Errorf("load route: %w", err))
	}
	var r journey.Route
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("unmarshal route: %w", err)
	}
	return &r, nil
}
