package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/lib/pq"
)

// DefaultPostgresTable holds one row per document.
const DefaultPostgresTable = "documents"

// PostgresStore keeps each document as a jsonb row.
type PostgresStore struct {
	db    *sql.DB
	table string
}

// OpenPostgresStore connects with the pgx driver and verifies the connection.
func OpenPostgresStore(ctx context.Context, databaseURL, table string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewPostgresStore(db, table), nil
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB, table string) *PostgresStore {
	if table == "" {
		table = DefaultPostgresTable
	}
	return &PostgresStore{db: db, table: pq.QuoteIdentifier(table)}
}

// Load selects and decodes the document body.
func (s *PostgresStore) Load(ctx context.Context, doc Document, v any) error {
	query := fmt.Sprintf(`SELECT body FROM %s WHERE name = $1`, s.table)

	var body []byte
	if err := s.db.QueryRowContext(ctx, query, string(doc)).Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storageErr(doc, "read", errors.New("document not found"))
		}
		return storageErr(doc, "read", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return storageErr(doc, "decode", err)
	}
	return nil
}

// Save upserts the whole document body.
func (s *PostgresStore) Save(ctx context.Context, doc Document, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return storageErr(doc, "encode", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (name, body, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at
	`, s.table)

	if _, err := s.db.ExecContext(ctx, query, string(doc), string(body)); err != nil {
		return storageErr(doc, "write", err)
	}
	return nil
}

// Bootstrap creates the table and inserts empty forms for absent rows.
func (s *PostgresStore) Bootstrap(ctx context.Context) error {
	create := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY,
			body JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`, s.table)
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s (name, body) VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING
	`, s.table)
	for _, doc := range AllDocuments {
		if _, err := s.db.ExecContext(ctx, insert, string(doc), string(emptyForm(doc))); err != nil {
			return storageErr(doc, "bootstrap", err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
