package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	errs "github.com/sweetpotato0/deepresearch/errors"
	"github.com/sweetpotato0/deepresearch/research"
)

// Postgres stores session snapshots in a PostgreSQL table, upserting by
// session ID.
type Postgres struct {
	db *sql.DB
}

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DefaultPostgresConfig returns the default PostgreSQL configuration.
func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		Host:    "localhost",
		Port:    5432,
		User:    "postgres",
		DBName:  "deepresearch",
		SSLMode: "disable",
	}
}

// NewPostgres connects to PostgreSQL, creates the sessions table when
// missing, and returns a session store. A nil config selects localhost
// defaults.
func NewPostgres(config *PostgresConfig) (*Postgres, error) {
	if config == nil {
		config = DefaultPostgresConfig()
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	s := &Postgres{db: db}
	if err := s.createTable(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return s, nil
}

func (s *Postgres) createTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS research_sessions (
		id         TEXT PRIMARY KEY,
		query      TEXT NOT NULL,
		status     TEXT NOT NULL,
		snapshot   JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_research_sessions_created_at ON research_sessions(created_at);
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Save stores a snapshot of the session, replacing any previous one.
func (s *Postgres) Save(ctx context.Context, session *research.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("%w: session must have an ID", errs.ErrInvalidInput)
	}

	snapshot, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	query := `
	INSERT INTO research_sessions (id, query, status, snapshot, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE SET
		status     = EXCLUDED.status,
		snapshot   = EXCLUDED.snapshot,
		updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		session.ID,
		session.Query,
		string(session.Status),
		snapshot,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store session in PostgreSQL: %w", err)
	}
	return nil
}

// Load returns the stored session.
func (s *Postgres) Load(ctx context.Context, id string) (*research.Session, error) {
	var snapshot []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot FROM research_sessions WHERE id = $1`, id).Scan(&snapshot)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", id, errs.ErrSessionNotFound)
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session research.Session
	if err := json.Unmarshal(snapshot, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// List returns all stored session IDs, newest first.
func (s *Postgres) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM research_sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return ids, nil
}

// Delete removes a stored session. Deleting an unknown ID is not an error.
func (s *Postgres) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM research_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Ping checks the PostgreSQL connection.
func (s *Postgres) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the PostgreSQL connection.
func (s *Postgres) Close() error {
	return s.db.Close()
}
