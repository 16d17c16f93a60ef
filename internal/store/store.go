// Package store implements the PostgreSQL-backed persistence for indexing
// rules, POI disputes, and the indexer-management actions queue. It follows
// the connection/bridge shape of the teacher's Mongo repository layer
// (internal/repository/db), adapted to database/sql + sqlx + lib/pq per the
// Postgres requirement in spec §3/§6.
package store

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"indexer-agent/internal/logger"
)

// Store is the bridge to the PostgreSQL off-chain database.
type Store struct {
	db  *sqlx.DB
	log logger.Logger
}

// Config names the Postgres connection the daemon was started with.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
}

func (c Config) dsn() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.User, c.Password, sslMode)
}

// Open connects to Postgres and runs the idempotent migration ladder.
func Open(cfg Config, log logger.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("connect to postgres at %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Database, err)
	}

	s := &Store{db: db, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
