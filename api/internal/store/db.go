package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
)

// Open connects to Postgres through pgx and checks the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(1 * time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db.Ping: %w", err)
	}
	return db, nil
}

var schema = []string{
	`create table if not exists credentials (
  owner      text not null,
  name       text not null,
  value      text not null,
  updated_at timestamptz not null default now(),
  primary key (owner, name)
)`,
	`create table if not exists matches (
  id            bigserial primary key,
  created_at    timestamptz not null default now(),
  image_hash    text not null,
  engine        text not null,
  model         text not null,
  pokemon_name  text not null,
  description   text not null,
  artwork_url   text not null,
  fallback      boolean not null default false
)`,
	`create index if not exists matches_created_at_idx on matches (created_at desc)`,
}

// Migrate creates the tables the repos need.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, q := range schema {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
