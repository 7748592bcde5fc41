package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps each named collection as one JSONB row in
// prompt_collections (see migrations/001_prompt_collections.sql).
type PostgresStore struct {
	db   *pgxpool.Pool
	name string
}

func NewPostgresStore(db *pgxpool.Pool, name string) *PostgresStore {
	if name == "" {
		name = "default"
	}
	return &PostgresStore{db: db, name: name}
}

func (s *PostgresStore) Load(ctx context.Context) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(ctx,
		`SELECT data FROM prompt_collections WHERE name = $1`,
		s.name,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoCollection
	}
	if err != nil {
		return nil, fmt.Errorf("load collection %s: %w", s.name, err)
	}
	return data, nil
}

func (s *PostgresStore) Save(ctx context.Context, data []byte) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO prompt_collections (name, data, updated_at)
		 VALUES ($1, $2::jsonb, now())
		 ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		s.name, string(data),
	)
	if err != nil {
		return fmt.Errorf("save collection %s: %w", s.name, err)
	}
	return nil
}

// Update serialises writers of this collection with a transaction-scoped
// advisory lock, which also covers the first insert of a missing row.
func (s *PostgresStore) Update(ctx context.Context, fn Mutation) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, s.name); err != nil {
			return fmt.Errorf("lock collection %s: %w", s.name, err)
		}

		var data []byte
		err := tx.QueryRow(ctx,
			`SELECT data FROM prompt_collections WHERE name = $1`,
			s.name,
		).Scan(&data)
		if errors.Is(err, pgx.ErrNoRows) {
			data = nil
		} else if err != nil {
			return fmt.Errorf("load collection %s: %w", s.name, err)
		}

		out, err := fn(data)
		if err != nil || out == nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO prompt_collections (name, data, updated_at)
			 VALUES ($1, $2::jsonb, now())
			 ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
			s.name, string(out),
		)
		if err != nil {
			return fmt.Errorf("save collection %s: %w", s.name, err)
		}
		return nil
	})
}
