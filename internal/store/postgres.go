package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	doc        JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
)`

// Postgres is a PostgreSQL-backed DocumentStore using pgx/v5. Documents live
// in a single jsonb table keyed by (collection, id).
type Postgres struct {
	name string
	pool *pgxpool.Pool
}

// NewPostgres creates a PostgreSQL document store.
func NewPostgres(name string, pool *pgxpool.Pool) *Postgres {
	return &Postgres{name: name, pool: pool}
}

// EnsureSchema creates the documents table if it does not exist.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	return nil
}

func (s *Postgres) Name() string { return s.name }

func (s *Postgres) Get(ctx context.Context, collection, id string) ([]byte, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query document %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

func (s *Postgres) Put(ctx context.Context, collection, id string, doc []byte) error {
	if _, err := s.pool.Exec(ctx, upsertSQL, collection, id, doc); err != nil {
		return fmt.Errorf("upsert document %s/%s: %w", collection, id, err)
	}
	return nil
}

const upsertSQL = `
	INSERT INTO documents (collection, id, doc, updated_at)
	VALUES ($1, $2, $3, now())
	ON CONFLICT (collection, id) DO UPDATE SET
		doc = EXCLUDED.doc,
		updated_at = EXCLUDED.updated_at`

func (s *Postgres) Insert(ctx context.Context, collection, id string, doc []byte) error {
	tag, err := s.pool.Exec(ctx, insertSQL, collection, id, doc)
	if err != nil {
		return fmt.Errorf("insert document %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrExists
	}
	return nil
}

const insertSQL = `
	INSERT INTO documents (collection, id, doc, updated_at)
	VALUES ($1, $2, $3, now())
	ON CONFLICT (collection, id) DO NOTHING`

func (s *Postgres) Delete(ctx context.Context, collection, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	if err != nil {
		return fmt.Errorf("delete document %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) Query(ctx context.Context, collection string, match Predicate) ([]Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, doc FROM documents WHERE collection = $1 ORDER BY id`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", collection, err)
	}
	if match == nil {
		return entries, nil
	}
	out := entries[:0]
	for _, e := range entries {
		if match(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Postgres) List(ctx context.Context, collection string, offset, limit int) ([]Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, doc FROM documents WHERE collection = $1 ORDER BY id OFFSET $2 LIMIT $3`,
		collection, offset, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", collection, err)
	}
	return entries, nil
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Doc); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Commit applies the mutations inside a single transaction.
func (s *Postgres) Commit(ctx context.Context, mutations []Mutation) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	for _, m := range mutations {
		switch m.Op {
		case OpPut:
			_, err = tx.Exec(ctx, upsertSQL, m.Collection, m.ID, m.Doc)
		case OpDelete:
			_, err = tx.Exec(ctx,
				`DELETE FROM documents WHERE collection = $1 AND id = $2`,
				m.Collection, m.ID,
			)
		}
		if err != nil {
			return fmt.Errorf("batch %s/%s: %w", m.Collection, m.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (s *Postgres) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
