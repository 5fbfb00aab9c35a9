package vecstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// InsertPassageParams is one row to insert into the passages table.
type InsertPassageParams struct {
	ID        uuid.UUID
	Source    string
	Title     string
	Content   string
	Embedding pgvector.Vector
}

// SearchPassagesRow is one nearest-neighbor search result.
type SearchPassagesRow struct {
	ID         uuid.UUID
	Source     string
	Title      string
	Content    string
	Similarity float32
}

// Querier defines the database operations the store needs. The interface
// is defined here, by the consumer, so tests can substitute a mock and a
// future backend only has to satisfy these four methods.
type Querier interface {
	// DeleteAllPassages removes every stored passage.
	DeleteAllPassages(ctx context.Context) error

	// InsertPassages bulk-inserts rows in one round trip.
	InsertPassages(ctx context.Context, rows []InsertPassageParams) error

	// SearchPassages returns up to limit rows nearest to the query
	// embedding, similarity descending. minSimilarity of 0 disables the
	// cutoff.
	SearchPassages(ctx context.Context, embedding pgvector.Vector, limit int32, minSimilarity float32) ([]SearchPassagesRow, error)

	// CountPassages returns the number of stored passages.
	CountPassages(ctx context.Context) (int64, error)
}

// PgxQuerier implements Querier against a pgx connection pool.
type PgxQuerier struct {
	pool *pgxpool.Pool
}

// NewPgxQuerier creates a PgxQuerier over the given pool.
func NewPgxQuerier(pool *pgxpool.Pool) *PgxQuerier {
	return &PgxQuerier{pool: pool}
}

func (q *PgxQuerier) DeleteAllPassages(ctx context.Context) error {
	if _, err := q.pool.Exec(ctx, `DELETE FROM passages`); err != nil {
		return fmt.Errorf("deleting passages: %w", err)
	}
	return nil
}

func (q *PgxQuerier) InsertPassages(ctx context.Context, rows []InsertPassageParams) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(
			`INSERT INTO passages (id, source, title, content, embedding) VALUES ($1, $2, $3, $4, $5)`,
			row.ID, row.Source, row.Title, row.Content, row.Embedding,
		)
	}

	results := q.pool.SendBatch(ctx, batch)
	defer func() {
		_ = results.Close()
	}()

	for i := range rows {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("inserting passage %d (%s): %w", i, rows[i].Source, err)
		}
	}
	return nil
}

func (q *PgxQuerier) SearchPassages(ctx context.Context, embedding pgvector.Vector, limit int32, minSimilarity float32) ([]SearchPassagesRow, error) {
	// <=> is cosine distance; similarity = 1 - distance
	const base = `
		SELECT id, source, title, content, 1 - (embedding <=> $1) AS similarity
		FROM passages`

	var (
		rows pgx.Rows
		err  error
	)
	if minSimilarity > 0 {
		rows, err = q.pool.Query(ctx, base+`
			WHERE 1 - (embedding <=> $1) >= $3
			ORDER BY embedding <=> $1
			LIMIT $2`, embedding, limit, minSimilarity)
	} else {
		rows, err = q.pool.Query(ctx, base+`
			ORDER BY embedding <=> $1
			LIMIT $2`, embedding, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("querying passages: %w", err)
	}
	defer rows.Close()

	var out []SearchPassagesRow
	for rows.Next() {
		var r SearchPassagesRow
		if err := rows.Scan(&r.ID, &r.Source, &r.Title, &r.Content, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scanning passage row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading passage rows: %w", err)
	}
	return out, nil
}

func (q *PgxQuerier) CountPassages(ctx context.Context) (int64, error) {
	var count int64
	if err := q.pool.QueryRow(ctx, `SELECT count(*) FROM passages`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting passages: %w", err)
	}
	return count, nil
}
