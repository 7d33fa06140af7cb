// Package pgstore provides a PostgreSQL implementation of dashboard.SourceStore.
package pgstore

import (
	"context"
	_ "embed"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/regwatch/internal/feed"
)

var tracer = otel.Tracer("github.com/linnemanlabs/regwatch/internal/dashboard/pgstore")

//go:embed schema.sql
var schema string

// Store persists the source catalog in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on pool and inserts any seed sources not already
// present. The caller owns the pool.
func New(ctx context.Context, pool *pgxpool.Pool, seed ...feed.Source) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &Store{pool: pool}
	if len(seed) == 0 {
		return s, nil
	}

	batch := &pgx.Batch{}
	for _, src := range seed {
		batch.Queue(
			`INSERT INTO sources (id, name, url, category) VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO NOTHING`,
			src.ID, src.Name, src.URL, src.Category,
		)
	}
	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		return nil, fmt.Errorf("seed sources: %w", err)
	}
	return s, nil
}

// List returns every source in insertion order.
func (s *Store) List(ctx context.Context) ([]feed.Source, error) {
	ctx, span := tracer.Start(ctx, "pgstore.List", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx, `SELECT id, name, url, category FROM sources ORDER BY seq`)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query sources: %w", err)
	}

	sources, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (feed.Source, error) {
		var src feed.Source
		err := row.Scan(&src.ID, &src.Name, &src.URL, &src.Category)
		return src, err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("scan sources: %w", err)
	}
	span.SetAttributes(attribute.Int("regwatch.sources", len(sources)))
	return sources, nil
}

// Add inserts a source. Ids must be unique.
func (s *Store) Add(ctx context.Context, src feed.Source) error {
	ctx, span := tracer.Start(ctx, "pgstore.Add", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
		attribute.String("regwatch.source_id", src.ID),
	))
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO sources (id, name, url, category) VALUES ($1, $2, $3, $4)`,
		src.ID, src.Name, src.URL, src.Category,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert source %s: %w", src.ID, err)
	}
	return nil
}
