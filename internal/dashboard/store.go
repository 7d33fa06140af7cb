package dashboard

import (
	"context"

	"github.com/linnemanlabs/regwatch/internal/feed"
)

// SourceStore is the persistence interface for the source catalog.
// Sources are append-only and listed in insertion order.
type SourceStore interface {
	List(ctx context.Context) ([]feed.Source, error)
	Add(ctx context.Context, src feed.Source) error
}
