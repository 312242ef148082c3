// Package store persists finished exam sessions.
package store

import (
	"context"

	"github.com/oralab/exo/pkg/core/types"
)

// Store is the results persistence contract served by the gateway.
type Store interface {
	Save(ctx context.Context, record types.SessionRecord) (string, error)
	Get(ctx context.Context, id string) (*types.SessionRecord, error)
	History(ctx context.Context, limit int) ([]types.SessionRecord, error)
	Close()
}
