package store

import (
	"context"

	"github.com/artpar/flexdeploy/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store persists completed deploys.
type Store interface {
	Record(ctx context.Context, record domain.DeployRecord) error
	Get(ctx context.Context, id string) (*domain.DeployRecord, error)
	List(ctx context.Context, opts ListOptions) ([]domain.DeployRecord, error)

	Close() error
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination and filtering options.
type ListOptions struct {
	// Plugin restricts results to one plugin when set.
	Plugin string
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  100,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
