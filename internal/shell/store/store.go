package store

import (
	"context"

	"github.com/stokerbuild/stoker/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for the build ledger.
type Store interface {
	// Build operations
	CreateBuild(ctx context.Context, build *domain.Build) error
	GetBuild(ctx context.Context, referenceID string) (*domain.Build, error)
	UpdateBuild(ctx context.Context, build *domain.Build) error
	ListBuilds(ctx context.Context, opts ListOptions) ([]domain.Build, error)

	// FindByDigests returns the most recent succeeded build with the same
	// recipe and source digests, used to report that a rebuild had identical
	// inputs.
	FindByDigests(ctx context.Context, recipeDigest, sourceDigest string) (*domain.Build, error)

	// Lifecycle
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination options.
type ListOptions struct {
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
