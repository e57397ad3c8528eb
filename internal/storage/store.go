// Package storage defines the persistence contract consumed by the API and
// notification layers. Implementations live in the postgres and inmemory
// subpackages and are selected at composition time.
package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/core"
)

const (
	// DefaultListLimit bounds list results when the caller gives no limit.
	DefaultListLimit = 50

	// MaxListLimit caps caller-supplied limits.
	MaxListLimit = 250
)

// PostalAddressStore persists postal addresses.
//
// Save is insert-or-update governed by the entity's IdVersion state: a New or
// NewWithId entity is inserted at version 0 (minting an identity if needed);
// an Existing entity is updated only if its version still matches the stored
// one, otherwise ErrOptimisticLockConflict is returned and storage is left
// unchanged. The returned entity carries the authoritative new IdVersion; the
// input is never mutated.
type PostalAddressStore interface {
	GetPostalAddress(ctx context.Context, id uuid.UUID) (*core.PostalAddress, error)
	SavePostalAddress(ctx context.Context, address *core.PostalAddress) (*core.PostalAddress, error)
	ListPostalAddresses(ctx context.Context, opts ...ListOption) ([]*core.PostalAddress, error)
}

// SportConfigStore persists sport configurations. Save semantics match
// PostalAddressStore.
type SportConfigStore interface {
	GetSportConfig(ctx context.Context, id uuid.UUID) (*core.SportConfig, error)
	SaveSportConfig(ctx context.Context, config *core.SportConfig) (*core.SportConfig, error)
	ListSportConfigs(ctx context.Context, opts ...ListOption) ([]*core.SportConfig, error)
}

// Store aggregates the per-entity stores behind one readiness-checked handle.
type Store interface {
	PostalAddressStore
	SportConfigStore

	// CheckReadiness reports whether the backend can serve requests.
	CheckReadiness(ctx context.Context) error
}

// ListOptions narrows and bounds list queries. Results are always ordered by
// name ascending (unset names last), then id, so pagination is deterministic.
type ListOptions struct {
	// NameFilter selects entities whose name contains the filter,
	// case-insensitively. LIKE wildcards in the filter are treated
	// literally.
	NameFilter string

	// Limit bounds the result size.
	Limit int
}

// ListOption configures a ListOptions.
type ListOption func(*ListOptions) error

// WithNameFilter sets the case-insensitive contains filter on the name.
func WithNameFilter(filter string) ListOption {
	return func(o *ListOptions) error {
		if filter == "" {
			return fmt.Errorf("invalid name filter: %q", filter)
		}
		o.NameFilter = filter
		return nil
	}
}

// WithLimit bounds the number of results.
func WithLimit(limit int) ListOption {
	return func(o *ListOptions) error {
		if limit <= 0 {
			return fmt.Errorf("invalid limit: %d", limit)
		}
		o.Limit = limit
		return nil
	}
}

// NewListOptions applies opts over the defaults and caps the limit.
func NewListOptions(opts ...ListOption) (*ListOptions, error) {
	o := &ListOptions{Limit: DefaultListLimit}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	return o, nil
}
