// Package inmemory provides an in-memory implementation of the storage
// contract. It enforces the same version and unique-key semantics as the
// postgres backend so tests and the --in-memory mode exercise identical
// behavior.
package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/core"
	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/storage"
)

// Constraint names mirror the postgres migration so error details are
// backend-independent.
const (
	addressNameConstraint     = "postal_addresses_name_uniq"
	sportConfigNameConstraint = "sport_configs_sport_id_name_uniq"
)

type memStore struct {
	mu        sync.Mutex
	addresses map[uuid.UUID]*core.PostalAddress
	configs   map[uuid.UUID]*core.SportConfig
}

var _ storage.Store = (*memStore)(nil)

// New creates an empty in-memory store.
func New() storage.Store {
	return &memStore{
		addresses: make(map[uuid.UUID]*core.PostalAddress),
		configs:   make(map[uuid.UUID]*core.SportConfig),
	}
}

// CheckReadiness always succeeds; the map store has no external dependency.
func (*memStore) CheckReadiness(_ context.Context) error {
	return nil
}

func (s *memStore) GetPostalAddress(_ context.Context, id uuid.UUID) (*core.PostalAddress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	address, ok := s.addresses[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return address.Clone(), nil
}

func (s *memStore) SavePostalAddress(_ context.Context, address *core.PostalAddress) (*core.PostalAddress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := address.IdVersion.ID(); ok {
		stored, exists := s.addresses[id]
		if !exists {
			return nil, storage.ErrNotFound
		}
		callerVersion, _ := address.IdVersion.Version()
		storedVersion, _ := stored.IdVersion.Version()
		if callerVersion != storedVersion {
			return nil, storage.ErrOptimisticLockConflict
		}
		if err := s.checkAddressNameLocked(address.Name, id); err != nil {
			return nil, err
		}
		saved := address.Clone()
		saved.IdVersion = core.ExistingIdVersion(id, storedVersion+1)
		s.addresses[id] = saved
		return saved.Clone(), nil
	}

	id, ok := address.IdVersion.InitialID()
	if !ok {
		id = uuid.New()
	}
	if _, exists := s.addresses[id]; exists {
		return nil, &storage.UniqueViolationError{Constraint: "postal_addresses_pkey"}
	}
	if err := s.checkAddressNameLocked(address.Name, id); err != nil {
		return nil, err
	}
	saved := address.Clone()
	saved.IdVersion = core.ExistingIdVersion(id, 0)
	s.addresses[id] = saved
	return saved.Clone(), nil
}

func (s *memStore) checkAddressNameLocked(name string, self uuid.UUID) error {
	if name == "" {
		return nil
	}
	for id, other := range s.addresses {
		if id != self && strings.EqualFold(other.Name, name) {
			return &storage.UniqueViolationError{Constraint: addressNameConstraint}
		}
	}
	return nil
}

func (s *memStore) ListPostalAddresses(_ context.Context, opts ...storage.ListOption) ([]*core.PostalAddress, error) {
	options, err := storage.NewListOptions(opts...)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*core.PostalAddress, 0, len(s.addresses))
	for _, address := range s.addresses {
		if !matchesName(address.Name, options.NameFilter) {
			continue
		}
		result = append(result, address.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		idI, _ := result[i].IdVersion.ID()
		idJ, _ := result[j].IdVersion.ID()
		return lessByName(result[i].Name, idI, result[j].Name, idJ)
	})
	if len(result) > options.Limit {
		result = result[:options.Limit]
	}
	return result, nil
}

func (s *memStore) GetSportConfig(_ context.Context, id uuid.UUID) (*core.SportConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	config, ok := s.configs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return config.Clone(), nil
}

func (s *memStore) SaveSportConfig(_ context.Context, config *core.SportConfig) (*core.SportConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := config.IdVersion.ID(); ok {
		stored, exists := s.configs[id]
		if !exists {
			return nil, storage.ErrNotFound
		}
		callerVersion, _ := config.IdVersion.Version()
		storedVersion, _ := stored.IdVersion.Version()
		if callerVersion != storedVersion {
			return nil, storage.ErrOptimisticLockConflict
		}
		if err := s.checkConfigNameLocked(config.SportID, config.Name, id); err != nil {
			return nil, err
		}
		saved := config.Clone()
		saved.IdVersion = core.ExistingIdVersion(id, storedVersion+1)
		s.configs[id] = saved
		return saved.Clone(), nil
	}

	id, ok := config.IdVersion.InitialID()
	if !ok {
		id = uuid.New()
	}
	if _, exists := s.configs[id]; exists {
		return nil, &storage.UniqueViolationError{Constraint: "sport_configs_pkey"}
	}
	if err := s.checkConfigNameLocked(config.SportID, config.Name, id); err != nil {
		return nil, err
	}
	saved := config.Clone()
	saved.IdVersion = core.ExistingIdVersion(id, 0)
	s.configs[id] = saved
	return saved.Clone(), nil
}

func (s *memStore) checkConfigNameLocked(sportID uuid.UUID, name string, self uuid.UUID) error {
	for id, other := range s.configs {
		if id != self && other.SportID == sportID && strings.EqualFold(other.Name, name) {
			return &storage.UniqueViolationError{Constraint: sportConfigNameConstraint}
		}
	}
	return nil
}

func (s *memStore) ListSportConfigs(_ context.Context, opts ...storage.ListOption) ([]*core.SportConfig, error) {
	options, err := storage.NewListOptions(opts...)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*core.SportConfig, 0, len(s.configs))
	for _, config := range s.configs {
		if !matchesName(config.Name, options.NameFilter) {
			continue
		}
		result = append(result, config.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		idI, _ := result[i].IdVersion.ID()
		idJ, _ := result[j].IdVersion.ID()
		return lessByName(result[i].Name, idI, result[j].Name, idJ)
	})
	if len(result) > options.Limit {
		result = result[:options.Limit]
	}
	return result, nil
}

func matchesName(name, filter string) bool {
	if filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(filter))
}

// lessByName orders by name ascending with unset names last, then by id so
// listing stays deterministic.
func lessByName(nameI string, idI uuid.UUID, nameJ string, idJ uuid.UUID) bool {
	if nameI != nameJ {
		if nameI == "" {
			return false
		}
		if nameJ == "" {
			return true
		}
		lowerI, lowerJ := strings.ToLower(nameI), strings.ToLower(nameJ)
		if lowerI != lowerJ {
			return lowerI < lowerJ
		}
	}
	return idI.String() < idJ.String()
}
