// Package core holds the domain value types shared by storage, notification
// and API layers.
package core

import (
	"fmt"

	"github.com/google/uuid"
)

// IdVersion expresses the persistence state of a mutable entity. It is in
// exactly one of three states:
//
//   - New: no identity assigned yet; the storage layer mints one on first save.
//   - NewWithId: the caller pre-assigned an identity but the entity has never
//     been persisted.
//   - Existing: identity and last-known version are both known; any save is
//     conditioned on the version matching the stored one.
//
// The zero value is New. The only way to reach Existing is through a storage
// implementation calling ExistingIdVersion after a successful write; a nil
// identity is only ever representable as New.
type IdVersion struct {
	id        uuid.UUID
	version   uint32
	persisted bool
}

// NewIdVersion builds an IdVersion from an identity and an optional version.
// A nil id always yields New, regardless of version; a non-nil id without a
// version yields NewWithId; id plus version yields Existing.
func NewIdVersion(id uuid.UUID, version *uint32) IdVersion {
	if id == uuid.Nil {
		return IdVersion{}
	}
	if version == nil {
		return IdVersion{id: id}
	}
	return IdVersion{id: id, version: *version, persisted: true}
}

// ExistingIdVersion builds the Existing state directly. It is intended for
// storage implementations translating rows back into entities. A nil id
// degrades to New so the invalid id/version combination stays unrepresentable.
func ExistingIdVersion(id uuid.UUID, version uint32) IdVersion {
	if id == uuid.Nil {
		return IdVersion{}
	}
	return IdVersion{id: id, version: version, persisted: true}
}

// ID returns the identity, but only in the Existing state.
func (iv IdVersion) ID() (uuid.UUID, bool) {
	if !iv.persisted {
		return uuid.Nil, false
	}
	return iv.id, true
}

// Version returns the last-known version, but only in the Existing state.
func (iv IdVersion) Version() (uint32, bool) {
	if !iv.persisted {
		return 0, false
	}
	return iv.version, true
}

// InitialID returns the caller-assigned identity, but only in the NewWithId
// state.
func (iv IdVersion) InitialID() (uuid.UUID, bool) {
	if iv.persisted || iv.id == uuid.Nil {
		return uuid.Nil, false
	}
	return iv.id, true
}

// IsNew reports whether the entity has never been persisted (New or NewWithId).
func (iv IdVersion) IsNew() bool {
	return !iv.persisted
}

// IsExisting reports whether identity and version are both known.
func (iv IdVersion) IsExisting() bool {
	return iv.persisted
}

func (iv IdVersion) String() string {
	switch {
	case iv.persisted:
		return fmt.Sprintf("existing(%s@%d)", iv.id, iv.version)
	case iv.id != uuid.Nil:
		return fmt.Sprintf("new(%s)", iv.id)
	default:
		return "new"
	}
}
