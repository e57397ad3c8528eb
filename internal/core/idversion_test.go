package core

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uint32Ptr(v uint32) *uint32 { return &v }

func TestNewIdVersion(t *testing.T) {
	t.Parallel()

	someID := uuid.New()

	testCases := []struct {
		name          string
		id            uuid.UUID
		version       *uint32
		wantNew       bool
		wantID        bool
		wantVersion   *uint32
		wantInitialID bool
	}{
		{
			name:    "nil id without version is New",
			id:      uuid.Nil,
			wantNew: true,
		},
		{
			name:    "nil id with version is still New",
			id:      uuid.Nil,
			version: uint32Ptr(7),
			wantNew: true,
		},
		{
			name:          "id without version is NewWithId",
			id:            someID,
			wantNew:       true,
			wantInitialID: true,
		},
		{
			name:        "id with version is Existing",
			id:          someID,
			version:     uint32Ptr(3),
			wantID:      true,
			wantVersion: uint32Ptr(3),
		},
		{
			name:        "id with version zero is Existing",
			id:          someID,
			version:     uint32Ptr(0),
			wantID:      true,
			wantVersion: uint32Ptr(0),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			iv := NewIdVersion(tc.id, tc.version)

			assert.Equal(t, tc.wantNew, iv.IsNew())
			assert.Equal(t, !tc.wantNew, iv.IsExisting())

			id, ok := iv.ID()
			assert.Equal(t, tc.wantID, ok)
			if tc.wantID {
				assert.Equal(t, tc.id, id)
			}

			version, ok := iv.Version()
			if tc.wantVersion != nil {
				require.True(t, ok)
				assert.Equal(t, *tc.wantVersion, version)
			} else {
				assert.False(t, ok)
			}

			initialID, ok := iv.InitialID()
			assert.Equal(t, tc.wantInitialID, ok)
			if tc.wantInitialID {
				assert.Equal(t, tc.id, initialID)
			}
		})
	}
}

func TestExistingIdVersion(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	iv := ExistingIdVersion(id, 5)

	require.True(t, iv.IsExisting())
	gotID, ok := iv.ID()
	require.True(t, ok)
	assert.Equal(t, id, gotID)
	gotVersion, ok := iv.Version()
	require.True(t, ok)
	assert.Equal(t, uint32(5), gotVersion)

	// A nil identity must not be able to masquerade as persisted.
	nilIv := ExistingIdVersion(uuid.Nil, 5)
	assert.True(t, nilIv.IsNew())
	_, ok = nilIv.Version()
	assert.False(t, ok)
}

func TestIdVersionZeroValueIsNew(t *testing.T) {
	t.Parallel()

	var iv IdVersion
	assert.True(t, iv.IsNew())
	_, ok := iv.ID()
	assert.False(t, ok)
	_, ok = iv.InitialID()
	assert.False(t, ok)
	assert.Equal(t, "new", iv.String())
}
