package cache

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	tenantID := uuid.New()
	orgID := uuid.New()
	key := OrgKey(tenantID, orgID, FieldName)

	_, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, key, "Engineering"))
	v, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Engineering", v)

	require.NoError(t, s.Delete(ctx, key))
	_, ok, err = s.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, s.Len())
}

func TestMemoryStore_PurgeTenantLeavesOthers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	tenantA := uuid.New()
	tenantB := uuid.New()
	orgID := uuid.New()

	for _, key := range OrgKeys(tenantA, orgID) {
		require.NoError(t, s.Set(ctx, key, "a"))
	}
	require.NoError(t, s.Set(ctx, OrgKey(tenantB, orgID, FieldName), "b"))

	require.NoError(t, s.PurgeTenant(ctx, tenantA))

	_, ok, err := s.Get(ctx, OrgKey(tenantA, orgID, FieldName))
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := s.Get(ctx, OrgKey(tenantB, orgID, FieldName))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", v)
}

func TestOrgKeys_CoverEveryField(t *testing.T) {
	tenantID := uuid.New()
	orgID := uuid.New()
	keys := OrgKeys(tenantID, orgID)
	require.Len(t, keys, 7)
	assert.Contains(t, keys, OrgKey(tenantID, orgID, FieldVersion))
	assert.Contains(t, keys, OrgKey(tenantID, orgID, FieldMinimal))
}

func TestHandleKeys(t *testing.T) {
	tenantID := uuid.MustParse("7f9e0b6a-2f64-4f2b-9c1d-3a8e5b7c9d01")
	orgID := uuid.MustParse("1c2d3e4f-5a6b-4c7d-8e9f-0a1b2c3d4e5f")
	assert.Equal(t,
		"org:7f9e0b6a-2f64-4f2b-9c1d-3a8e5b7c9d01:handle:acme",
		HandleKey(tenantID, "acme"))
	assert.Equal(t,
		"org:7f9e0b6a-2f64-4f2b-9c1d-3a8e5b7c9d01:1c2d3e4f-5a6b-4c7d-8e9f-0a1b2c3d4e5f:handle",
		IDHandleKey(tenantID, orgID))
}
