package services

import (
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/orgtree/modules/org/domain/organization"
	"github.com/iota-uz/orgtree/modules/org/infrastructure/persistence"
)

func newTestService() *OrganizationService {
	return &OrganizationService{
		subtreeStartLevel: 2,
		newOrgVersion:     "1.0.0",
		baseOrgVersion:    "0.0.0",
		pageSize:          25,
		maxPageSize:       100,
	}
}

func TestValidate(t *testing.T) {
	s := newTestService()

	err := s.validate(organization.New("   "))
	require.NotNil(t, err)
	assert.Equal(t, CodeNameRequired, err.Code)

	err = s.validate(organization.New("Ops", organization.WithType("galactic")))
	require.NotNil(t, err)
	assert.Equal(t, CodeTypeInvalid, err.Code)

	err = s.validate(organization.New("Ops", organization.WithStatus("paused")))
	require.NotNil(t, err)
	assert.Equal(t, CodeStatusInvalid, err.Code)

	err = s.validate(organization.New("Ops", organization.WithAttributes([]organization.Attribute{
		{Key: "k", Value: "1"},
		{Key: "k", Value: "2"},
	})))
	require.NotNil(t, err)
	assert.Equal(t, CodeAttrKeyDuplicate, err.Code)

	err = s.validate(organization.New("Ops", organization.WithAttributes([]organization.Attribute{
		{Key: "  ", Value: "1"},
	})))
	require.NotNil(t, err)
	assert.Equal(t, CodeAttrKeyRequired, err.Code)

	err = s.validate(organization.New("Ops", organization.WithAttributes([]organization.Attribute{
		{Key: "region", Value: "   "},
	})))
	require.NotNil(t, err)
	assert.Equal(t, CodeAttrValueRequired, err.Code)

	assert.Nil(t, s.validate(organization.New("Ops")))
}

func TestCheckVersionChange(t *testing.T) {
	s := newTestService()
	org := organization.New("Ops", organization.WithVersion("1.0.0"))

	assert.Nil(t, s.checkVersionChange(org, "1.0.0", 3))

	err := s.checkVersionChange(org, "2.0.0", 2)
	require.NotNil(t, err)
	assert.Equal(t, CodeVersionImmutable, err.Code)

	err = s.checkVersionChange(org, "not-a-version", 1)
	require.NotNil(t, err)
	assert.Equal(t, CodeVersionInvalid, err.Code)

	assert.Nil(t, s.checkVersionChange(org, "2.0.0", 1))
}

func TestClampLimit(t *testing.T) {
	s := newTestService()
	assert.Equal(t, 25, s.clampLimit(0))
	assert.Equal(t, 25, s.clampLimit(-5))
	assert.Equal(t, 40, s.clampLimit(40))
	assert.Equal(t, 100, s.clampLimit(5000))
}

func TestTrimAncestors_DropsStructuralScaffolding(t *testing.T) {
	// Chain for a node at depth 4, nearest-first down to the root.
	chain := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New(), uuid.New()}

	// Boundary level 2 keeps depths >= 1: self(4), 3, 2, 1.
	trimmed := trimAncestors(chain, 2, uuid.Nil)
	require.Len(t, trimmed, 4)
	assert.Equal(t, chain[:4], trimmed)
}

func TestTrimAncestors_CutsAboveAccessingOrg(t *testing.T) {
	chain := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New(), uuid.New()}

	trimmed := trimAncestors(chain, 1, chain[1])
	require.Len(t, trimmed, 2)
	assert.Equal(t, chain[:2], trimmed)
}

func TestTrimAncestors_ShallowChainUntouched(t *testing.T) {
	chain := []uuid.UUID{uuid.New()}
	trimmed := trimAncestors(chain, 2, uuid.Nil)
	assert.Equal(t, chain, trimmed)
}

func TestMapStoreError(t *testing.T) {
	err := mapStoreError(persistence.ErrOrganizationNotFound)
	assert.Equal(t, http.StatusNotFound, err.Status)
	assert.Equal(t, CodeNotFound, err.Code)

	err = mapStoreError(&pgconn.PgError{Code: "23505", ConstraintName: "organizations_parent_name_key"})
	assert.Equal(t, http.StatusConflict, err.Status)
	assert.Equal(t, CodeNameConflict, err.Code)

	err = mapStoreError(&pgconn.PgError{Code: "23505", ConstraintName: "organization_attributes_pkey"})
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Equal(t, CodeAttrKeyDuplicate, err.Code)

	err = mapStoreError(&pgconn.PgError{Code: "23503", ConstraintName: "organizations_parent_id_fkey"})
	assert.Equal(t, http.StatusNotFound, err.Status)
	assert.Equal(t, CodeParentNotFound, err.Code)

	cause := errors.New("connection refused")
	err = mapStoreError(cause)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.Equal(t, CodeStoreFailure, err.Code)
	assert.ErrorIs(t, err, cause)
}

func TestMapFilterError(t *testing.T) {
	err := mapFilterError(organization.ErrUnsupportedCombiner)
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Equal(t, CodeInvalidFilter, err.Code)

	err = mapFilterError(persistence.ErrInvalidCursor)
	assert.Equal(t, CodeInvalidCursor, err.Code)
	assert.True(t, err.IsClient())
}

func TestServiceError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := serverError(CodeStoreFailure, "store failure", cause)
	assert.ErrorIs(t, err, cause)
	assert.False(t, err.IsClient())
	assert.Contains(t, err.Error(), "ORG_STORE_FAILURE")
}

func TestCheckRootGuards(t *testing.T) {
	s := newTestService()
	root := organization.New("Root")

	err := s.checkRootGuards(root, true, organization.StatusActive)
	require.NotNil(t, err)
	assert.Equal(t, CodeRootImmutable, err.Code)

	err = s.checkRootGuards(root, false, organization.StatusDisabled)
	require.NotNil(t, err)
	assert.Equal(t, CodeRootImmutable, err.Code)

	assert.Nil(t, s.checkRootGuards(root, false, organization.StatusActive))

	parentID := uuid.New()
	child := organization.New("Child", organization.WithParentID(&parentID))
	assert.Nil(t, s.checkRootGuards(child, true, organization.StatusDisabled))
}
