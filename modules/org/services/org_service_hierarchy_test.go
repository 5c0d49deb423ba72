package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/orgtree/modules/org/domain/organization"
	"github.com/iota-uz/orgtree/modules/org/infrastructure/cache"
	"github.com/iota-uz/orgtree/modules/org/infrastructure/persistence"
	"github.com/iota-uz/orgtree/pkg/composables"
	"github.com/iota-uz/orgtree/pkg/eventbus"
)

// fakeTx satisfies pgx.Tx for contexts; the fake repository never
// touches it.
type fakeTx struct {
	pgx.Tx
}

type fakeRepository struct {
	nodes     map[uuid.UUID]*organization.Organization
	deleted   []uuid.UUID
	deleteErr error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{nodes: make(map[uuid.UUID]*organization.Organization)}
}

func (f *fakeRepository) add(org *organization.Organization) *organization.Organization {
	f.nodes[org.ID()] = org
	return org
}

func (f *fakeRepository) chain(id uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	for {
		org, ok := f.nodes[id]
		if !ok {
			return nil
		}
		out = append(out, id)
		if org.ParentID() == nil {
			return out
		}
		id = *org.ParentID()
	}
}

func (f *fakeRepository) Insert(_ context.Context, org *organization.Organization) error {
	f.nodes[org.ID()] = org
	return nil
}

func (f *fakeRepository) Update(_ context.Context, org *organization.Organization) error {
	if _, ok := f.nodes[org.ID()]; !ok {
		return persistence.ErrOrganizationNotFound
	}
	f.nodes[org.ID()] = org
	return nil
}

func (f *fakeRepository) Delete(_ context.Context, id uuid.UUID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.nodes, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeRepository) GetByID(_ context.Context, id uuid.UUID) (*organization.Organization, error) {
	org, ok := f.nodes[id]
	if !ok {
		return nil, persistence.ErrOrganizationNotFound
	}
	return org, nil
}

func (f *fakeRepository) GetRoot(_ context.Context) (*organization.Organization, error) {
	for _, org := range f.nodes {
		if org.ParentID() == nil {
			return org, nil
		}
	}
	return nil, persistence.ErrRootNotFound
}

func (f *fakeRepository) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := f.nodes[id]
	return ok, nil
}

func (f *fakeRepository) ExistsByName(_ context.Context, parentID *uuid.UUID, name string) (bool, error) {
	for _, org := range f.nodes {
		if org.Name() != name {
			continue
		}
		switch {
		case parentID == nil && org.ParentID() == nil:
			return true, nil
		case parentID != nil && org.ParentID() != nil && *parentID == *org.ParentID():
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepository) NameExistsInSubtree(_ context.Context, rootID uuid.UUID, name string) (bool, error) {
	for id, org := range f.nodes {
		if id == rootID || org.Name() != name {
			continue
		}
		for _, ancestor := range f.chain(id) {
			if ancestor == rootID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *fakeRepository) HasChildren(_ context.Context, id uuid.UUID) (bool, error) {
	ids, _ := f.ChildIDs(context.Background(), id, false)
	return len(ids) > 0, nil
}

func (f *fakeRepository) ChildIDs(_ context.Context, id uuid.UUID, recursive bool) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for childID, org := range f.nodes {
		if childID == id {
			continue
		}
		if recursive {
			for _, ancestor := range f.chain(childID)[1:] {
				if ancestor == id {
					out = append(out, childID)
					break
				}
			}
			continue
		}
		if org.ParentID() != nil && *org.ParentID() == id {
			out = append(out, childID)
		}
	}
	return out, nil
}

func (f *fakeRepository) AncestorIDs(_ context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	return f.chain(id), nil
}

func (f *fakeRepository) Depth(_ context.Context, id uuid.UUID) (int, error) {
	chain := f.chain(id)
	if chain == nil {
		return -1, nil
	}
	return len(chain) - 1, nil
}

func (f *fakeRepository) RelativeDepth(_ context.Context, a, b uuid.UUID) (int, error) {
	for i, ancestor := range f.chain(a) {
		if ancestor == b {
			return i, nil
		}
	}
	return -1, nil
}

func (f *fakeRepository) IsAncestor(ctx context.Context, candidate, node uuid.UUID) (bool, error) {
	depth, err := f.RelativeDepth(ctx, node, candidate)
	return depth > 0, err
}

type fakeProvisioner struct {
	provisionErr  error
	provisioned   []string
	deprovisioned []string
}

func (p *fakeProvisioner) Provision(_ context.Context, handle string, _ OwnerInfo) error {
	if p.provisionErr != nil {
		return p.provisionErr
	}
	p.provisioned = append(p.provisioned, handle)
	return nil
}

func (p *fakeProvisioner) Deprovision(_ context.Context, handle string) error {
	p.deprovisioned = append(p.deprovisioned, handle)
	return nil
}

func newHierarchyService(repo *fakeRepository, prov RealmProvisioner) *OrganizationService {
	return &OrganizationService{
		repo:              repo,
		cache:             newOrgCache(cache.NewMemoryStore()),
		provisioner:       prov,
		publisher:         eventbus.NewEventPublisher(logrus.New()),
		subtreeStartLevel: 2,
		newOrgVersion:     "1.0.0",
		baseOrgVersion:    "0.0.0",
		pageSize:          25,
		maxPageSize:       100,
	}
}

func hierarchyContext(tenantID uuid.UUID) context.Context {
	ctx := composables.WithTx(context.Background(), fakeTx{})
	return composables.WithTenantID(ctx, tenantID)
}

// buildTree assembles Root -> Acme (tenant, primary) -> {Sales,
// Marketing} -> North (under Sales), against a boundary level of 2.
func buildTree(repo *fakeRepository) (root, primary, sales, marketing, leaf *organization.Organization) {
	root = repo.add(organization.New("Root", organization.WithVersion("1.0.0")))
	rootID := root.ID()
	primary = repo.add(organization.New("Acme",
		organization.WithType(organization.TypeTenant),
		organization.WithParentID(&rootID),
		organization.WithVersion("1.0.0")))
	primaryID := primary.ID()
	sales = repo.add(organization.New("Sales",
		organization.WithParentID(&primaryID),
		organization.WithVersion("0.0.0")))
	salesID := sales.ID()
	marketing = repo.add(organization.New("Marketing",
		organization.WithParentID(&primaryID),
		organization.WithVersion("0.0.0")))
	leaf = repo.add(organization.New("North",
		organization.WithParentID(&salesID),
		organization.WithVersion("0.0.0")))
	return root, primary, sales, marketing, leaf
}

func TestCheckNameUnique_SubtreeScopeBelowBoundary(t *testing.T) {
	repo := newFakeRepository()
	root, _, _, marketing, _ := buildTree(repo)
	s := newHierarchyService(repo, &fakeProvisioner{})
	ctx := hierarchyContext(uuid.New())

	// "North" lives under Sales; creating it under the cousin branch
	// Marketing collides through the shared primary sub-tree.
	marketingID := marketing.ID()
	err := s.checkNameUnique(ctx, &marketingID, "North", 3)
	require.NotNil(t, err)
	assert.Equal(t, CodeNameConflict, err.Code)

	// Other names stay free.
	err = s.checkNameUnique(ctx, &marketingID, "South", 3)
	assert.Nil(t, err)

	// Above the boundary only siblings count: root already has a child,
	// but not one named "North".
	rootID := root.ID()
	err = s.checkNameUnique(ctx, &rootID, "North", 1)
	assert.Nil(t, err)
}

func TestCheckNameUnique_SubtreeScopeAtBoundaryDepth(t *testing.T) {
	repo := newFakeRepository()
	_, primary, _, _, _ := buildTree(repo)
	s := newHierarchyService(repo, &fakeProvisioner{})
	ctx := hierarchyContext(uuid.New())

	// A new child of the primary sits exactly at the boundary depth;
	// the sub-tree scope still applies and sees "North" deeper down.
	primaryID := primary.ID()
	err := s.checkNameUnique(ctx, &primaryID, "North", 2)
	require.NotNil(t, err)
	assert.Equal(t, CodeNameConflict, err.Code)
}

func TestCheckStatusTransition_DisableWithActiveChildren(t *testing.T) {
	repo := newFakeRepository()
	_, _, sales, _, _ := buildTree(repo)
	s := newHierarchyService(repo, &fakeProvisioner{})
	ctx := hierarchyContext(uuid.New())

	// Sales still has the active child North.
	err := s.checkStatusTransition(ctx, sales, organization.StatusDisabled)
	require.NotNil(t, err)
	assert.Equal(t, CodeActiveChildren, err.Code)
}

func TestCheckStatusTransition_ActivateUnderDisabledParent(t *testing.T) {
	repo := newFakeRepository()
	_, _, _, marketing, _ := buildTree(repo)
	marketing.SetStatus(organization.StatusDisabled)
	marketingID := marketing.ID()
	child := repo.add(organization.New("Inbound",
		organization.WithParentID(&marketingID),
		organization.WithStatus(organization.StatusDisabled)))
	s := newHierarchyService(repo, &fakeProvisioner{})
	ctx := hierarchyContext(uuid.New())

	err := s.checkStatusTransition(ctx, child, organization.StatusActive)
	require.NotNil(t, err)
	assert.Equal(t, CodeParentDisabled, err.Code)

	// Disabling a childless node is always allowed.
	assert.Nil(t, s.checkStatusTransition(ctx, child, organization.StatusDisabled))
}

func TestApplyEffectiveVersion_InheritsFromPrimaryAncestor(t *testing.T) {
	repo := newFakeRepository()
	_, primary, sales, _, leaf := buildTree(repo)
	primary.SetVersion("3.2.1")
	s := newHierarchyService(repo, &fakeProvisioner{})
	ctx := hierarchyContext(uuid.New())

	require.NoError(t, s.applyEffectiveVersion(ctx, leaf))
	assert.Equal(t, "3.2.1", leaf.Version())

	require.NoError(t, s.applyEffectiveVersion(ctx, sales))
	assert.Equal(t, "3.2.1", sales.Version())

	// Nodes above the boundary keep their own version.
	require.NoError(t, s.applyEffectiveVersion(ctx, primary))
	assert.Equal(t, "3.2.1", primary.Version())
}

func TestCreate_CompensatesFailedProvisioning(t *testing.T) {
	repo := newFakeRepository()
	root, _, _, _, _ := buildTree(repo)
	prov := &fakeProvisioner{provisionErr: errors.New("realm backend down")}
	s := newHierarchyService(repo, prov)
	ctx := hierarchyContext(uuid.New())

	rootID := root.ID()
	org := organization.New("Globex",
		organization.WithType(organization.TypeTenant),
		organization.WithParentID(&rootID))

	_, err := s.Create(ctx, org, OwnerInfo{Email: "owner@globex.example"})
	require.Error(t, err)
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, CodeProvisionFailure, svcErr.Code)

	// The committed node was rolled back by the compensating delete.
	_, found := repo.nodes[org.ID()]
	assert.False(t, found)
	assert.Contains(t, repo.deleted, org.ID())
}

func TestCreate_CompensationFailureSurfacesBothErrors(t *testing.T) {
	repo := newFakeRepository()
	root, _, _, _, _ := buildTree(repo)
	provErr := errors.New("realm backend down")
	delErr := errors.New("store down too")
	prov := &fakeProvisioner{provisionErr: provErr}
	s := newHierarchyService(repo, prov)
	repo.deleteErr = delErr
	ctx := hierarchyContext(uuid.New())

	rootID := root.ID()
	org := organization.New("Globex",
		organization.WithType(organization.TypeTenant),
		organization.WithParentID(&rootID))

	_, err := s.Create(ctx, org, OwnerInfo{})
	require.Error(t, err)
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, CodeCompensationFailure, svcErr.Code)
	assert.ErrorIs(t, svcErr.Cause, provErr)
	assert.ErrorIs(t, svcErr.Cause, delErr)
}

func TestUpdate_EvictsPreviousHandleMapping(t *testing.T) {
	repo := newFakeRepository()
	_, primary, _, _, _ := buildTree(repo)
	s := newHierarchyService(repo, &fakeProvisioner{})
	tenantID := uuid.New()
	ctx := hierarchyContext(tenantID)

	// Warm the handle mapping under the pre-rename handle.
	id, err := s.cache.resolveHandle(ctx, tenantID, "acme", func() (uuid.UUID, error) {
		return primary.ID(), nil
	})
	require.NoError(t, err)
	require.Equal(t, primary.ID(), id)

	rootID := *primary.ParentID()
	updated := organization.New("Beta Industries",
		organization.WithID(primary.ID()),
		organization.WithType(organization.TypeTenant),
		organization.WithParentID(&rootID),
		organization.WithVersion(primary.Version()))
	_, err = s.Update(ctx, updated)
	require.NoError(t, err)

	// The stale mapping must be gone: the loader is consulted again.
	loaderHit := false
	_, err = s.cache.resolveHandle(ctx, tenantID, "acme", func() (uuid.UUID, error) {
		loaderHit = true
		return uuid.Nil, notFound(CodeRealmNotFound, "no organization owns handle acme")
	})
	require.Error(t, err)
	assert.True(t, loaderHit)
}

func TestGetMinimal_ServedFromCache(t *testing.T) {
	repo := newFakeRepository()
	_, _, _, _, leaf := buildTree(repo)
	s := newHierarchyService(repo, &fakeProvisioner{})
	ctx := hierarchyContext(uuid.New())

	m, err := s.GetMinimal(ctx, leaf.ID())
	require.NoError(t, err)
	assert.Equal(t, leaf.ID(), m.ID)
	assert.Equal(t, "North", m.Name)
	assert.Equal(t, 3, m.Depth)

	// A direct store mutation without eviction stays invisible: the
	// projection is served from the cache.
	leaf.Rename("South")
	m, err = s.GetMinimal(ctx, leaf.ID())
	require.NoError(t, err)
	assert.Equal(t, "North", m.Name)
}

func TestResolveResidentRealm_DeepestTenantWins(t *testing.T) {
	repo := newFakeRepository()
	_, _, sales, _, leaf := buildTree(repo)
	salesID := sales.ID()
	nested := repo.add(organization.New("Sales Realm",
		organization.WithType(organization.TypeTenant),
		organization.WithParentID(&salesID)))
	nestedID := nested.ID()
	desk := repo.add(organization.New("Desk", organization.WithParentID(&nestedID)))
	s := newHierarchyService(repo, &fakeProvisioner{})
	ctx := hierarchyContext(uuid.New())

	// Acme is the only tenant along North's chain.
	realm, err := s.ResolveResidentRealm(ctx, leaf.ID())
	require.NoError(t, err)
	assert.Equal(t, "acme", realm)

	// Desk sits under two tenants; the deeper one wins.
	realm, err = s.ResolveResidentRealm(ctx, desk.ID())
	require.NoError(t, err)
	assert.Equal(t, "sales-realm", realm)
}
