package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"

	"github.com/iota-uz/orgtree/modules/org/domain/events"
	"github.com/iota-uz/orgtree/modules/org/domain/organization"
	"github.com/iota-uz/orgtree/modules/org/infrastructure/cache"
	"github.com/iota-uz/orgtree/pkg/composables"
	"github.com/iota-uz/orgtree/pkg/configuration"
	"github.com/iota-uz/orgtree/pkg/eventbus"
)

// OrganizationService orchestrates tree mutations and queries: input
// validation, uniqueness scoping, the status machine, version
// inheritance, realm provisioning with its compensating delete, and
// cache consistency. It is the only writer of the organization store.
type OrganizationService struct {
	repo        organization.Repository
	query       organization.QueryRepository
	cache       *orgCache
	oracle      AuthorizationOracle
	provisioner RealmProvisioner
	publisher   eventbus.EventBus
	listeners   []MutationListener

	subtreeStartLevel int
	newOrgVersion     string
	baseOrgVersion    string
	pageSize          int
	maxPageSize       int
}

func NewOrganizationService(
	repo organization.Repository,
	query organization.QueryRepository,
	store cache.Store,
	oracle AuthorizationOracle,
	provisioner RealmProvisioner,
	publisher eventbus.EventBus,
	listeners ...MutationListener,
) *OrganizationService {
	conf := configuration.Use()
	return &OrganizationService{
		repo:              repo,
		query:             query,
		cache:             newOrgCache(store),
		oracle:            oracle,
		provisioner:       provisioner,
		publisher:         publisher,
		listeners:         listeners,
		subtreeStartLevel: conf.SubtreeStartLevel,
		newOrgVersion:     conf.NewOrgVersion,
		baseOrgVersion:    conf.BaseOrgVersion,
		pageSize:          conf.PageSize,
		maxPageSize:       conf.MaxPageSize,
	}
}

// Create validates and persists a new node, then provisions its realm
// when it is tenant-backed. The insert transaction commits before the
// provisioner runs; a provisioning failure triggers a compensating
// delete of the already-committed node.
func (s *OrganizationService) Create(ctx context.Context, org *organization.Organization, owner OwnerInfo) (*organization.Organization, error) {
	if err := s.validate(org); err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, serverError(CodeStoreFailure, "tenant missing from context", err)
	}

	mutation := s.newMutation(ctx, tenantID, events.OrganizationCreated, org.ID())
	created, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (*organization.Organization, error) {
		depth, svcErr := s.checkParent(txCtx, org)
		if svcErr != nil {
			return nil, svcErr
		}
		if svcErr := s.checkNameUnique(txCtx, org.ParentID(), org.Name(), depth); svcErr != nil {
			return nil, svcErr
		}
		if depth < s.subtreeStartLevel {
			org.SetVersion(s.newOrgVersion)
		} else {
			org.SetVersion(s.baseOrgVersion)
		}
		if svcErr := s.prepare(txCtx, mutation); svcErr != nil {
			return nil, svcErr
		}
		if err := s.repo.Insert(txCtx, org); err != nil {
			return nil, mapStoreError(err)
		}
		return org, nil
	})
	if err != nil {
		return nil, asServiceError(err)
	}

	if created.Type() == organization.TypeTenant {
		if err := s.provisionRealm(ctx, created, owner); err != nil {
			return nil, err
		}
	}

	s.cache.evict(ctx, tenantID, created.ID(), "create", created.Handle())
	s.publisher.Publish(mutation)
	return created, nil
}

// GetByID returns the full entity with its effective version: nodes at
// or below the sub-tree boundary report the version inherited from
// their primary ancestor.
func (s *OrganizationService) GetByID(ctx context.Context, id uuid.UUID) (*organization.Organization, error) {
	if err := s.authorizeRead(ctx, id); err != nil {
		return nil, err
	}
	org, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if err := s.applyEffectiveVersion(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

// GetMinimal serves the cached id/name/handle/depth projection of a
// single organization.
func (s *OrganizationService) GetMinimal(ctx context.Context, id uuid.UUID) (organization.Minimal, error) {
	if err := s.authorizeRead(ctx, id); err != nil {
		return organization.Minimal{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return organization.Minimal{}, serverError(CodeStoreFailure, "tenant missing from context", err)
	}
	m, err := s.cache.minimal(ctx, tenantID, id, func() (organization.Minimal, error) {
		org, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return organization.Minimal{}, err
		}
		depth, err := s.repo.Depth(ctx, id)
		if err != nil {
			return organization.Minimal{}, err
		}
		return org.Minimal(depth), nil
	})
	if err != nil {
		return organization.Minimal{}, mapStoreError(err)
	}
	return m, nil
}

// Update is a full replace of the mutable surface: name, description,
// status, version and the attribute set.
func (s *OrganizationService) Update(ctx context.Context, updated *organization.Organization) (*organization.Organization, error) {
	if err := s.validate(updated); err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, serverError(CodeStoreFailure, "tenant missing from context", err)
	}

	mutation := s.newMutation(ctx, tenantID, events.OrganizationUpdated, updated.ID())
	var previousHandle string
	result, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (*organization.Organization, error) {
		existing, err := s.repo.GetByID(txCtx, updated.ID())
		if err != nil {
			return nil, mapStoreError(err)
		}
		previousHandle = existing.Handle()
		depth, err := s.repo.Depth(txCtx, existing.ID())
		if err != nil {
			return nil, mapStoreError(err)
		}

		nameChanged := existing.Name() != updated.Name()
		statusChanged := existing.Status() != updated.Status()
		if svcErr := s.checkRootGuards(existing, nameChanged, updated.Status()); svcErr != nil {
			return nil, svcErr
		}
		if statusChanged {
			if svcErr := s.checkStatusTransition(txCtx, existing, updated.Status()); svcErr != nil {
				return nil, svcErr
			}
		}
		if nameChanged {
			if svcErr := s.checkNameUnique(txCtx, existing.ParentID(), updated.Name(), depth); svcErr != nil {
				return nil, svcErr
			}
		}
		if svcErr := s.checkVersionChange(existing, updated.Version(), depth); svcErr != nil {
			return nil, svcErr
		}

		existing.Rename(updated.Name())
		existing.SetDescription(updated.Description())
		existing.SetStatus(updated.Status())
		if depth < s.subtreeStartLevel {
			existing.SetVersion(updated.Version())
		}
		existing.ReplaceAttributes(updated.Attributes())

		if svcErr := s.prepare(txCtx, mutation); svcErr != nil {
			return nil, svcErr
		}
		if err := s.repo.Update(txCtx, existing); err != nil {
			return nil, mapStoreError(err)
		}
		return existing, nil
	})
	if err != nil {
		return nil, asServiceError(err)
	}

	s.cache.evict(ctx, tenantID, result.ID(), "update", previousHandle, result.Handle())
	s.publisher.Publish(mutation)
	return result, nil
}

// Patch applies the op list to the stored entity inside one
// transaction.
func (s *OrganizationService) Patch(ctx context.Context, id uuid.UUID, ops []PatchOp) (*organization.Organization, error) {
	if len(ops) == 0 {
		return nil, badRequest(CodePatchOpInvalid, "empty patch")
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, serverError(CodeStoreFailure, "tenant missing from context", err)
	}

	mutation := s.newMutation(ctx, tenantID, events.OrganizationPatched, id)
	var previousHandle string
	result, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (*organization.Organization, error) {
		org, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return nil, mapStoreError(err)
		}
		previousHandle = org.Handle()
		depth, err := s.repo.Depth(txCtx, id)
		if err != nil {
			return nil, mapStoreError(err)
		}

		outcome, svcErr := applyPatch(org, ops, depth < s.subtreeStartLevel)
		if svcErr != nil {
			return nil, svcErr
		}
		if svcErr := s.checkRootGuards(org, outcome.nameChanged, org.Status()); svcErr != nil {
			return nil, svcErr
		}
		if outcome.statusChanged {
			next := org.Status()
			org.SetStatus(outcome.previousStatus)
			if svcErr := s.checkStatusTransition(txCtx, org, next); svcErr != nil {
				return nil, svcErr
			}
			org.SetStatus(next)
		}
		if outcome.nameChanged {
			if svcErr := s.checkNameUnique(txCtx, org.ParentID(), org.Name(), depth); svcErr != nil {
				return nil, svcErr
			}
		}

		if svcErr := s.prepare(txCtx, mutation); svcErr != nil {
			return nil, svcErr
		}
		if err := s.repo.Update(txCtx, org); err != nil {
			return nil, mapStoreError(err)
		}
		return org, nil
	})
	if err != nil {
		return nil, asServiceError(err)
	}

	s.cache.evict(ctx, tenantID, result.ID(), "patch", previousHandle, result.Handle())
	s.publisher.Publish(mutation)
	return result, nil
}

// Delete removes a childless, non-root node and cascades its attribute
// and edge rows. Tenant-backed nodes get a best-effort realm
// deprovisioning after the transaction commits.
func (s *OrganizationService) Delete(ctx context.Context, id uuid.UUID) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return serverError(CodeStoreFailure, "tenant missing from context", err)
	}

	mutation := s.newMutation(ctx, tenantID, events.OrganizationDeleted, id)
	deleted, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (*organization.Organization, error) {
		org, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return nil, mapStoreError(err)
		}
		if org.IsRoot() {
			return nil, unprocessable(CodeRootImmutable, "the root organization cannot be deleted")
		}
		hasChildren, err := s.repo.HasChildren(txCtx, id)
		if err != nil {
			return nil, mapStoreError(err)
		}
		if hasChildren {
			return nil, unprocessable(CodeHasChildren, "organization still has children")
		}
		if svcErr := s.prepare(txCtx, mutation); svcErr != nil {
			return nil, svcErr
		}
		if err := s.repo.Delete(txCtx, id); err != nil {
			return nil, mapStoreError(err)
		}
		return org, nil
	})
	if err != nil {
		return asServiceError(err)
	}

	if deleted.Type() == organization.TypeTenant {
		if err := s.provisioner.Deprovision(ctx, deleted.Handle()); err != nil {
			composables.UseLogger(ctx).WithError(err).
				WithField("handle", deleted.Handle()).
				Error("realm deprovisioning failed")
		}
	}

	s.cache.evict(ctx, tenantID, id, "delete", deleted.Handle())
	s.publisher.Publish(mutation)
	return nil
}

// List returns full entities matching the filter expression.
func (s *OrganizationService) List(ctx context.Context, filterExpr string, limit, offset int, order organization.SortOrder) ([]*organization.Organization, error) {
	params, err := s.buildFindParams(ctx, filterExpr, limit, offset, order)
	if err != nil {
		return nil, err
	}
	orgs, err := s.query.Find(ctx, params)
	if err != nil {
		return nil, mapFilterError(err)
	}
	for _, org := range orgs {
		if err := s.applyEffectiveVersion(ctx, org); err != nil {
			return nil, err
		}
	}
	return orgs, nil
}

// ListMinimal returns the id/name/handle/depth projection.
func (s *OrganizationService) ListMinimal(ctx context.Context, filterExpr string, limit, offset int, order organization.SortOrder) ([]organization.Minimal, error) {
	params, err := s.buildFindParams(ctx, filterExpr, limit, offset, order)
	if err != nil {
		return nil, err
	}
	out, err := s.query.FindMinimal(ctx, params)
	if err != nil {
		return nil, mapFilterError(err)
	}
	return out, nil
}

// ListAttributes returns only the attribute sets of matching
// organizations.
func (s *OrganizationService) ListAttributes(ctx context.Context, filterExpr string, limit, offset int, order organization.SortOrder) (map[uuid.UUID][]organization.Attribute, error) {
	params, err := s.buildFindParams(ctx, filterExpr, limit, offset, order)
	if err != nil {
		return nil, err
	}
	out, err := s.query.FindAttributes(ctx, params)
	if err != nil {
		return nil, mapFilterError(err)
	}
	return out, nil
}

func (s *OrganizationService) Count(ctx context.Context, filterExpr string) (int64, error) {
	params, err := s.buildFindParams(ctx, filterExpr, 0, 0, organization.SortCreatedDesc)
	if err != nil {
		return 0, err
	}
	count, err := s.query.Count(ctx, params)
	if err != nil {
		return 0, mapFilterError(err)
	}
	return count, nil
}

func (s *OrganizationService) ChildIDs(ctx context.Context, id uuid.UUID, recursive bool) ([]uuid.UUID, error) {
	if err := s.authorizeRead(ctx, id); err != nil {
		return nil, err
	}
	if err := s.ensureExists(ctx, id); err != nil {
		return nil, err
	}
	ids, err := s.repo.ChildIDs(ctx, id, recursive)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return ids, nil
}

// AncestorIDs returns the self-inclusive, nearest-first ancestor chain
// trimmed for display: structural scaffolding above the sub-tree
// boundary minus one is dropped, and so is everything above the
// caller's accessing organization.
func (s *OrganizationService) AncestorIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	if err := s.authorizeRead(ctx, id); err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, serverError(CodeStoreFailure, "tenant missing from context", err)
	}
	chain, err := s.cache.ancestorIDs(ctx, tenantID, id, func() ([]uuid.UUID, error) {
		return s.repo.AncestorIDs(ctx, id)
	})
	if err != nil {
		return nil, mapStoreError(err)
	}
	if len(chain) == 0 {
		return nil, notFound(CodeNotFound, "organization not found")
	}
	return trimAncestors(chain, s.subtreeStartLevel, composables.UseAccessingOrg(ctx)), nil
}

func (s *OrganizationService) Depth(ctx context.Context, id uuid.UUID) (int, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return -1, serverError(CodeStoreFailure, "tenant missing from context", err)
	}
	depth, err := s.cache.depth(ctx, tenantID, id, func() (int, error) {
		return s.repo.Depth(ctx, id)
	})
	if err != nil {
		return -1, mapStoreError(err)
	}
	return depth, nil
}

func (s *OrganizationService) RelativeDepth(ctx context.Context, a, b uuid.UUID) (int, error) {
	depth, err := s.repo.RelativeDepth(ctx, a, b)
	if err != nil {
		return -1, mapStoreError(err)
	}
	return depth, nil
}

// ResolveResidentRealm walks the ancestor chain root-to-target and
// returns the handle of the last tenant-backed organization seen.
// Deliberately not first-match: the deepest realm wins.
func (s *OrganizationService) ResolveResidentRealm(ctx context.Context, id uuid.UUID) (string, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return "", serverError(CodeStoreFailure, "tenant missing from context", err)
	}
	chain, err := s.cache.ancestorIDs(ctx, tenantID, id, func() ([]uuid.UUID, error) {
		return s.repo.AncestorIDs(ctx, id)
	})
	if err != nil {
		return "", mapStoreError(err)
	}
	if len(chain) == 0 {
		return "", notFound(CodeNotFound, "organization not found")
	}

	realm := ""
	for i := len(chain) - 1; i >= 0; i-- {
		orgID := chain[i]
		typ, err := s.cache.typ(ctx, tenantID, orgID, func() (string, error) {
			org, err := s.repo.GetByID(ctx, orgID)
			if err != nil {
				return "", err
			}
			return string(org.Type()), nil
		})
		if err != nil {
			return "", mapStoreError(err)
		}
		if typ != organization.TypeTenant {
			continue
		}
		handle, err := s.handleOf(ctx, tenantID, orgID)
		if err != nil {
			return "", mapStoreError(err)
		}
		if handle != "" {
			realm = handle
		}
	}
	if realm == "" {
		return "", notFound(CodeRealmNotFound, "no realm found along the ancestor chain")
	}
	return realm, nil
}

// handleOf resolves the id-to-handle mapping through the cache.
// Handles are derived state, so the loader derives from the cached
// name rather than a stored column.
func (s *OrganizationService) handleOf(ctx context.Context, tenantID, orgID uuid.UUID) (string, error) {
	return s.cache.handleByID(ctx, tenantID, orgID, func() (string, error) {
		name, err := s.cache.name(ctx, tenantID, orgID, func() (string, error) {
			org, err := s.repo.GetByID(ctx, orgID)
			if err != nil {
				return "", err
			}
			return org.Name(), nil
		})
		if err != nil {
			return "", err
		}
		return organization.NormalizeHandle(name), nil
	})
}

// ResolveHandle maps a realm handle back to the owning organization id,
// through the cache.
func (s *OrganizationService) ResolveHandle(ctx context.Context, handle string) (uuid.UUID, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return uuid.Nil, serverError(CodeStoreFailure, "tenant missing from context", err)
	}
	handle = organization.NormalizeHandle(handle)
	id, err := s.cache.resolveHandle(ctx, tenantID, handle, func() (uuid.UUID, error) {
		orgs, err := s.query.Find(ctx, &organization.FindParams{})
		if err != nil {
			return uuid.Nil, mapStoreError(err)
		}
		for _, org := range orgs {
			if org.Type() == organization.TypeTenant && org.Handle() == handle {
				return org.ID(), nil
			}
		}
		return uuid.Nil, notFound(CodeRealmNotFound, "no organization owns handle "+handle)
	})
	if err != nil {
		return uuid.Nil, asServiceError(err)
	}
	return id, nil
}

func (s *OrganizationService) buildFindParams(ctx context.Context, filterExpr string, limit, offset int, order organization.SortOrder) (*organization.FindParams, error) {
	parsed, err := organization.ParseFilter(filterExpr)
	if err != nil {
		return nil, mapFilterError(err)
	}
	params := &organization.FindParams{
		Predicates: parsed.Predicates,
		Order:      order,
		After:      parsed.After,
		Before:     parsed.Before,
		Limit:      s.clampLimit(limit),
		Offset:     offset,
	}
	if userID, err := composables.UseUserID(ctx); err == nil {
		authorized, err := s.oracle.PermittedOrgsFilter(ctx, userID)
		if err != nil {
			return nil, serverError(CodeAuthzFailure, "authorization oracle failure", err)
		}
		params.Authorized = authorized
	}
	return params, nil
}

func (s *OrganizationService) clampLimit(limit int) int {
	if limit <= 0 {
		return s.pageSize
	}
	if limit > s.maxPageSize {
		return s.maxPageSize
	}
	return limit
}

func (s *OrganizationService) validate(org *organization.Organization) *ServiceError {
	if strings.TrimSpace(org.Name()) == "" {
		return badRequest(CodeNameRequired, "name must not be empty")
	}
	if !org.Type().IsValid() {
		return badRequest(CodeTypeInvalid, "unknown organization type")
	}
	if !org.Status().IsValid() {
		return badRequest(CodeStatusInvalid, "unknown organization status")
	}
	seen := make(map[string]struct{}, len(org.Attributes()))
	for _, a := range org.Attributes() {
		key := strings.TrimSpace(a.Key)
		if key == "" {
			return badRequest(CodeAttrKeyRequired, "attribute keys must not be empty")
		}
		if strings.TrimSpace(a.Value) == "" {
			return badRequest(CodeAttrValueRequired, "attribute "+key+" must carry a value")
		}
		if _, dup := seen[key]; dup {
			return badRequest(CodeAttrKeyDuplicate, "duplicate attribute key "+key)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// checkParent verifies the parent exists and is active, and returns the
// depth the new node will occupy.
func (s *OrganizationService) checkParent(ctx context.Context, org *organization.Organization) (int, *ServiceError) {
	if org.ParentID() == nil {
		_, err := s.repo.GetRoot(ctx)
		if err == nil {
			return 0, conflict(CodeRootExists, "a root organization already exists")
		}
		if mapped := mapStoreError(err); mapped.Status != http.StatusNotFound {
			return 0, mapped
		}
		return 0, nil
	}

	parent, err := s.repo.GetByID(ctx, *org.ParentID())
	if err != nil {
		mapped := mapStoreError(err)
		if mapped.Status == http.StatusNotFound {
			return 0, notFound(CodeParentNotFound, "parent organization not found")
		}
		return 0, mapped
	}
	if parent.Status() != organization.StatusActive {
		return 0, unprocessable(CodeParentDisabled, "parent organization is disabled")
	}
	parentDepth, err := s.repo.Depth(ctx, parent.ID())
	if err != nil {
		return 0, mapStoreError(err)
	}
	return parentDepth + 1, nil
}

// checkNameUnique enforces sibling-scope uniqueness everywhere and, at
// or below the sub-tree boundary, uniqueness across the whole primary
// sub-tree.
func (s *OrganizationService) checkNameUnique(ctx context.Context, parentID *uuid.UUID, name string, depth int) *ServiceError {
	taken, err := s.repo.ExistsByName(ctx, parentID, name)
	if err != nil {
		return mapStoreError(err)
	}
	if taken {
		return conflict(CodeNameConflict, "an organization with this name already exists under the same parent")
	}

	if depth < s.subtreeStartLevel || parentID == nil {
		return nil
	}
	chain, err := s.repo.AncestorIDs(ctx, *parentID)
	if err != nil {
		return mapStoreError(err)
	}
	// chain is nearest-first over the parent: index i sits at depth
	// (depth-1)-i. The sub-tree root is the primary ancestor, one level
	// above the boundary.
	idx := depth - s.subtreeStartLevel
	if idx < 0 || idx >= len(chain) {
		return nil
	}
	taken, err = s.repo.NameExistsInSubtree(ctx, chain[idx], name)
	if err != nil {
		return mapStoreError(err)
	}
	if taken {
		return conflict(CodeNameConflict, "name already used inside this sub-tree")
	}
	return nil
}

func (s *OrganizationService) checkRootGuards(existing *organization.Organization, nameChanged bool, nextStatus organization.Status) *ServiceError {
	if !existing.IsRoot() {
		return nil
	}
	if nameChanged {
		return unprocessable(CodeRootImmutable, "the root organization cannot be renamed")
	}
	if nextStatus == organization.StatusDisabled {
		return unprocessable(CodeRootImmutable, "the root organization cannot be disabled")
	}
	return nil
}

// checkStatusTransition enforces the ACTIVE/DISABLED machine: a node
// cannot activate under a disabled parent and cannot disable while
// active children exist. Statuses are hot fields and read through the
// cache; the write-evict contract keeps them coherent.
func (s *OrganizationService) checkStatusTransition(ctx context.Context, existing *organization.Organization, next organization.Status) *ServiceError {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return serverError(CodeStoreFailure, "tenant missing from context", err)
	}
	switch next {
	case organization.StatusActive:
		if existing.ParentID() == nil {
			return nil
		}
		parentStatus, err := s.statusOf(ctx, tenantID, *existing.ParentID())
		if err != nil {
			return mapStoreError(err)
		}
		if parentStatus != organization.StatusActive {
			return unprocessable(CodeParentDisabled, "cannot activate under a disabled parent")
		}
	case organization.StatusDisabled:
		childIDs, err := s.repo.ChildIDs(ctx, existing.ID(), false)
		if err != nil {
			return mapStoreError(err)
		}
		for _, childID := range childIDs {
			childStatus, err := s.statusOf(ctx, tenantID, childID)
			if err != nil {
				return mapStoreError(err)
			}
			if childStatus == organization.StatusActive {
				return unprocessable(CodeActiveChildren, "cannot disable while active children exist")
			}
		}
	}
	return nil
}

func (s *OrganizationService) statusOf(ctx context.Context, tenantID, orgID uuid.UUID) (organization.Status, error) {
	return s.cache.status(ctx, tenantID, orgID, func() (string, error) {
		org, err := s.repo.GetByID(ctx, orgID)
		if err != nil {
			return "", err
		}
		return string(org.Status()), nil
	})
}

func (s *OrganizationService) checkVersionChange(existing *organization.Organization, next string, depth int) *ServiceError {
	if next == existing.Version() {
		return nil
	}
	if depth >= s.subtreeStartLevel {
		return unprocessable(CodeVersionImmutable, "version is inherited below the sub-tree boundary and cannot be changed")
	}
	if _, err := semver.NewVersion(next); err != nil {
		return badRequest(CodeVersionInvalid, "version must be a semantic version")
	}
	return nil
}

// applyEffectiveVersion overwrites the stored version with the one
// inherited from the primary ancestor for nodes at or below the
// sub-tree boundary.
func (s *OrganizationService) applyEffectiveVersion(ctx context.Context, org *organization.Organization) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return serverError(CodeStoreFailure, "tenant missing from context", err)
	}
	depth, err := s.cache.depth(ctx, tenantID, org.ID(), func() (int, error) {
		return s.repo.Depth(ctx, org.ID())
	})
	if err != nil {
		return mapStoreError(err)
	}
	if depth < s.subtreeStartLevel {
		return nil
	}

	chain, err := s.cache.ancestorIDs(ctx, tenantID, org.ID(), func() ([]uuid.UUID, error) {
		return s.repo.AncestorIDs(ctx, org.ID())
	})
	if err != nil {
		return mapStoreError(err)
	}
	// The primary ancestor sits one level above the boundary.
	idx := depth - (s.subtreeStartLevel - 1)
	if idx < 0 || idx >= len(chain) {
		return serverError(CodeStoreFailure, "ancestor chain shorter than depth", fmt.Errorf("depth %d, chain %d", depth, len(chain)))
	}
	primaryID := chain[idx]
	version, err := s.cache.version(ctx, tenantID, primaryID, func() (string, error) {
		primary, err := s.repo.GetByID(ctx, primaryID)
		if err != nil {
			return "", err
		}
		return primary.Version(), nil
	})
	if err != nil {
		return mapStoreError(err)
	}
	org.SetVersion(version)
	return nil
}

func (s *OrganizationService) authorizeRead(ctx context.Context, resourceID uuid.UUID) error {
	userID, err := composables.UseUserID(ctx)
	if err != nil {
		// No principal in context means an internal call.
		return nil
	}
	ok, err := s.oracle.Authorize(ctx, userID, resourceID, composables.UseAccessingOrg(ctx))
	if err != nil {
		return serverError(CodeAuthzFailure, "authorization oracle failure", err)
	}
	if !ok {
		return forbidden("not permitted to read this organization")
	}
	return nil
}

func (s *OrganizationService) ensureExists(ctx context.Context, id uuid.UUID) error {
	exists, err := s.repo.Exists(ctx, id)
	if err != nil {
		return mapStoreError(err)
	}
	if !exists {
		return notFound(CodeNotFound, "organization not found")
	}
	return nil
}

func (s *OrganizationService) prepare(ctx context.Context, mutation events.OrgMutation) *ServiceError {
	for _, l := range s.listeners {
		if err := l.Prepare(ctx, mutation); err != nil {
			return &ServiceError{
				Status:  http.StatusUnprocessableEntity,
				Code:    CodeMutationVetoed,
				Message: "mutation vetoed by listener",
				Cause:   err,
			}
		}
	}
	return nil
}

// provisionRealm calls the external provisioner after the insert has
// committed. On failure the node is deleted again; if that compensating
// delete also fails, both errors surface together.
func (s *OrganizationService) provisionRealm(ctx context.Context, org *organization.Organization, owner OwnerInfo) error {
	provErr := s.provisioner.Provision(ctx, org.Handle(), owner)
	if provErr == nil {
		return nil
	}
	composables.UseLogger(ctx).WithError(provErr).
		WithField("handle", org.Handle()).
		Error("realm provisioning failed, compensating")

	delErr := composables.InTenantTx(ctx, func(txCtx context.Context) error {
		return s.repo.Delete(txCtx, org.ID())
	})
	if delErr != nil {
		composables.UseLogger(ctx).WithError(delErr).
			WithField("organization_id", org.ID()).
			Error("compensating delete failed")
		return serverError(
			CodeCompensationFailure,
			"realm provisioning failed and the compensating delete also failed",
			errors.Join(provErr, delErr),
		)
	}
	return serverError(CodeProvisionFailure, "realm provisioning failed, organization rolled back", provErr)
}

func (s *OrganizationService) newMutation(ctx context.Context, tenantID uuid.UUID, change events.ChangeType, orgID uuid.UUID) events.OrgMutation {
	initiatorID, _ := composables.UseUserID(ctx)
	return events.NewOrgMutation(composables.UseRequestID(ctx), tenantID, initiatorID, change, orgID)
}

// trimAncestors drops chain entries above (boundary - 1) and above the
// caller's accessing organization. The chain is nearest-first and
// self-inclusive, so entry i sits at depth len(chain)-1-i.
func trimAncestors(chain []uuid.UUID, subtreeStartLevel int, accessingOrg uuid.UUID) []uuid.UUID {
	targetDepth := len(chain) - 1
	minDepth := subtreeStartLevel - 1
	if minDepth < 0 {
		minDepth = 0
	}

	cut := len(chain)
	if targetDepth-minDepth+1 < cut {
		cut = targetDepth - minDepth + 1
	}
	if cut < 0 {
		cut = 0
	}
	if accessingOrg != uuid.Nil {
		for i := 0; i < cut; i++ {
			if chain[i] == accessingOrg {
				cut = i + 1
				break
			}
		}
	}
	out := make([]uuid.UUID, cut)
	copy(out, chain[:cut])
	return out
}

func asServiceError(err error) error {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return serverError(CodeStoreFailure, "transaction failure", err)
}
