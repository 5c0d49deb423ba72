package persistence

import (
	"context"
	"database/sql"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/iota-uz/orgtree/modules/org/domain/organization"
	"github.com/iota-uz/orgtree/modules/org/infrastructure/persistence/models"
	"github.com/iota-uz/orgtree/pkg/composables"
)

var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrRootNotFound         = errors.New("root organization not found")
)

const (
	orgFindQuery = `
        SELECT
            o.id,
            o.tenant_id,
            o.name,
            o.description,
            o.status,
            o.type,
            o.parent_id,
            o.version,
            o.created_at,
            o.updated_at
        FROM organizations o`

	orgInsertQuery = `
		INSERT INTO organizations (id, tenant_id, name, description, status, type, parent_id, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	orgUpdateQuery = `
		UPDATE organizations
		SET name = $1, description = $2, status = $3, version = $4, updated_at = $5
		WHERE id = $6 AND tenant_id = $7`

	orgDeleteQuery = `DELETE FROM organizations WHERE id = $1 AND tenant_id = $2`

	orgAttrsQuery       = `SELECT organization_id, attr_key, attr_value FROM organization_attributes WHERE organization_id = $1 ORDER BY attr_key`
	orgAttrInsertQuery  = `INSERT INTO organization_attributes (organization_id, attr_key, attr_value) VALUES ($1, $2, $3)`
	orgAttrsDeleteQuery = `DELETE FROM organization_attributes WHERE organization_id = $1`

	// Reflexive edge plus one pass copying the parent's ancestor set
	// forward with depth+1 keeps the closure table transitively closed
	// on insert.
	edgeSelfInsertQuery = `
		INSERT INTO organization_hierarchy (tenant_id, ancestor_id, organization_id, depth)
		VALUES ($1, $2, $2, 0)`
	edgeCopyParentQuery = `
		INSERT INTO organization_hierarchy (tenant_id, ancestor_id, organization_id, depth)
		SELECT tenant_id, ancestor_id, $1, depth + 1
		FROM organization_hierarchy
		WHERE organization_id = $2 AND tenant_id = $3`
	edgesDeleteQuery = `
		DELETE FROM organization_hierarchy
		WHERE (organization_id = $1 OR ancestor_id = $1) AND tenant_id = $2`

	orgExistsQuery = `SELECT EXISTS (SELECT 1 FROM organizations WHERE id = $1 AND tenant_id = $2)`

	orgSiblingNameQuery = `
		SELECT EXISTS (
			SELECT 1 FROM organizations
			WHERE tenant_id = $1 AND name = $2 AND parent_id IS NOT DISTINCT FROM $3
		)`

	orgSubtreeNameQuery = `
		SELECT EXISTS (
			SELECT 1
			FROM organization_hierarchy h
			JOIN organizations o ON o.id = h.organization_id
			WHERE h.tenant_id = $1 AND h.ancestor_id = $2 AND h.depth >= 1 AND o.name = $3
		)`

	orgHasChildrenQuery = `SELECT EXISTS (SELECT 1 FROM organizations WHERE parent_id = $1 AND tenant_id = $2)`

	orgChildIDsQuery = `SELECT id FROM organizations WHERE parent_id = $1 AND tenant_id = $2 ORDER BY created_at`

	orgDescendantIDsQuery = `
		SELECT h.organization_id
		FROM organization_hierarchy h
		WHERE h.ancestor_id = $1 AND h.tenant_id = $2 AND h.depth >= 1
		ORDER BY h.depth, h.organization_id`

	// Pre-materialized edges make ancestor resolution a single ordered
	// scan instead of a recursive walk.
	orgAncestorIDsQuery = `
		SELECT ancestor_id
		FROM organization_hierarchy
		WHERE organization_id = $1 AND tenant_id = $2
		ORDER BY depth ASC`

	orgDepthQuery = `
		SELECT COALESCE(MAX(depth), -1)
		FROM organization_hierarchy
		WHERE organization_id = $1 AND tenant_id = $2`

	orgRelativeDepthQuery = `
		SELECT depth
		FROM organization_hierarchy
		WHERE organization_id = $1 AND ancestor_id = $2 AND tenant_id = $3`

	orgRootQuery = orgFindQuery + ` WHERE o.parent_id IS NULL AND o.tenant_id = $1`
)

type PgOrganizationRepository struct{}

func NewOrganizationRepository() organization.Repository {
	return &PgOrganizationRepository{}
}

func (r *PgOrganizationRepository) Insert(ctx context.Context, org *organization.Organization) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get tenant from context")
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}

	var description sql.NullString
	if org.Description() != "" {
		description = sql.NullString{String: org.Description(), Valid: true}
	}
	var parentID sql.NullString
	if org.ParentID() != nil {
		parentID = sql.NullString{String: org.ParentID().String(), Valid: true}
	}

	if _, err := tx.Exec(
		ctx,
		orgInsertQuery,
		org.ID().String(),
		tenantID.String(),
		org.Name(),
		description,
		string(org.Status()),
		string(org.Type()),
		parentID,
		org.Version(),
		org.CreatedAt(),
		org.UpdatedAt(),
	); err != nil {
		return errors.Wrap(err, "failed to insert organization")
	}

	for _, a := range org.Attributes() {
		if _, err := tx.Exec(ctx, orgAttrInsertQuery, org.ID().String(), a.Key, a.Value); err != nil {
			return errors.Wrap(err, "failed to insert organization attribute")
		}
	}

	if _, err := tx.Exec(ctx, edgeSelfInsertQuery, tenantID.String(), org.ID().String()); err != nil {
		return errors.Wrap(err, "failed to insert reflexive edge")
	}
	if org.ParentID() != nil {
		if _, err := tx.Exec(ctx, edgeCopyParentQuery, org.ID().String(), org.ParentID().String(), tenantID.String()); err != nil {
			return errors.Wrap(err, "failed to copy ancestor edges")
		}
	}
	return nil
}

func (r *PgOrganizationRepository) Update(ctx context.Context, org *organization.Organization) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get tenant from context")
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}

	var description sql.NullString
	if org.Description() != "" {
		description = sql.NullString{String: org.Description(), Valid: true}
	}

	tag, err := tx.Exec(
		ctx,
		orgUpdateQuery,
		org.Name(),
		description,
		string(org.Status()),
		org.Version(),
		org.UpdatedAt(),
		org.ID().String(),
		tenantID.String(),
	)
	if err != nil {
		return errors.Wrap(err, "failed to update organization")
	}
	if tag.RowsAffected() == 0 {
		return ErrOrganizationNotFound
	}

	if _, err := tx.Exec(ctx, orgAttrsDeleteQuery, org.ID().String()); err != nil {
		return errors.Wrap(err, "failed to clear organization attributes")
	}
	for _, a := range org.Attributes() {
		if _, err := tx.Exec(ctx, orgAttrInsertQuery, org.ID().String(), a.Key, a.Value); err != nil {
			return errors.Wrap(err, "failed to insert organization attribute")
		}
	}
	return nil
}

func (r *PgOrganizationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get tenant from context")
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}

	if _, err := tx.Exec(ctx, orgAttrsDeleteQuery, id.String()); err != nil {
		return errors.Wrap(err, "failed to delete organization attributes")
	}
	if _, err := tx.Exec(ctx, edgesDeleteQuery, id.String(), tenantID.String()); err != nil {
		return errors.Wrap(err, "failed to delete hierarchy edges")
	}
	tag, err := tx.Exec(ctx, orgDeleteQuery, id.String(), tenantID.String())
	if err != nil {
		return errors.Wrap(err, "failed to delete organization")
	}
	if tag.RowsAffected() == 0 {
		return ErrOrganizationNotFound
	}
	return nil
}

func (r *PgOrganizationRepository) GetByID(ctx context.Context, id uuid.UUID) (*organization.Organization, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get tenant from context")
	}
	orgs, err := r.queryOrganizations(ctx, orgFindQuery+" WHERE o.id = $1 AND o.tenant_id = $2", id.String(), tenantID.String())
	if err != nil {
		return nil, err
	}
	if len(orgs) == 0 {
		return nil, ErrOrganizationNotFound
	}
	return orgs[0], nil
}

func (r *PgOrganizationRepository) GetRoot(ctx context.Context) (*organization.Organization, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get tenant from context")
	}
	orgs, err := r.queryOrganizations(ctx, orgRootQuery, tenantID.String())
	if err != nil {
		return nil, err
	}
	if len(orgs) == 0 {
		return nil, ErrRootNotFound
	}
	return orgs[0], nil
}

func (r *PgOrganizationRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.queryExists(ctx, orgExistsQuery, id.String())
}

func (r *PgOrganizationRepository) ExistsByName(ctx context.Context, parentID *uuid.UUID, name string) (bool, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return false, errors.Wrap(err, "failed to get tenant from context")
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, errors.Wrap(err, "failed to get transaction")
	}

	var parent sql.NullString
	if parentID != nil {
		parent = sql.NullString{String: parentID.String(), Valid: true}
	}
	var exists bool
	if err := tx.QueryRow(ctx, orgSiblingNameQuery, tenantID.String(), name, parent).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "failed to check sibling name")
	}
	return exists, nil
}

func (r *PgOrganizationRepository) NameExistsInSubtree(ctx context.Context, rootID uuid.UUID, name string) (bool, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return false, errors.Wrap(err, "failed to get tenant from context")
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, errors.Wrap(err, "failed to get transaction")
	}

	var exists bool
	if err := tx.QueryRow(ctx, orgSubtreeNameQuery, tenantID.String(), rootID.String(), name).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "failed to check sub-tree name")
	}
	return exists, nil
}

func (r *PgOrganizationRepository) HasChildren(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.queryExists(ctx, orgHasChildrenQuery, id.String())
}

func (r *PgOrganizationRepository) ChildIDs(ctx context.Context, id uuid.UUID, recursive bool) ([]uuid.UUID, error) {
	query := orgChildIDsQuery
	if recursive {
		query = orgDescendantIDsQuery
	}
	return r.queryIDs(ctx, query, id.String())
}

func (r *PgOrganizationRepository) AncestorIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	return r.queryIDs(ctx, orgAncestorIDsQuery, id.String())
}

func (r *PgOrganizationRepository) Depth(ctx context.Context, id uuid.UUID) (int, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return -1, errors.Wrap(err, "failed to get tenant from context")
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return -1, errors.Wrap(err, "failed to get transaction")
	}

	var depth int
	if err := tx.QueryRow(ctx, orgDepthQuery, id.String(), tenantID.String()).Scan(&depth); err != nil {
		return -1, errors.Wrap(err, "failed to query depth")
	}
	return depth, nil
}

func (r *PgOrganizationRepository) RelativeDepth(ctx context.Context, a, b uuid.UUID) (int, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return -1, errors.Wrap(err, "failed to get tenant from context")
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return -1, errors.Wrap(err, "failed to get transaction")
	}

	rows, err := tx.Query(ctx, orgRelativeDepthQuery, a.String(), b.String(), tenantID.String())
	if err != nil {
		return -1, errors.Wrap(err, "failed to query relative depth")
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return -1, errors.Wrap(err, "row iteration error")
		}
		return -1, nil
	}
	var depth int
	if err := rows.Scan(&depth); err != nil {
		return -1, errors.Wrap(err, "failed to scan relative depth")
	}
	return depth, nil
}

func (r *PgOrganizationRepository) IsAncestor(ctx context.Context, candidate, node uuid.UUID) (bool, error) {
	depth, err := r.RelativeDepth(ctx, node, candidate)
	if err != nil {
		return false, err
	}
	return depth > 0, nil
}

func (r *PgOrganizationRepository) queryExists(ctx context.Context, query string, id string) (bool, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return false, errors.Wrap(err, "failed to get tenant from context")
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, errors.Wrap(err, "failed to get transaction")
	}

	var exists bool
	if err := tx.QueryRow(ctx, query, id, tenantID.String()).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "failed to execute exists query")
	}
	return exists, nil
}

func (r *PgOrganizationRepository) queryIDs(ctx context.Context, query string, args ...interface{}) ([]uuid.UUID, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get tenant from context")
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	args = append(args, tenantID.String())
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute id query")
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, errors.Wrap(err, "failed to scan id")
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, errors.Wrap(err, "invalid id in store")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}
	return ids, nil
}

func (r *PgOrganizationRepository) queryOrganizations(ctx context.Context, query string, args ...interface{}) ([]*organization.Organization, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	var dbRows []models.Organization
	for rows.Next() {
		var row models.Organization
		if err := rows.Scan(
			&row.ID,
			&row.TenantID,
			&row.Name,
			&row.Description,
			&row.Status,
			&row.Type,
			&row.ParentID,
			&row.Version,
			&row.CreatedAt,
			&row.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan organization row")
		}
		dbRows = append(dbRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}

	orgs := make([]*organization.Organization, 0, len(dbRows))
	for i := range dbRows {
		attrs, err := r.queryAttributes(ctx, dbRows[i].ID)
		if err != nil {
			return nil, err
		}
		org, err := toDomainOrganization(&dbRows[i], attrs)
		if err != nil {
			return nil, errors.Wrap(err, "failed to map organization")
		}
		orgs = append(orgs, org)
	}
	return orgs, nil
}

func (r *PgOrganizationRepository) queryAttributes(ctx context.Context, orgID string) ([]models.OrganizationAttribute, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	rows, err := tx.Query(ctx, orgAttrsQuery, orgID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query attributes")
	}
	defer rows.Close()

	var attrs []models.OrganizationAttribute
	for rows.Next() {
		var a models.OrganizationAttribute
		if err := rows.Scan(&a.OrganizationID, &a.Key, &a.Value); err != nil {
			return nil, errors.Wrap(err, "failed to scan attribute row")
		}
		attrs = append(attrs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}
	return attrs, nil
}
