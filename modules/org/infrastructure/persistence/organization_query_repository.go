package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/iota-uz/orgtree/modules/org/domain/organization"
	"github.com/iota-uz/orgtree/modules/org/infrastructure/persistence/models"
	"github.com/iota-uz/orgtree/pkg/composables"
	"github.com/iota-uz/orgtree/pkg/repo"
)

const (
	orgListProjection = `
        o.id,
        o.tenant_id,
        o.name,
        o.description,
        o.status,
        o.type,
        o.parent_id,
        o.version,
        o.created_at,
        o.updated_at`

	// Depth rides along on the minimal projection so list surfaces can
	// render indentation without a second round-trip.
	orgMinimalProjection = `
        o.id,
        o.name,
        o.type,
        (SELECT COALESCE(MAX(h.depth), 0) FROM organization_hierarchy h WHERE h.organization_id = o.id)`

	orgIDProjection    = `o.id`
	orgCountProjection = `COUNT(DISTINCT o.id)`

	orgAttrsBulkQuery = `
		SELECT organization_id, attr_key, attr_value
		FROM organization_attributes
		WHERE organization_id = ANY($1)
		ORDER BY organization_id, attr_key`
)

var orgFieldColumns = map[organization.Field]string{
	organization.IDField:          "o.id",
	organization.NameField:        "o.name",
	organization.DescriptionField: "o.description",
	organization.CreatedAtField:   "o.created_at",
	organization.UpdatedAtField:   "o.updated_at",
	organization.StatusField:      "o.status",
	organization.ParentIDField:    "o.parent_id",
}

type PgOrganizationQueryRepository struct{}

func NewOrganizationQueryRepository() organization.QueryRepository {
	return &PgOrganizationQueryRepository{}
}

func (r *PgOrganizationQueryRepository) Find(ctx context.Context, params *organization.FindParams) ([]*organization.Organization, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get tenant from context")
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	query, args, err := buildFindQuery(orgListProjection, tenantID, params, true)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute find query")
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

	attrsByOrg, err := r.bulkAttributes(ctx, dbRows)
	if err != nil {
		return nil, err
	}
	orgs := make([]*organization.Organization, 0, len(dbRows))
	for i := range dbRows {
		org, err := toDomainOrganization(&dbRows[i], attrsByOrg[dbRows[i].ID])
		if err != nil {
			return nil, errors.Wrap(err, "failed to map organization")
		}
		orgs = append(orgs, org)
	}
	return orgs, nil
}

func (r *PgOrganizationQueryRepository) FindMinimal(ctx context.Context, params *organization.FindParams) ([]organization.Minimal, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get tenant from context")
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	query, args, err := buildFindQuery(orgMinimalProjection, tenantID, params, true)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute find query")
	}
	defer rows.Close()

	var out []organization.Minimal
	for rows.Next() {
		var (
			rawID   string
			name    string
			orgType string
			depth   int
		)
		if err := rows.Scan(&rawID, &name, &orgType, &depth); err != nil {
			return nil, errors.Wrap(err, "failed to scan minimal row")
		}
		id, err := uuid.Parse(rawID)
		if err != nil {
			return nil, errors.Wrap(err, "invalid id in store")
		}
		m := organization.Minimal{ID: id, Name: name, Depth: depth}
		if organization.Type(orgType) == organization.TypeTenant {
			m.Handle = organization.NormalizeHandle(name)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}
	return out, nil
}

func (r *PgOrganizationQueryRepository) FindAttributes(ctx context.Context, params *organization.FindParams) (map[uuid.UUID][]organization.Attribute, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get tenant from context")
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	query, args, err := buildFindQuery(orgIDProjection, tenantID, params, true)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute find query")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "failed to scan id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}

	out := make(map[uuid.UUID][]organization.Attribute, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	attrRows, err := tx.Query(ctx, orgAttrsBulkQuery, ids)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query attributes")
	}
	defer attrRows.Close()

	for attrRows.Next() {
		var a models.OrganizationAttribute
		if err := attrRows.Scan(&a.OrganizationID, &a.Key, &a.Value); err != nil {
			return nil, errors.Wrap(err, "failed to scan attribute row")
		}
		id, err := uuid.Parse(a.OrganizationID)
		if err != nil {
			return nil, errors.Wrap(err, "invalid id in store")
		}
		out[id] = append(out[id], organization.Attribute{Key: a.Key, Value: a.Value})
	}
	if err := attrRows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}
	return out, nil
}

func (r *PgOrganizationQueryRepository) Count(ctx context.Context, params *organization.FindParams) (int64, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get tenant from context")
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get transaction")
	}

	query, args, err := buildFindQuery(orgCountProjection, tenantID, params, false)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := tx.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to execute count query")
	}
	return count, nil
}

func (r *PgOrganizationQueryRepository) bulkAttributes(ctx context.Context, rows []models.Organization) (map[string][]models.OrganizationAttribute, error) {
	out := make(map[string][]models.OrganizationAttribute, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	ids := make([]string, 0, len(rows))
	for i := range rows {
		ids = append(ids, rows[i].ID)
	}
	attrRows, err := tx.Query(ctx, orgAttrsBulkQuery, ids)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query attributes")
	}
	defer attrRows.Close()

	for attrRows.Next() {
		var a models.OrganizationAttribute
		if err := attrRows.Scan(&a.OrganizationID, &a.Key, &a.Value); err != nil {
			return nil, errors.Wrap(err, "failed to scan attribute row")
		}
		out[a.OrganizationID] = append(out[a.OrganizationID], a)
	}
	if err := attrRows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}
	return out, nil
}

// buildFindQuery compiles FindParams into one SELECT over organizations,
// with an attribute join per attribute predicate and cursor filters
// derived from the sort order. Pure, so the compilation is testable
// without a database.
func buildFindQuery(projection string, tenantID uuid.UUID, params *organization.FindParams, ordered bool) (string, []any, error) {
	var (
		joins      []string
		conditions []string
		args       []any
	)
	next := func() int { return len(args) + 1 }

	conditions = append(conditions, fmt.Sprintf("o.tenant_id = $%d", next()))
	args = append(args, tenantID.String())

	attrJoins := 0
	for _, p := range params.Predicates {
		if p.Field == organization.AttributeField {
			alias := fmt.Sprintf("oa%d", attrJoins)
			attrJoins++
			joins = append(joins, fmt.Sprintf(
				"JOIN organization_attributes %s ON %s.organization_id = o.id AND %s.attr_key = $%d",
				alias, alias, alias, next(),
			))
			args = append(args, p.AttrKey)

			f, err := operatorFilter(p.Op, p.Value)
			if err != nil {
				return "", nil, err
			}
			conditions = append(conditions, f.String(alias+".attr_value", next()))
			args = append(args, f.Value()...)
			continue
		}

		column, ok := orgFieldColumns[p.Field]
		if !ok {
			return "", nil, organization.ErrUnsupportedAttribute
		}
		value, err := convertPredicateValue(p)
		if err != nil {
			return "", nil, err
		}
		f, err := operatorFilterValue(p.Op, value)
		if err != nil {
			return "", nil, err
		}
		conditions = append(conditions, f.String(column, next()))
		args = append(args, f.Value()...)
	}

	cursorCond, cursorArg, err := compileCursor(params)
	if err != nil {
		return "", nil, err
	}
	if cursorCond != "" {
		conditions = append(conditions, fmt.Sprintf(cursorCond, next()))
		args = append(args, cursorArg)
	}

	if params.Authorized != nil {
		conditions = append(conditions, params.Authorized.String("o.id", next()))
		args = append(args, params.Authorized.Value()...)
	}

	parts := []string{
		"SELECT " + strings.TrimSpace(projection),
		"FROM organizations o",
	}
	parts = append(parts, joins...)
	parts = append(parts, repo.JoinWhere(conditions...))
	if ordered {
		parts = append(parts, orderClause(params.Order))
		parts = append(parts, repo.FormatLimitOffset(params.Limit, params.Offset))
	}
	return repo.Join(parts...), args, nil
}

// compileCursor maps a decoded cursor to the comparison matching the
// sort direction. Under the reverse-chronological feed, after pages
// toward older rows and before toward newer ones; name-sorted listings
// invert. When both cursors are present, before wins.
func compileCursor(params *organization.FindParams) (string, any, error) {
	raw := params.Before
	isBefore := true
	if raw == "" {
		raw = params.After
		isBefore = false
	}
	if raw == "" {
		return "", nil, nil
	}

	switch params.Order {
	case organization.SortNameAsc:
		value, err := decodeCursor(raw)
		if err != nil {
			return "", nil, err
		}
		if isBefore {
			return "o.name < $%d", value, nil
		}
		return "o.name > $%d", value, nil
	default:
		value, err := decodeTimeCursor(raw)
		if err != nil {
			return "", nil, err
		}
		if isBefore {
			return "o.created_at > $%d", value, nil
		}
		return "o.created_at < $%d", value, nil
	}
}

func orderClause(order organization.SortOrder) string {
	if order == organization.SortNameAsc {
		return "ORDER BY o.name ASC"
	}
	return "ORDER BY o.created_at DESC"
}

// convertPredicateValue parses the raw filter value into the type the
// column compares against.
func convertPredicateValue(p organization.Predicate) (any, error) {
	switch p.Field {
	case organization.CreatedAtField, organization.UpdatedAtField:
		t, err := parseFilterTime(p.Value)
		if err != nil {
			return nil, organization.ErrMalformedFilter
		}
		return t, nil
	case organization.IDField, organization.ParentIDField:
		id, err := uuid.Parse(p.Value)
		if err != nil {
			return nil, organization.ErrMalformedFilter
		}
		return id.String(), nil
	default:
		return p.Value, nil
	}
}

func parseFilterTime(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, cursorTimeMicroLayout, cursorTimeLayout, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unrecognized timestamp format")
}

func operatorFilter(op organization.Operator, value string) (repo.Filter, error) {
	switch op {
	case organization.OpSw:
		return repo.Like(repo.EscapeLike(value) + "%"), nil
	case organization.OpEw:
		return repo.Like("%" + repo.EscapeLike(value)), nil
	case organization.OpCo:
		return repo.Like("%" + repo.EscapeLike(value) + "%"), nil
	}
	return operatorFilterValue(op, value)
}

func operatorFilterValue(op organization.Operator, value any) (repo.Filter, error) {
	switch op {
	case organization.OpEq:
		return repo.Eq(value), nil
	case organization.OpGe:
		return repo.Gte(value), nil
	case organization.OpLe:
		return repo.Lte(value), nil
	case organization.OpGt:
		return repo.Gt(value), nil
	case organization.OpLt:
		return repo.Lt(value), nil
	case organization.OpSw, organization.OpEw, organization.OpCo:
		s, ok := value.(string)
		if !ok {
			return nil, organization.ErrOperatorMismatch
		}
		return operatorFilter(op, s)
	}
	return nil, organization.ErrUnsupportedOperator
}
