package persistence

import (
	"github.com/google/uuid"

	"github.com/iota-uz/orgtree/modules/org/domain/organization"
	"github.com/iota-uz/orgtree/modules/org/infrastructure/persistence/models"
)

func toDomainOrganization(row *models.Organization, attrs []models.OrganizationAttribute) (*organization.Organization, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, err
	}
	tenantID, err := uuid.Parse(row.TenantID)
	if err != nil {
		return nil, err
	}

	opts := []organization.Option{
		organization.WithID(id),
		organization.WithTenantID(tenantID),
		organization.WithStatus(organization.Status(row.Status)),
		organization.WithType(organization.Type(row.Type)),
		organization.WithVersion(row.Version),
		organization.WithCreatedAt(row.CreatedAt),
		organization.WithUpdatedAt(row.UpdatedAt),
	}
	if row.Description.Valid {
		opts = append(opts, organization.WithDescription(row.Description.String))
	}
	if row.ParentID.Valid {
		parentID, err := uuid.Parse(row.ParentID.String)
		if err != nil {
			return nil, err
		}
		opts = append(opts, organization.WithParentID(&parentID))
	}
	// The realm handle is derived, never stored.
	if organization.Type(row.Type) == organization.TypeTenant {
		opts = append(opts, organization.WithHandle(organization.NormalizeHandle(row.Name)))
	}
	if len(attrs) > 0 {
		domainAttrs := make([]organization.Attribute, 0, len(attrs))
		for _, a := range attrs {
			domainAttrs = append(domainAttrs, organization.Attribute{Key: a.Key, Value: a.Value})
		}
		opts = append(opts, organization.WithAttributes(domainAttrs))
	}

	return organization.New(row.Name, opts...), nil
}
