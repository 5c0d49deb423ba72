package controllers

import (
	"github.com/google/uuid"

	"github.com/iota-uz/orgtree/modules/org/domain/organization"
	"github.com/iota-uz/orgtree/modules/org/services"
)

type AttributeDTO struct {
	Key   string `json:"key" validate:"required"`
	Value string `json:"value"`
}

type OwnerDTO struct {
	UserID string `json:"userId" validate:"omitempty,uuid"`
	Email  string `json:"email" validate:"omitempty,email"`
	Name   string `json:"name"`
}

type CreateOrganizationRequest struct {
	Name        string         `json:"name" validate:"required"`
	Description string         `json:"description"`
	Type        string         `json:"type" validate:"required,oneof=structural tenant"`
	ParentID    *string        `json:"parentId" validate:"omitempty,uuid"`
	Attributes  []AttributeDTO `json:"attributes" validate:"dive"`
	Owner       *OwnerDTO      `json:"owner"`
}

type UpdateOrganizationRequest struct {
	Name        string         `json:"name" validate:"required"`
	Description string         `json:"description"`
	Status      string         `json:"status" validate:"required,oneof=active disabled"`
	Version     string         `json:"version" validate:"required"`
	Attributes  []AttributeDTO `json:"attributes" validate:"dive"`
}

type PatchOpDTO struct {
	Op    string  `json:"op" validate:"required,oneof=add replace remove"`
	Path  string  `json:"path" validate:"required"`
	Value *string `json:"value"`
}

type PatchOrganizationRequest struct {
	Ops []PatchOpDTO `json:"ops" validate:"required,min=1,dive"`
}

type OrganizationResponse struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Status      string         `json:"status"`
	Type        string         `json:"type"`
	ParentID    *uuid.UUID     `json:"parentId,omitempty"`
	Version     string         `json:"version"`
	Handle      string         `json:"handle,omitempty"`
	Attributes  []AttributeDTO `json:"attributes,omitempty"`
	CreatedAt   string         `json:"created"`
	UpdatedAt   string         `json:"lastModified"`
}

type MinimalResponse struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Handle string    `json:"handle,omitempty"`
	Depth  int       `json:"depth"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func toOrganizationResponse(org *organization.Organization) OrganizationResponse {
	attrs := make([]AttributeDTO, 0, len(org.Attributes()))
	for _, a := range org.Attributes() {
		attrs = append(attrs, AttributeDTO{Key: a.Key, Value: a.Value})
	}
	return OrganizationResponse{
		ID:          org.ID(),
		Name:        org.Name(),
		Description: org.Description(),
		Status:      string(org.Status()),
		Type:        string(org.Type()),
		ParentID:    org.ParentID(),
		Version:     org.Version(),
		Handle:      org.Handle(),
		Attributes:  attrs,
		CreatedAt:   org.CreatedAt().UTC().Format("2006-01-02 15:04:05.999999"),
		UpdatedAt:   org.UpdatedAt().UTC().Format("2006-01-02 15:04:05.999999"),
	}
}

func toMinimalResponse(m organization.Minimal) MinimalResponse {
	return MinimalResponse{ID: m.ID, Name: m.Name, Handle: m.Handle, Depth: m.Depth}
}

func (r *CreateOrganizationRequest) toDomain() (*organization.Organization, services.OwnerInfo, error) {
	opts := []organization.Option{
		organization.WithDescription(r.Description),
		organization.WithType(organization.Type(r.Type)),
	}
	if r.ParentID != nil {
		parentID, err := uuid.Parse(*r.ParentID)
		if err != nil {
			return nil, services.OwnerInfo{}, err
		}
		opts = append(opts, organization.WithParentID(&parentID))
	}
	if len(r.Attributes) > 0 {
		attrs := make([]organization.Attribute, 0, len(r.Attributes))
		for _, a := range r.Attributes {
			attrs = append(attrs, organization.Attribute{Key: a.Key, Value: a.Value})
		}
		opts = append(opts, organization.WithAttributes(attrs))
	}

	owner := services.OwnerInfo{}
	if r.Owner != nil {
		owner.Email = r.Owner.Email
		owner.Name = r.Owner.Name
		if r.Owner.UserID != "" {
			userID, err := uuid.Parse(r.Owner.UserID)
			if err != nil {
				return nil, services.OwnerInfo{}, err
			}
			owner.UserID = userID
		}
	}
	return organization.New(r.Name, opts...), owner, nil
}

func (r *UpdateOrganizationRequest) toDomain(id uuid.UUID) *organization.Organization {
	attrs := make([]organization.Attribute, 0, len(r.Attributes))
	for _, a := range r.Attributes {
		attrs = append(attrs, organization.Attribute{Key: a.Key, Value: a.Value})
	}
	return organization.New(
		r.Name,
		organization.WithID(id),
		organization.WithDescription(r.Description),
		organization.WithStatus(organization.Status(r.Status)),
		organization.WithVersion(r.Version),
		organization.WithAttributes(attrs),
	)
}

func (r *PatchOrganizationRequest) toOps() []services.PatchOp {
	ops := make([]services.PatchOp, 0, len(r.Ops))
	for _, op := range r.Ops {
		ops = append(ops, services.PatchOp{
			Op:    services.PatchOpKind(op.Op),
			Path:  op.Path,
			Value: op.Value,
		})
	}
	return ops
}
