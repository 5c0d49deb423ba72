package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/iota-uz/orgtree/modules/org/domain/events"
	"github.com/iota-uz/orgtree/pkg/repo"
)

// OwnerInfo identifies the principal a freshly provisioned realm is
// handed to.
type OwnerInfo struct {
	UserID uuid.UUID
	Email  string
	Name   string
}

// AuthorizationOracle answers permission questions. Both identity
// validation and permission evaluation live behind it; this package
// never inspects credentials.
type AuthorizationOracle interface {
	Authorize(ctx context.Context, userID, resourceID, orgID uuid.UUID) (bool, error)
	// PermittedOrgsFilter returns a predicate over the organization id
	// column restricting listings to organizations the user holds at
	// least one permission against. nil means unrestricted.
	PermittedOrgsFilter(ctx context.Context, userID uuid.UUID) (repo.Filter, error)
}

// RealmProvisioner provisions the external realm backing a tenant-type
// organization. Provision runs after the insert transaction commits;
// its failure triggers a compensating delete of the node.
type RealmProvisioner interface {
	Provision(ctx context.Context, handle string, owner OwnerInfo) error
	Deprovision(ctx context.Context, handle string) error
}

// MutationListener is consulted before a mutation commits. A returned
// error vetoes the write and rolls the transaction back. Post-commit
// notification is separate and rides the event bus.
type MutationListener interface {
	Prepare(ctx context.Context, ev events.OrgMutation) error
}
