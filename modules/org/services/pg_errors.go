package services

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iota-uz/orgtree/modules/org/domain/organization"
	"github.com/iota-uz/orgtree/modules/org/infrastructure/persistence"
	"github.com/iota-uz/orgtree/pkg/serrors"
)

const (
	constraintParentName = "organizations_parent_name_key"
	constraintAttrKey    = "organization_attributes_pkey"
	constraintParentFK   = "organizations_parent_id_fkey"
)

// mapStoreError translates persistence failures into the service error
// taxonomy. Constraint violations become client conflicts; anything
// else is a retryable-by-caller store failure.
func mapStoreError(err error) *ServiceError {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}

	if errors.Is(err, persistence.ErrOrganizationNotFound) {
		return notFound(CodeNotFound, "organization not found")
	}
	if errors.Is(err, persistence.ErrRootNotFound) {
		return notFound(CodeNotFound, "root organization not found")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.ConstraintName {
		case constraintParentName:
			orgWriteConflicts.Inc()
			return conflict(CodeNameConflict, "an organization with this name already exists under the same parent")
		case constraintAttrKey:
			return badRequest(CodeAttrKeyDuplicate, "duplicate attribute key")
		case constraintParentFK:
			return notFound(CodeParentNotFound, "parent organization not found")
		}
	}
	return serverError(CodeStoreFailure, "organization store failure", err)
}

// mapFilterError translates filter-compiler and cursor errors into the
// client taxonomy.
func mapFilterError(err error) *ServiceError {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	if errors.Is(err, persistence.ErrInvalidCursor) {
		return badRequest(CodeInvalidCursor, "pagination cursor is malformed")
	}

	var base *serrors.BaseError
	if errors.As(err, &base) {
		switch base {
		case organization.ErrUnsupportedCombiner,
			organization.ErrMalformedFilter,
			organization.ErrUnsupportedAttribute,
			organization.ErrUnsupportedOperator,
			organization.ErrOperatorMismatch:
			return badRequest(CodeInvalidFilter, base.Message)
		}
	}
	return serverError(CodeStoreFailure, "listing failure", err)
}
