package composables

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/orgtree/pkg/constants"
)

var (
	ErrNoTenantID = errors.New("no tenant id found in context")
	ErrNoUserID   = errors.New("no user id found in context")
)

func WithTenantID(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, constants.TenantIDKey, tenantID)
}

func UseTenantID(ctx context.Context) (uuid.UUID, error) {
	v := ctx.Value(constants.TenantIDKey)
	if v == nil {
		return uuid.Nil, ErrNoTenantID
	}
	return v.(uuid.UUID), nil
}

func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, constants.UserIDKey, userID)
}

func UseUserID(ctx context.Context) (uuid.UUID, error) {
	v := ctx.Value(constants.UserIDKey)
	if v == nil {
		return uuid.Nil, ErrNoUserID
	}
	return v.(uuid.UUID), nil
}

// WithAccessingOrg records the organization the caller is acting from.
func WithAccessingOrg(ctx context.Context, orgID uuid.UUID) context.Context {
	return context.WithValue(ctx, constants.AccessingOrgKey, orgID)
}

// UseAccessingOrg returns uuid.Nil when the caller did not declare an
// accessing organization; callers treat that as "no extra trimming".
func UseAccessingOrg(ctx context.Context) uuid.UUID {
	v := ctx.Value(constants.AccessingOrgKey)
	if v == nil {
		return uuid.Nil
	}
	return v.(uuid.UUID)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, constants.RequestIDKey, requestID)
}

func UseRequestID(ctx context.Context) string {
	v := ctx.Value(constants.RequestIDKey)
	if v == nil {
		return ""
	}
	return v.(string)
}

func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, constants.LoggerKey, logger)
}

// UseLogger returns the request-scoped logger, or a discard-free default
// entry when none was injected (library and test call paths).
func UseLogger(ctx context.Context) *logrus.Entry {
	v := ctx.Value(constants.LoggerKey)
	if v == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return v.(*logrus.Entry)
}
