// Package cache holds the read-through store for hot organization
// lookups. Values are strings; callers serialize richer projections.
package cache

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Store is the cache backend. Implementations must treat Get misses as
// (value="", ok=false, err=nil); errors are reserved for backend
// failures, which callers degrade around.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	// PurgeTenant drops every key cached under the tenant.
	PurgeTenant(ctx context.Context, tenantID uuid.UUID) error
}

// Cached projections of a single organization. Eviction deletes all of
// them at once, so the set here must stay in sync with OrgKeys.
const (
	FieldName      = "name"
	FieldStatus    = "status"
	FieldType      = "type"
	FieldAncestors = "ancestors"
	FieldDepth     = "depth"
	FieldMinimal   = "minimal"
	FieldVersion   = "version"
)

var orgFields = []string{
	FieldName, FieldStatus, FieldType, FieldAncestors, FieldDepth, FieldMinimal, FieldVersion,
}

func OrgKey(tenantID, orgID uuid.UUID, field string) string {
	return fmt.Sprintf("org:%s:%s:%s", tenantID, orgID, field)
}

// OrgKeys enumerates every per-organization key, for eviction.
func OrgKeys(tenantID, orgID uuid.UUID) []string {
	keys := make([]string, 0, len(orgFields))
	for _, f := range orgFields {
		keys = append(keys, OrgKey(tenantID, orgID, f))
	}
	return keys
}

// HandleKey maps a realm handle to the owning organization id.
func HandleKey(tenantID uuid.UUID, handle string) string {
	return fmt.Sprintf("org:%s:handle:%s", tenantID, handle)
}

// IDHandleKey is the reverse mapping, needed to evict the handle entry
// when only the id is known.
func IDHandleKey(tenantID, orgID uuid.UUID) string {
	return fmt.Sprintf("org:%s:%s:handle", tenantID, orgID)
}

// tenantOf extracts the tenant segment of a key for the tenant index.
func tenantOf(key string) string {
	const prefix = "org:"
	if len(key) <= len(prefix) {
		return ""
	}
	rest := key[len(prefix):]
	for i := 0; i < len(rest); i++ {
		if rest[i] == ':' {
			return rest[:i]
		}
	}
	return ""
}
