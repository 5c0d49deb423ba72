package services

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/google/uuid"

	"github.com/iota-uz/orgtree/modules/org/domain/organization"
	"github.com/iota-uz/orgtree/modules/org/infrastructure/cache"
	"github.com/iota-uz/orgtree/pkg/composables"
)

// orgCache is the read-through wrapper around the cache backend. A
// failing backend never fails the request: reads degrade to the loader
// and the failure is logged and counted.
type orgCache struct {
	store cache.Store
}

func newOrgCache(store cache.Store) *orgCache {
	return &orgCache{store: store}
}

// readThrough returns the cached value for key, or loads, populates and
// returns it on miss.
func (c *orgCache) readThrough(ctx context.Context, key string, load func() (string, error)) (string, error) {
	value, ok, err := c.store.Get(ctx, key)
	if err != nil {
		orgCacheRequests.WithLabelValues(cacheResultError).Inc()
		composables.UseLogger(ctx).WithError(err).WithField("key", key).Warn("cache read failed, falling through to store")
	} else if ok {
		orgCacheRequests.WithLabelValues(cacheResultHit).Inc()
		return value, nil
	} else {
		orgCacheRequests.WithLabelValues(cacheResultMiss).Inc()
	}

	value, err = load()
	if err != nil {
		return "", err
	}
	if err := c.store.Set(ctx, key, value); err != nil {
		composables.UseLogger(ctx).WithError(err).WithField("key", key).Warn("cache populate failed")
	}
	return value, nil
}

func (c *orgCache) version(ctx context.Context, tenantID, orgID uuid.UUID, load func() (string, error)) (string, error) {
	return c.readThrough(ctx, cache.OrgKey(tenantID, orgID, cache.FieldVersion), load)
}

func (c *orgCache) name(ctx context.Context, tenantID, orgID uuid.UUID, load func() (string, error)) (string, error) {
	return c.readThrough(ctx, cache.OrgKey(tenantID, orgID, cache.FieldName), load)
}

func (c *orgCache) status(ctx context.Context, tenantID, orgID uuid.UUID, load func() (string, error)) (organization.Status, error) {
	raw, err := c.readThrough(ctx, cache.OrgKey(tenantID, orgID, cache.FieldStatus), load)
	if err != nil {
		return "", err
	}
	return organization.Status(raw), nil
}

func (c *orgCache) typ(ctx context.Context, tenantID, orgID uuid.UUID, load func() (string, error)) (organization.Type, error) {
	raw, err := c.readThrough(ctx, cache.OrgKey(tenantID, orgID, cache.FieldType), load)
	if err != nil {
		return "", err
	}
	return organization.Type(raw), nil
}

// handleByID is the reverse side of the handle mapping. Handles are
// derived state, so the loader goes through the cached name.
func (c *orgCache) handleByID(ctx context.Context, tenantID, orgID uuid.UUID, load func() (string, error)) (string, error) {
	return c.readThrough(ctx, cache.IDHandleKey(tenantID, orgID), load)
}

func (c *orgCache) depth(ctx context.Context, tenantID, orgID uuid.UUID, load func() (int, error)) (int, error) {
	raw, err := c.readThrough(ctx, cache.OrgKey(tenantID, orgID, cache.FieldDepth), func() (string, error) {
		d, err := load()
		if err != nil {
			return "", err
		}
		return strconv.Itoa(d), nil
	})
	if err != nil {
		return -1, err
	}
	d, err := strconv.Atoi(raw)
	if err != nil {
		return -1, err
	}
	return d, nil
}

func (c *orgCache) ancestorIDs(ctx context.Context, tenantID, orgID uuid.UUID, load func() ([]uuid.UUID, error)) ([]uuid.UUID, error) {
	raw, err := c.readThrough(ctx, cache.OrgKey(tenantID, orgID, cache.FieldAncestors), func() (string, error) {
		ids, err := load()
		if err != nil {
			return "", err
		}
		encoded, err := json.Marshal(ids)
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	})
	if err != nil {
		return nil, err
	}
	var ids []uuid.UUID
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *orgCache) minimal(ctx context.Context, tenantID, orgID uuid.UUID, load func() (organization.Minimal, error)) (organization.Minimal, error) {
	raw, err := c.readThrough(ctx, cache.OrgKey(tenantID, orgID, cache.FieldMinimal), func() (string, error) {
		m, err := load()
		if err != nil {
			return "", err
		}
		encoded, err := json.Marshal(m)
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	})
	if err != nil {
		return organization.Minimal{}, err
	}
	var m organization.Minimal
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return organization.Minimal{}, err
	}
	return m, nil
}

// resolveHandle maps a realm handle to the owning organization id.
func (c *orgCache) resolveHandle(ctx context.Context, tenantID uuid.UUID, handle string, load func() (uuid.UUID, error)) (uuid.UUID, error) {
	raw, err := c.readThrough(ctx, cache.HandleKey(tenantID, handle), func() (string, error) {
		id, err := load()
		if err != nil {
			return "", err
		}
		return id.String(), nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(raw)
}

// evict synchronously drops every cached projection of the
// organization, including the handle mappings. Renames pass both the
// pre- and post-mutation handle so the old mapping cannot survive.
// Writes call this after the store mutation and before returning.
func (c *orgCache) evict(ctx context.Context, tenantID, orgID uuid.UUID, reason string, handles ...string) {
	keys := cache.OrgKeys(tenantID, orgID)
	keys = append(keys, cache.IDHandleKey(tenantID, orgID))
	seen := make(map[string]struct{}, len(handles))
	for _, handle := range handles {
		if handle == "" {
			continue
		}
		if _, dup := seen[handle]; dup {
			continue
		}
		seen[handle] = struct{}{}
		keys = append(keys, cache.HandleKey(tenantID, handle))
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		composables.UseLogger(ctx).WithError(err).WithField("organization_id", orgID).Error("cache eviction failed")
		return
	}
	orgCacheInvalidations.WithLabelValues(reason).Inc()
}
