package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	orgCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "org_cache_requests_total",
		Help: "Organization cache lookups by result.",
	}, []string{"result"})

	orgCacheInvalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "org_cache_invalidations_total",
		Help: "Organization cache evictions by reason.",
	}, []string{"reason"})

	orgWriteConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "org_write_conflicts_total",
		Help: "Writes rejected by uniqueness constraints.",
	})
)

const (
	cacheResultHit   = "hit"
	cacheResultMiss  = "miss"
	cacheResultError = "error"
)
