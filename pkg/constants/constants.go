package constants

type contextKey string

const (
	PoolKey      contextKey = "pool"
	TxKey        contextKey = "tx"
	TenantIDKey  contextKey = "tenantID"
	LoggerKey    contextKey = "logger"
	RequestIDKey contextKey = "requestID"
	UserIDKey    contextKey = "userID"
	// AccessingOrgKey carries the organization the caller is acting from.
	// Ancestor chains returned to the caller are trimmed above it.
	AccessingOrgKey contextKey = "accessingOrg"
)
