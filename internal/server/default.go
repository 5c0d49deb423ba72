package server

import (
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/orgtree/modules/org/infrastructure/cache"
	"github.com/iota-uz/orgtree/modules/org/infrastructure/persistence"
	"github.com/iota-uz/orgtree/modules/org/presentation/controllers"
	"github.com/iota-uz/orgtree/modules/org/services"
	"github.com/iota-uz/orgtree/pkg/configuration"
	"github.com/iota-uz/orgtree/pkg/eventbus"
	"github.com/iota-uz/orgtree/pkg/metrics"
	"github.com/iota-uz/orgtree/pkg/middleware"
	"github.com/iota-uz/orgtree/pkg/server"
)

type DefaultOptions struct {
	Logger        *logrus.Logger
	Configuration *configuration.Configuration
	Pool          *pgxpool.Pool
	EventBus      eventbus.EventBus

	// Optional overrides for the external collaborators; permissive
	// defaults are used when nil.
	Oracle      services.AuthorizationOracle
	Provisioner services.RealmProvisioner
	Listeners   []services.MutationListener
}

func Default(options *DefaultOptions) (*server.HTTPServer, error) {
	conf := options.Configuration

	oracle := options.Oracle
	if oracle == nil {
		oracle = allowAllOracle{}
	}
	provisioner := options.Provisioner
	if provisioner == nil {
		provisioner = loggingProvisioner{log: options.Logger}
	}

	store := newCacheStore(conf)
	orgService := services.NewOrganizationService(
		persistence.NewOrganizationRepository(),
		persistence.NewOrganizationQueryRepository(),
		store,
		oracle,
		provisioner,
		options.EventBus,
		options.Listeners...,
	)

	controllersList := []server.Controller{
		controllers.NewOrgAPIController(orgService),
	}
	if conf.Prometheus.Enabled {
		controllersList = append(controllersList, metrics.NewPrometheusController(conf.Prometheus.Path))
	}

	middlewares := []mux.MiddlewareFunc{
		middleware.WithLogging(options.Logger),
		middleware.WithPool(options.Pool),
		middleware.WithTenant(),
		middleware.WithPrincipal(),
	}
	return server.NewHTTPServer(controllersList, middlewares...), nil
}

func newCacheStore(conf *configuration.Configuration) cache.Store {
	if conf.OrgCacheBackend == "redis" {
		return cache.NewRedisStore(redis.NewClient(&redis.Options{Addr: conf.RedisURL}))
	}
	return cache.NewMemoryStore()
}
