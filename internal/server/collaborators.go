package server

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/orgtree/modules/org/services"
	"github.com/iota-uz/orgtree/pkg/repo"
)

// The real authorization oracle and realm provisioner live in other
// systems. These defaults keep a standalone deployment functional:
// every read is permitted and provisioning is acknowledged and logged.

type allowAllOracle struct{}

func (allowAllOracle) Authorize(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) (bool, error) {
	return true, nil
}

func (allowAllOracle) PermittedOrgsFilter(context.Context, uuid.UUID) (repo.Filter, error) {
	return nil, nil
}

type loggingProvisioner struct {
	log *logrus.Logger
}

func (p loggingProvisioner) Provision(_ context.Context, handle string, owner services.OwnerInfo) error {
	p.log.WithFields(logrus.Fields{"handle": handle, "owner": owner.Email}).Info("realm provisioned")
	return nil
}

func (p loggingProvisioner) Deprovision(_ context.Context, handle string) error {
	p.log.WithField("handle", handle).Info("realm deprovisioned")
	return nil
}
