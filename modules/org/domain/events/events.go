package events

import (
	"time"

	"github.com/google/uuid"
)

type ChangeType string

const (
	OrganizationCreated ChangeType = "organization.created"
	OrganizationUpdated ChangeType = "organization.updated"
	OrganizationPatched ChangeType = "organization.patched"
	OrganizationDeleted ChangeType = "organization.deleted"
)

// OrgMutation describes one mutation of the organization tree. The same
// payload is handed to listeners twice: Prepare before the transaction
// commits (a returned error vetoes the write) and, via the event bus,
// as a fire-and-forget notification after commit.
type OrgMutation struct {
	EventID         uuid.UUID
	RequestID       string
	TenantID        uuid.UUID
	InitiatorID     uuid.UUID
	ChangeType      ChangeType
	OrganizationID  uuid.UUID
	TransactionTime time.Time
}

func NewOrgMutation(requestID string, tenantID, initiatorID uuid.UUID, changeType ChangeType, orgID uuid.UUID) OrgMutation {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return OrgMutation{
		EventID:         uuid.New(),
		RequestID:       requestID,
		TenantID:        tenantID,
		InitiatorID:     initiatorID,
		ChangeType:      changeType,
		OrganizationID:  orgID,
		TransactionTime: time.Now().UTC(),
	}
}
