package models

import (
	"database/sql"
	"time"
)

type Organization struct {
	ID          string
	TenantID    string
	Name        string
	Description sql.NullString
	Status      string
	Type        string
	ParentID    sql.NullString
	Version     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type OrganizationAttribute struct {
	OrganizationID string
	Key            string
	Value          string
}
