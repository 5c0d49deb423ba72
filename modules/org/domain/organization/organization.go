package organization

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
)

func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusDisabled
}

type Type string

const (
	// TypeStructural nodes are scaffolding; they own no principal realm.
	TypeStructural Type = "structural"
	// TypeTenant nodes own an externally provisioned principal realm.
	TypeTenant Type = "tenant"
)

func (t Type) IsValid() bool {
	return t == TypeStructural || t == TypeTenant
}

// Attribute is a single key/value pair attached to an organization.
// Keys are unique per organization; both sides are stored trimmed.
type Attribute struct {
	Key   string
	Value string
}

// Minimal is the projection cached and served on listing surfaces.
type Minimal struct {
	ID     uuid.UUID
	Name   string
	Handle string
	Depth  int
}

type Organization struct {
	id          uuid.UUID
	tenantID    uuid.UUID
	name        string
	description string
	status      Status
	orgType     Type
	parentID    *uuid.UUID
	version     string
	handle      string
	attributes  []Attribute
	createdAt   time.Time
	updatedAt   time.Time
}

type Option func(*Organization)

func WithID(id uuid.UUID) Option {
	return func(o *Organization) {
		o.id = id
	}
}

func WithTenantID(tenantID uuid.UUID) Option {
	return func(o *Organization) {
		o.tenantID = tenantID
	}
}

func WithDescription(description string) Option {
	return func(o *Organization) {
		o.description = description
	}
}

func WithStatus(status Status) Option {
	return func(o *Organization) {
		o.status = status
	}
}

func WithType(t Type) Option {
	return func(o *Organization) {
		o.orgType = t
	}
}

func WithParentID(parentID *uuid.UUID) Option {
	return func(o *Organization) {
		o.parentID = parentID
	}
}

func WithVersion(version string) Option {
	return func(o *Organization) {
		o.version = version
	}
}

func WithHandle(handle string) Option {
	return func(o *Organization) {
		o.handle = handle
	}
}

func WithAttributes(attributes []Attribute) Option {
	return func(o *Organization) {
		o.attributes = trimAttributes(attributes)
	}
}

func WithCreatedAt(createdAt time.Time) Option {
	return func(o *Organization) {
		o.createdAt = createdAt
	}
}

func WithUpdatedAt(updatedAt time.Time) Option {
	return func(o *Organization) {
		o.updatedAt = updatedAt
	}
}

func New(name string, opts ...Option) *Organization {
	now := time.Now().UTC()
	o := &Organization{
		id:        uuid.New(),
		name:      strings.TrimSpace(name),
		status:    StatusActive,
		orgType:   TypeStructural,
		createdAt: now,
		updatedAt: now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Organization) ID() uuid.UUID {
	return o.id
}

func (o *Organization) TenantID() uuid.UUID {
	return o.tenantID
}

func (o *Organization) Name() string {
	return o.name
}

func (o *Organization) Description() string {
	return o.description
}

func (o *Organization) Status() Status {
	return o.status
}

func (o *Organization) Type() Type {
	return o.orgType
}

func (o *Organization) ParentID() *uuid.UUID {
	return o.parentID
}

func (o *Organization) IsRoot() bool {
	return o.parentID == nil
}

func (o *Organization) Version() string {
	return o.version
}

// Handle is the externally visible name of the backing realm. Empty for
// structural organizations; derived from the name for tenant-backed
// ones that have not been hydrated from the store.
func (o *Organization) Handle() string {
	if o.handle == "" && o.orgType == TypeTenant {
		return NormalizeHandle(o.name)
	}
	return o.handle
}

func (o *Organization) Attributes() []Attribute {
	out := make([]Attribute, len(o.attributes))
	copy(out, o.attributes)
	return out
}

func (o *Organization) Attribute(key string) (string, bool) {
	for _, a := range o.attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

func (o *Organization) CreatedAt() time.Time {
	return o.createdAt
}

func (o *Organization) UpdatedAt() time.Time {
	return o.updatedAt
}

func (o *Organization) Rename(name string) {
	o.name = strings.TrimSpace(name)
	o.touch()
}

func (o *Organization) SetDescription(description string) {
	o.description = strings.TrimSpace(description)
	o.touch()
}

func (o *Organization) SetStatus(status Status) {
	o.status = status
	o.touch()
}

func (o *Organization) SetVersion(version string) {
	o.version = version
	o.touch()
}

// SetAttribute inserts or replaces the attribute under key.
func (o *Organization) SetAttribute(key, value string) {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	for i, a := range o.attributes {
		if a.Key == key {
			o.attributes[i].Value = value
			o.touch()
			return
		}
	}
	o.attributes = append(o.attributes, Attribute{Key: key, Value: value})
	o.touch()
}

// ReplaceAttributes swaps the whole attribute set, for full-replace
// updates.
func (o *Organization) ReplaceAttributes(attributes []Attribute) {
	o.attributes = trimAttributes(attributes)
	o.touch()
}

func trimAttributes(in []Attribute) []Attribute {
	out := make([]Attribute, len(in))
	for i, a := range in {
		out[i] = Attribute{Key: strings.TrimSpace(a.Key), Value: strings.TrimSpace(a.Value)}
	}
	return out
}

// RemoveAttribute reports whether the key existed.
func (o *Organization) RemoveAttribute(key string) bool {
	for i, a := range o.attributes {
		if a.Key == key {
			o.attributes = append(o.attributes[:i], o.attributes[i+1:]...)
			o.touch()
			return true
		}
	}
	return false
}

func (o *Organization) Minimal(depth int) Minimal {
	return Minimal{ID: o.id, Name: o.name, Handle: o.Handle(), Depth: depth}
}

func (o *Organization) touch() {
	o.updatedAt = time.Now().UTC()
}

// NormalizeHandle derives the realm handle for a tenant-backed
// organization from its name.
func NormalizeHandle(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(strings.TrimSpace(name)), "-"))
}
