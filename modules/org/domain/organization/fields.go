package organization

import (
	"github.com/iota-uz/orgtree/pkg/repo"
)

type Field int

const (
	IDField Field = iota
	NameField
	DescriptionField
	CreatedAtField
	UpdatedAtField
	StatusField
	ParentIDField
	// AttributeField predicates carry the attribute key alongside; each
	// distinct key compiles to its own join alias.
	AttributeField
)

type Operator string

const (
	OpEq Operator = "eq"
	OpSw Operator = "sw"
	OpEw Operator = "ew"
	OpCo Operator = "co"
	OpGe Operator = "ge"
	OpLe Operator = "le"
	OpGt Operator = "gt"
	OpLt Operator = "lt"
)

func (op Operator) IsValid() bool {
	switch op {
	case OpEq, OpSw, OpEw, OpCo, OpGe, OpLe, OpGt, OpLt:
		return true
	}
	return false
}

// Predicate is one leaf of the AND-only filter expression.
type Predicate struct {
	Field Field
	// AttrKey is set only when Field == AttributeField.
	AttrKey string
	Op      Operator
	Value   string
}

// SortOrder selects the listing sort key and with it the cursor
// comparison directions.
type SortOrder int

const (
	// SortCreatedDesc is a reverse-chronological feed: before moves
	// backward (newer), after moves forward (older).
	SortCreatedDesc SortOrder = iota
	// SortNameAsc sorts by name; cursor comparisons invert.
	SortNameAsc
)

type FindParams struct {
	Predicates []Predicate
	Order      SortOrder
	// After and Before are the raw base64 cursors from the request.
	// When both are set, Before wins.
	After  string
	Before string
	Limit  int
	Offset int
	// Authorized restricts results to organizations the caller holds at
	// least one permission against. Rendered against the organization id
	// column; nil means unrestricted.
	Authorized repo.Filter
}
