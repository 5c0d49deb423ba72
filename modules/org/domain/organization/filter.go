package organization

import (
	"strings"

	"github.com/iota-uz/orgtree/pkg/serrors"
)

var (
	ErrUnsupportedCombiner  = serrors.NewError("ORG_FILTER_COMBINER", "only 'and' is supported in filter expressions", "")
	ErrMalformedFilter      = serrors.NewError("ORG_FILTER_MALFORMED", "filter clause must be '<attribute> <operator> <value>'", "")
	ErrUnsupportedAttribute = serrors.NewError("ORG_FILTER_ATTRIBUTE", "attribute is not filterable", "")
	ErrUnsupportedOperator  = serrors.NewError("ORG_FILTER_OPERATOR", "operator is not supported", "")
	ErrOperatorMismatch     = serrors.NewError("ORG_FILTER_OP_MISMATCH", "operator is not allowed for this attribute", "")
)

const attributePrefix = "attributes."

var filterableFields = map[string]Field{
	"id":           IDField,
	"name":         NameField,
	"description":  DescriptionField,
	"created":      CreatedAtField,
	"lastModified": UpdatedAtField,
	"status":       StatusField,
	"parentId":     ParentIDField,
}

// ParsedFilter is the outcome of parsing the filter grammar: the AND-ed
// predicates plus the pagination pseudo-attributes pulled out of the
// expression.
type ParsedFilter struct {
	Predicates []Predicate
	After      string
	Before     string
}

// ParseFilter parses the AND-only filter grammar:
//
//	expr := attr SP op SP value ( " and " expr )*
//
// The pseudo-attributes after/before are extracted into the cursor
// slots; everything else must be on the filterable allow-list with an
// operator permitted for the attribute's type.
func ParseFilter(expr string) (*ParsedFilter, error) {
	out := &ParsedFilter{}
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return out, nil
	}

	for _, clause := range strings.Split(expr, " and ") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			return nil, ErrMalformedFilter
		}
		lower := strings.ToLower(clause)
		if strings.Contains(lower, " or ") || strings.HasPrefix(lower, "not ") || strings.HasPrefix(lower, "not(") {
			return nil, ErrUnsupportedCombiner
		}

		parts := strings.SplitN(clause, " ", 3)
		if len(parts) != 3 {
			return nil, ErrMalformedFilter
		}
		attr, opRaw, value := parts[0], strings.ToLower(parts[1]), parts[2]

		switch attr {
		case "after":
			out.After = value
			continue
		case "before":
			out.Before = value
			continue
		}

		op := Operator(opRaw)
		if !op.IsValid() {
			return nil, ErrUnsupportedOperator
		}

		p := Predicate{Op: op, Value: value}
		if key, ok := strings.CutPrefix(attr, attributePrefix); ok {
			if strings.TrimSpace(key) == "" {
				return nil, ErrUnsupportedAttribute
			}
			p.Field = AttributeField
			p.AttrKey = key
		} else {
			field, ok := filterableFields[attr]
			if !ok {
				return nil, ErrUnsupportedAttribute
			}
			p.Field = field
		}

		if err := checkOperatorAllowed(p.Field, op); err != nil {
			return nil, err
		}
		out.Predicates = append(out.Predicates, p)
	}
	return out, nil
}

func checkOperatorAllowed(field Field, op Operator) error {
	switch field {
	case CreatedAtField, UpdatedAtField:
		// String matching makes no sense against timestamps.
		if op == OpSw || op == OpEw || op == OpCo {
			return ErrOperatorMismatch
		}
	case IDField, ParentIDField, StatusField:
		if op != OpEq {
			return ErrOperatorMismatch
		}
	}
	return nil
}
