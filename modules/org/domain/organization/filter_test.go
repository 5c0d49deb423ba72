package organization

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFilter_Empty(t *testing.T) {
	parsed, err := ParseFilter("")
	require.NoError(t, err)
	require.Empty(t, parsed.Predicates)
	require.Empty(t, parsed.After)
	require.Empty(t, parsed.Before)
}

func TestParseFilter_SingleClause(t *testing.T) {
	parsed, err := ParseFilter("name eq engineering")
	require.NoError(t, err)
	require.Len(t, parsed.Predicates, 1)
	require.Equal(t, NameField, parsed.Predicates[0].Field)
	require.Equal(t, OpEq, parsed.Predicates[0].Op)
	require.Equal(t, "engineering", parsed.Predicates[0].Value)
}

func TestParseFilter_AndChain(t *testing.T) {
	parsed, err := ParseFilter("status eq active and name sw eng and created ge 2024-01-01 00:00:00")
	require.NoError(t, err)
	require.Len(t, parsed.Predicates, 3)
	require.Equal(t, StatusField, parsed.Predicates[0].Field)
	require.Equal(t, OpSw, parsed.Predicates[1].Op)
	require.Equal(t, CreatedAtField, parsed.Predicates[2].Field)
	require.Equal(t, "2024-01-01 00:00:00", parsed.Predicates[2].Value)
}

func TestParseFilter_MetaAttributes(t *testing.T) {
	parsed, err := ParseFilter("attributes.region eq eu and attributes.tier co gold")
	require.NoError(t, err)
	require.Len(t, parsed.Predicates, 2)
	require.Equal(t, AttributeField, parsed.Predicates[0].Field)
	require.Equal(t, "region", parsed.Predicates[0].AttrKey)
	require.Equal(t, "tier", parsed.Predicates[1].AttrKey)
}

func TestParseFilter_ExtractsCursors(t *testing.T) {
	parsed, err := ParseFilter("status eq active and after MjAyNC0wMS0wMSAwMDowMDowMA== and before MjAyNS0wMS0wMSAwMDowMDowMA==")
	require.NoError(t, err)
	require.Len(t, parsed.Predicates, 1)
	require.Equal(t, "MjAyNC0wMS0wMSAwMDowMDowMA==", parsed.After)
	require.Equal(t, "MjAyNS0wMS0wMSAwMDowMDowMA==", parsed.Before)
}

func TestParseFilter_RejectsOrAndNot(t *testing.T) {
	_, err := ParseFilter("name eq a or name eq b")
	require.ErrorIs(t, err, ErrUnsupportedCombiner)

	_, err = ParseFilter("not name eq a")
	require.ErrorIs(t, err, ErrUnsupportedCombiner)
}

func TestParseFilter_RejectsUnknownAttribute(t *testing.T) {
	_, err := ParseFilter("owner eq bob")
	require.ErrorIs(t, err, ErrUnsupportedAttribute)

	_, err = ParseFilter("attributes. eq x")
	require.ErrorIs(t, err, ErrUnsupportedAttribute)
}

func TestParseFilter_RejectsUnknownOperator(t *testing.T) {
	_, err := ParseFilter("name like bob")
	require.ErrorIs(t, err, ErrUnsupportedOperator)
}

func TestParseFilter_RejectsOperatorAttributeMismatch(t *testing.T) {
	// String matching against timestamps.
	_, err := ParseFilter("created co 2024")
	require.ErrorIs(t, err, ErrOperatorMismatch)

	// Range operators against identity fields.
	_, err = ParseFilter("status gt active")
	require.ErrorIs(t, err, ErrOperatorMismatch)

	_, err = ParseFilter("parentId sw abc")
	require.ErrorIs(t, err, ErrOperatorMismatch)
}

func TestParseFilter_RejectsMalformedClause(t *testing.T) {
	_, err := ParseFilter("name eq")
	require.ErrorIs(t, err, ErrMalformedFilter)
}
