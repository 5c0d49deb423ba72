package organization

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetAttribute_InsertsAndReplaces(t *testing.T) {
	o := New("engineering")

	o.SetAttribute(" region ", " eu ")
	v, ok := o.Attribute("region")
	require.True(t, ok)
	require.Equal(t, "eu", v)

	o.SetAttribute("region", "us")
	v, _ = o.Attribute("region")
	require.Equal(t, "us", v)
	require.Len(t, o.Attributes(), 1)
}

func TestNew_TrimsNameAndAttributes(t *testing.T) {
	o := New("  Engineering  ", WithAttributes([]Attribute{
		{Key: " region ", Value: " eu "},
	}))

	require.Equal(t, "Engineering", o.Name())
	v, ok := o.Attribute("region")
	require.True(t, ok)
	require.Equal(t, "eu", v)
}

func TestReplaceAttributes_TrimsBothSides(t *testing.T) {
	o := New("engineering")
	o.ReplaceAttributes([]Attribute{{Key: " tier ", Value: " gold "}})

	v, ok := o.Attribute("tier")
	require.True(t, ok)
	require.Equal(t, "gold", v)
}

func TestRemoveAttribute(t *testing.T) {
	o := New("engineering")
	o.SetAttribute("tier", "gold")

	require.True(t, o.RemoveAttribute("tier"))
	require.False(t, o.RemoveAttribute("tier"))
	_, ok := o.Attribute("tier")
	require.False(t, ok)
}

func TestAttributes_ReturnsCopy(t *testing.T) {
	o := New("engineering")
	o.SetAttribute("tier", "gold")

	attrs := o.Attributes()
	attrs[0].Value = "mutated"

	v, _ := o.Attribute("tier")
	require.Equal(t, "gold", v)
}

func TestNormalizeHandle(t *testing.T) {
	require.Equal(t, "acme-west", NormalizeHandle("  Acme   West "))
	require.Equal(t, "acme", NormalizeHandle("ACME"))
}

func TestStatusAndTypeValidation(t *testing.T) {
	require.True(t, StatusActive.IsValid())
	require.True(t, StatusDisabled.IsValid())
	require.False(t, Status("archived").IsValid())

	require.True(t, TypeStructural.IsValid())
	require.True(t, TypeTenant.IsValid())
	require.False(t, Type("virtual").IsValid())
}
