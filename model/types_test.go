package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLabelSet_SortsAndDedupes(t *testing.T) {
	ls := NewLabelSet(
		Label{Name: "b", Value: "2"},
		Label{Name: "a", Value: "1"},
		Label{Name: "a", Value: "1-updated"},
	)

	require.Equal(t, 2, ls.Len())
	v, ok := ls.Get("a")
	require.True(t, ok)
	require.Equal(t, "1-updated", v)

	labels := ls.Labels()
	require.Equal(t, "a", labels[0].Name)
	require.Equal(t, "b", labels[1].Name)
}

func TestLabelSet_Get_Missing(t *testing.T) {
	ls := NewLabelSet(Label{Name: "a", Value: "1"})

	_, ok := ls.Get("missing")
	require.False(t, ok)
}

func TestLabelSet_Canonical_OrderIndependent(t *testing.T) {
	a := NewLabelSet(Label{Name: "b", Value: "2"}, Label{Name: "a", Value: "1"})
	b := NewLabelSet(Label{Name: "a", Value: "1"}, Label{Name: "b", Value: "2"})

	require.Equal(t, a.Canonical(), b.Canonical())
}

func TestLabelSet_Canonical_DistinguishesNameValueBoundary(t *testing.T) {
	// Without a separator, {name:"a", value:"bc"} and {name:"ab", value:"c"}
	// could collide; the NUL-delimited Canonical form must not.
	a := NewLabelSet(Label{Name: "a", Value: "bc"})
	b := NewLabelSet(Label{Name: "ab", Value: "c"})

	require.NotEqual(t, a.Canonical(), b.Canonical())
}

func TestLabelSet_Equal(t *testing.T) {
	a := NewLabelSet(Label{Name: "a", Value: "1"}, Label{Name: "b", Value: "2"})
	b := NewLabelSet(Label{Name: "b", Value: "2"}, Label{Name: "a", Value: "1"})
	c := NewLabelSet(Label{Name: "a", Value: "1"})

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}

func TestLabelSet_Empty(t *testing.T) {
	var ls LabelSet

	require.Equal(t, 0, ls.Len())
	require.Equal(t, "", ls.Canonical())
}
