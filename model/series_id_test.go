package model

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/tsdbcore/internal/hash"
)

func TestIDAllocator_Allocate_StableForSameLabels(t *testing.T) {
	a := NewIDAllocator()
	labels := NewLabelSet(Label{Name: "__name__", Value: "cpu"}, Label{Name: "host", Value: "a"})

	id1 := a.Allocate(labels)
	id2 := a.Allocate(labels)

	require.Equal(t, id1, id2)
	require.Equal(t, 1, a.Len())
}

func TestIDAllocator_Allocate_DistinctForDifferentLabels(t *testing.T) {
	a := NewIDAllocator()
	l1 := NewLabelSet(Label{Name: "host", Value: "a"})
	l2 := NewLabelSet(Label{Name: "host", Value: "b"})

	id1 := a.Allocate(l1)
	id2 := a.Allocate(l2)

	require.NotEqual(t, id1, id2)
}

func TestIDAllocator_Find(t *testing.T) {
	a := NewIDAllocator()
	labels := NewLabelSet(Label{Name: "host", Value: "a"})

	_, ok := a.Find(labels)
	require.False(t, ok, "Find must not allocate as a side effect")

	id := a.Allocate(labels)

	found, ok := a.Find(labels)
	require.True(t, ok)
	require.Equal(t, id, found)
}

func TestIDAllocator_Lookup(t *testing.T) {
	a := NewIDAllocator()
	labels := NewLabelSet(Label{Name: "host", Value: "a"})
	id := a.Allocate(labels)

	got, ok := a.Lookup(id)
	require.True(t, ok)
	require.True(t, got.Equal(labels))

	_, ok = a.Lookup(id + 1000)
	require.False(t, ok)
}

func TestIDAllocator_Forget(t *testing.T) {
	a := NewIDAllocator()
	labels := NewLabelSet(Label{Name: "host", Value: "a"})
	id := a.Allocate(labels)

	a.Forget(id)

	_, ok := a.Lookup(id)
	require.False(t, ok)
	_, ok = a.Find(labels)
	require.False(t, ok)
	require.Equal(t, 0, a.Len())
}

func TestIDAllocator_CollisionDisambiguation(t *testing.T) {
	a := NewIDAllocator()
	labels := NewLabelSet(Label{Name: "host", Value: "a"})

	// Pre-occupy the exact slot labels would naturally hash to, forcing
	// Allocate's open-addressing probe to step past it.
	wantID := SeriesID(hash.ID(labels.Canonical()))
	other := NewLabelSet(Label{Name: "preoccupied", Value: "x"})
	a.forward[wantID] = other
	a.byLabels[other.Canonical()] = wantID

	id := a.Allocate(labels)

	require.NotEqual(t, wantID, id)
	require.Equal(t, 1, a.Collisions())
	got, ok := a.Lookup(id)
	require.True(t, ok)
	require.True(t, got.Equal(labels))
}
