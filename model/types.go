// Package model defines the core data types shared by every storage
// component: labels, series identity, and samples.
package model

import (
	"sort"
	"strings"
)

// Label is a single name/value pair identifying part of a series.
type Label struct {
	Name  string
	Value string
}

// LabelSet is an immutable, sorted-by-name, deduplicated collection of
// labels. The zero value is an empty set.
type LabelSet struct {
	labels []Label
}

// NewLabelSet builds a LabelSet from labels, sorting by name and keeping the
// last value seen for duplicate names.
func NewLabelSet(labels ...Label) LabelSet {
	if len(labels) == 0 {
		return LabelSet{}
	}

	cp := make([]Label, len(labels))
	copy(cp, labels)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Name < cp[j].Name })

	out := cp[:0:0] //nolint:staticcheck // explicit zero-len, distinct backing array
	for i := 0; i < len(cp); i++ {
		if i+1 < len(cp) && cp[i+1].Name == cp[i].Name {
			continue
		}
		out = append(out, cp[i])
	}

	return LabelSet{labels: out}
}

// Len returns the number of labels.
func (ls LabelSet) Len() int { return len(ls.labels) }

// Get returns the value for name and whether it was present.
func (ls LabelSet) Get(name string) (string, bool) {
	for _, l := range ls.labels {
		if l.Name == name {
			return l.Value, true
		}
	}

	return "", false
}

// Labels returns the sorted label slice. Callers must not mutate it.
func (ls LabelSet) Labels() []Label { return ls.labels }

// Canonical returns the deterministic serialization used for hashing:
// name, NUL, value, NUL, repeated in sorted-name order.
func (ls LabelSet) Canonical() string {
	var sb strings.Builder
	for _, l := range ls.labels {
		sb.WriteString(l.Name)
		sb.WriteByte(0)
		sb.WriteString(l.Value)
		sb.WriteByte(0)
	}

	return sb.String()
}

// Equal reports whether two label sets contain the same name/value pairs.
func (ls LabelSet) Equal(other LabelSet) bool {
	if len(ls.labels) != len(other.labels) {
		return false
	}
	for i := range ls.labels {
		if ls.labels[i] != other.labels[i] {
			return false
		}
	}

	return true
}

// SeriesID uniquely identifies a series within an engine instance.
type SeriesID uint64

// Sample is a single timestamped value belonging to a series.
type Sample struct {
	Timestamp int64
	Value     float64
	// Fields carries orthogonal, non-identity metadata (e.g. exemplar trace
	// IDs); it plays no role in series identity or ordering.
	Fields map[string]string
}
