package model

import "regexp"

// MatchOp is a label matcher operator.
type MatchOp uint8

const (
	MatchEqual MatchOp = iota
	MatchNotEqual
	MatchRegex
	MatchNotRegex
)

// Matcher constrains one label of a series. A Matcher with an invalid regex
// pattern excludes all candidates rather than erroring the query.
type Matcher struct {
	Name  string
	Value string
	Op    MatchOp

	re     *regexp.Regexp
	reErr  error
	reInit bool
}

// NewMatcher builds a matcher. For MatchRegex/MatchNotRegex, value is
// compiled lazily on first Matches call so construction never fails.
func NewMatcher(op MatchOp, name, value string) Matcher {
	return Matcher{Name: name, Value: value, Op: op}
}

func (m *Matcher) compile() {
	if m.reInit {
		return
	}
	m.reInit = true
	m.re, m.reErr = regexp.Compile("^(?:" + m.Value + ")$")
}

// Matches reports whether value satisfies the matcher. An invalid regex
// pattern always returns false.
func (m *Matcher) Matches(value string) bool {
	switch m.Op {
	case MatchEqual:
		return value == m.Value
	case MatchNotEqual:
		return value != m.Value
	case MatchRegex:
		m.compile()
		if m.reErr != nil {
			return false
		}

		return m.re.MatchString(value)
	case MatchNotRegex:
		m.compile()
		if m.reErr != nil {
			return false
		}

		return !m.re.MatchString(value)
	default:
		return false
	}
}

// IsEqual reports whether this is a plain equality matcher, eligible for
// posting-list intersection.
func (m *Matcher) IsEqual() bool { return m.Op == MatchEqual }

// MatchesLabelSet reports whether every matcher in matchers is satisfied by
// labels (missing labels compare against "").
func MatchesLabelSet(matchers []Matcher, labels LabelSet) bool {
	for i := range matchers {
		v, _ := labels.Get(matchers[i].Name)
		if !matchers[i].Matches(v) {
			return false
		}
	}

	return true
}
