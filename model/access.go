package model

import "strings"

// OfficeWildcard grants access to every office.
const OfficeWildcard = "*"

// OfficeSet is the set of office names a user may report for. Names are
// compared case-insensitively after trimming. The wildcard entry "*" matches
// every office.
type OfficeSet map[string]bool

// NewOfficeSet builds an OfficeSet from the given names.
func NewOfficeSet(names ...string) OfficeSet {
	s := make(OfficeSet, len(names))
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add inserts name into the set.
func (s OfficeSet) Add(name string) {
	key := officeKey(name)
	if key == "" {
		return
	}
	s[key] = true
}

// Unrestricted reports whether the set carries the wildcard.
func (s OfficeSet) Unrestricted() bool {
	return s[OfficeWildcard]
}

// Has returns true if the set contains the office or the wildcard.
func (s OfficeSet) Has(name string) bool {
	if s.Unrestricted() {
		return true
	}
	return s[officeKey(name)]
}

// Filter returns the offices from the given list that the set grants, in
// their original order.
func (s OfficeSet) Filter(offices []Office) []Office {
	out := make([]Office, 0, len(offices))
	for _, o := range offices {
		if s.Has(o.Name) {
			out = append(out, o)
		}
	}
	return out
}

func officeKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// AccessResolver resolves the offices a request context may report for.
type AccessResolver interface {
	// Resolve returns the office set for the subject of rctx.
	Resolve(rctx *RequestContext) (OfficeSet, error)

	// Invalidate clears cached access for the given subject.
	Invalidate(subjectID string)
}

// AccessPolicy is the backend that computes office access from roles and
// explicit grants.
type AccessPolicy interface {
	ResolveOffices(rctx *RequestContext) (OfficeSet, error)

	// Sync reloads policy data from its source.
	Sync() error
}
