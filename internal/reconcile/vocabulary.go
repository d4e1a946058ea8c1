package reconcile

import (
	"golang.org/x/text/cases"

	"catcherr/internal/domain"
)

// VocabularyIndex answers controlled-term questions by property name.
type VocabularyIndex struct {
	terms     map[string][]string
	permitted map[string]map[string]struct{}
	arrays    map[string]bool
}

// NewVocabularyIndex indexes a vocabulary set. A nil or empty set is a
// structural failure: no correction logic applies without reference terms.
// When the set flags no array properties, domain.DefaultArrayProperties is used.
func NewVocabularyIndex(v *domain.VocabularySet) (*VocabularyIndex, error) {
	if v == nil || len(v.Terms) == 0 {
		return nil, domain.ErrValidation("vocabulary is empty: the dictionary terms and value sets are required")
	}

	idx := &VocabularyIndex{
		terms:     make(map[string][]string, len(v.Terms)),
		permitted: make(map[string]map[string]struct{}, len(v.Terms)),
		arrays:    map[string]bool{},
	}
	for prop, terms := range v.Terms {
		set := make(map[string]struct{}, len(terms))
		for _, t := range terms {
			set[t] = struct{}{}
		}
		idx.terms[prop] = append([]string(nil), terms...)
		idx.permitted[prop] = set
	}

	arrays := v.Arrays
	if len(arrays) == 0 {
		arrays = map[string]bool{}
		for _, p := range domain.DefaultArrayProperties {
			arrays[p] = true
		}
	}
	for p, ok := range arrays {
		if ok {
			idx.arrays[p] = true
		}
	}
	return idx, nil
}

// Lookup returns the permitted terms of a property in dictionary order.
func (x *VocabularyIndex) Lookup(property string) ([]string, bool) {
	t, ok := x.terms[property]
	return t, ok
}

// IsArray reports whether the property holds ;-separated terms.
func (x *VocabularyIndex) IsArray(property string) bool {
	return x.arrays[property]
}

// Permits reports whether term is an exact member of the property's term set.
func (x *VocabularyIndex) Permits(property, term string) bool {
	_, ok := x.permitted[property][term]
	return ok
}

// CaseInsensitiveMatches returns every permitted term equal to term under case folding.
func (x *VocabularyIndex) CaseInsensitiveMatches(property, term string) []string {
	want := fold(term)
	var out []string
	for _, t := range x.terms[property] {
		if fold(t) == want {
			out = append(out, t)
		}
	}
	return out
}

func fold(s string) string {
	return cases.Fold().String(s)
}
