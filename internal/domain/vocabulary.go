package domain

// DefaultArrayProperties are treated as multi-valued when the dictionary
// does not flag any property with an array type.
var DefaultArrayProperties = []string{
	"therapeutic_agents",
	"treatment_type",
	"study_data_types",
	"morphology",
	"primary_site",
	"race",
}

// ArraySeparator joins atomic terms inside a multi-valued cell.
const ArraySeparator = ";"

// VocabularySet maps property names to their permitted terms, in dictionary order.
type VocabularySet struct {
	Terms  map[string][]string
	Arrays map[string]bool
}

// NewVocabularySet returns an empty set ready for AddTerm.
func NewVocabularySet() *VocabularySet {
	return &VocabularySet{Terms: map[string][]string{}, Arrays: map[string]bool{}}
}

// AddTerm registers a permitted term for a property, ignoring duplicates and empties.
func (v *VocabularySet) AddTerm(property, term string) {
	if property == "" || term == "" {
		return
	}
	for _, t := range v.Terms[property] {
		if t == term {
			return
		}
	}
	v.Terms[property] = append(v.Terms[property], term)
}

// MarkArray flags a property as multi-valued.
func (v *VocabularySet) MarkArray(property string) {
	v.Arrays[property] = true
}
