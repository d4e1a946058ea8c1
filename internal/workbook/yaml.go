package workbook

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"catcherr/internal/domain"
)

// vocabularyFile is the YAML vocabulary format:
//
//	arrays: [race, primary_site]
//	terms:
//	  sex_at_birth: [Male, Female, Unknown]
//	  race: [Asian, White]
type vocabularyFile struct {
	Arrays []string            `yaml:"arrays"`
	Terms  map[string][]string `yaml:"terms"`
}

// LoadVocabularyYAML reads a vocabulary from a YAML file.
func LoadVocabularyYAML(path string) (*domain.VocabularySet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary %s: %w", path, err)
	}
	return ParseVocabularyYAML(data)
}

// ParseVocabularyYAML decodes the YAML vocabulary format.
func ParseVocabularyYAML(data []byte) (*domain.VocabularySet, error) {
	var f vocabularyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, domain.ErrValidation("parse vocabulary: %v", err)
	}
	if len(f.Terms) == 0 {
		return nil, domain.ErrValidation("vocabulary defines no terms")
	}

	vocab := domain.NewVocabularySet()
	for prop, terms := range f.Terms {
		for _, t := range terms {
			vocab.AddTerm(prop, t)
		}
	}
	for _, prop := range f.Arrays {
		vocab.MarkArray(prop)
	}
	return vocab, nil
}
