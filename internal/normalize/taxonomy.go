package normalize

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/perchkeep/perch/internal/domain"
	"github.com/perchkeep/perch/internal/upstream"
)

// Taxonomy holds the keyword lists used for text-based categorization
// when no context annotation matches. Lists are matched lowercased.
type Taxonomy struct {
	Tech      []string `yaml:"tech"`
	Education []string `yaml:"education"`
	Business  []string `yaml:"business"`
}

// DefaultTaxonomy returns the built-in keyword lists.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		Tech:      []string{"code", "programming", "api", "development", "tech", "software"},
		Education: []string{"learn", "tutorial", "guide", "education", "study", "course"},
		Business:  []string{"startup", "business", "marketing", "sales", "entrepreneur"},
	}
}

// LoadTaxonomy reads a keyword taxonomy override from a YAML file.
// Empty lists fall back to the defaults.
func LoadTaxonomy(path string) (Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Taxonomy{}, fmt.Errorf("failed to read taxonomy file: %w", err)
	}

	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Taxonomy{}, fmt.Errorf("failed to parse taxonomy yaml: %w", err)
	}
	return t.withDefaults(), nil
}

func (t Taxonomy) withDefaults() Taxonomy {
	def := DefaultTaxonomy()
	if len(t.Tech) == 0 {
		t.Tech = def.Tech
	}
	if len(t.Education) == 0 {
		t.Education = def.Education
	}
	if len(t.Business) == 0 {
		t.Business = def.Business
	}
	return t
}

// annotationRules maps known context-annotation domain names
// (lowercased) to categories, checked in this order. Annotations always
// win over keywords.
var annotationRules = []struct {
	domains  []string
	category string
}{
	{[]string{"technology", "software"}, domain.CategoryTech},
	{[]string{"education", "science"}, domain.CategoryEducation},
	{[]string{"business", "finance"}, domain.CategoryBusiness},
	{[]string{"sports"}, domain.CategorySports},
	{[]string{"entertainment"}, domain.CategoryEntertainment},
}

// Categorize derives the single category for a post. Priority order:
// context-annotation domains first, then keyword scan, then General.
// The first matching rule wins; matches are never merged.
func (n *Normalizer) Categorize(text string, annotations []upstream.ContextAnnotation) string {
	if len(annotations) > 0 {
		seen := make(map[string]bool, len(annotations))
		for _, a := range annotations {
			seen[strings.ToLower(a.Domain.Name)] = true
		}
		for _, rule := range annotationRules {
			for _, d := range rule.domains {
				if seen[d] {
					return rule.category
				}
			}
		}
	}

	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, n.taxonomy.Tech):
		return domain.CategoryTech
	case containsAny(lower, n.taxonomy.Education):
		return domain.CategoryEducation
	case containsAny(lower, n.taxonomy.Business):
		return domain.CategoryBusiness
	}
	return domain.CategoryGeneral
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
