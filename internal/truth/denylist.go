package truth

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Denylist holds the disallowed personal-information categories checked
// against opener and micro-insight text.
type Denylist struct {
	Categories []Category `yaml:"categories"`
}

// Category groups denylist terms under a named personal-info category.
type Category struct {
	Name  string   `yaml:"name"`
	Terms []string `yaml:"terms"`
}

// DefaultDenylist returns the built-in personal-information categories.
// A cold-email opener has no business referencing any of these, however
// the evidence was obtained.
func DefaultDenylist() *Denylist {
	return &Denylist{
		Categories: []Category{
			{Name: "health", Terms: []string{"pregnant", "pregnancy", "illness", "diagnosis", "surgery", "medication", "disability"}},
			{Name: "family", Terms: []string{"divorce", "divorced", "your wife", "your husband", "your kids", "your children"}},
			{Name: "beliefs", Terms: []string{"religion", "religious", "church attendance", "voted for", "political donation"}},
			{Name: "finances", Terms: []string{"your salary", "personal debt", "bankruptcy", "credit score"}},
			{Name: "legal", Terms: []string{"arrest", "arrested", "lawsuit against you", "criminal record"}},
		},
	}
}

// LoadDenylist reads denylist categories from a YAML file.
func LoadDenylist(path string) (*Denylist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "truth: read denylist %s", path)
	}

	var d Denylist
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, eris.Wrap(err, "truth: parse denylist")
	}
	if len(d.Categories) == 0 {
		return nil, eris.New("truth: denylist has no categories")
	}

	return &d, nil
}

// Match returns the names of categories whose terms appear in text.
// Matching is case-insensitive.
func (d *Denylist) Match(text string) []string {
	lowered := strings.ToLower(text)

	var hits []string
	for _, cat := range d.Categories {
		for _, term := range cat.Terms {
			if strings.Contains(lowered, strings.ToLower(term)) {
				hits = append(hits, cat.Name)
				break
			}
		}
	}
	return hits
}
