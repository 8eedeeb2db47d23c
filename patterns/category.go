package patterns

import "strings"

// Category is one topical bucket of claims and the keywords that select it.
type Category struct {
	Name     string   `yaml:"name" json:"name" validate:"required"`
	Keywords []string `yaml:"keywords" json:"keywords" validate:"required,min=1"`
}

// Classifier assigns claim text to zero or more category names.
type Classifier interface {
	Categories() []string
	Classify(text string) []string
}

// DefaultCategories is the baseball keyword table. Short stat abbreviations
// (ERA, RBI, OPS) are left out: as substrings they match ordinary words.
var DefaultCategories = []Category{
	{Name: "pitching", Keywords: []string{"pitcher", "pitching", "bullpen", "rotation", "strikeout"}},
	{Name: "hitting", Keywords: []string{"hitter", "batting", "offense", "home run"}},
	{Name: "defense", Keywords: []string{"defense", "fielding", "glove", "errors"}},
	{Name: "young_players", Keywords: []string{"prospect", "rookie", "breakout", "young", "call-up"}},
	{Name: "free_agency", Keywords: []string{"signed", "free agent", "contract", "acquisition"}},
	{Name: "trades", Keywords: []string{"traded", "trade", "acquired"}},
}

// KeywordClassifier matches categories by case-insensitive substring search.
type KeywordClassifier struct {
	table []Category
}

func NewKeywordClassifier(table []Category) *KeywordClassifier {
	normalized := make([]Category, 0, len(table))
	for _, c := range table {
		kws := make([]string, 0, len(c.Keywords))
		for _, kw := range c.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				kws = append(kws, kw)
			}
		}
		normalized = append(normalized, Category{Name: c.Name, Keywords: kws})
	}
	return &KeywordClassifier{table: normalized}
}

func (k *KeywordClassifier) Categories() []string {
	names := make([]string, len(k.table))
	for i, c := range k.table {
		names[i] = c.Name
	}
	return names
}

func (k *KeywordClassifier) Classify(text string) []string {
	lower := strings.ToLower(text)
	var matched []string
	for _, c := range k.table {
		for _, kw := range c.Keywords {
			if strings.Contains(lower, kw) {
				matched = append(matched, c.Name)
				break
			}
		}
	}
	return matched
}
