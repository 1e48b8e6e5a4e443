package feed

import (
	"fmt"
	"regexp"
	"strings"
)

// ClassifierMode selects how item categories are assigned
type ClassifierMode string

// classifier modes
const (
	ModeTrust ClassifierMode = "trust" // use the feed's configured category
	ModeAuto  ClassifierMode = "auto"  // keyword rules over title+content
)

// DefaultCategory is the canonical bucket for items no rule matches
const DefaultCategory = "General"

// Rule maps a keyword pattern to a category. Rules are evaluated in order,
// first match wins.
type Rule struct {
	Category string
	Pattern  *regexp.Regexp
}

// RuleDef is the data form of a rule, an ordered category keyword set
type RuleDef struct {
	Category string
	Keywords []string
}

// Classifier assigns a topical category to an item. Classification is pure
// and deterministic for a given rule table.
type Classifier struct {
	mode            ClassifierMode
	rules           []Rule
	defaultCategory string
}

// NewClassifier creates a classifier. An empty rule table falls back to the
// built-in defaults.
func NewClassifier(mode ClassifierMode, rules []Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Classifier{mode: mode, rules: rules, defaultCategory: DefaultCategory}
}

// Classify returns the category for an item. In trust mode the feed's
// configured category wins unconditionally; in auto mode the rule table is
// applied to the lowercased title+content.
func (c *Classifier) Classify(feedCategory, title, content string) string {
	if c.mode == ModeTrust {
		if feedCategory == "" {
			return c.defaultCategory
		}
		return feedCategory
	}

	text := strings.ToLower(title + " " + content)
	for _, rule := range c.rules {
		if rule.Pattern.MatchString(text) {
			return rule.Category
		}
	}
	return c.defaultCategory
}

// CompileRules builds a rule table from ordered keyword sets. Keywords are
// matched case-insensitively on word boundaries.
func CompileRules(defs []RuleDef) ([]Rule, error) {
	rules := make([]Rule, 0, len(defs))
	for _, def := range defs {
		if def.Category == "" || len(def.Keywords) == 0 {
			return nil, fmt.Errorf("rule for %q needs a category and at least one keyword", def.Category)
		}
		quoted := make([]string, len(def.Keywords))
		for i, kw := range def.Keywords {
			quoted[i] = regexp.QuoteMeta(strings.ToLower(kw))
		}
		pattern, err := regexp.Compile(`\b(` + strings.Join(quoted, "|") + `)\b`)
		if err != nil {
			return nil, fmt.Errorf("compile rule for %q: %w", def.Category, err)
		}
		rules = append(rules, Rule{Category: def.Category, Pattern: pattern})
	}
	return rules, nil
}

// DefaultRules returns the built-in keyword rule table. Order matters,
// more specific categories come before broader ones.
func DefaultRules() []Rule {
	rules, err := CompileRules([]RuleDef{
		{Category: "Football", Keywords: []string{"football", "soccer", "premier league", "champions league", "la liga", "fifa", "uefa", "goalkeeper", "midfielder"}},
		{Category: "Entertainment", Keywords: []string{"movie", "film", "music", "celebrity", "album", "netflix", "concert", "box office", "tv show"}},
		{Category: "Politics", Keywords: []string{"election", "parliament", "senate", "president", "minister", "policy", "government", "congress", "campaign"}},
		{Category: "Sports", Keywords: []string{"sport", "basketball", "tennis", "cricket", "olympic", "athletics", "boxing", "formula 1", "championship"}},
		{Category: "Lifestyle", Keywords: []string{"lifestyle", "travel", "food", "recipe", "wellness", "health", "fitness", "parenting"}},
		{Category: "Fashion&Beauty", Keywords: []string{"fashion", "beauty", "makeup", "skincare", "runway", "designer", "style trend"}},
		{Category: "Technology", Keywords: []string{"technology", "tech", "software", "startup", "smartphone", "gadget", "artificial intelligence", "cybersecurity", "crypto"}},
		{Category: "Business", Keywords: []string{"business", "economy", "market", "stocks", "finance", "investment", "earnings", "inflation", "trade"}},
	})
	if err != nil {
		// built-in table is static, a compile failure is a programming error
		panic(err)
	}
	return rules
}
