package dict

import "strings"

// Rule rewrites one suffix into its dictionary form.
type Rule struct {
	Name string `json:"name"`
	From string `json:"from"`
	To   string `json:"to"`
}

// Candidate is one possible dictionary form of an inflected term.
type Candidate struct {
	Term string `json:"term"`
	Rule string `json:"rule,omitempty"`
}

// Deinflector derives lookup candidates for inflected surface forms, so a
// selection like "running" still finds "run".
type Deinflector struct {
	rules []Rule
}

// DefaultRules covers common English inflection suffixes.
func DefaultRules() []Rule {
	rules := []Rule{
		{Name: "plural-ies", From: "ies", To: "y"},
		{Name: "plural-es", From: "es", To: ""},
		{Name: "plural-s", From: "s", To: ""},
		{Name: "past-ied", From: "ied", To: "y"},
		{Name: "past-ed", From: "ed", To: ""},
		{Name: "past-ed-e", From: "ed", To: "e"},
		{Name: "progressive", From: "ing", To: ""},
		{Name: "progressive-e", From: "ing", To: "e"},
		{Name: "comparative", From: "er", To: ""},
		{Name: "superlative", From: "est", To: ""},
	}

	// Doubled final consonants: "running" -> "run", "stopped" -> "stop".
	for _, c := range []string{"b", "d", "g", "m", "n", "p", "r", "t"} {
		rules = append(rules,
			Rule{Name: "progressive-doubled", From: c + c + "ing", To: c},
			Rule{Name: "past-doubled", From: c + c + "ed", To: c},
		)
	}

	return rules
}

// NewDeinflector creates a Deinflector over rules; nil means DefaultRules.
func NewDeinflector(rules []Rule) *Deinflector {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Deinflector{rules: rules}
}

// Deinflect returns the term itself followed by every rule-derived
// candidate, deduplicated, preserving rule order.
func (d *Deinflector) Deinflect(term string) []Candidate {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil
	}

	seen := map[string]bool{term: true}
	candidates := []Candidate{{Term: term}}

	for _, rule := range d.rules {
		if !strings.HasSuffix(term, rule.From) {
			continue
		}

		stem := strings.TrimSuffix(term, rule.From) + rule.To
		if stem == "" || seen[stem] {
			continue
		}
		seen[stem] = true
		candidates = append(candidates, Candidate{Term: stem, Rule: rule.Name})
	}

	return candidates
}
