// Package rules implements the deterministic fallback used whenever the
// model is unavailable, not confident, or encoding fails. Grounded on the
// teacher's channel-inference substring table (now generalized in
// internal/normalize/text.go) and, in spirit, on the teacher's Inferencer
// interface shape in internal/inference/interface.go: a narrow capability
// interface with exactly one reference implementation.
package rules

import (
	"strings"

	"github.com/mlrf/mlrf-suggest/internal/domain"
)

// Engine is the rule-engine capability: a pure function from a transaction
// (or an inline feature row) to a label, or no label at all. Implementations
// must be side-effect free and safe for concurrent use.
type Engine interface {
	// Apply returns a label and true if the engine has an opinion, or ("",
	// false) if it does not.
	Apply(merchant, description string, amount float64) (label string, ok bool)
}

// Rule is one ordered substring-match entry.
type Rule struct {
	Label      string
	Substrings []string
}

// SubstringEngine is the reference rule engine: an ordered list of
// label -> substring-set rules, evaluated against the lowercased merchant
// and description, first match wins.
type SubstringEngine struct {
	rules []Rule
}

// DefaultRules returns the module's baked-in substring rule table, covering
// the categories common to a personal-finance categorization system.
func DefaultRules() []Rule {
	return []Rule{
		{Label: "Groceries", Substrings: []string{"grocery", "supermarket", "whole foods", "trader joe", "safeway", "kroger"}},
		{Label: "Dining", Substrings: []string{"restaurant", "cafe", "coffee", "starbucks", "doordash", "ubereats", "grubhub"}},
		{Label: "Transport", Substrings: []string{"uber", "lyft", "transit", "metro", "parking", "gas station", "shell", "chevron"}},
		{Label: "Utilities", Substrings: []string{"electric", "water utility", "gas utility", "internet", "comcast", "xfinity"}},
		{Label: "Subscriptions", Substrings: []string{"netflix", "spotify", "hulu", "disney+", "prime video", "subscription"}},
		{Label: "Rent", Substrings: []string{"rent payment", "property management", "landlord"}},
		{Label: "Shopping", Substrings: []string{"amazon", "target", "walmart", "ebay"}},
		{Label: "Transfer", Substrings: []string{"transfer", "zelle", "venmo", "paypal transfer"}},
	}
}

// NewSubstringEngine builds a SubstringEngine from an ordered rule table.
// Pass DefaultRules() for the module's baked-in reference table.
func NewSubstringEngine(rules []Rule) *SubstringEngine {
	return &SubstringEngine{rules: rules}
}

// Apply implements Engine.
func (e *SubstringEngine) Apply(merchant, description string, _ float64) (string, bool) {
	haystack := strings.ToLower(merchant + " " + description)
	for _, r := range e.rules {
		for _, sub := range r.Substrings {
			if strings.Contains(haystack, sub) {
				return r.Label, true
			}
		}
	}
	return "", false
}

// ApplyTransaction is a convenience wrapper over Apply for a domain.Transaction.
func ApplyTransaction(e Engine, txn domain.Transaction) (string, bool) {
	return e.Apply(txn.Merchant, txn.Description, txn.Amount)
}
