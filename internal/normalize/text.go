// Package normalize implements the text normalization contract used by both
// the feature builder and, indirectly through stored FeatureRows, serving.
// It must stay deterministic: the same input always yields the same tokens.
package normalize

import (
	"regexp"
	"strings"
)

// MaxCanonicalTokens bounds how many leading tokens form merchant_canonical.
const MaxCanonicalTokens = 4

var (
	nonAlnumExceptDotSlash = regexp.MustCompile(`[^a-z0-9\s./]`)
	whitespaceRun          = regexp.MustCompile(`\s+`)
	storeNumberToken       = regexp.MustCompile(`^#?\d{3,}$`)
)

// stopWords are merchant-noise tokens stripped after tokenization.
var stopWords = map[string]bool{
	"inc":  true,
	"llc":  true,
	"ltd":  true,
	"co":   true,
	"corp": true,
}

// Text lowercases, strips punctuation (keeping '.' and '/'), collapses
// whitespace, and removes merchant-noise stop tokens. It returns the
// cleaned string and its token list.
func Text(s string) (cleaned string, tokens []string) {
	lower := strings.ToLower(s)
	stripped := nonAlnumExceptDotSlash.ReplaceAllString(lower, " ")
	collapsed := strings.TrimSpace(whitespaceRun.ReplaceAllString(stripped, " "))
	if collapsed == "" {
		return "", nil
	}

	raw := strings.Split(collapsed, " ")
	kept := make([]string, 0, len(raw))
	for _, tok := range raw {
		if tok == "" || stopWords[tok] || storeNumberToken.MatchString(tok) {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " "), kept
}

// MerchantCanonical joins up to MaxCanonicalTokens leading tokens with '_'.
func MerchantCanonical(tokens []string) string {
	n := len(tokens)
	if n > MaxCanonicalTokens {
		n = MaxCanonicalTokens
	}
	return strings.Join(tokens[:n], "_")
}

// channelRules maps a description substring to the channel it implies.
// Checked in order; first match wins.
var channelRules = []struct {
	substr  string
	channel string
}{
	{"pos purchase", "pos"},
	{"debit purchase", "pos"},
	{"online", "online"},
	{"web", "online"},
	{"ach", "transfer"},
	{"transfer", "transfer"},
	{"wire", "transfer"},
	{"zelle", "transfer"},
}

// Channel infers a payment channel from the raw (pre-normalization)
// description using a substring rule table.
func Channel(description string) string {
	lower := strings.ToLower(description)
	for _, rule := range channelRules {
		if strings.Contains(lower, rule.substr) {
			return rule.channel
		}
	}
	return "unknown"
}
