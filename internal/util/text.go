package util

import (
	"regexp"
	"strings"
)

var (
	reRRPNote   = regexp.MustCompile(`(?i)rrp\s*£\d+`)
	reNonWord   = regexp.MustCompile(`[^\w\s]`)
	reSpaces    = regexp.MustCompile(`\s+`)
	reHeaderGap = regexp.MustCompile(`[\s_\-]+`)
)

var stopwords = map[string]struct{}{
	"with": {}, "for": {}, "and": {}, "or": {}, "the": {}, "a": {}, "an": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "from": {}, "by": {}, "of": {},
	"is": {}, "was": {}, "are": {}, "were": {}, "been": {},
}

// Tokenize lowercases text, drops "RRP £n" annotations and punctuation, and
// returns the words longer than two characters that are not stop words.
func Tokenize(text string) []string {
	s := strings.ToLower(text)
	s = reRRPNote.ReplaceAllString(s, "")
	s = reNonWord.ReplaceAllString(s, " ")
	s = NormalizeSpaces(s)
	if s == "" {
		return nil
	}

	parts := strings.Split(s, " ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if len(p) <= 2 || IsStopword(p) {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func IsStopword(word string) bool {
	_, ok := stopwords[word]
	return ok
}

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

// NormalizeHeaderKey folds a column header for alias comparison:
// "Category ID", "CategoryID" and "category_id" all become "categoryid".
func NormalizeHeaderKey(header string) string {
	return reHeaderGap.ReplaceAllString(strings.ToLower(strings.TrimSpace(header)), "")
}
