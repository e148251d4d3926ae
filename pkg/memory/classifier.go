package memory

import (
	"regexp"
	"strings"
	"unicode"
)

// Weight pairs produced by the query classifier.
var (
	// weightsSpecific favors neither signal: queries naming concrete
	// things (IDs, dates, URLs, proper nouns) match well lexically.
	weightsSpecific = WeightPair{Vector: 0.5, BM25: 0.5}

	// weightsAbstract favors the vector signal: conceptual questions
	// rarely share exact terms with the memories that answer them.
	weightsAbstract = WeightPair{Vector: 0.9, BM25: 0.1}

	// weightsDefault is the balanced fallback.
	weightsDefault = WeightPair{Vector: 0.7, BM25: 0.3}
)

var (
	isoDatePattern   = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	emailPattern     = regexp.MustCompile(`\b[\w.+-]+@[\w-]+\.[\w.-]+\b`)
	numericIDPattern = regexp.MustCompile(`\b\d{4,}\b|#\d+\b`)
	urlPattern       = regexp.MustCompile(`\bhttps?://\S+`)
	pathPattern      = regexp.MustCompile(`(?:^|\s)(?:/|~/|\./)[\w./-]+|\b[\w-]+/[\w./-]+\b`)
)

// abstractMarkers are question openers and concept words that signal an
// abstract query, in English and Chinese.
var abstractMarkers = []string{
	"how ", "how?", "why ", "why?", "what ", "what?",
	"explain", "understand", "concept", "difference between",
	"如何", "为什么", "什么", "怎么", "解释", "原理",
}

// ClassifyQuery derives per-query fusion weights from surface features of
// the query text. First match wins: specific markers, then abstract
// markers, then the default pair.
func ClassifyQuery(query string) WeightPair {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return weightsDefault
	}

	if hasSpecificTerms(trimmed) {
		return weightsSpecific
	}
	if hasAbstractMarkers(trimmed) {
		return weightsAbstract
	}
	return weightsDefault
}

// hasSpecificTerms detects concrete identifiers in the query.
func hasSpecificTerms(query string) bool {
	if isoDatePattern.MatchString(query) ||
		emailPattern.MatchString(query) ||
		urlPattern.MatchString(query) ||
		numericIDPattern.MatchString(query) ||
		pathPattern.MatchString(query) {
		return true
	}
	return hasProperNoun(query)
}

// hasProperNoun reports whether the query contains a capitalized word
// beyond the sentence start. The first word is excluded so ordinary
// sentence capitalization does not count.
func hasProperNoun(query string) bool {
	words := strings.Fields(query)
	for i, word := range words {
		runes := []rune(word)
		if len(runes) == 0 {
			continue
		}
		if i == 0 {
			// An all-caps first word is still a specific marker (acronyms).
			if len(runes) > 1 && isAllUpper(runes) {
				return true
			}
			continue
		}
		// The pronoun "I" and its contractions are not proper nouns.
		if word == "I" || strings.HasPrefix(word, "I'") {
			continue
		}
		if unicode.IsUpper(runes[0]) && unicode.IsLetter(runes[0]) {
			return true
		}
	}
	return false
}

func isAllUpper(runes []rune) bool {
	for _, r := range runes {
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

// hasAbstractMarkers detects conceptual question phrasing.
func hasAbstractMarkers(query string) bool {
	lower := strings.ToLower(query)
	for _, marker := range abstractMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	// Bare "how"/"why"/"what" at the end of the query
	for _, opener := range []string{"how", "why", "what"} {
		if lower == opener || strings.HasSuffix(lower, " "+opener) {
			return true
		}
	}
	return false
}
