package summarize

import (
	"regexp"
	"strings"
)

// minTokenLength is exclusive: a token must be longer than this to count.
const minTokenLength = 2

var (
	nonWord = regexp.MustCompile(`\W`)

	stopWords = map[string]struct{}{
		"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {},
		"at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {}, "is": {}, "are": {},
		"was": {}, "were": {}, "be": {}, "been": {}, "have": {}, "has": {}, "had": {}, "do": {},
		"does": {}, "did": {}, "will": {}, "would": {}, "could": {}, "should": {}, "may": {},
		"might": {}, "can": {}, "this": {}, "that": {}, "these": {}, "those": {}, "i": {},
		"you": {}, "he": {}, "she": {}, "it": {}, "we": {}, "they": {}, "me": {}, "him": {},
		"her": {}, "us": {}, "them": {},
	}
)

// FrequencyTable maps a qualifying token to its number of occurrences.
type FrequencyTable map[string]int

// Tokenize splits s on whitespace and reduces every word to its lowercase
// ASCII word characters. Words made only of punctuation come back empty.
func Tokenize(s string) []string {
	words := strings.Fields(s)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		tokens = append(tokens, strings.ToLower(nonWord.ReplaceAllString(w, "")))
	}
	return tokens
}

// IsQualifying reports whether a normalized token takes part in scoring.
func IsQualifying(token string) bool {
	return len(token) > minTokenLength && !IsStopWord(token)
}

// IsStopWord reports whether token is in the fixed stop-word set.
func IsStopWord(token string) bool {
	_, ok := stopWords[token]
	return ok
}

// BuildFrequencyTable counts the qualifying tokens of text.
func BuildFrequencyTable(text string) FrequencyTable {
	freq := make(FrequencyTable)
	for _, t := range Tokenize(text) {
		if IsQualifying(t) {
			freq[t]++
		}
	}
	return freq
}
