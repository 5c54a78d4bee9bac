// Package summarize reduces a block of text to its most representative
// sentences using word-frequency scoring. The package-level functions are
// pure; Service adds metrics and notification around them.
package summarize

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// NothingToSummarize is returned when the input has no usable sentences.
const NothingToSummarize = "No content to summarize."

const (
	// minSentenceLength is exclusive: shorter fragments are segmentation noise.
	minSentenceLength = 10
	// shortDocumentSentences and below are returned as-is.
	shortDocumentSentences = 2
	positionBoost          = 1.2
	// selectTenths of the sentences (rounded up) make it into the summary.
	selectTenths = 3
	// maxSummaryRatio caps summary length relative to the normalized input.
	maxSummaryRatio = 0.7
)

var (
	sentenceBreak = regexp.MustCompile(`[.!?]+`)
	terminalPunct = regexp.MustCompile(`[.!?]$`)
)

// ScoredSentence is one sentence of the input with its rank score.
type ScoredSentence struct {
	Text     string
	RawIndex int
	Score    float64
}

// Normalize collapses whitespace runs to single spaces and trims the result.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// SplitSentences splits normalized text on runs of terminal punctuation and
// drops trimmed fragments of minSentenceLength characters or fewer.
func SplitSentences(text string) []string {
	var sentences []string
	for _, frag := range sentenceBreak.Split(text, -1) {
		frag = strings.TrimSpace(frag)
		if utf8.RuneCountInString(frag) > minSentenceLength {
			sentences = append(sentences, frag)
		}
	}
	return sentences
}

// ScoreSentences gives every sentence the mean frequency of its qualifying
// tokens, boosted for the first and last sentence. Output is in input order.
func ScoreSentences(sentences []string, freq FrequencyTable) []ScoredSentence {
	scored := make([]ScoredSentence, len(sentences))
	last := len(sentences) - 1
	for i, s := range sentences {
		total, count := 0, 0
		for _, t := range Tokenize(s) {
			if !IsQualifying(t) {
				continue
			}
			total += freq[t]
			count++
		}

		var score float64
		if count > 0 {
			score = float64(total) / float64(count)
		}
		if i == 0 || i == last {
			score *= positionBoost
		}
		scored[i] = ScoredSentence{Text: s, RawIndex: i, Score: score}
	}
	return scored
}

// Rank orders sentences by score, highest first. Ties keep document order.
func Rank(scored []ScoredSentence) []ScoredSentence {
	ranked := make([]ScoredSentence, len(scored))
	copy(ranked, scored)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// SelectionSize is ceil(0.3*n), never less than one.
func SelectionSize(n int) int {
	k := (n*selectTenths + 9) / 10
	if k < 1 {
		return 1
	}
	return k
}

// Summarize returns the most informative sentences of text in document order.
func Summarize(text string) string {
	clean := Normalize(text)
	if clean == "" {
		return NothingToSummarize
	}

	sentences := SplitSentences(clean)
	switch {
	case len(sentences) == 0:
		return NothingToSummarize
	case len(sentences) <= shortDocumentSentences:
		return clean
	}

	ranked := Rank(ScoreSentences(sentences, BuildFrequencyTable(clean)))

	selected := make([]ScoredSentence, SelectionSize(len(sentences)))
	copy(selected, ranked)
	sort.Slice(selected, func(i, j int) bool {
		return selected[i].RawIndex < selected[j].RawIndex
	})

	parts := make([]string, len(selected))
	for i, s := range selected {
		parts[i] = s.Text
	}
	summary := terminate(strings.Join(parts, ". "))

	if float64(utf8.RuneCountInString(summary)) > float64(utf8.RuneCountInString(clean))*maxSummaryRatio {
		return terminate(ranked[0].Text)
	}
	return summary
}

func terminate(s string) string {
	if terminalPunct.MatchString(s) {
		return s
	}
	return s + "."
}
