package services

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// TextAnalyzer is the normalization pipeline shared by indexing and querying.
// Both sides must tokenize identically or postings will never match.
type TextAnalyzer interface {
	// Tokenize returns normalized tokens in order, duplicates kept.
	Tokenize(text string) []string

	// Terms returns the distinct normalized tokens of text.
	Terms(text string) []string

	// Highlight returns up to maxFragments snippets of text around
	// occurrences of terms, with the matches wrapped in <mark>.
	Highlight(text string, terms []string, maxFragments, radius int) []string
}

// DefaultTextAnalyzer folds accents, lowercases, splits on anything that is
// not a letter or digit, and drops stop words and single runes.
type DefaultTextAnalyzer struct {
	stopWords map[string]bool
}

// NewDefaultTextAnalyzer creates a new text analyzer with common English stop words
func NewDefaultTextAnalyzer() *DefaultTextAnalyzer {
	return &DefaultTextAnalyzer{
		stopWords: getDefaultStopWords(),
	}
}

type span struct {
	start, end int
	term       string
}

// Tokenize implements TextAnalyzer.
func (ta *DefaultTextAnalyzer) Tokenize(text string) []string {
	spans := ta.spans(text)
	tokens := make([]string, 0, len(spans))
	for _, s := range spans {
		tokens = append(tokens, s.term)
	}
	return tokens
}

// Terms implements TextAnalyzer.
func (ta *DefaultTextAnalyzer) Terms(text string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, tok := range ta.Tokenize(text) {
		if !seen[tok] {
			seen[tok] = true
			terms = append(terms, tok)
		}
	}
	return terms
}

// Highlight implements TextAnalyzer.
func (ta *DefaultTextAnalyzer) Highlight(text string, terms []string, maxFragments, radius int) []string {
	if maxFragments <= 0 || len(terms) == 0 {
		return nil
	}
	want := make(map[string]bool, len(terms))
	for _, t := range terms {
		want[t] = true
	}

	var matches []span
	for _, s := range ta.spans(text) {
		if want[s.term] {
			matches = append(matches, s)
		}
	}

	var fragments []string
	for i := 0; i < len(matches) && len(fragments) < maxFragments; {
		start := snapBack(text, matches[i].start-radius)
		end := snapForward(text, matches[i].end+radius)

		// Pull every match that falls inside this window into the same fragment.
		j := i
		for j < len(matches) && matches[j].end <= end {
			j++
		}

		var b strings.Builder
		if start > 0 {
			b.WriteString("…")
		}
		cursor := start
		for _, m := range matches[i:j] {
			b.WriteString(text[cursor:m.start])
			b.WriteString("<mark>")
			b.WriteString(text[m.start:m.end])
			b.WriteString("</mark>")
			cursor = m.end
		}
		b.WriteString(text[cursor:end])
		if end < len(text) {
			b.WriteString("…")
		}
		fragments = append(fragments, strings.Join(strings.Fields(b.String()), " "))
		i = j
	}
	return fragments
}

// spans tokenizes text keeping byte offsets into the original string.
func (ta *DefaultTextAnalyzer) spans(text string) []span {
	var result []span
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		term := fold(text[start:end])
		if utf8.RuneCountInString(term) > 1 && !ta.stopWords[term] {
			result = append(result, span{start: start, end: end, term: term})
		}
		start = -1
	}
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(text))
	return result
}

// fold strips diacritics and lowercases a single token.
func fold(token string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, token)
	if err != nil {
		folded = token
	}
	return strings.ToLower(folded)
}

func snapBack(text string, i int) int {
	if i <= 0 {
		return 0
	}
	for i > 0 && !utf8.RuneStart(text[i]) {
		i--
	}
	// Do not start mid-word.
	for i > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:i])
		if unicode.IsSpace(r) {
			break
		}
		i--
		for i > 0 && !utf8.RuneStart(text[i]) {
			i--
		}
	}
	return i
}

func snapForward(text string, i int) int {
	if i >= len(text) {
		return len(text)
	}
	for i < len(text) && !utf8.RuneStart(text[i]) {
		i++
	}
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) {
			break
		}
		i += size
	}
	return i
}

// getDefaultStopWords returns a set of common English function words
func getDefaultStopWords() map[string]bool {
	words := []string{
		"the", "be", "to", "of", "and", "in", "that", "have", "it", "for",
		"not", "on", "with", "he", "as", "you", "do", "at", "this", "but",
		"his", "by", "from", "they", "we", "her", "she", "or", "an", "will",
		"my", "all", "would", "there", "their", "what", "so", "up", "out", "if",
		"about", "who", "which", "me", "when", "can", "no", "just", "him", "into",
		"your", "some", "could", "them", "than", "then", "its", "over", "also", "how",
		"our", "these", "any", "us", "is", "was", "are", "been", "has", "had",
		"were", "did", "am", "should", "too", "very", "those", "such", "own", "same",
	}
	stopWords := make(map[string]bool, len(words))
	for _, w := range words {
		stopWords[w] = true
	}
	return stopWords
}
