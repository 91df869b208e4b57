// Package thai provides the minimal Thai text handling the chunking and
// retrieval layers need: script detection, sentence splitting, and greedy
// dictionary-based word segmentation. Thai is written without spaces
// between words, so substring matching against queries needs segmentation.
package thai

import "strings"

// Contains reports whether s has at least one character in the Thai
// Unicode block (U+0E00 to U+0E7F).
func Contains(s string) bool {
	for _, r := range s {
		if r >= 0x0E00 && r <= 0x0E7F {
			return true
		}
	}
	return false
}

// SplitSentences splits Thai text into sentence-like units on whitespace
// and newlines. Thai writers separate clauses with spaces, so whitespace
// runs are the practical sentence boundary.
func SplitSentences(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Tokenize segments text into words. Thai runs are cut with greedy
// longest-match against the embedded dictionary; non-Thai runs are split
// on whitespace. Unknown Thai characters fall through one rune at a time
// and merge into a single unknown token.
func Tokenize(s string) []string {
	var tokens []string
	var latin strings.Builder

	flushLatin := func() {
		if latin.Len() > 0 {
			tokens = append(tokens, strings.Fields(latin.String())...)
			latin.Reset()
		}
	}

	runes := []rune(s)
	i := 0
	for i < len(runes) {
		r := runes[i]
		if r < 0x0E00 || r > 0x0E7F {
			latin.WriteRune(r)
			i++
			continue
		}
		flushLatin()

		// Greedy longest match against the dictionary.
		matched := 0
		for l := maxWordLen; l >= 2; l-- {
			if i+l > len(runes) {
				continue
			}
			if _, ok := words[string(runes[i:i+l])]; ok {
				matched = l
				break
			}
		}
		if matched > 0 {
			tokens = append(tokens, string(runes[i:i+matched]))
			i += matched
			continue
		}

		// No dictionary hit: accumulate unknown Thai runes until the next
		// known word or script change.
		start := i
		for i < len(runes) && runes[i] >= 0x0E00 && runes[i] <= 0x0E7F {
			if i > start && hasPrefixWord(runes[i:]) {
				break
			}
			i++
		}
		tokens = append(tokens, string(runes[start:i]))
	}
	flushLatin()
	return tokens
}

func hasPrefixWord(runes []rune) bool {
	for l := maxWordLen; l >= 2; l-- {
		if l > len(runes) {
			continue
		}
		if _, ok := words[string(runes[:l])]; ok {
			return true
		}
	}
	return false
}
