// ABOUTME: Sentence-boundary splitter for chunked speech synthesis
// ABOUTME: Lets the pipeline speak completed sentences while generation streams
package voice

import "strings"

// sentence terminators; a boundary needs one of these followed by space/EOL
const terminators = ".!?"

// SplitSentences splits text into complete sentences and a trailing remainder
// that has no terminator yet. Terminators followed by more text on the same
// token (decimals, abbreviations like "3.5") do not split.
func SplitSentences(text string) (sentences []string, remainder string) {
	start := 0
	for i := 0; i < len(text); i++ {
		if !strings.ContainsRune(terminators, rune(text[i])) {
			continue
		}
		// Boundary only when followed by whitespace or end of text
		if i+1 < len(text) && text[i+1] != ' ' && text[i+1] != '\n' && text[i+1] != '\t' {
			continue
		}
		sentence := strings.TrimSpace(text[start : i+1])
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = i + 1
	}
	remainder = strings.TrimSpace(text[start:])
	return sentences, remainder
}
