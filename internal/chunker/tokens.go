package chunker

import "strings"

// The token model is a deterministic whitespace split. It is intentionally
// model-independent: counts are stable across providers and decoding an
// overlap tail back to text is lossless up to whitespace runs.

// Tokenize splits text into tokens.
func Tokenize(text string) []string {
	return strings.Fields(text)
}

// Detokenize joins tokens back into text.
func Detokenize(tokens []string) string {
	return strings.Join(tokens, " ")
}

// CountTokens reports the token count of text.
func CountTokens(text string) int {
	return len(Tokenize(text))
}

// overlapTail returns the last overlap tokens of text, decoded back to text.
func overlapTail(text string, overlap int) string {
	tokens := Tokenize(text)
	if len(tokens) <= overlap {
		return text
	}
	return Detokenize(tokens[len(tokens)-overlap:])
}
