// Package chunker splits per-page document text into overlapping,
// token-bounded chunks.
package chunker

import (
	"fmt"
	"strings"
	"unicode"

	"docquery/internal/extract"
	"docquery/internal/models"
)

type Options struct {
	ChunkSize       int // token budget per chunk
	ChunkOverlap    int // tokens carried into the next chunk
	MaxChunksPerDoc int // documents producing more are silently truncated
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = 200
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		o.ChunkOverlap = 0
	}
	if o.MaxChunksPerDoc <= 0 {
		o.MaxChunksPerDoc = 1000
	}
	return o
}

// Split produces the ordered chunk sequence for a document. Sentences are
// accumulated greedily per page until the token budget would be exceeded;
// the chunk is then emitted and the next one seeded with the overlap tail of
// the emitted text. A single sentence above the budget is emitted whole.
// chunk_index increases across the whole document, not per page.
func Split(pages []extract.Page, documentID string, opts Options) []models.Chunk {
	opts = opts.withDefaults()
	chunks := make([]models.Chunk, 0)
	counter := 0

	for _, page := range pages {
		sentences := SplitSentences(page.Text)
		current := ""
		currentTokens := 0

		for _, sentence := range sentences {
			sentenceTokens := CountTokens(sentence)
			if currentTokens+sentenceTokens > opts.ChunkSize && current != "" {
				chunks = append(chunks, newChunk(current, documentID, page.Number, counter))
				counter++

				overlap := overlapTail(current, opts.ChunkOverlap)
				current = overlap + " " + sentence
				currentTokens = CountTokens(current)
				continue
			}
			if current == "" {
				current = sentence
			} else {
				current += " " + sentence
			}
			currentTokens += sentenceTokens
		}

		if strings.TrimSpace(current) != "" {
			chunks = append(chunks, newChunk(current, documentID, page.Number, counter))
			counter++
		}
	}

	if len(chunks) > opts.MaxChunksPerDoc {
		chunks = chunks[:opts.MaxChunksPerDoc]
	}
	return chunks
}

// SplitSentences breaks text into sentence-like units: a unit ends at a run
// of '.', '!' or '?' followed by whitespace (or end of text), with the
// punctuation kept on the unit.
func SplitSentences(text string) []string {
	out := make([]string, 0, 16)
	var b strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		b.WriteRune(r)
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		atEnd := i == len(runes)-1
		next := ' '
		if !atEnd {
			next = runes[i+1]
		}
		if atEnd || unicode.IsSpace(next) {
			if s := strings.TrimSpace(b.String()); s != "" {
				out = append(out, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		out = append(out, s)
	}
	return out
}

func newChunk(content, documentID string, pageNumber, index int) models.Chunk {
	content = strings.TrimSpace(content)
	return models.Chunk{
		ChunkID:    fmt.Sprintf("%s_chunk_%d", documentID, index),
		Content:    content,
		PageNumber: pageNumber,
		ChunkIndex: index,
		DocumentID: documentID,
		Metadata: map[string]any{
			"token_count": CountTokens(content),
			"char_count":  len(content),
		},
	}
}
