package chunker

import (
	"fmt"
	"strings"
	"testing"

	"docquery/internal/extract"

	"github.com/stretchr/testify/require"
)

func makePage(number, sentences, wordsPerSentence int) extract.Page {
	var b strings.Builder
	for s := 0; s < sentences; s++ {
		for w := 0; w < wordsPerSentence; w++ {
			fmt.Fprintf(&b, "p%ds%dw%d ", number, s, w)
		}
		b.WriteString(". ")
	}
	return extract.Page{Number: number, Text: strings.TrimSpace(b.String())}
}

func TestSplitSentencesKeepsPunctuation(t *testing.T) {
	got := SplitSentences("First one. Second one! Third? trailing bit")
	require.Equal(t, []string{"First one.", "Second one!", "Third?", "trailing bit"}, got)
}

func TestSplitRespectsTokenBudget(t *testing.T) {
	pages := []extract.Page{makePage(1, 30, 6)}
	chunks := Split(pages, "doc1", Options{ChunkSize: 40, ChunkOverlap: 8})
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		require.LessOrEqual(t, CountTokens(c.Content), 40+8, "chunk %s over budget", c.ChunkID)
		require.Equal(t, CountTokens(c.Content), c.Metadata["token_count"])
	}
}

func TestSplitOverlapBetweenConsecutiveChunks(t *testing.T) {
	pages := []extract.Page{makePage(1, 30, 6)}
	overlap := 8
	chunks := Split(pages, "doc1", Options{ChunkSize: 40, ChunkOverlap: overlap})
	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		prev := Tokenize(chunks[i-1].Content)
		cur := Tokenize(chunks[i].Content)
		require.GreaterOrEqual(t, len(prev), overlap)
		require.Equal(t, prev[len(prev)-overlap:], cur[:overlap],
			"chunk %d does not start with the overlap tail of chunk %d", i, i-1)
	}
}

func TestSplitReconstructsPageText(t *testing.T) {
	pages := []extract.Page{makePage(1, 30, 6), makePage(2, 10, 6)}
	overlap := 8
	chunks := Split(pages, "doc1", Options{ChunkSize: 40, ChunkOverlap: overlap})

	var rebuilt []string
	lastPage := 0
	for _, c := range chunks {
		tokens := Tokenize(c.Content)
		if c.PageNumber == lastPage {
			tokens = tokens[overlap:] // strip the seeded overlap region
		}
		rebuilt = append(rebuilt, tokens...)
		lastPage = c.PageNumber
	}
	var want []string
	for _, p := range pages {
		want = append(want, Tokenize(p.Text)...)
	}
	require.Equal(t, want, rebuilt)
}

func TestSplitOversizedSentenceEmittedWhole(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&b, "word%d ", i)
	}
	b.WriteString(".")
	pages := []extract.Page{{Number: 1, Text: strings.TrimSpace(b.String())}}

	chunks := Split(pages, "doc1", Options{ChunkSize: 10, ChunkOverlap: 2})
	require.Len(t, chunks, 1)
	require.Greater(t, CountTokens(chunks[0].Content), 10)
}

func TestSplitGlobalChunkIndex(t *testing.T) {
	pages := []extract.Page{makePage(1, 20, 6), makePage(3, 20, 6)}
	chunks := Split(pages, "docX", Options{ChunkSize: 30, ChunkOverlap: 5})
	for i, c := range chunks {
		require.Equal(t, i, c.ChunkIndex)
		require.Equal(t, fmt.Sprintf("docX_chunk_%d", i), c.ChunkID)
		require.Equal(t, "docX", c.DocumentID)
	}
}

func TestSplitTruncatesAtMaxChunks(t *testing.T) {
	pages := []extract.Page{makePage(1, 200, 6)}
	chunks := Split(pages, "doc1", Options{ChunkSize: 10, ChunkOverlap: 0, MaxChunksPerDoc: 7})
	require.Len(t, chunks, 7)
}

func TestOverlapTailDeterministic(t *testing.T) {
	text := "a b c d e f g"
	require.Equal(t, "e f g", overlapTail(text, 3))
	require.Equal(t, text, overlapTail(text, 10))
}
