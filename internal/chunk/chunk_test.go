package chunk

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// TestMain enables goroutine leak detection for all tests in the package.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewDefaults(t *testing.T) {
	c := New(nil)
	assert.Equal(t, DefaultChunkSize, c.size)
	assert.Equal(t, DefaultChunkOverlap, c.overlap)
	assert.Equal(t, SplitterTokenWindow, c.splitter)
	assert.NotNil(t, c.logger)
}

func TestOptionsIgnoreInvalidValues(t *testing.T) {
	c := New(nil,
		WithChunkSize(0),
		WithChunkOverlap(-5),
		WithSplitter(Splitter("bogus")),
	)
	assert.Equal(t, DefaultChunkSize, c.size)
	assert.Equal(t, DefaultChunkOverlap, c.overlap)
	assert.Equal(t, SplitterTokenWindow, c.splitter)
}

func TestChunkInvalidConfig(t *testing.T) {
	c := New(nil, WithChunkSize(100), WithChunkOverlap(200))

	chunks, err := c.Chunk("some text")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	assert.Nil(t, chunks)
}

func TestChunkShortTextPassesThrough(t *testing.T) {
	c := New(nil, WithChunkSize(50), WithChunkOverlap(10))

	chunks, err := c.Chunk("Hello World")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world", chunks[0])
}

func TestChunkLowercasesInput(t *testing.T) {
	c := New(nil, WithChunkSize(10), WithChunkOverlap(2))

	text := strings.Repeat("ALPHA BETA GAMMA ", 10)
	chunks, err := c.Chunk(text)
	require.NoError(t, err)
	for _, ch := range chunks {
		assert.Equal(t, strings.ToLower(ch), ch)
	}
}

func TestChunkTokenWindows(t *testing.T) {
	c := New(nil, WithChunkSize(20), WithChunkOverlap(5))

	// ~2 estimated tokens per word, so windows of roughly 7 words.
	text := strings.Repeat("word ", 100)
	chunks, err := c.Chunk(text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	// Every word of the input must appear in some chunk.
	total := 0
	for _, ch := range chunks {
		total += len(strings.Fields(ch))
	}
	assert.GreaterOrEqual(t, total, 100)

	// Consecutive chunks share words (overlap).
	first := strings.Fields(chunks[0])
	second := strings.Fields(chunks[1])
	assert.Contains(t, strings.Join(second, " "), first[len(first)-1])
}

func TestChunkOverlapProducesSharedSuffix(t *testing.T) {
	c := New(nil, WithChunkSize(12), WithChunkOverlap(6))

	// Distinct words so the overlap is observable.
	words := []string{"aa", "bb", "cc", "dd", "ee", "ff", "gg", "hh", "ii", "jj", "kk", "ll", "mm", "nn"}
	chunks, err := c.Chunk(strings.Join(words, " "))
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	firstWords := strings.Fields(chunks[0])
	secondWords := strings.Fields(chunks[1])
	// Second window starts inside the first one.
	assert.Contains(t, firstWords, secondWords[0])
}

func TestChunkAlwaysAdvances(t *testing.T) {
	// Overlap equal to size forces the start+1 guard; this must terminate.
	c := New(nil, WithChunkSize(4), WithChunkOverlap(4))

	chunks, err := c.Chunk(strings.Repeat("abcdefgh ", 30))
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
}

func TestChunkZeroOverlap(t *testing.T) {
	c := New(nil, WithChunkSize(10), WithChunkOverlap(0))

	chunks, err := c.Chunk(strings.Repeat("token ", 40))
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	// Without overlap no word is duplicated across chunks.
	total := 0
	for _, ch := range chunks {
		total += len(strings.Fields(ch))
	}
	assert.Equal(t, 40, total)
}

func TestChunkSplitterFailureFallsBack(t *testing.T) {
	// Whitespace-only text above the size threshold has no splittable
	// words; the chunker falls back to the unsplit lowered text.
	c := New(nil, WithChunkSize(2), WithChunkOverlap(0))

	text := strings.Repeat(" ", 100)
	chunks, err := c.Chunk(text)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestChunkSentenceSplitter(t *testing.T) {
	c := New(nil, WithChunkSize(20), WithChunkOverlap(0), WithSplitter(SplitterSentence))

	text := strings.Repeat("This is a sentence. Here is another one! Is this a third? ", 5)
	chunks, err := c.Chunk(text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	// Sentence windows keep terminal punctuation.
	for _, ch := range chunks {
		assert.True(t, strings.HasSuffix(ch, ".") || strings.HasSuffix(ch, "!") || strings.HasSuffix(ch, "?"),
			"chunk %q should end at a sentence boundary", ch)
	}
}

func TestChunkSentenceSplitterFallsBackWithoutPunctuation(t *testing.T) {
	c := New(nil, WithChunkSize(10), WithChunkOverlap(2), WithSplitter(SplitterSentence))

	chunks, err := c.Chunk(strings.Repeat("word ", 50))
	require.NoError(t, err)
	assert.Greater(t, len(chunks), 1)
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty", text: "", want: 0},
		{name: "single rune", text: "a", want: 0},
		{name: "four runes", text: "abcd", want: 2},
		{name: "multibyte runes", text: "日本語の文章です", want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateTokens(tt.text))
		})
	}
}
