// Package chunk splits raw text into overlapping, token-bounded windows
// for embedding. Chunk sizes are measured with EstimateTokens so that a
// configured chunk size has one stable meaning across ingestion calls.
package chunk

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Default chunking parameters, in estimated tokens.
const (
	DefaultChunkSize    = 512
	DefaultChunkOverlap = 200
)

// ErrInvalidConfig indicates the caller-supplied chunking parameters are
// invalid (overlap exceeds chunk size). Checked with errors.Is().
var ErrInvalidConfig = errors.New("invalid chunk configuration")

// Splitter selects the splitting strategy used when text exceeds the
// chunk size.
type Splitter string

const (
	// SplitterTokenWindow produces fixed token-budget windows over words.
	SplitterTokenWindow Splitter = "token_window"

	// SplitterSentence groups whole sentences into token-budget windows.
	SplitterSentence Splitter = "sentence"
)

// Valid reports whether s is a known splitter variant.
func (s Splitter) Valid() bool {
	return s == SplitterTokenWindow || s == SplitterSentence
}

// Chunker splits text into overlapping windows bounded by a token count.
//
// Chunker is safe for concurrent use by multiple goroutines.
type Chunker struct {
	size     int
	overlap  int
	splitter Splitter
	logger   *slog.Logger
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize sets the window size in estimated tokens.
func WithChunkSize(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.size = n
		}
	}
}

// WithChunkOverlap sets the number of tokens shared between consecutive
// windows.
func WithChunkOverlap(n int) Option {
	return func(c *Chunker) {
		if n >= 0 {
			c.overlap = n
		}
	}
}

// WithSplitter selects the splitting strategy. Unknown variants are
// ignored and the default (token window) is kept.
func WithSplitter(s Splitter) Option {
	return func(c *Chunker) {
		if s.Valid() {
			c.splitter = s
		}
	}
}

// New creates a Chunker with the given options.
// logger may be nil, in which case slog.Default() is used.
func New(logger *slog.Logger, opts ...Option) *Chunker {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Chunker{
		size:     DefaultChunkSize,
		overlap:  DefaultChunkOverlap,
		splitter: SplitterTokenWindow,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chunk splits text into overlapping windows of roughly the configured
// chunk size, with the configured overlap shared between consecutive
// windows. Input is lower-cased before any other processing.
//
// Text whose estimated token count is below the chunk size is returned
// as a single-element slice without splitting.
//
// Splitter failures are NOT propagated: the ingestion path prefers an
// unsplit document over a failed one, so Chunk logs the failure and
// returns the whole lowered text as a single chunk.
func (c *Chunker) Chunk(text string) ([]string, error) {
	if c.overlap > 0 && c.overlap > c.size {
		return nil, fmt.Errorf("%w: overlap %d exceeds chunk size %d", ErrInvalidConfig, c.overlap, c.size)
	}

	lowered := strings.ToLower(text)

	if EstimateTokens(lowered) < c.size {
		return []string{lowered}, nil
	}

	chunks, err := c.split(lowered)
	if err != nil || len(chunks) == 0 {
		c.logger.Warn("text splitting failed, falling back to unsplit text",
			"splitter", string(c.splitter),
			"text_tokens", EstimateTokens(lowered),
			"error", err,
		)
		return []string{lowered}, nil
	}

	return chunks, nil
}

// split dispatches to the configured splitter variant.
func (c *Chunker) split(text string) ([]string, error) {
	switch c.splitter {
	case SplitterSentence:
		return c.splitSentences(text)
	default:
		return c.splitTokenWindows(text)
	}
}

// splitTokenWindows builds windows of whitespace-separated words whose
// estimated token count reaches the chunk size, stepping back by the
// overlap budget between windows.
func (c *Chunker) splitTokenWindows(text string) ([]string, error) {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, errors.New("no splittable content")
	}

	var chunks []string
	start := 0
	for start < len(words) {
		end := start
		tokens := 0
		for end < len(words) && tokens < c.size {
			tokens += EstimateTokens(words[end]) + 1 // +1 for the joining space
			end++
		}

		chunks = append(chunks, strings.Join(words[start:end], " "))

		if end == len(words) {
			break
		}

		next := stepBack(words, end, c.overlap)
		// The window must always advance, otherwise a large overlap
		// relative to the window content would loop forever.
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks, nil
}

// splitSentences groups whole sentences into token-budget windows with
// sentence-granular overlap. Text without sentence punctuation falls
// back to the token-window splitter.
func (c *Chunker) splitSentences(text string) ([]string, error) {
	sentences := sentencePattern.FindAllString(text, -1)
	if len(sentences) <= 1 {
		return c.splitTokenWindows(text)
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}

	var chunks []string
	start := 0
	for start < len(sentences) {
		end := start
		tokens := 0
		for end < len(sentences) && tokens < c.size {
			tokens += EstimateTokens(sentences[end]) + 1
			end++
		}

		chunks = append(chunks, strings.Join(sentences[start:end], " "))

		if end == len(sentences) {
			break
		}

		next := stepBack(sentences, end, c.overlap)
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks, nil
}

// stepBack walks backwards from end until roughly overlap tokens are
// covered, returning the index the next window should start at.
func stepBack(parts []string, end, overlap int) int {
	if overlap <= 0 {
		return end
	}
	covered := 0
	i := end
	for i > 0 && covered < overlap {
		i--
		covered += EstimateTokens(parts[i]) + 1
	}
	return i
}
