package compression

import (
	"bufio"
	"context"
	"errors"
	"io"
	"math"
	"slices"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

// FrequencyTable counts occurrences of each distinct symbol.
type FrequencyTable map[rune]uint32

// CountFrequencies counts every symbol of text. An empty text yields an empty
// table.
func CountFrequencies(text string) FrequencyTable {
	table := make(FrequencyTable)
	for _, r := range text {
		table[r]++
	}
	return table
}

// CountFrequenciesFrom counts symbols read rune by rune from r until EOF.
// Invalid UTF-8 is counted as utf8.RuneError.
func CountFrequenciesFrom(r io.Reader) (FrequencyTable, error) {
	table := make(FrequencyTable)
	bufReader := bufio.NewReader(r)
	for {
		char, _, err := bufReader.ReadRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return table, nil
			}
			return nil, ioError("count frequencies", err)
		}
		table[char]++
	}
}

// CountFrequenciesParallel splits text into chunks on rune boundaries, counts
// them concurrently and merges the partial tables. The result is identical to
// CountFrequencies(text).
func CountFrequenciesParallel(ctx context.Context, text string, chunks int) (FrequencyTable, error) {
	parts := splitChunks(text, chunks)
	partial := make([]FrequencyTable, len(parts))

	g, ctx := errgroup.WithContext(ctx)
	for i, part := range parts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			partial[i] = CountFrequencies(part)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	table := make(FrequencyTable)
	for _, p := range partial {
		table.Merge(p)
	}
	return table, nil
}

// Merge adds the counts of other into t. Counts saturate at math.MaxUint32.
func (t FrequencyTable) Merge(other FrequencyTable) {
	for sym, n := range other {
		sum := t[sym] + n
		if sum < n {
			sum = math.MaxUint32
		}
		t[sym] = sum
	}
}

// Total is the sum of all counts, i.e. the number of symbols in the text the
// table describes.
func (t FrequencyTable) Total() uint64 {
	var total uint64
	for _, n := range t {
		total += uint64(n)
	}
	return total
}

// Symbols returns the distinct symbols in ascending order.
func (t FrequencyTable) Symbols() []rune {
	syms := make([]rune, 0, len(t))
	for sym := range t {
		syms = append(syms, sym)
	}
	slices.Sort(syms)
	return syms
}

// Equal reports whether both tables hold the same symbols with the same counts.
func (t FrequencyTable) Equal(other FrequencyTable) bool {
	if len(t) != len(other) {
		return false
	}
	for sym, n := range t {
		if m, ok := other[sym]; !ok || m != n {
			return false
		}
	}
	return true
}

// splitChunks cuts text into at most count pieces without splitting a rune.
func splitChunks(text string, count int) []string {
	if count < 1 {
		count = 1
	}
	if len(text) == 0 {
		return nil
	}
	chunkSize := (len(text) + count - 1) / count
	var chunks []string
	for start := 0; start < len(text); {
		end := min(start+chunkSize, len(text))
		for end < len(text) && !utf8.RuneStart(text[end]) {
			end++
		}
		chunks = append(chunks, text[start:end])
		start = end
	}
	return chunks
}
