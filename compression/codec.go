// Package compression implements a Huffman text compressor. Texts are split
// into code points, coded with a prefix code derived from their frequencies,
// and stored in a Container that carries only the frequency table: the
// decoder rebuilds the identical tree from it.
package compression

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"
)

// Compress builds the frequency table, tree and code table for text and
// packs its codes into a Container.
func Compress(text string) (*Container, error) {
	if err := checkText(text); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	return encode(text, CountFrequencies(text))
}

// CompressWithTable is Compress with a frequency table counted elsewhere,
// e.g. while the text was being uploaded. The table must describe text
// exactly.
func CompressWithTable(text string, table FrequencyTable) (*Container, error) {
	if err := checkText(text); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	if !CountFrequencies(text).Equal(table) {
		return nil, formatErrorf("frequency table does not match the text")
	}
	return encode(text, table)
}

func checkText(text string) error {
	if len(text) == 0 {
		return ErrEmptyInput
	}
	if uint64(len(text)) > math.MaxUint32 {
		return formatErrorf("text of %d bytes is too large", len(text))
	}
	if !utf8.ValidString(text) {
		return formatErrorf("text is not valid UTF-8")
	}
	return nil
}

func encode(text string, table FrequencyTable) (*Container, error) {
	if len(table) > MaxSymbols {
		return nil, formatErrorf("%d distinct symbols exceed the limit of %d", len(table), MaxSymbols)
	}
	root, err := BuildTree(table)
	if err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	codes := BuildCodeTable(root)
	slog.Debug("Built Huffman tree", "symbols", len(codes))

	sink := newBitSink(len(text) * 8)
	for _, r := range text {
		code, ok := codes[r]
		if !ok {
			return nil, formatErrorf("symbol %q is missing from the frequency table", r)
		}
		if sink.count+uint64(code.Size) > math.MaxUint32 {
			return nil, formatErrorf("encoded text exceeds %d bits", uint32(math.MaxUint32))
		}
		if err := sink.writeCode(code); err != nil {
			return nil, err
		}
	}
	bitCount := uint32(sink.count)
	payload, err := sink.bytes()
	if err != nil {
		return nil, err
	}
	slog.Debug("Packed payload", "bits", bitCount, "bytes", len(payload))

	return &Container{
		Frequencies:     table,
		EncodedBitCount: bitCount,
		Payload:         payload,
	}, nil
}

// Decompress rebuilds the tree from the stored frequencies and decodes the
// payload. Each bit is consumed once: it moves the cursor one level down, and
// reaching a leaf emits its symbol and resets the cursor to the root.
func Decompress(c *Container) (string, error) {
	if c == nil {
		return "", formatErrorf("nil container")
	}
	if err := c.validate(); err != nil {
		return "", err
	}
	root, err := BuildTree(c.Frequencies)
	if err != nil {
		return "", fmt.Errorf("decompress: %w", err)
	}
	want := c.Frequencies.Total()

	// A lone leaf has the code "0"; every bit stands for one symbol.
	if root.IsLeaf() {
		if uint64(c.EncodedBitCount) != want {
			return "", corruptErrorf("%d bits for %d occurrences of a single symbol", c.EncodedBitCount, want)
		}
		return strings.Repeat(string(root.Symbol), int(c.EncodedBitCount)), nil
	}

	var out strings.Builder
	src := newBitSource(c.Payload, uint64(c.EncodedBitCount))
	node := root
	var emitted uint64
	for {
		bit, err := src.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if bit {
			node = node.Right
		} else {
			node = node.Left
		}
		if node.IsLeaf() {
			out.WriteRune(node.Symbol)
			emitted++
			node = root
		}
	}

	if node != root {
		return "", corruptErrorf("bit stream ends inside a code after %d symbols", emitted)
	}
	if emitted != want {
		return "", corruptErrorf("decoded %d symbols, frequency table declares %d", emitted, want)
	}
	return out.String(), nil
}
