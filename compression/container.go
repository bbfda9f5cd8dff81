package compression

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"unicode/utf8"
)

// MaxSymbols is the largest number of distinct symbols a container can hold.
const MaxSymbols = math.MaxUint16

// Container is the serialized form of a compressed text:
//
//	symbol_count      u16
//	encoded_bit_count u32
//	symbol_count × (symbol_byte_length u8, UTF-8 symbol, frequency u32)
//	payload           ceil(encoded_bit_count/8) bytes
//
// All integers are big-endian. Entries are written in ascending symbol order.
type Container struct {
	Frequencies     FrequencyTable
	EncodedBitCount uint32
	Payload         []byte
}

func payloadSize(bits uint32) int64 {
	return (int64(bits) + 7) / 8
}

func (c *Container) validate() error {
	switch n := len(c.Frequencies); {
	case n == 0:
		return formatErrorf("symbol count is zero")
	case n > MaxSymbols:
		return formatErrorf("%d distinct symbols exceed the limit of %d", n, MaxSymbols)
	}
	if c.EncodedBitCount == 0 {
		return formatErrorf("encoded bit count is zero")
	}
	if want := payloadSize(c.EncodedBitCount); int64(len(c.Payload)) != want {
		return formatErrorf("payload is %d bytes, %d bits need %d", len(c.Payload), c.EncodedBitCount, want)
	}
	for sym, freq := range c.Frequencies {
		if !utf8.ValidRune(sym) {
			return formatErrorf("symbol %U is not a valid code point", sym)
		}
		if freq == 0 {
			return formatErrorf("symbol %q has zero frequency", sym)
		}
	}
	return nil
}

// WriteTo serializes c to w.
func (c *Container) WriteTo(w io.Writer) (int64, error) {
	if err := c.validate(); err != nil {
		return 0, err
	}

	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)

	var scratch [1 + utf8.UTFMax + 4]byte
	header := binary.BigEndian.AppendUint16(scratch[:0], uint16(len(c.Frequencies)))
	header = binary.BigEndian.AppendUint32(header, c.EncodedBitCount)
	if _, err := bw.Write(header); err != nil {
		return cw.n, ioError("write header", err)
	}

	for _, sym := range c.Frequencies.Symbols() {
		entry := utf8.AppendRune(scratch[:1], sym)
		entry[0] = byte(len(entry) - 1)
		entry = binary.BigEndian.AppendUint32(entry, c.Frequencies[sym])
		if _, err := bw.Write(entry); err != nil {
			return cw.n, ioError("write symbol table", err)
		}
	}

	if _, err := bw.Write(c.Payload); err != nil {
		return cw.n, ioError("write payload", err)
	}
	if err := bw.Flush(); err != nil {
		return cw.n, ioError("flush container", err)
	}
	return cw.n, nil
}

// MarshalBinary returns the serialized container.
func (c *Container) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := c.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary replaces c with the container serialized in data.
func (c *Container) UnmarshalBinary(data []byte) error {
	parsed, err := ReadContainer(bytes.NewReader(data))
	if err != nil {
		return err
	}
	*c = *parsed
	return nil
}

// ReadContainer parses a whole container from r. Bytes after the payload are
// rejected.
func ReadContainer(r io.Reader) (*Container, error) {
	br := bufio.NewReader(r)

	var header [6]byte
	if err := readFull(br, header[:], "header"); err != nil {
		return nil, err
	}
	symbolCount := binary.BigEndian.Uint16(header[0:2])
	bitCount := binary.BigEndian.Uint32(header[2:6])
	if symbolCount == 0 {
		return nil, formatErrorf("symbol count is zero")
	}
	if bitCount == 0 {
		return nil, formatErrorf("encoded bit count is zero")
	}

	table := make(FrequencyTable, symbolCount)
	for i := range int(symbolCount) {
		sym, freq, err := readEntry(br, i)
		if err != nil {
			return nil, err
		}
		if _, dup := table[sym]; dup {
			return nil, formatErrorf("symbol %q appears twice in the symbol table", sym)
		}
		if freq == 0 {
			return nil, formatErrorf("symbol %q has zero frequency", sym)
		}
		table[sym] = freq
	}

	want := payloadSize(bitCount)
	payload, err := io.ReadAll(io.LimitReader(br, want+1))
	if err != nil {
		return nil, ioError("read payload", err)
	}
	switch {
	case int64(len(payload)) < want:
		return nil, formatErrorf("truncated payload: got %d bytes, want %d", len(payload), want)
	case int64(len(payload)) > want:
		return nil, formatErrorf("unexpected data after %d payload bytes", want)
	}

	return &Container{
		Frequencies:     table,
		EncodedBitCount: bitCount,
		Payload:         payload,
	}, nil
}

func readEntry(br *bufio.Reader, index int) (rune, uint32, error) {
	size, err := br.ReadByte()
	if err != nil {
		return 0, 0, shortRead(err, "symbol table")
	}
	if size == 0 || size > utf8.UTFMax {
		return 0, 0, formatErrorf("entry %d: symbol length %d is not a single UTF-8 code point", index, size)
	}

	var buf [utf8.UTFMax + 4]byte
	raw := buf[:int(size)+4]
	if err := readFull(br, raw, "symbol table"); err != nil {
		return 0, 0, err
	}

	sym, n := utf8.DecodeRune(raw[:size])
	if (sym == utf8.RuneError && n <= 1) || n != int(size) {
		return 0, 0, formatErrorf("entry %d: bytes % x are not a single UTF-8 code point", index, raw[:size])
	}
	return sym, binary.BigEndian.Uint32(raw[size:]), nil
}

func readFull(r io.Reader, buf []byte, what string) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		return shortRead(err, what)
	}
	return nil
}

// shortRead separates a truncated container from a failing reader.
func shortRead(err error, what string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return formatErrorf("truncated %s", what)
	}
	return ioError("read "+what, err)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}
