package compression

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// aaabbc: a="1" b="01" c="00" -> 1 1 1 01 01 00 -> 11101010 0
var aaabbcContainer = []byte{
	0x00, 0x03, // symbol_count
	0x00, 0x00, 0x00, 0x09, // encoded_bit_count
	0x01, 'a', 0x00, 0x00, 0x00, 0x03,
	0x01, 'b', 0x00, 0x00, 0x00, 0x02,
	0x01, 'c', 0x00, 0x00, 0x00, 0x01,
	0xea, 0x00, // payload
}

func TestContainer_WireFormat(t *testing.T) {
	c, err := Compress("aaabbc")
	require.NoError(t, err)
	require.Equal(t, uint32(9), c.EncodedBitCount)

	raw, err := c.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, aaabbcContainer, raw)
}

func TestContainer_SingleSymbolHeader(t *testing.T) {
	c, err := Compress("x")
	require.NoError(t, err)

	raw, err := c.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, []byte{
		0x00, 0x01,
		0x00, 0x00, 0x00, 0x01,
		0x01, 'x', 0x00, 0x00, 0x00, 0x01,
		0x00,
	}, raw)
}

func TestContainer_MultiByteSymbols(t *testing.T) {
	c := &Container{
		Frequencies:     FrequencyTable{'é': 1, '🚀': 1},
		EncodedBitCount: 2,
		Payload:         []byte{0x80},
	}
	raw, err := c.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, []byte{
		0x00, 0x02,
		0x00, 0x00, 0x00, 0x02,
		0x02, 0xc3, 0xa9, 0x00, 0x00, 0x00, 0x01,
		0x04, 0xf0, 0x9f, 0x9a, 0x80, 0x00, 0x00, 0x00, 0x01,
		0x80,
	}, raw)

	var back Container
	require.NoError(t, back.UnmarshalBinary(raw))
	require.Equal(t, *c, back)
}

func TestReadContainer(t *testing.T) {
	c, err := ReadContainer(bytes.NewReader(aaabbcContainer))
	require.NoError(t, err)
	require.Equal(t, FrequencyTable{'a': 3, 'b': 2, 'c': 1}, c.Frequencies)
	require.Equal(t, uint32(9), c.EncodedBitCount)
	require.Equal(t, []byte{0xea, 0x00}, c.Payload)
}

func TestReadContainer_Malformed(t *testing.T) {
	withBytes := func(edit func(b []byte) []byte) []byte {
		b := append([]byte(nil), aaabbcContainer...)
		return edit(b)
	}

	testCases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated header", aaabbcContainer[:4]},
		{"symbol count exceeds entries", []byte{
			0x00, 0x03, 0x00, 0x00, 0x00, 0x01,
			0x01, 'x', 0x00, 0x00, 0x00, 0x01,
		}},
		{"truncated frequency", aaabbcContainer[:9]},
		{"truncated payload", aaabbcContainer[:len(aaabbcContainer)-1]},
		{"trailing data", append(append([]byte(nil), aaabbcContainer...), 0x00)},
		{"zero symbol count", withBytes(func(b []byte) []byte { b[1] = 0; return b })},
		{"zero bit count", withBytes(func(b []byte) []byte { b[5] = 0; return b })},
		{"zero symbol length", withBytes(func(b []byte) []byte { b[6] = 0; return b })},
		{"symbol length too long", withBytes(func(b []byte) []byte { b[6] = 5; return b })},
		{"invalid utf-8", withBytes(func(b []byte) []byte { b[7] = 0xff; return b })},
		{"two code points in one entry", []byte{
			0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
			0x02, 'x', 'y', 0x00, 0x00, 0x00, 0x01,
			0x00,
		}},
		{"duplicate symbol", withBytes(func(b []byte) []byte { b[13] = 'a'; return b })},
		{"zero frequency", withBytes(func(b []byte) []byte { b[11] = 0; return b })},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadContainer(bytes.NewReader(tc.data))
			require.ErrorIs(t, err, ErrFormat)
			require.NotErrorIs(t, err, ErrIO)
		})
	}
}

func TestReadContainer_ReaderFailure(t *testing.T) {
	r := errReader{errors.New("connection reset")}
	_, err := ReadContainer(r)
	require.ErrorIs(t, err, ErrIO)
	require.NotErrorIs(t, err, ErrFormat)
}

func TestContainer_WriteToRejectsInvalid(t *testing.T) {
	testCases := []struct {
		name string
		c    Container
	}{
		{"no symbols", Container{EncodedBitCount: 1, Payload: []byte{0}}},
		{"zero bits", Container{Frequencies: FrequencyTable{'a': 1}}},
		{"payload size mismatch", Container{Frequencies: FrequencyTable{'a': 1}, EncodedBitCount: 9, Payload: []byte{0}}},
		{"zero frequency", Container{Frequencies: FrequencyTable{'a': 0}, EncodedBitCount: 1, Payload: []byte{0}}},
		{"invalid code point", Container{Frequencies: FrequencyTable{0xd800: 1}, EncodedBitCount: 1, Payload: []byte{0}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			_, err := tc.c.WriteTo(&buf)
			require.ErrorIs(t, err, ErrFormat)
			require.Zero(t, buf.Len())
		})
	}
}

func TestContainer_TooManySymbols(t *testing.T) {
	table := make(FrequencyTable, MaxSymbols+1)
	for i := range MaxSymbols + 1 {
		table[rune(0x10000+i)] = 1
	}
	c := &Container{Frequencies: table, EncodedBitCount: 8, Payload: []byte{0}}
	_, err := c.MarshalBinary()
	require.ErrorIs(t, err, ErrFormat)
}

func TestContainer_WriterFailure(t *testing.T) {
	c, err := Compress("aaabbc")
	require.NoError(t, err)

	_, err = c.WriteTo(failingWriter{})
	require.ErrorIs(t, err, ErrIO)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }
