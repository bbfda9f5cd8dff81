package compression

import (
	"bytes"
	"errors"
	"io"

	"github.com/icza/bitio"
)

// Pack groups bits into bytes, most significant bit first, padding the last
// byte with zero bits. Each element of bits is a single binary digit; any
// non-zero value counts as 1.
func Pack(bits []byte) ([]byte, error) {
	sink := newBitSink(len(bits))
	for _, b := range bits {
		if err := sink.writeBit(b != 0); err != nil {
			return nil, err
		}
	}
	return sink.bytes()
}

// Unpack expands data into one element per stored bit, most significant bit
// first. The result always has len(data)*8 elements; the caller truncates it
// to the meaningful bit count to discard padding.
func Unpack(data []byte) ([]byte, error) {
	src := newBitSource(data, uint64(len(data))*8)
	bits := make([]byte, 0, len(data)*8)
	for {
		bit, err := src.next()
		if errors.Is(err, io.EOF) {
			return bits, nil
		}
		if err != nil {
			return nil, err
		}
		if bit {
			bits = append(bits, 1)
		} else {
			bits = append(bits, 0)
		}
	}
}

// bitSink accumulates codes into a packed payload.
type bitSink struct {
	buf   bytes.Buffer
	w     *bitio.Writer
	count uint64
}

func newBitSink(sizeHintBits int) *bitSink {
	s := &bitSink{}
	s.buf.Grow((sizeHintBits + 7) / 8)
	s.w = bitio.NewWriter(&s.buf)
	return s
}

func (s *bitSink) writeBit(bit bool) error {
	if err := s.w.WriteBool(bit); err != nil {
		return ioError("pack bit", err)
	}
	s.count++
	return nil
}

func (s *bitSink) writeCode(c Code) error {
	if err := s.w.WriteBits(c.Bits, c.Size); err != nil {
		return ioError("pack code", err)
	}
	s.count += uint64(c.Size)
	return nil
}

// bytes flushes the partial last byte and returns the payload.
func (s *bitSink) bytes() ([]byte, error) {
	if err := s.w.Close(); err != nil {
		return nil, ioError("flush bits", err)
	}
	return s.buf.Bytes(), nil
}

// bitSource yields at most limit bits from a payload and then io.EOF, so
// padding in the last byte is never observed.
type bitSource struct {
	r         *bitio.Reader
	remaining uint64
}

func newBitSource(payload []byte, limit uint64) *bitSource {
	return &bitSource{
		r:         bitio.NewReader(bytes.NewReader(payload)),
		remaining: limit,
	}
}

func (s *bitSource) next() (bool, error) {
	if s.remaining == 0 {
		return false, io.EOF
	}
	bit, err := s.r.ReadBool()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return false, corruptErrorf("payload ends %d bits early", s.remaining)
		}
		return false, ioError("unpack bit", err)
	}
	s.remaining--
	return bit, nil
}
