package compression

import (
	"bytes"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"

	"github.com/chronos-tachyon/assert"
)

const maxCodeSize = 64

// Code is a sequence of bits. The first bit is the most significant of the
// Size low bits of Bits.
type Code struct {
	// Size holds the number of valid bits.
	Size uint8

	// Bits holds the values of the bits.
	Bits uint64
}

// String returns the quoted bit string, e.g. "010".
func (c Code) String() string {
	if c.Size == 0 {
		return `""`
	}
	format := "%0" + strconv.FormatUint(uint64(c.Size), 10) + "b"
	return strconv.Quote(fmt.Sprintf(format, c.Bits))
}

// HasPrefix reports whether p is a prefix of c.
func (c Code) HasPrefix(p Code) bool {
	if p.Size > c.Size {
		return false
	}
	return c.Bits>>(c.Size-p.Size) == p.Bits
}

func (c Code) append(bit uint64) Code {
	assert.Assertf(c.Size < maxCodeSize, "code longer than %d bits", maxCodeSize)
	return Code{Size: c.Size + 1, Bits: c.Bits<<1 | bit}
}

var _ fmt.Stringer = Code{}

// CodeTable maps each symbol to its code.
type CodeTable map[rune]Code

// BuildCodeTable derives the code of every leaf as its root-to-leaf path,
// 0 for left and 1 for right. A tree made of a single leaf gets the one-bit
// code "0".
func BuildCodeTable(root *Node) CodeTable {
	codes := make(CodeTable)
	if root == nil {
		return codes
	}
	if root.IsLeaf() {
		codes[root.Symbol] = Code{Size: 1, Bits: 0}
		return codes
	}
	var walk func(n *Node, code Code)
	walk = func(n *Node, code Code) {
		if n.IsLeaf() {
			codes[n.Symbol] = code
			return
		}
		walk(n.Left, code.append(0))
		walk(n.Right, code.append(1))
	}
	walk(root, Code{})
	return codes
}

// Dump writes one line per symbol, in ascending symbol order, to w.
func (t CodeTable) Dump(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	for _, sym := range slices.Sorted(maps.Keys(t)) {
		fmt.Fprintf(&buf, "%q\t%s\n", sym, t[sym])
	}
	return buf.WriteTo(w)
}
