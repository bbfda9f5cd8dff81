package compression

import (
	"container/heap"
	"fmt"

	"github.com/chronos-tachyon/assert"
)

// Node is a Huffman tree node. A node without children is a leaf carrying a
// symbol; any other node is internal and owns exactly two children.
type Node struct {
	Symbol rune
	Freq   uint64
	Left   *Node
	Right  *Node

	// rep is the representative symbol used to break frequency ties: the
	// leaf's own symbol, or the representative of the left subtree.
	rep rune
}

func newLeaf(sym rune, freq uint32) *Node {
	return &Node{Symbol: sym, Freq: uint64(freq), rep: sym}
}

func newInternal(left, right *Node) *Node {
	assert.Assertf(left != nil && right != nil, "internal node needs two children")
	return &Node{
		Freq:  left.Freq + right.Freq,
		Left:  left,
		Right: right,
		rep:   left.rep,
	}
}

// IsLeaf reports whether n carries a symbol.
func (n *Node) IsLeaf() bool {
	return n.Left == nil && n.Right == nil
}

// Representative returns the symbol used to order n against trees of equal
// frequency.
func (n *Node) Representative() rune {
	return n.rep
}

// Count returns the number of leaf and internal nodes under n, inclusive.
func (n *Node) Count() (leaves, internals int) {
	if n == nil {
		return 0, 0
	}
	if n.IsLeaf() {
		return 1, 0
	}
	ll, li := n.Left.Count()
	rl, ri := n.Right.Count()
	return ll + rl, li + ri + 1
}

// Less reports whether a is taken from the queue before b: lower frequency
// first, and on equal frequency the larger representative symbol first.
func Less(a, b *Node) bool {
	if a.Freq != b.Freq {
		return a.Freq < b.Freq
	}
	return a.rep > b.rep
}

// BuildTree builds the Huffman tree for table. A table with a single symbol
// yields a single leaf.
func BuildTree(table FrequencyTable) (*Node, error) {
	if len(table) == 0 {
		return nil, fmt.Errorf("build tree: %w", ErrEmptyInput)
	}

	pq := make(priorityQueue, 0, len(table))
	for _, sym := range table.Symbols() {
		pq = append(pq, newLeaf(sym, table[sym]))
	}
	heap.Init(&pq)

	for pq.Len() > 1 {
		n1 := heap.Pop(&pq).(*Node)
		n2 := heap.Pop(&pq).(*Node)
		heap.Push(&pq, newInternal(n1, n2))
	}

	root := heap.Pop(&pq).(*Node)
	assert.Assertf(pq.Len() == 0, "queue not drained: %d trees left", pq.Len())
	return root, nil
}

type priorityQueue []*Node

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	return Less(pq[i], pq[j])
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
}

func (pq *priorityQueue) Push(x any) {
	item := x.(*Node)
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[0 : n-1]
	return item
}

var _ heap.Interface = (*priorityQueue)(nil)
