package compression

import (
	"errors"
	"fmt"
)

// Error kinds returned by the engine. Every error returned from this package
// wraps exactly one of them, so callers classify failures with errors.Is.
var (
	// ErrEmptyInput means there are no symbols to build a tree from.
	ErrEmptyInput = errors.New("empty input")

	// ErrFormat means a container header or symbol table is malformed or
	// truncated, or an input cannot be represented in the container format.
	ErrFormat = errors.New("malformed container")

	// ErrCorruptPayload means the packed bit stream does not decode to a
	// consistent sequence of codes.
	ErrCorruptPayload = errors.New("corrupt payload")

	// ErrIO means the underlying reader, writer or file failed.
	ErrIO = errors.New("i/o failure")
)

func formatErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFormat, fmt.Sprintf(format, args...))
}

func corruptErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptPayload, fmt.Sprintf(format, args...))
}

func ioError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIO, op, err)
}
