package compression

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Stats describes one compression run.
type Stats struct {
	Symbols         int
	EncodedBitCount uint32
	InputBytes      int64
	OutputBytes     int64
}

// Ratio is OutputBytes / InputBytes.
func (s Stats) Ratio() float64 {
	if s.InputBytes == 0 {
		return 0
	}
	return float64(s.OutputBytes) / float64(s.InputBytes)
}

// Encode reads the whole text from r and writes its container to w.
func Encode(w io.Writer, r io.Reader) (Stats, error) {
	text, err := io.ReadAll(r)
	if err != nil {
		return Stats{}, ioError("read text", err)
	}
	c, err := Compress(string(text))
	if err != nil {
		return Stats{}, err
	}
	n, err := c.WriteTo(w)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Symbols:         len(c.Frequencies),
		EncodedBitCount: c.EncodedBitCount,
		InputBytes:      int64(len(text)),
		OutputBytes:     n,
	}, nil
}

// Decode reads a container from r and writes the original text to w.
func Decode(w io.Writer, r io.Reader) (int64, error) {
	c, err := ReadContainer(r)
	if err != nil {
		return 0, err
	}
	text, err := Decompress(c)
	if err != nil {
		return 0, err
	}
	n, err := io.WriteString(w, text)
	if err != nil {
		return int64(n), ioError("write text", err)
	}
	return int64(n), nil
}

// CompressFile compresses the file at inPath into outPath. Both files are
// closed on every path and a partial output is removed on failure.
func CompressFile(inPath, outPath string) (stats Stats, err error) {
	err = withFiles(inPath, outPath, func(w io.Writer, r io.Reader) error {
		var encErr error
		stats, encErr = Encode(w, r)
		return encErr
	})
	if err == nil {
		slog.Debug("Compressed file", "file", inPath, "symbols", stats.Symbols, "bits", stats.EncodedBitCount, "ratio", stats.Ratio())
	}
	return stats, err
}

// DecompressFile restores the text stored in the container at inPath into
// outPath.
func DecompressFile(inPath, outPath string) (n int64, err error) {
	err = withFiles(inPath, outPath, func(w io.Writer, r io.Reader) error {
		var decErr error
		n, decErr = Decode(w, r)
		return decErr
	})
	return n, err
}

func withFiles(inPath, outPath string, fn func(w io.Writer, r io.Reader) error) (err error) {
	in, err := os.Open(inPath)
	if err != nil {
		return ioError("open input", err)
	}
	defer in.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return ioError("create output", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = ioError("close output", cerr)
		}
		if err != nil {
			if rerr := os.Remove(outPath); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
				err = fmt.Errorf("%w (cleanup: %v)", err, rerr)
			}
		}
	}()

	return fn(out, in)
}
