package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ntdkhiem/huffzip/compression"
	"github.com/ntdkhiem/huffzip/internal/common"
)

func main() {
	decompFlagPtr := flag.Bool("decode", false, "flag to decode")
	outputFlagPtr := flag.String("output", "output", "flag for naming output file")
	codesFlagPtr := flag.Bool("codes", false, "print the code table of the input instead of writing output")

	flag.Parse()

	restArgs := flag.Args()

	if len(restArgs) != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [-decode] [-codes] [-output name] <file>\n", os.Args[0])
		os.Exit(2)
	}

	common.SetupLogger()

	if err := run(restArgs[0], *outputFlagPtr, *decompFlagPtr, *codesFlagPtr); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(input, output string, decode, codes bool) error {
	if codes {
		return printCodes(input, decode)
	}

	if decode {
		outPath := output + ".txt"
		n, err := compression.DecompressFile(input, outPath)
		if err != nil {
			return err
		}
		fmt.Printf("File written successfully to %s (%d bytes)\n", outPath, n)
		return nil
	}

	outPath := output + common.ContainerExt
	stats, err := compression.CompressFile(input, outPath)
	if err != nil {
		return err
	}
	fmt.Printf("File written successfully to %s (%d -> %d bytes, %.1f%%, %d symbols)\n",
		outPath, stats.InputBytes, stats.OutputBytes, 100*stats.Ratio(), stats.Symbols)
	return nil
}

// printCodes dumps the code table of a text file, or of a container when
// decode is set.
func printCodes(input string, decode bool) error {
	f, err := os.Open(input)
	if err != nil {
		return err
	}
	defer f.Close()

	var table compression.FrequencyTable
	if decode {
		c, err := compression.ReadContainer(f)
		if err != nil {
			return err
		}
		table = c.Frequencies
	} else {
		table, err = compression.CountFrequenciesFrom(f)
		if err != nil {
			return err
		}
	}

	root, err := compression.BuildTree(table)
	if err != nil {
		return err
	}
	_, err = compression.BuildCodeTable(root).Dump(os.Stdout)
	return err
}
