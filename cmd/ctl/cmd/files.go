package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jpfielding/idencomp.go/pkg/fastq"
	"github.com/jpfielding/idencomp.go/pkg/idn"
	"github.com/jpfielding/idencomp.go/pkg/sequence"
	"github.com/spf13/cobra"
)

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// openIn opens path for reading, "-" meaning stdin.
func openIn(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	path = strings.TrimPrefix(path, "file://")
	switch path {
	case "":
		return nil, fmt.Errorf("an input path is required, use - for stdin")
	case "-":
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %v", err)
	}
	return f, nil
}

// openOut creates path for writing, "" or "-" meaning stdout.
func openOut(cmd *cobra.Command, path string) (io.WriteCloser, error) {
	path = strings.TrimPrefix(path, "file://")
	if path == "" || path == "-" {
		return nopCloser{cmd.OutOrStdout()}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %v", err)
	}
	return f, nil
}

// inputArg prefers the --in flag and falls back to the first argument.
func inputArg(cmd *cobra.Command, args []string) string {
	in, _ := cmd.Flags().GetString("in")
	if in == "" && len(args) > 0 {
		in = args[0]
	}
	return in
}

func readFASTQ(cmd *cobra.Command, path string) ([]fastq.Record, []sequence.Read, error) {
	in, err := openIn(cmd, path)
	if err != nil {
		return nil, nil, err
	}
	defer in.Close()
	recs, err := fastq.NewReader(in).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	reads := make([]sequence.Read, len(recs))
	for i, r := range recs {
		reads[i] = r.Read
	}
	return recs, reads, nil
}

func readArchive(cmd *cobra.Command, path string) (*idn.Archive, error) {
	in, err := openIn(cmd, path)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	return idn.ReadArchive(in)
}

// codingOptions reads the flags shared by the encoding commands.
func codingOptions(cmd *cobra.Command) (idn.Options, error) {
	opts := idn.DefaultOptions()
	opts.MaxBins, _ = cmd.Flags().GetInt("bins")
	opts.MaxBlockSymbols, _ = cmd.Flags().GetInt("block-symbols")
	opts.Workers, _ = cmd.Flags().GetInt("workers")
	opts.MaxIterations, _ = cmd.Flags().GetInt("iterations")
	opts.PreBinLimit, _ = cmd.Flags().GetInt("pre-bin")
	codec, _ := cmd.Flags().GetString("codec")
	var err error
	if opts.MetadataCodec, err = idn.ParseMetadataCodec(codec); err != nil {
		return opts, err
	}
	return opts, nil
}

func addCodingFlags(cmd *cobra.Command) {
	def := idn.DefaultOptions()
	pf := cmd.PersistentFlags()
	pf.Int("bins", def.MaxBins, "maximum number of context bins per stream")
	pf.Int("block-symbols", def.MaxBlockSymbols, "maximum symbols per coded block")
	pf.Int("workers", 0, "parallel block coders, 0 for GOMAXPROCS")
	pf.Int("iterations", def.MaxIterations, "maximum clustering iterations")
	pf.Int("pre-bin", 0, "fold all but this many heaviest contexts into one before clustering, 0 to disable")
	pf.String("codec", def.MetadataCodec.String(), "metadata codec (raw|zstd|brotli|packbits)")
}
