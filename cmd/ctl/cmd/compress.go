package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jpfielding/idencomp.go/pkg/ctxspec"
	"github.com/jpfielding/idencomp.go/pkg/fastq"
	"github.com/jpfielding/idencomp.go/pkg/idn"
	"github.com/jpfielding/idencomp.go/pkg/sequence"
	"github.com/spf13/cobra"
)

const (
	defaultAcidSpec    = "generic_ao8_qo0_pb4"
	defaultQualitySpec = "light_ao4_qo3_pb4_qm16"
)

// NewCompressCmd codes a FASTQ file into an archive.
func NewCompressCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compress [fastq]",
		Short: "compress a FASTQ file",
		Long:  "Codes the acids and quality scores of every read into an archive. Read names are not kept.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := codingOptions(cmd)
			if err != nil {
				return err
			}
			_, reads, err := readFASTQ(cmd, inputArg(cmd, args))
			if err != nil {
				return err
			}
			acidSpec, qualSpec, err := chooseSpecs(ctx, cmd, reads, opts)
			if err != nil {
				return err
			}
			arc, st, err := idn.EncodeReads(ctx, reads, acidSpec, qualSpec, opts)
			if err != nil {
				return err
			}
			outPath, _ := cmd.Flags().GetString("out")
			out, err := openOut(cmd, outPath)
			if err != nil {
				return err
			}
			n, err := arc.WriteTo(out)
			if cerr := out.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return fmt.Errorf("failed to write archive: %w", err)
			}
			for _, s := range []struct {
				name string
				spec ctxspec.Spec
				st   idn.Stats
			}{{"acids", acidSpec, st.Acids}, {"qualities", qualSpec, st.Qualities}} {
				slog.InfoContext(ctx, "coded stream", "stream", s.name, "spec", s.spec,
					"symbols", s.st.Symbols, "contexts", s.st.OrigContexts, "bins", s.st.BinnedContexts,
					"rate", s.st.OrigRate, "binned_rate", s.st.BinnedRate, "coded_rate", s.st.CodedRate,
					"blocks", s.st.Blocks)
			}
			slog.InfoContext(ctx, "wrote archive", "reads", len(reads), "bytes", n)
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("in", "i", "", "FASTQ input, - for stdin")
	pf.StringP("out", "o", "", "archive output, stdout when empty")
	pf.String("acid-spec", defaultAcidSpec, "context spec for acids")
	pf.String("quality-spec", defaultQualitySpec, "context spec for quality scores")
	pf.Bool("auto", false, "pick both context specs from the presets on a sample of the reads")
	pf.Int("sample", 10000, "reads used by --auto")
	addCodingFlags(cmd)
	return cmd
}

func chooseSpecs(ctx context.Context, cmd *cobra.Command, reads []sequence.Read, opts idn.Options) (ctxspec.Spec, ctxspec.Spec, error) {
	if auto, _ := cmd.Flags().GetBool("auto"); auto {
		sample, _ := cmd.Flags().GetInt("sample")
		if sample > 0 && sample < len(reads) {
			reads = reads[:sample]
		}
		acidSpec, _, err := idn.SelectSpec(ctx, sequence.Acids, reads, ctxspec.AcidPresets(), opts)
		if err != nil {
			return acidSpec, acidSpec, fmt.Errorf("selecting acid spec: %w", err)
		}
		qualSpec, _, err := idn.SelectSpec(ctx, sequence.Qualities, reads, ctxspec.Presets(), opts)
		if err != nil {
			return acidSpec, qualSpec, fmt.Errorf("selecting quality spec: %w", err)
		}
		return acidSpec, qualSpec, nil
	}
	name, _ := cmd.Flags().GetString("acid-spec")
	acidSpec, err := ctxspec.Parse(name)
	if err != nil {
		return acidSpec, acidSpec, err
	}
	name, _ = cmd.Flags().GetString("quality-spec")
	qualSpec, err := ctxspec.Parse(name)
	return acidSpec, qualSpec, err
}

// NewDecompressCmd restores FASTQ from an archive with generated read names.
func NewDecompressCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decompress [archive]",
		Short: "decompress an archive to FASTQ",
		Long:  "Decodes an archive back to FASTQ. Read names are generated from --name-prefix and the read number.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arc, err := readArchive(cmd, inputArg(cmd, args))
			if err != nil {
				return err
			}
			reads, err := idn.DecodeReads(ctx, arc)
			if err != nil {
				return err
			}
			prefix, _ := cmd.Flags().GetString("name-prefix")
			outPath, _ := cmd.Flags().GetString("out")
			out, err := openOut(cmd, outPath)
			if err != nil {
				return err
			}
			w := fastq.NewWriter(out)
			for i, r := range reads {
				if err = w.Write(fastq.Record{Name: fmt.Sprintf("%s%d", prefix, i+1), Read: r}); err != nil {
					break
				}
			}
			if err == nil {
				err = w.Flush()
			}
			if cerr := out.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return fmt.Errorf("failed to write fastq: %w", err)
			}
			slog.InfoContext(ctx, "decoded archive", "reads", len(reads), "acids", arc.Acids.ID, "qualities", arc.Qualities.ID)
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("in", "i", "", "archive input, - for stdin")
	pf.StringP("out", "o", "", "FASTQ output, stdout when empty")
	pf.String("name-prefix", "read", "prefix of the generated read names")
	return cmd
}
