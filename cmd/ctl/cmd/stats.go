package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/jpfielding/idencomp.go/pkg/ctxspec"
	"github.com/jpfielding/idencomp.go/pkg/fastq"
	"github.com/jpfielding/idencomp.go/pkg/idn"
	"github.com/jpfielding/idencomp.go/pkg/sequence"
	"github.com/jpfielding/idencomp.go/pkg/util"
	"github.com/spf13/cobra"
)

// NewStatsCmd reports symbol statistics and modeled rates of a FASTQ file.
func NewStatsCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats [fastq]",
		Short: "symbol statistics of a FASTQ file",
		Long:  "Prints the symbol distribution of both streams and the empirical rate of each stream under every --spec.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := openIn(cmd, inputArg(cmd, args))
			if err != nil {
				return err
			}
			data, err := io.ReadAll(in)
			in.Close()
			if err != nil {
				return err
			}
			recs, err := fastq.NewReader(bytes.NewReader(data)).ReadAll()
			if err != nil {
				return err
			}
			reads := make([]sequence.Read, len(recs))
			for i, r := range recs {
				reads[i] = r.Read
			}
			names, _ := cmd.Flags().GetStringSlice("spec")
			specs := make([]ctxspec.Spec, 0, len(names))
			for _, n := range names {
				s, err := ctxspec.Parse(n)
				if err != nil {
					return err
				}
				specs = append(specs, s)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "input md5\t%s\n", util.Md5ThenHex(data))
			fmt.Fprintf(w, "reads\t%d\n", len(reads))
			for _, stream := range []sequence.StreamType{sequence.Acids, sequence.Qualities} {
				a, err := idn.Analyze(ctx, stream, reads, ctxspec.Dummy())
				if err != nil {
					return err
				}
				m := a.Histograms.Marginal()
				fmt.Fprintf(w, "\n%s\t%d symbols\t%.4f bits/symbol\n", stream, m.Total, m.Entropy())
				p := m.Distribution()
				for sym, c := range m.Counts {
					if c > 0 {
						fmt.Fprintf(w, "  %s\t%d\t%.4f\n", symbolName(stream, sym), c, p[sym])
					}
				}
				for _, s := range specs {
					a, err := idn.Analyze(ctx, stream, reads, s)
					if err != nil {
						return err
					}
					fmt.Fprintf(w, "  %s\t%d contexts\t%.4f bits/symbol\n", s, a.Histograms.Len(), a.Histograms.Rate())
				}
			}
			return w.Flush()
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("in", "i", "", "FASTQ input, - for stdin")
	pf.StringSlice("spec", []string{defaultAcidSpec, defaultQualitySpec}, "context specs to report rates for")
	return cmd
}

func symbolName(stream sequence.StreamType, sym int) string {
	if stream == sequence.Acids {
		return sequence.Acid(sym).String()
	}
	return fmt.Sprintf("Q%d", sym)
}
