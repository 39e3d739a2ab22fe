package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jpfielding/idencomp.go/pkg/ctxspec"
	"github.com/jpfielding/idencomp.go/pkg/idn"
	"github.com/jpfielding/idencomp.go/pkg/sequence"
	"github.com/spf13/cobra"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// NewBinCurveCmd reports how the binned rate falls as bins are added.
func NewBinCurveCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bin-curve [fastq]",
		Short: "binned rate against bin count",
		Long:  "Bins one stream of a FASTQ file at every --bins count and writes the resulting rates as csv, optionally plotted to --png.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			streamName, _ := cmd.Flags().GetString("stream")
			stream, err := sequence.ParseStreamType(streamName)
			if err != nil {
				return err
			}
			specName, _ := cmd.Flags().GetString("spec")
			spec, err := ctxspec.Parse(specName)
			if err != nil {
				return err
			}
			ks, _ := cmd.Flags().GetIntSlice("bins")
			_, reads, err := readFASTQ(cmd, inputArg(cmd, args))
			if err != nil {
				return err
			}
			a, err := idn.Analyze(ctx, stream, reads, spec)
			if err != nil {
				return err
			}
			opts := idn.DefaultOptions()
			opts.MaxIterations, _ = cmd.Flags().GetInt("iterations")
			pts, err := a.BinCurve(ctx, ks, opts)
			if err != nil {
				return err
			}
			slog.InfoContext(ctx, "binned", "stream", stream, "spec", spec, "contexts", a.Histograms.Len(), "rate", a.Histograms.Rate())

			outPath, _ := cmd.Flags().GetString("out")
			out, err := openOut(cmd, outPath)
			if err != nil {
				return err
			}
			cw := csv.NewWriter(out)
			cw.Write([]string{"bins", "used_bins", "binned_rate"})
			for _, p := range pts {
				cw.Write([]string{strconv.Itoa(p.Bins), strconv.Itoa(p.UsedBins), strconv.FormatFloat(p.BinnedRate, 'f', 6, 64)})
			}
			cw.Flush()
			err = cw.Error()
			if cerr := out.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return fmt.Errorf("failed to write csv: %w", err)
			}
			if png, _ := cmd.Flags().GetString("png"); png != "" {
				return plotCurve(png, fmt.Sprintf("%s %s", stream, spec), a.Histograms.Rate(), pts)
			}
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("in", "i", "", "FASTQ input, - for stdin")
	pf.StringP("out", "o", "", "csv output, stdout when empty")
	pf.String("png", "", "also plot the curve to this image")
	pf.String("stream", sequence.Qualities.String(), "stream to bin (acids|qualities)")
	pf.String("spec", defaultQualitySpec, "context spec of the stream")
	pf.IntSlice("bins", []int{1, 2, 4, 8, 16, 32, 64, 128, 256}, "bin counts to try")
	pf.Int("iterations", idn.DefaultOptions().MaxIterations, "maximum clustering iterations")
	return cmd
}

// plotCurve draws the binned rates with the unbinned rate as a floor.
func plotCurve(path, title string, rate float64, pts []idn.CurvePoint) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "bins"
	p.Y.Label.Text = "bits/symbol"
	p.X.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{}

	curve := make(plotter.XYs, len(pts))
	floor := make(plotter.XYs, len(pts))
	for i, pt := range pts {
		curve[i].X, curve[i].Y = float64(pt.Bins), pt.BinnedRate
		floor[i].X, floor[i].Y = float64(pt.Bins), rate
	}
	line, points, err := plotter.NewLinePoints(curve)
	if err != nil {
		return err
	}
	base, err := plotter.NewLine(floor)
	if err != nil {
		return err
	}
	base.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(line, points, base)
	p.Legend.Add("binned", line, points)
	p.Legend.Add("unbinned", base)
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}
