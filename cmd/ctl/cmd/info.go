package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/jpfielding/idencomp.go/pkg/idn"
	"github.com/jpfielding/idencomp.go/pkg/util"
	"github.com/spf13/cobra"
)

// NewInfoCmd prints the headers of an archive.
func NewInfoCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info [archive]",
		Short: "describe an archive",
		Long:  "Prints the identifier, context spec, bins and blocks of both streams of an archive.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arc, err := readArchive(cmd, inputArg(cmd, args))
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, c := range []*idn.Container{arc.Acids, arc.Qualities} {
				writeContainerInfo(w, c)
			}
			return w.Flush()
		},
	}
	cmd.PersistentFlags().StringP("in", "i", "", "archive input, - for stdin")
	return cmd
}

func writeContainerInfo(w io.Writer, c *idn.Container) {
	fmt.Fprintf(w, "stream\t%s\n", c.Stream)
	fmt.Fprintf(w, "id\t%s\n", c.ID)
	fmt.Fprintf(w, "spec\t%s\n", c.Spec)
	fmt.Fprintf(w, "coder\tscale %d bits, lower bound %d\n", c.Coder.ScaleBits, c.Coder.LowerBound)
	fmt.Fprintf(w, "metadata\t%s\n", c.Codec)
	fmt.Fprintf(w, "reads\t%d\n", len(c.ReadLengths))
	fmt.Fprintf(w, "symbols\t%d\n", c.Symbols())
	fmt.Fprintf(w, "contexts\t%d\n", len(c.Assign))
	fmt.Fprintf(w, "bins\t%d\n", c.Bins())
	fmt.Fprintf(w, "blocks\t%d\n", len(c.Blocks))
	fmt.Fprintf(w, "payload\t%d bytes\n", len(c.Payload))
	if n := c.Symbols(); n > 0 {
		fmt.Fprintf(w, "rate\t%.4f bits/symbol\n", float64(8*len(c.Payload))/float64(n))
	}
	fmt.Fprintf(w, "payload md5\t%s\n", util.Md5ThenHex(c.Payload))
	fmt.Fprintln(w)
}
