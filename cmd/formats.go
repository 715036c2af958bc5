package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/samogod/blockforge/pkg/render"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List supported output formats",
	Run: func(cmd *cobra.Command, args []string) {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, color.CyanString("FORMAT\tCOMMENT\tEXAMPLE\tFILE"))
		for _, name := range render.Names() {
			f, _ := render.Lookup(name)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				f.Name(),
				f.CommentPrefix(),
				f.Line("example.com"),
				render.FileName("<list>", f),
			)
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}
