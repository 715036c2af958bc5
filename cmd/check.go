package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/samogod/blockforge/pkg/domain"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var checkQuiet bool

var checkCmd = &cobra.Command{
	Use:   "check [token...]",
	Short: "Show how raw lines are extracted and validated",
	Long: `Run raw lines through the extractor and validator and print the result.
Lines are read from the arguments, or from stdin when none are given.`,
	Example: `  blockforge check "0.0.0.0 ads.example.com" "||tracker.example^"
  cat hosts.txt | blockforge check -q`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVarP(&checkQuiet, "quiet", "q", false, "print only accepted domains")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	ext := domain.NewExtractor()
	out := cmd.OutOrStdout()

	var accepted, rejected, skipped int
	check := func(line string) {
		token, ok := ext.Extract(domain.Record{Text: line})
		if !ok {
			skipped++
			if !checkQuiet {
				fmt.Fprintf(out, "%s %q\n", color.HiBlackString("[SKIP]"), line)
			}
			return
		}

		d, err := domain.Validate(token)
		if err != nil {
			rejected++
			if !checkQuiet {
				var re *domain.RejectError
				reason := err.Error()
				if errors.As(err, &re) {
					reason = re.Reason
				}
				fmt.Fprintf(out, "%s %s (%s)\n", color.RedString("[REJ]"), token, reason)
			}
			return
		}

		accepted++
		// show the entry as it lands in the list
		d = strings.ToLower(d)
		if checkQuiet {
			fmt.Fprintln(out, d)
			return
		}
		fmt.Fprintf(out, "%s %s\n", color.GreenString("[OK] "), d)
	}

	if len(args) > 0 {
		for _, a := range args {
			check(a)
		}
	} else if err := scanLines(cmd.InOrStdin(), check); err != nil {
		return err
	}

	if !checkQuiet {
		fmt.Fprintln(out)
		color.New(color.FgCyan).Fprintf(out, "[INF] %d accepted, %d rejected, %d skipped\n", accepted, rejected, skipped)
	}
	return nil
}

func scanLines(r io.Reader, fn func(string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		fn(scanner.Text())
	}
	return scanner.Err()
}
