package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/samogod/blockforge/pkg/database"
	"github.com/samogod/blockforge/pkg/orchestrator"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	trackStatus string
	trackAll    bool
)

var trackCmd = &cobra.Command{
	Use:   "track [list]",
	Short: "Query list membership tracking database",
	Long:  `Query the tracking database for the domains of one list, or of every list`,
	Run:   runTrack,
}

func init() {
	trackCmd.Flags().StringVar(&trackStatus, "status", "", "filter by status (new, active, removed)")
	trackCmd.Flags().BoolVar(&trackAll, "all", false, "query all lists")
	rootCmd.AddCommand(trackCmd)
}

func runTrack(cmd *cobra.Command, args []string) {
	if !trackAll && len(args) == 0 {
		color.Red("Error: either provide a list name or use --all flag")
		cmd.Help()
		os.Exit(1)
	}

	if trackAll && len(args) > 0 {
		color.Red("Error: cannot use both list name and --all flag together")
		cmd.Help()
		os.Exit(1)
	}

	orch, err := orchestrator.NewOrchestrator(configFile, nil)
	if err != nil {
		color.Red("Failed to initialize orchestrator: %v", err)
		os.Exit(1)
	}
	defer orch.Close()

	db := orch.GetDB()
	if !db.IsEnabled() {
		color.Red("Error: Database is not enabled. Please enable it in config.yaml")
		os.Exit(1)
	}

	if trackStatus != "" {
		trackStatus = strings.ToUpper(trackStatus)
	}

	var records []database.DomainRecord
	if trackAll {
		records, err = db.QueryAllDomains(trackStatus)
	} else {
		records, err = db.QueryDomains(args[0], trackStatus)
	}
	if err != nil {
		color.Red("Failed to query database: %v", err)
		os.Exit(1)
	}

	if len(records) == 0 {
		if trackAll {
			color.Yellow("[INF] No tracked domains found.")
		} else {
			color.Yellow("[INF] List %s not found in database.", args[0])
		}
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, color.CyanString("LIST\tDOMAIN\tSTATUS\tFIRST_SEEN\tLAST_SEEN"))
	fmt.Fprintln(w, strings.Repeat("-", 100))

	for _, r := range records {
		statusColor := color.GreenString
		if r.Status == database.StatusRemoved {
			statusColor = color.RedString
		} else if r.Status == database.StatusNew {
			statusColor = color.YellowString
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.List,
			r.Domain,
			statusColor(r.Status),
			r.FirstSeen.Format("2006-01-02 15:04:05"),
			r.LastSeen.Format("2006-01-02 15:04:05"),
		)
	}
	w.Flush()

	color.Green("\nTotal records: %d", len(records))
}
