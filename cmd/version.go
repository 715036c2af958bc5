package cmd

import (
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const (
	Version   = "0.4.0"
	BuildDate = "2026-10-12"
	Author    = "samogod"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  "Display version, build date, and author information for blockforge",
	Run: func(cmd *cobra.Command, args []string) {
		printVersionInfo()
	},
}

func printVersionInfo() {
	color.Green("Current Version:    %s", Version)
	fmt.Printf("Build Date:         %s\n", BuildDate)
	fmt.Printf("Go Version:         %s\n", runtime.Version())
	fmt.Printf("Author:             %s\n", Author)
	fmt.Println()
}
