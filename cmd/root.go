package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/samogod/blockforge/pkg/cache"
	"github.com/samogod/blockforge/pkg/config"
	"github.com/samogod/blockforge/pkg/database"
	"github.com/samogod/blockforge/pkg/domain"
	"github.com/samogod/blockforge/pkg/logger"
	"github.com/samogod/blockforge/pkg/orchestrator"
	"github.com/samogod/blockforge/pkg/session"
	"github.com/samogod/blockforge/pkg/sources"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configFile string
	listNames  string
	inputs     []string
	listName   string
	listTitle  string
	listDesc   string
	keywords   []string
	ignoreCase bool
	formats    []string
	outputDir  string
	logFile    string
	timezone   string
	field      string
	match      map[string]string
	mergePrev  bool
	allowEmpty bool
	abortOnErr bool
	silent     bool
	stats      bool
	verbose    bool
)

var Verbose bool

var log *logrus.Logger

var rootCmd = &cobra.Command{
	Use:   "blockforge",
	Short: "build curated DNS blocklists",
	Long:  `fetch, normalize and deduplicate domain lists and render them as hosts and adblock blocklists`,
	Run:   runBuild,
}

func Execute() {
	os.Args = append(os.Args[:1], normalizeArgs(os.Args[1:])...)

	hasSilentFlag := false
	for _, arg := range os.Args[1:] {
		if arg == "--silent" {
			hasSilentFlag = true
		}
	}

	if !hasSilentFlag && len(os.Args) == 1 {
		printBanner()
	}

	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

// normalizeArgs accepts -name as well as --name for the long flags of the
// command the arguments resolve to.
func normalizeArgs(args []string) []string {
	target, _, err := rootCmd.Find(args)
	if err != nil || target == nil {
		target = rootCmd
	}

	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = arg
		if arg == "--" {
			copy(out[i:], args[i:])
			break
		}
		if !strings.HasPrefix(arg, "-") || strings.HasPrefix(arg, "--") || len(arg) <= 2 {
			continue
		}
		name, _, _ := strings.Cut(arg[1:], "=")
		if target.Flags().Lookup(name) != nil ||
			target.InheritedFlags().Lookup(name) != nil ||
			rootCmd.PersistentFlags().Lookup(name) != nil {
			out[i] = "-" + arg
		}
	}
	return out
}

func DebugLog(format string, args ...interface{}) {
	if !Verbose {
		return
	}
	if log != nil {
		log.Debugf(format, args...)
		return
	}
	fmt.Fprintf(os.Stderr, "[DBG] "+format+"\n", args...)
}

func setDebugLogFunctions() {
	config.DebugLog = DebugLog
	orchestrator.DebugLog = DebugLog
	session.DebugLog = DebugLog
	sources.DebugLog = DebugLog
	database.DebugLog = DebugLog
	cache.DebugLog = DebugLog
	domain.DebugLog = DebugLog
}

func init() {
	rootCmd.SetHelpTemplate(`Usage:
  {{.UseLine}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}

{{if .HasAvailableSubCommands}}Commands:{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

{{end}}Flags:
CONFIG:
   -c, -config string      config file path (default: blockforge.yaml, config/config.yaml)
   -l, -lists string       comma-separated list names to build (default: all)

AD-HOC LIST (no config file):
   -i, -input strings      input file or URL, repeatable
   -n, -name string        list name (default: blocklist)
   -title string           list title
   -description string     list description
   -field string           domain field of JSON line inputs (default: domain)
   -match key=value        keep JSON records whose field equals value, repeatable

FILTER:
   -k, -keyword strings    keep only domains containing a keyword, repeatable
   -ignore-case            match keywords case-insensitively
   -merge                  merge the previously generated list forward
   -allow-empty            write empty lists instead of failing
   -abort-on-error         fail when any remote source fails

OUTPUT:
   -f, -format strings     output formats (hosts, adblock, plain)
   -o, -output string      output directory
   -log string             run log file
   -tz string              time zone for header timestamps
   -silent                 only print errors
   -stats                  display source statistics after the build

OPTIMIZATION:
   -v, -verbose            enable verbose/debug output, report every rejected token
{{if .HasAvailableSubCommands}}
Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`)

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose/debug output")

	rootCmd.Flags().StringVarP(&listNames, "lists", "l", "", "comma-separated list names to build")
	rootCmd.Flags().StringSliceVarP(&inputs, "input", "i", nil, "input file or URL, repeatable")
	rootCmd.Flags().StringVarP(&listName, "name", "n", "blocklist", "list name for ad-hoc builds")
	rootCmd.Flags().StringVar(&listTitle, "title", "", "list title for ad-hoc builds")
	rootCmd.Flags().StringVar(&listDesc, "description", "", "list description for ad-hoc builds")
	rootCmd.Flags().StringVar(&field, "field", "", "domain field of JSON line inputs")
	rootCmd.Flags().StringToStringVar(&match, "match", nil, "keep JSON records whose field equals value")
	rootCmd.Flags().StringSliceVarP(&keywords, "keyword", "k", nil, "keep only domains containing a keyword")
	rootCmd.Flags().BoolVar(&ignoreCase, "ignore-case", false, "match keywords case-insensitively")
	rootCmd.Flags().BoolVar(&mergePrev, "merge", false, "merge the previously generated list forward")
	rootCmd.Flags().BoolVar(&allowEmpty, "allow-empty", false, "write empty lists instead of failing")
	rootCmd.Flags().BoolVar(&abortOnErr, "abort-on-error", false, "fail when any remote source fails")
	rootCmd.Flags().StringSliceVarP(&formats, "format", "f", nil, "output formats")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory")
	rootCmd.Flags().StringVar(&logFile, "log", "", "run log file")
	rootCmd.Flags().StringVar(&timezone, "tz", "", "time zone for header timestamps")
	rootCmd.Flags().BoolVar(&silent, "silent", false, "only print errors")
	rootCmd.Flags().BoolVar(&stats, "stats", false, "display source statistics after the build")

	rootCmd.AddCommand(versionCmd)
}

func runBuild(cmd *cobra.Command, args []string) {
	Verbose = verbose
	if verbose {
		setDebugLogFunctions()
	}

	cfg, err := loadBuildConfig(cmd)
	if err != nil {
		color.Red("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	var closeLog func() error
	log, closeLog, err = logger.New(logger.Options{
		LogFile: cfg.DefaultSettings.LogFile,
		Verbose: verbose,
		Silent:  silent,
	})
	if err != nil {
		color.Yellow("Run log disabled: %v", err)
	}
	defer closeLog()

	lists, err := cfg.SelectLists(listNames)
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
	if len(lists) == 0 {
		log.Errorf("no lists configured")
		os.Exit(1)
	}

	orch, err := orchestrator.New(cfg, log)
	if err != nil {
		log.Errorf("Failed to initialize orchestrator: %v", err)
		os.Exit(1)
	}
	defer orch.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, buildErr := orch.BuildAll(ctx, lists)
	for _, result := range results {
		if !silent {
			color.Green("Built %s: %d unique domains in %v", result.List, result.TotalDomains, result.Duration.Round(time.Millisecond))
		}

		if stats && !silent {
			displayStatistics(result)
		}
	}

	if buildErr != nil {
		orch.Close()
		closeLog()
		os.Exit(1)
	}
}

// loadBuildConfig reads the config file, or builds a single list from the
// ad-hoc flags when inputs are given, then applies flag overrides.
func loadBuildConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config

	if len(inputs) > 0 {
		cfg = config.Default()
		cfg.Lists = []config.ListConfig{adHocList()}
	} else {
		manager := config.NewManager(configFile)
		if err := manager.LoadConfig(); err != nil {
			return nil, err
		}
		cfg = manager.GetConfig()
	}

	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.DefaultSettings.OutputDir = outputDir
	}
	if flags.Changed("log") {
		cfg.DefaultSettings.LogFile = logFile
	}
	if flags.Changed("tz") {
		cfg.DefaultSettings.Timezone = timezone
	}

	for i := range cfg.Lists {
		l := &cfg.Lists[i]
		if flags.Changed("format") {
			l.Formats = append([]string(nil), formats...)
		}
		if flags.Changed("keyword") {
			l.Keywords = append([]string(nil), keywords...)
		}
		if flags.Changed("ignore-case") {
			l.KeywordsIgnoreCase = ignoreCase
		}
		if flags.Changed("merge") {
			l.MergePrevious = mergePrev
		}
		if flags.Changed("allow-empty") {
			l.AllowEmpty = allowEmpty
		}
		if flags.Changed("abort-on-error") && abortOnErr {
			l.OnSourceFailure = config.PolicyAbort
		}
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func adHocList() config.ListConfig {
	l := config.ListConfig{
		Name:        listName,
		Title:       listTitle,
		Description: listDesc,
	}

	for _, in := range inputs {
		sc := config.SourceConfig{Field: field, Match: match}
		lower := strings.ToLower(in)
		switch {
		case strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://"):
			sc.URL = in
		case strings.HasSuffix(lower, ".jsonl") || strings.HasSuffix(lower, ".json"):
			sc.Path = in
			sc.Format = config.SourceJSONL
		default:
			sc.Path = in
		}
		sc.Name = sourceName(in)
		l.Sources = append(l.Sources, sc)
	}

	return l
}

func sourceName(location string) string {
	name := location
	if i := strings.Index(name, "://"); i >= 0 {
		name = name[i+3:]
		if j := strings.IndexByte(name, '/'); j >= 0 {
			return name[:j]
		}
		return name
	}
	return filepath.Base(name)
}

func printBanner() {
	banner := color.CyanString(`
┌┐ ┬  ┌─┐┌─┐┬┌─┌─┐┌─┐┬─┐┌─┐┌─┐
├┴┐│  │ ││  ├┴┐├┤ │ │├┬┘│ ┬├┤
└─┘┴─┘└─┘└─┘┴ ┴└  └─┘┴└─└─┘└─┘
`)
	info := color.HiBlackString("curated DNS blocklists: hosts, adblock and plain formats")
	fmt.Fprintln(os.Stderr, banner)
	fmt.Fprintln(os.Stderr, info)
	fmt.Fprintln(os.Stderr)
}

func displayStatistics(result *orchestrator.BuildResult) {
	fmt.Println()

	color.Green("[INF] %s: %d unique domains (%d merged from previous list) in %v",
		result.List, result.TotalDomains, result.Previous, result.Duration)
	fmt.Println()

	color.Cyan("[INF] Printing source statistics for %s", result.List)
	fmt.Println()

	fmt.Printf(" %-24s %-12s %-10s %-10s %-10s %-10s %-8s\n",
		"Source", "Duration", "Records", "Accepted", "Rejected", "Filtered", "Status")
	color.Cyan(strings.Repeat("─", 92))

	stats := append([]orchestrator.SourceStat(nil), result.SourceStats...)
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Name < stats[j].Name
	})

	for _, stat := range stats {
		duration := fmt.Sprintf("%.0fms", stat.Duration.Seconds()*1000)
		if stat.Duration.Seconds() >= 1 {
			duration = fmt.Sprintf("%.3fs", stat.Duration.Seconds())
		}

		status := color.GreenString("ok")
		if stat.Skipped {
			status = color.RedString("skipped")
		}

		fmt.Printf(" %-24s %-12s %-10d %-10d %-10d %-10d %-8s\n",
			truncate(stat.Name, 24),
			duration,
			stat.Records,
			stat.Accepted,
			stat.Rejected,
			stat.Filtered,
			status,
		)
	}

	if len(result.Outputs) > 0 {
		fmt.Println()
		for _, out := range result.Outputs {
			fmt.Printf(" %-8s %s\n", out.Format, out.Path)
		}
	}

	if result.Tracked != nil {
		fmt.Println()
		color.Cyan("[INF] Tracking: %d new, %d active, %d removed",
			result.Tracked.New, result.Tracked.Active, result.Tracked.Removed)
	}

	fmt.Println()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
