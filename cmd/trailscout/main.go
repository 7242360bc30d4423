package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/KalinMeier/TrailScout/internal/config"
	"github.com/KalinMeier/TrailScout/internal/database"
	"github.com/KalinMeier/TrailScout/internal/fetch"
	"github.com/KalinMeier/TrailScout/internal/ingest"
	"github.com/KalinMeier/TrailScout/internal/logging"
	"github.com/KalinMeier/TrailScout/internal/pipeline"
	"github.com/KalinMeier/TrailScout/internal/recommend"
	"github.com/KalinMeier/TrailScout/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "trailscout",
	Short:   "Content-based hiking trail recommendations",
	Long:    "TrailScout imports scraped trail records, models their text into topics, and recommends similar trails from a seed trail or your liked trails.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		logging.Setup(level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(topicsCmd)
	rootCmd.AddCommand(recommendCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("trailscout", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/trailscout/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to set the dataset path and model parameters.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and model status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		table := newTable()
		table.SetHeader([]string{"", "Count"})
		table.Append([]string{"Trails stored", strconv.Itoa(stats.TotalTrails)})
		table.Append([]string{"Missing descriptions", strconv.Itoa(stats.MissingDescriptions)})
		table.Append([]string{"Liked trails", strconv.Itoa(stats.Likes)})
		table.Append([]string{"Model runs", strconv.Itoa(stats.Runs)})
		table.Render()

		run, err := db.GetLatestRun()
		if err != nil {
			return err
		}
		if run == nil {
			fmt.Println("\nNo model run recorded. Build one with 'trailscout run'.")
			return nil
		}
		fmt.Printf("\nLatest run: %s (%s)\n", run.ID, deref(run.CreatedAt))
		fmt.Printf("  %d trails, %d topics, %d dropped in fusion\n",
			run.TrailCount, run.TopicCount, run.DroppedCount)
		fmt.Printf("  Bundle: %s\n", run.BundlePath)
		return nil
	},
}

// --- import command ---

var importCmd = &cobra.Command{
	Use:   "import [dataset.json]",
	Short: "Import a scraped trail dataset into the store",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Dataset
		if len(args) > 0 {
			path = args[0]
		}
		if path == "" {
			return errors.New("no dataset given; pass a path or set 'dataset' in the config")
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Printf("Importing %s...\n", path)
		result, err := ingest.New(db).ImportFile(path)
		if err != nil {
			return err
		}

		fmt.Println("\nImport complete:")
		fmt.Printf("  Records found: %d\n", result.Found)
		fmt.Printf("  Imported: %d\n", result.Imported)
		fmt.Printf("  Duplicates skipped: %d\n", result.Duplicates)
		fmt.Printf("  Malformed skipped: %d\n", result.Malformed)
		if result.DroppedReviews > 0 {
			fmt.Printf("  Review entries dropped: %d\n", result.DroppedReviews)
		}
		return nil
	},
}

// --- fetch command ---

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch missing trail descriptions from their pages",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		fetcher := fetch.NewDescriptionFetcher(db, cfg.Fetch.Timeout())
		result := fetcher.FetchMissingDescriptions(cfg.Fetch.Limit)

		fmt.Println("Fetch complete:")
		fmt.Printf("  Descriptions fetched: %d\n", result.Fetched)
		fmt.Printf("  Failed: %d\n", result.Failed)
		return nil
	},
}

// --- run command ---

var dryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: corpus -> vectorize -> topics -> fuse -> similarity",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe := pipeline.New(cfg, db)

		var result *pipeline.Result
		if dryRun {
			result = pipe.DryRun()
		} else {
			result = pipe.Run()
		}

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/7: %s\n", i+1, step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		if err := result.Failed(); err != nil {
			return fmt.Errorf("pipeline failed: %w", err)
		}
		if !dryRun {
			fmt.Println("\nPipeline complete! Run 'trailscout recommend <trail>' or 'trailscout serve'.")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
}

// --- topics command ---

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "Show the latest run's topics and their top terms",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		run, err := db.GetLatestRun()
		if err != nil {
			return err
		}
		if run == nil {
			return errors.New("no model run recorded; build one with 'trailscout run'")
		}

		fmt.Printf("Run %s (%s), %d trails\n\n", run.ID, deref(run.CreatedAt), run.TrailCount)
		table := newTable()
		table.SetHeader([]string{"Topic", "Top terms", "Trails"})
		for _, t := range run.Topics {
			table.Append([]string{t.Label, strings.Join(t.Terms, ", "), strconv.Itoa(t.TrailCount)})
		}
		table.Render()
		return nil
	},
}

// --- recommend command ---

var (
	likedNames []string
	recCount   int
	excludeTag string
)

var recommendCmd = &cobra.Command{
	Use:   "recommend [trail name]",
	Short: "Recommend trails similar to a seed trail or to your liked trails",
	Long: `Recommend trails from the latest model run.

With a trail name argument, ranks all other trails by similarity to it.
With --liked flags, builds a profile from those trails and ranks against it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && len(likedNames) == 0 {
			return errors.New("pass a trail name or at least one --liked flag")
		}
		if len(args) > 0 && len(likedNames) > 0 {
			return errors.New("pass either a trail name or --liked flags, not both")
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		run, err := db.GetLatestRun()
		if err != nil {
			return err
		}
		if run == nil {
			return errors.New("no model run recorded; build one with 'trailscout run'")
		}
		bundle, err := pipeline.LoadBundle(run.BundlePath)
		if err != nil {
			return err
		}
		engine, err := bundle.Engine()
		if err != nil {
			return err
		}

		// With a tag filter the query takes every ranked trail, filters,
		// then truncates, so the filter never shrinks the result below count.
		n := recCount
		if excludeTag != "" {
			n = engine.Len()
		}

		var recs []recommend.Recommendation
		if len(args) > 0 {
			recs, err = engine.FromSeed(args[0], n)
		} else {
			recs, err = engine.FromProfile(likedNames, n)
		}
		if err != nil {
			return err
		}

		if excludeTag != "" {
			recs = dropTagged(recs, bundle.TagIndex(), excludeTag)
			if len(recs) > recCount {
				recs = recs[:recCount]
			}
		}

		if len(recs) == 0 {
			fmt.Println("No recommendations.")
			return nil
		}
		table := newTable()
		table.SetHeader([]string{"#", "Trail", "Score", "URL"})
		for i, r := range recs {
			table.Append([]string{strconv.Itoa(i + 1), r.Name, fmt.Sprintf("%.3f", r.Score), r.URL})
		}
		table.Render()
		return nil
	},
}

func init() {
	recommendCmd.Flags().StringArrayVar(&likedNames, "liked", nil, "Liked trail name (repeatable)")
	recommendCmd.Flags().IntVarP(&recCount, "count", "n", 5, "Number of recommendations")
	recommendCmd.Flags().StringVar(&excludeTag, "exclude-tag", "", "Drop trails whose tags contain this text")
}

// dropTagged removes recommendations whose trail tags contain the given
// text, case-insensitively.
func dropTagged(recs []recommend.Recommendation, tags map[string]string, tag string) []recommend.Recommendation {
	needle := strings.ToLower(tag)
	out := recs[:0]
	for _, r := range recs {
		if strings.Contains(strings.ToLower(tags[r.Name]), needle) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(cfg.DBPath())
}

func newTable() *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("  ")
	return table
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
