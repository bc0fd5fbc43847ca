package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const defaultDBFile = "pokeatlas.db"

var (
	flagDBPath  string
	flagBrowser bool

	flagScrapeMode   string
	flagScrapeStart  int
	flagScrapeEnd    int
	flagScrapeForce  bool
	flagScrapeDryRun bool

	flagCrawlStart      int
	flagCrawlEnd        int
	flagCrawlFresh      bool
	flagCrawlDryRun     bool
	flagCrawlBatchSize  int
	flagCrawlCheckpoint string

	flagSeedFile     string
	flagEvictMaxDays int
	flagTriageLimit  int
)

var rootCmd = &cobra.Command{
	Use:   "pokeatlas",
	Short: "pokeatlas scrapes species and location encounter data from Bulbapedia into SQLite.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env file is fine; env vars may come from anywhere.
		if err := godotenv.Load(); err == nil {
			log.Println("[I] Loaded configuration from .env file.")
		}
		if _, err := initDB(flagDBPath); err != nil {
			return fmt.Errorf("failed to initialize database %s: %w", flagDBPath, err)
		}
		return nil
	},
}

func buildFetchClient() *FetchClient {
	baseURL := os.Getenv("POKEATLAS_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	var transport fetchTransport
	if flagBrowser {
		log.Println("[I] Using headless browser transport.")
		transport = newBrowserTransport()
	} else {
		transport = newHTTPTransport()
	}
	return newFetchClient(transport, baseURL)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Runs one scraping batch: full pipeline, species discovery only, or location pages only.",
	RunE: func(cmd *cobra.Command, args []string) error {
		switch flagScrapeMode {
		case modeFull, modePokemonOnly, modeRoutesOnly:
		default:
			return fmt.Errorf("invalid --mode %q (want %s, %s or %s)",
				flagScrapeMode, modeFull, modePokemonOnly, modeRoutesOnly)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		result, err := runScrape(ctx, buildFetchClient(), ScrapeOptions{
			Mode:    flagScrapeMode,
			StartID: flagScrapeStart,
			EndID:   flagScrapeEnd,
			Force:   flagScrapeForce,
			DryRun:  flagScrapeDryRun,
		})
		reportBatchResult(result)
		return err
	},
}

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Runs a resumable long crawl over a species range, checkpointing progress to disk.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		notifier := newCrawlNotifier()
		defer notifier.close()

		err := runCrawl(ctx, buildFetchClient(), CrawlOptions{
			StartID:   flagCrawlStart,
			EndID:     flagCrawlEnd,
			Fresh:     flagCrawlFresh,
			DryRun:    flagCrawlDryRun,
			BatchSize: flagCrawlBatchSize,
			Store:     newFileCheckpointStore(flagCrawlCheckpoint),
			Notifier:  notifier,
		})
		if err != nil {
			log.Printf("[E] [Crawl] %v", err)
		}
		return err
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Imports the species list from a JSON pokedex file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := seedPokedex(flagSeedFile)
		if err != nil {
			return err
		}
		fmt.Printf("Seeded %d species from %s.\n", n, flagSeedFile)
		return nil
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspects and maintains the scrape cache.",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints cache entry counts by status.",
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := cacheStats()
		if err != nil {
			return err
		}
		fmt.Printf("Cache entries: %d total\n", stats.Total)
		fmt.Printf("  complete: %d\n", stats.Complete)
		fmt.Printf("  partial:  %d\n", stats.Partial)
		fmt.Printf("  failed:   %d\n", stats.Failed)
		fmt.Printf("Last cache write: %s\n", GetLastCacheWriteTime())
		return nil
	},
}

var cacheEvictCmd = &cobra.Command{
	Use:   "evict",
	Short: "Deletes cache entries older than the staleness window.",
	RunE: func(cmd *cobra.Command, args []string) error {
		maxAge := time.Duration(flagEvictMaxDays) * 24 * time.Hour
		n, err := evictStaleCache(maxAge)
		if err != nil {
			return err
		}
		fmt.Printf("Evicted %d stale cache entries (older than %d days).\n", n, flagEvictMaxDays)
		return nil
	},
}

var triageCmd = &cobra.Command{
	Use:   "triage",
	Short: "Asks Gemini whether pages behind partial cache entries hide missed encounter tables. Read-only.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runTriage(ctx, buildFetchClient(), flagTriageLimit)
	},
}

var encountersCmd = &cobra.Command{
	Use:   "encounters",
	Short: "One-off maintenance over the encounters table.",
}

var encountersSplitCmd = &cobra.Command{
	Use:   "split",
	Short: "Splits legacy rows whose location text names several places into one row per place.",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := splitEncounterRows()
		if err != nil {
			return err
		}
		fmt.Printf("Split %d combined encounter rows.\n", n)
		return nil
	},
}

var encountersDedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Removes rows duplicating (pokemon, game, location text), keeping the one with a resolved location.",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := dedupeLegacyEncounters()
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d duplicate encounter rows.\n", n)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", defaultDBFile, "Path to the SQLite database file.")
	rootCmd.PersistentFlags().BoolVar(&flagBrowser, "browser", false, "Fetch pages through a headless browser instead of plain HTTP.")

	scrapeCmd.Flags().StringVar(&flagScrapeMode, "mode", modeFull, "Workflow: full, pokemon-only or routes-only.")
	scrapeCmd.Flags().IntVar(&flagScrapeStart, "start", 1, "First national dex number to process.")
	scrapeCmd.Flags().IntVar(&flagScrapeEnd, "end", 1025, "Last national dex number to process.")
	scrapeCmd.Flags().BoolVar(&flagScrapeForce, "force", false, "Re-scrape pages even when freshly cached.")
	scrapeCmd.Flags().BoolVar(&flagScrapeDryRun, "dry-run", false, "Fetch and parse but write nothing.")

	crawlCmd.Flags().IntVar(&flagCrawlStart, "start", 1, "First national dex number to crawl.")
	crawlCmd.Flags().IntVar(&flagCrawlEnd, "end", 1025, "Last national dex number to crawl.")
	crawlCmd.Flags().BoolVar(&flagCrawlFresh, "fresh", false, "Ignore any existing checkpoint and start over.")
	crawlCmd.Flags().BoolVar(&flagCrawlDryRun, "dry-run", false, "Fetch and parse but write nothing.")
	crawlCmd.Flags().IntVar(&flagCrawlBatchSize, "batch-size", defaultCrawlBatchSize, "Checkpoint after this many species.")
	crawlCmd.Flags().StringVar(&flagCrawlCheckpoint, "checkpoint", "crawl_checkpoint.json", "Path to the checkpoint file.")

	seedCmd.Flags().StringVar(&flagSeedFile, "file", "pokedex.json", "Path to the JSON pokedex file.")

	cacheEvictCmd.Flags().IntVar(&flagEvictMaxDays, "max-age-days", 30, "Entries older than this many days are evicted.")
	cacheCmd.AddCommand(cacheStatsCmd, cacheEvictCmd)

	triageCmd.Flags().IntVar(&flagTriageLimit, "limit", 20, "Maximum number of partial pages to triage.")

	encountersCmd.AddCommand(encountersSplitCmd, encountersDedupeCmd)

	rootCmd.AddCommand(scrapeCmd, crawlCmd, seedCmd, cacheCmd, triageCmd, encountersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
