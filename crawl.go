package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"
)

const defaultCrawlBatchSize = 10

// checkpointStore persists crawl progress between (and across) runs.
// The crawl loop owns its CrawlProgress value and only talks to storage
// through this interface, so tests can substitute their own.
type checkpointStore interface {
	load() (*CrawlProgress, error)
	save(*CrawlProgress) error
}

// fileCheckpointStore keeps the checkpoint in one JSON file, written
// atomically (temp file + rename) so a crash mid-write can never leave
// a truncated checkpoint behind.
type fileCheckpointStore struct {
	path string
}

func newFileCheckpointStore(path string) *fileCheckpointStore {
	return &fileCheckpointStore{path: path}
}

func (s *fileCheckpointStore) load() (*CrawlProgress, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint %s: %w", s.path, err)
	}
	var progress CrawlProgress
	if err := json.Unmarshal(data, &progress); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint %s: %w", s.path, err)
	}
	return &progress, nil
}

func (s *fileCheckpointStore) save(progress *CrawlProgress) error {
	progress.Timestamp = time.Now().Format(time.RFC3339)
	data, err := json.MarshalIndent(progress, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}
	return nil
}

// FatalCrawlError halts the whole run and carries everything the
// operator needs to inspect the failure and resume: the failing
// resource, its source URL and a literal resume command.
type FatalCrawlError struct {
	Resource      string
	SourceURL     string
	ResumeCommand string
	Err           error
}

func (e *FatalCrawlError) Error() string {
	return fmt.Sprintf("fatal failure on %s: %v\n  source: %s\n  resume with: %s",
		e.Resource, e.Err, e.SourceURL, e.ResumeCommand)
}

func (e *FatalCrawlError) Unwrap() error { return e.Err }

// CrawlOptions configures one resumable crawl.
type CrawlOptions struct {
	StartID   int
	EndID     int
	Fresh     bool
	DryRun    bool
	BatchSize int
	Store     checkpointStore
	Notifier  *crawlNotifier
}

// runCrawl is the long-running variant of the full workflow: species
// discovery feeding route scraping over a bounded id range, with
// checkpointing every batch, escalating retries on transient failures,
// and a hard halt on the first fatal one. Systemic blocking should
// surface as a loud stop with a resume point, never as a silently
// all-failed run.
//
// Returning nil means either full completion or a clean stop on a
// termination signal (checkpoint flushed, exit zero); a *FatalCrawlError
// means the run halted and must be resumed.
func runCrawl(ctx context.Context, client *FetchClient, opts CrawlOptions) error {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultCrawlBatchSize
	}

	progress := &CrawlProgress{}
	if !opts.Fresh {
		loaded, err := opts.Store.load()
		if err != nil {
			return err
		}
		if loaded != nil {
			progress = loaded
			log.Printf("[I] [Crawl] Resuming after #%d %s (%d processed, %d added so far).",
				progress.LastProcessedID, progress.LastProcessedName, progress.TotalProcessed, progress.TotalAdded)
		}
	}

	startID := opts.StartID
	if progress.LastProcessedID >= startID {
		startID = progress.LastProcessedID + 1
	}

	pokemon, err := loadPokemonRange(startID, opts.EndID)
	if err != nil {
		return err
	}
	dex, err := loadPokemonIndex()
	if err != nil {
		return err
	}

	log.Printf("[I] [Crawl] Crawling %d species, range [%d,%d], batch size %d, dry-run=%v.",
		len(pokemon), startID, opts.EndID, opts.BatchSize, opts.DryRun)
	opts.Notifier.crawlStarted(startID, opts.EndID, len(pokemon))

	flush := func() {
		if opts.DryRun {
			return
		}
		if err := opts.Store.save(progress); err != nil {
			log.Printf("[E] [Crawl] Failed to save checkpoint: %v", err)
		}
	}

	sinceFlush := 0
	for _, p := range pokemon {
		// Cooperative cancellation: a termination signal lands between
		// items, flushes, and exits clean.
		if ctx.Err() != nil {
			log.Printf("[I] [Crawl] Termination signal received, flushing checkpoint and stopping.")
			flush()
			return nil
		}

		added, err := crawlOneSpecies(ctx, client, p, dex, opts, progress)
		if err != nil {
			if ctx.Err() != nil {
				flush()
				return nil
			}
			// First fatal failure halts the entire run. Flush so the
			// checkpoint points at the last fully persisted item.
			flush()
			fatal := &FatalCrawlError{
				Resource:      fmt.Sprintf("#%d %s", p.ID, p.Name),
				SourceURL:     client.pageURL(speciesPageTitle(p.Name)),
				ResumeCommand: fmt.Sprintf("pokeatlas crawl --start %d --end %d", p.ID, opts.EndID),
				Err:           err,
			}
			opts.Notifier.crawlHalted(fatal)
			return fatal
		}

		progress.LastProcessedID = p.ID
		progress.LastProcessedName = p.Name
		progress.TotalProcessed++
		progress.TotalAdded += added

		sinceFlush++
		if sinceFlush >= opts.BatchSize {
			flush()
			sinceFlush = 0
		}
	}

	flush()
	log.Printf("[I] [Crawl] Run complete: %d species processed, %d encounters added.",
		progress.TotalProcessed, progress.TotalAdded)
	opts.Notifier.crawlFinished(progress)
	return nil
}

// crawlOneSpecies runs discovery plus route scraping for one species
// and reports how many encounters were added. Per-item transient
// failures retry on the shared backoff schedule; what escapes here is
// fatal to the run.
func crawlOneSpecies(ctx context.Context, client *FetchClient, p Pokemon, dex map[string]int, opts CrawlOptions, progress *CrawlProgress) (int, error) {
	var locations []Location
	err := retryTransient(ctx, func() error {
		var scrapeErr error
		locations, scrapeErr = scrapePokemonLocations(ctx, client, p, opts.DryRun)
		return scrapeErr
	})
	if err != nil {
		return 0, err
	}

	added := 0
	for _, loc := range locations {
		var res RouteScrapeResult
		err := retryTransient(ctx, func() error {
			var scrapeErr error
			res, scrapeErr = scrapeRoute(ctx, client, loc, dex, false, opts.DryRun)
			return scrapeErr
		})
		if err != nil {
			return added, err
		}
		if res.Status == statusFailed {
			// A dead location link is a recorded per-item anomaly, not
			// a systemic condition worth halting over.
			progress.Errors = append(progress.Errors,
				fmt.Sprintf("#%d %s: location %s page missing", p.ID, p.Name, loc.ID))
		}
		added += res.Inserted
	}
	return added, nil
}
