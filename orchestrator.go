package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"
)

// Workflow selectors. Full runs the two-phase crawl; pokemon-only
// front-loads location discovery cheaply; routes-only drains the
// backlog of not-yet-cached locations, which is the normal steady-state
// workflow once the location catalog is populated.
const (
	modeFull        = "full"
	modePokemonOnly = "pokemon-only"
	modeRoutesOnly  = "routes-only"
)

// maxBatchErrors caps how many (location, error) pairs a BatchResult
// keeps; the counters keep counting past it.
const maxBatchErrors = 25

// ScrapeOptions configures one orchestrated batch.
type ScrapeOptions struct {
	Mode    string
	StartID int
	EndID   int
	Force   bool
	DryRun  bool
	// Progress, when set, is called once per processed item.
	Progress func(current, total int, label, status string)
}

func (r *BatchResult) recordError(location string, err error) {
	r.Failed++
	if len(r.Errors) < maxBatchErrors {
		r.Errors = append(r.Errors, BatchError{Location: location, Err: err.Error()})
	}
}

func (r *BatchResult) recordStatus(status string) {
	switch status {
	case statusSkipped:
		r.Skipped++
	case statusPartial:
		r.Partial++
	case statusFailed:
		r.Failed++
	default:
		r.Success++
	}
}

func loadPokemonRange(startID, endID int) ([]Pokemon, error) {
	rows, err := db.Query(
		"SELECT id, name, generation, COALESCE(sprite_url, '') FROM pokemon WHERE id BETWEEN ? AND ? ORDER BY id ASC",
		startID, endID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pokemon range [%d,%d]: %w", startID, endID, err)
	}
	defer rows.Close()

	var list []Pokemon
	for rows.Next() {
		var p Pokemon
		if err := rows.Scan(&p.ID, &p.Name, &p.Generation, &p.SpriteURL); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func loadAllLocations() ([]Location, error) {
	rows, err := db.Query(`
		SELECT id, name, region, location_type, COALESCE(bulbapedia_page, ''), generation, scrape_status
		FROM locations ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	defer rows.Close()

	var list []Location
	for rows.Next() {
		var loc Location
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.Region, &loc.LocationType, &loc.BulbapediaPage, &loc.Generation, &loc.ScrapeStatus); err != nil {
			return nil, err
		}
		list = append(list, loc)
	}
	return list, rows.Err()
}

// retryTransient runs fn, sleeping through the shared backoff schedule
// on transient failures. Any other error, or an exhausted schedule,
// comes back to the caller.
func retryTransient(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, errTransient) {
			return err
		}
		if attempt >= len(backoffSchedule) {
			return fmt.Errorf("retry schedule exhausted: %w", err)
		}
		wait := backoffSchedule[attempt]
		log.Printf("[W] [Orchestrator] Transient failure (attempt %d/%d), backing off %s: %v",
			attempt+1, len(backoffSchedule), wait, err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// runScrape executes one of the three workflows over the configured
// identifier range, strictly in ascending order, one item at a time.
// Individual failures are tallied and the batch moves on; halting the
// whole run on first error is the resumable crawl driver's policy, not
// this one's.
func runScrape(ctx context.Context, client *FetchClient, opts ScrapeOptions) (BatchResult, error) {
	var result BatchResult

	dex, err := loadPokemonIndex()
	if err != nil {
		return result, err
	}

	if opts.Mode == modeFull || opts.Mode == modePokemonOnly {
		pokemon, err := loadPokemonRange(opts.StartID, opts.EndID)
		if err != nil {
			return result, err
		}
		log.Printf("[I] [Orchestrator] %s: %d species in range [%d,%d].", opts.Mode, len(pokemon), opts.StartID, opts.EndID)

		for i, p := range pokemon {
			if err := ctx.Err(); err != nil {
				return result, err
			}

			key := cacheKey(cacheKindPokemon, strconv.Itoa(p.ID))
			if !opts.Force && isCached(key, defaultCacheMaxAge) {
				result.Skipped++
				if opts.Progress != nil {
					opts.Progress(i+1, len(pokemon), p.Name, statusSkipped)
				}
				continue
			}

			var locations []Location
			err := retryTransient(ctx, func() error {
				var scrapeErr error
				locations, scrapeErr = scrapePokemonLocations(ctx, client, p, opts.DryRun)
				return scrapeErr
			})
			if err != nil {
				result.recordError(p.Name, err)
				if opts.Progress != nil {
					opts.Progress(i+1, len(pokemon), p.Name, statusFailed)
				}
				continue
			}
			result.Success++
			if opts.Progress != nil {
				opts.Progress(i+1, len(pokemon), p.Name, statusComplete)
			}

			if opts.Mode != modeFull {
				continue
			}
			// Full workflow: feed discovery output straight into the
			// per-location scraper.
			for _, loc := range locations {
				scrapeOneRoute(ctx, client, loc, dex, opts, &result)
			}
		}
		return result, nil
	}

	// routes-only: drain whatever the location catalog holds; the cache
	// check inside scrapeRoute skips the fresh ones.
	locations, err := loadAllLocations()
	if err != nil {
		return result, err
	}
	log.Printf("[I] [Orchestrator] routes-only: %d locations in catalog.", len(locations))

	for i, loc := range locations {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		scrapeOneRoute(ctx, client, loc, dex, opts, &result)
		if opts.Progress != nil {
			opts.Progress(i+1, len(locations), loc.Name, "")
		}
	}
	return result, nil
}

func scrapeOneRoute(ctx context.Context, client *FetchClient, loc Location, dex map[string]int, opts ScrapeOptions, result *BatchResult) {
	var res RouteScrapeResult
	err := retryTransient(ctx, func() error {
		var scrapeErr error
		res, scrapeErr = scrapeRoute(ctx, client, loc, dex, opts.Force, opts.DryRun)
		return scrapeErr
	})
	if err != nil {
		result.recordError(loc.Name, err)
		return
	}
	result.recordStatus(res.Status)
}

// reportBatchResult logs the aggregate tally the way operators read it.
func reportBatchResult(result BatchResult) {
	log.Printf("[I] [Orchestrator] Batch finished: %d success, %d skipped, %d partial, %d failed.",
		result.Success, result.Skipped, result.Partial, result.Failed)
	for _, e := range result.Errors {
		log.Printf("[W] [Orchestrator]   %s: %s", e.Location, e.Err)
	}
	if result.Failed > len(result.Errors) {
		log.Printf("[W] [Orchestrator]   ...and %d more errors not shown.", result.Failed-len(result.Errors))
	}
}
