package main

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

// The scrape cache records "this resource was already queried, with
// this outcome" so repeated runs stop re-fetching the whole identifier
// range. Entries older than the staleness threshold are treated as if
// absent; eviction is explicit and operator-invoked, never automatic.

const defaultCacheMaxAge = 30 * 24 * time.Hour

// Resource kinds. Keys are namespaced by kind ("route:kanto-route-1")
// because routes and species share overlapping identifier spaces.
const (
	cacheKindRoute   = "route"
	cacheKindPokemon = "pokemon"
)

func cacheKey(kind, id string) string {
	return kind + ":" + id
}

// isCached reports whether key has a fresh, complete cache entry. A
// failed or partial entry never counts as cached regardless of age.
func isCached(key string, maxAge time.Duration) bool {
	var status, lastQueried string
	err := db.QueryRow(
		"SELECT status, last_queried_at FROM scrape_cache WHERE cache_key = ?", key,
	).Scan(&status, &lastQueried)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("[W] [Cache] Failed to look up cache entry for %q: %v", key, err)
		}
		return false
	}

	if status != statusComplete {
		return false
	}

	queriedAt, err := time.Parse(time.RFC3339, lastQueried)
	if err != nil {
		log.Printf("[W] [Cache] Unparseable timestamp %q for %q, treating as stale", lastQueried, key)
		return false
	}
	return time.Since(queriedAt) < maxAge
}

// markCache upserts the entry for key. Calling it again with the same
// arguments just refreshes the timestamp.
func markCache(key, kind, status, metadata string) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO scrape_cache (cache_key, resource_kind, last_queried_at, status, metadata_json)
		VALUES (?, ?, ?, ?, ?)`,
		key, kind, time.Now().UTC().Format(time.RFC3339), status, metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to mark cache entry for %q: %w", key, err)
	}
	return nil
}

func cacheStats() (CacheStats, error) {
	var stats CacheStats
	rows, err := db.Query("SELECT status, COUNT(*) FROM scrape_cache GROUP BY status")
	if err != nil {
		return stats, fmt.Errorf("failed to query cache stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, err
		}
		stats.Total += count
		switch status {
		case statusComplete:
			stats.Complete = count
		case statusFailed:
			stats.Failed = count
		case statusPartial:
			stats.Partial = count
		}
	}
	return stats, rows.Err()
}

// evictStaleCache deletes entries last queried before the staleness
// cutoff and returns how many were removed. datetime() normalizes the
// stored timestamps before comparing, so entries written with a
// non-UTC offset still sort correctly.
func evictStaleCache(maxAge time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-maxAge).Format(time.RFC3339)
	res, err := db.Exec("DELETE FROM scrape_cache WHERE datetime(last_queried_at) < datetime(?)", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to evict stale cache entries: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
