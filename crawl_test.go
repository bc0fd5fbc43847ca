package main

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// scriptedTransport serves canned responses per page URL and records
// every request it sees.
type scriptedTransport struct {
	mu       sync.Mutex
	requests []string
	respond  func(pageURL string) (int, string, error)
}

func (t *scriptedTransport) fetch(ctx context.Context, pageURL string) (int, string, error) {
	t.mu.Lock()
	t.requests = append(t.requests, pageURL)
	t.mu.Unlock()
	return t.respond(pageURL)
}

func (t *scriptedTransport) sawRequestContaining(fragment string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.requests {
		if strings.Contains(r, fragment) {
			return true
		}
	}
	return false
}

const emptySpeciesPage = `<html><body><p>No game locations section.</p></body></html>`

func seedCrawlPokemon(t *testing.T) {
	t.Helper()
	for _, p := range []Pokemon{
		{ID: 1, Name: "Bulbasaur", Generation: 1},
		{ID: 2, Name: "Ivysaur", Generation: 1},
		{ID: 3, Name: "Venusaur", Generation: 1},
		{ID: 4, Name: "Charmander", Generation: 1},
	} {
		_, err := db.Exec("INSERT INTO pokemon (id, name, generation) VALUES (?, ?, ?)", p.ID, p.Name, p.Generation)
		require.NoError(t, err)
	}
}

func TestCrawlHaltsOnFatalError(t *testing.T) {
	openTestDB(t)
	seedCrawlPokemon(t)

	transport := &scriptedTransport{respond: func(pageURL string) (int, string, error) {
		if strings.Contains(pageURL, "Venusaur") {
			// An unexpected status is fatal, not transient, so the run
			// halts without touching the backoff schedule.
			return http.StatusTeapot, "", nil
		}
		return http.StatusOK, emptySpeciesPage, nil
	}}

	store := newFileCheckpointStore(t.TempDir() + "/checkpoint.json")
	err := runCrawl(context.Background(), testFetchClient(transport, "http://source.test"), CrawlOptions{
		StartID:   1,
		EndID:     4,
		BatchSize: 1,
		Store:     store,
	})

	var fatal *FatalCrawlError
	require.ErrorAs(t, err, &fatal)
	require.Contains(t, fatal.Resource, "Venusaur")
	require.Contains(t, fatal.SourceURL, "Venusaur")
	require.Equal(t, "pokeatlas crawl --start 3 --end 4", fatal.ResumeCommand)

	// Everything before the failing item is persisted.
	require.True(t, isCached(cacheKey(cacheKindPokemon, "1"), defaultCacheMaxAge))
	require.True(t, isCached(cacheKey(cacheKindPokemon, "2"), defaultCacheMaxAge))
	require.False(t, isCached(cacheKey(cacheKindPokemon, "3"), defaultCacheMaxAge))

	// The checkpoint points at the last fully processed item.
	progress, loadErr := store.load()
	require.NoError(t, loadErr)
	require.NotNil(t, progress)
	require.Equal(t, 2, progress.LastProcessedID)
	require.Equal(t, "Ivysaur", progress.LastProcessedName)
	require.Equal(t, 2, progress.TotalProcessed)

	// Nothing past the failure was ever attempted.
	require.False(t, transport.sawRequestContaining("Charmander"))
}

func TestCrawlResumesFromCheckpoint(t *testing.T) {
	openTestDB(t)
	seedCrawlPokemon(t)

	transport := &scriptedTransport{respond: func(pageURL string) (int, string, error) {
		return http.StatusOK, emptySpeciesPage, nil
	}}

	store := newFileCheckpointStore(t.TempDir() + "/checkpoint.json")
	require.NoError(t, store.save(&CrawlProgress{
		LastProcessedID:   2,
		LastProcessedName: "Ivysaur",
		TotalProcessed:    2,
	}))

	err := runCrawl(context.Background(), testFetchClient(transport, "http://source.test"), CrawlOptions{
		StartID: 1,
		EndID:   4,
		Store:   store,
	})
	require.NoError(t, err)

	// Only the remaining items were fetched.
	require.False(t, transport.sawRequestContaining("Bulbasaur"))
	require.False(t, transport.sawRequestContaining("Ivysaur"))
	require.True(t, transport.sawRequestContaining("Venusaur"))
	require.True(t, transport.sawRequestContaining("Charmander"))

	progress, err := store.load()
	require.NoError(t, err)
	require.Equal(t, 4, progress.LastProcessedID)
	require.Equal(t, 4, progress.TotalProcessed)
}

func TestCrawlFreshIgnoresCheckpoint(t *testing.T) {
	openTestDB(t)
	seedCrawlPokemon(t)

	transport := &scriptedTransport{respond: func(pageURL string) (int, string, error) {
		return http.StatusOK, emptySpeciesPage, nil
	}}

	store := newFileCheckpointStore(t.TempDir() + "/checkpoint.json")
	require.NoError(t, store.save(&CrawlProgress{LastProcessedID: 3, TotalProcessed: 3}))

	err := runCrawl(context.Background(), testFetchClient(transport, "http://source.test"), CrawlOptions{
		StartID: 1,
		EndID:   4,
		Fresh:   true,
		Store:   store,
	})
	require.NoError(t, err)
	require.True(t, transport.sawRequestContaining("Bulbasaur"))

	progress, err := store.load()
	require.NoError(t, err)
	require.Equal(t, 4, progress.LastProcessedID)
	require.Equal(t, 4, progress.TotalProcessed)
}

func TestCrawlStopsCleanlyOnCancel(t *testing.T) {
	openTestDB(t)
	seedCrawlPokemon(t)

	ctx, cancel := context.WithCancel(context.Background())

	transport := &scriptedTransport{respond: func(pageURL string) (int, string, error) {
		if strings.Contains(pageURL, "Ivysaur") {
			// Signal arrives while item 2 is in flight.
			cancel()
		}
		return http.StatusOK, emptySpeciesPage, nil
	}}

	store := newFileCheckpointStore(t.TempDir() + "/checkpoint.json")
	err := runCrawl(ctx, testFetchClient(transport, "http://source.test"), CrawlOptions{
		StartID: 1,
		EndID:   4,
		Store:   store,
	})

	// Cancellation is a clean stop, not a failure, and the checkpoint
	// is flushed before returning.
	require.NoError(t, err)
	require.False(t, transport.sawRequestContaining("Charmander"))

	progress, loadErr := store.load()
	require.NoError(t, loadErr)
	require.NotNil(t, progress)
	require.GreaterOrEqual(t, progress.LastProcessedID, 1)
}

func TestFileCheckpointStoreRoundTrip(t *testing.T) {
	store := newFileCheckpointStore(t.TempDir() + "/checkpoint.json")

	// Absent checkpoint loads as nil, not as an error.
	progress, err := store.load()
	require.NoError(t, err)
	require.Nil(t, progress)

	saved := &CrawlProgress{
		LastProcessedID:   151,
		LastProcessedName: "Mew",
		TotalProcessed:    151,
		TotalAdded:        987,
		Errors:            []string{"#83 Farfetch'd: location kanto-route-12 page missing"},
	}
	require.NoError(t, store.save(saved))

	loaded, err := store.load()
	require.NoError(t, err)
	require.Equal(t, saved.LastProcessedID, loaded.LastProcessedID)
	require.Equal(t, saved.LastProcessedName, loaded.LastProcessedName)
	require.Equal(t, saved.TotalAdded, loaded.TotalAdded)
	require.Equal(t, saved.Errors, loaded.Errors)
	require.NotEmpty(t, loaded.Timestamp)
}
