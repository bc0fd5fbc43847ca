package main

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const pikachuForestOnlyPage = `
<h2><span class="mw-headline" id="Game_locations">Game locations</span></h2>
<table>
<tr>
  <th>Yellow</th>
  <td>Viridian Forest</td>
</tr>
</table>
<h2><span class="mw-headline" id="Stats">Stats</span></h2>
`

func fullWorkflowTransport() *scriptedTransport {
	return &scriptedTransport{respond: func(pageURL string) (int, string, error) {
		if strings.Contains(pageURL, "Pok%C3%A9mon%29") {
			return http.StatusOK, pikachuForestOnlyPage, nil
		}
		return http.StatusOK, tabularRoutePage, nil
	}}
}

func TestRunScrapeFullWorkflow(t *testing.T) {
	openTestDB(t)
	seedTestPokemon(t)

	transport := fullWorkflowTransport()
	result, err := runScrape(context.Background(), testFetchClient(transport, "http://source.test"), ScrapeOptions{
		Mode:    modeFull,
		StartID: 25,
		EndID:   25,
	})
	require.NoError(t, err)
	// One species discovered, its one location scraped.
	require.Equal(t, 2, result.Success)
	require.Zero(t, result.Failed)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM encounters").Scan(&count))
	require.Equal(t, 2, count)

	require.True(t, transport.sawRequestContaining("Viridian_Forest"))
}

func TestRunScrapePokemonOnlySkipsCached(t *testing.T) {
	openTestDB(t)
	seedTestPokemon(t)

	transport := fullWorkflowTransport()
	client := testFetchClient(transport, "http://source.test")

	result, err := runScrape(context.Background(), client, ScrapeOptions{
		Mode:    modePokemonOnly,
		StartID: 25,
		EndID:   25,
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Success)

	// No location pages fetched in this mode.
	require.False(t, transport.sawRequestContaining("Viridian_Forest"))

	// A second batch skips the freshly cached species outright.
	result, err = runScrape(context.Background(), client, ScrapeOptions{
		Mode:    modePokemonOnly,
		StartID: 25,
		EndID:   25,
	})
	require.NoError(t, err)
	require.Zero(t, result.Success)
	require.Equal(t, 1, result.Skipped)
}

func TestRunScrapeRoutesOnlyDrainsCatalog(t *testing.T) {
	openTestDB(t)
	seedTestPokemon(t)
	insertTestLocation(t, testLocation())

	transport := fullWorkflowTransport()
	result, err := runScrape(context.Background(), testFetchClient(transport, "http://source.test"), ScrapeOptions{
		Mode: modeRoutesOnly,
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Success)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM encounters").Scan(&count))
	require.Equal(t, 2, count)
}

func TestRunScrapeDryRunWritesNothing(t *testing.T) {
	openTestDB(t)
	seedTestPokemon(t)

	transport := fullWorkflowTransport()
	result, err := runScrape(context.Background(), testFetchClient(transport, "http://source.test"), ScrapeOptions{
		Mode:    modeFull,
		StartID: 25,
		EndID:   25,
		DryRun:  true,
	})
	require.NoError(t, err)
	// The would-be work is still tallied: species discovery plus its
	// one location.
	require.Equal(t, 2, result.Success)

	// But no table was touched, in either phase.
	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM locations").Scan(&count))
	require.Zero(t, count)
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM encounters").Scan(&count))
	require.Zero(t, count)
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM scrape_cache").Scan(&count))
	require.Zero(t, count)
}

func TestRunScrapeContinuesPastItemFailures(t *testing.T) {
	openTestDB(t)
	seedTestPokemon(t)

	// Pikachu's page is fatally broken; the batch tallies it and moves
	// on to Snorlax.
	transport := &scriptedTransport{respond: func(pageURL string) (int, string, error) {
		if strings.Contains(pageURL, "Pikachu") {
			return http.StatusTeapot, "", nil
		}
		return http.StatusOK, pikachuForestOnlyPage, nil
	}}

	result, err := runScrape(context.Background(), testFetchClient(transport, "http://source.test"), ScrapeOptions{
		Mode:    modePokemonOnly,
		StartID: 25,
		EndID:   143,
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Success)
	require.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	require.Equal(t, "Pikachu", result.Errors[0].Location)

	require.True(t, transport.sawRequestContaining("Snorlax"))
}

func TestBatchResultErrorCap(t *testing.T) {
	var result BatchResult
	for i := 0; i < maxBatchErrors+10; i++ {
		result.recordError("somewhere", context.DeadlineExceeded)
	}
	require.Equal(t, maxBatchErrors+10, result.Failed)
	require.Len(t, result.Errors, maxBatchErrors)
}
