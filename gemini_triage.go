package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const triagePageExcerptLen = 12000

// GeminiTriageVerdict is the model's assessment of one partially
// scraped page: whether the extractor likely missed encounter tables
// and, if so, roughly where.
type GeminiTriageVerdict struct {
	LikelyMissedTables bool   `json:"likely_missed_tables"`
	Reason             string `json:"reason"`
	Hint               string `json:"hint"`
}

type triageCandidate struct {
	CacheKey string
	Metadata string
}

// loadTriageCandidates returns cache entries in partial status, i.e.
// pages that were fetched fine but yielded zero encounters.
func loadTriageCandidates(limit int) ([]triageCandidate, error) {
	rows, err := db.Query(`
		SELECT cache_key, COALESCE(metadata_json, '')
		FROM scrape_cache
		WHERE status = ? AND resource_kind = ?
		ORDER BY last_queried_at DESC
		LIMIT ?
	`, statusPartial, cacheKindRoute, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query partial cache entries: %w", err)
	}
	defer rows.Close()

	var candidates []triageCandidate
	for rows.Next() {
		var c triageCandidate
		if err := rows.Scan(&c.CacheKey, &c.Metadata); err != nil {
			return nil, fmt.Errorf("failed to scan partial cache entry: %w", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// runTriage re-fetches pages behind partial cache entries and asks
// Gemini whether the page actually contains encounter data the
// extractor missed. Strictly read-only: verdicts are logged, nothing
// in the database changes.
func runTriage(ctx context.Context, client *FetchClient, limit int) error {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	candidates, err := loadTriageCandidates(limit)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		log.Println("[I] [Triage] No partial cache entries to triage.")
		return nil
	}

	log.Printf("[I] [Triage] Triaging %d partial page(s)...", len(candidates))

	flagged := 0
	for _, c := range candidates {
		locationID := strings.TrimPrefix(c.CacheKey, cacheKindRoute+":")
		var title string
		if err := db.QueryRow(`SELECT COALESCE(bulbapedia_page, '') FROM locations WHERE id = ?`, locationID).Scan(&title); err != nil || title == "" {
			log.Printf("[W] [Triage] No page title for cache entry %s, skipping.", c.CacheKey)
			continue
		}

		body, err := client.fetchPage(ctx, title)
		if err != nil {
			log.Printf("[W] [Triage] Failed to re-fetch %s: %v", title, err)
			continue
		}

		verdict, err := triagePageWithGemini(body)
		if err != nil {
			log.Printf("[W] [Triage] Gemini triage failed for %s: %v", title, err)
			continue
		}

		if verdict.LikelyMissedTables {
			flagged++
			log.Printf("[W] [Triage] %s likely has missed encounter tables: %s (hint: %s)", title, verdict.Reason, verdict.Hint)
		} else {
			log.Printf("[I] [Triage] %s: no missed tables. %s", title, verdict.Reason)
		}
	}

	log.Printf("[I] [Triage] Done: %d of %d page(s) flagged for review.", flagged, len(candidates))
	return nil
}

// triagePageWithGemini sends a page excerpt to the Gemini API and expects
// a JSON verdict back describing whether encounter tables were missed.
func triagePageWithGemini(pageHTML string) (*GeminiTriageVerdict, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	defer client.Close()

	// Configure the model to expect a JSON response.
	model := client.GenerativeModel("gemini-flash-lite-latest")
	model.GenerationConfig.ResponseMIMEType = "application/json"

	excerpt := pageHTML
	if len(excerpt) > triagePageExcerptLen {
		excerpt = excerpt[:triagePageExcerptLen]
	}

	prompt := fmt.Sprintf(`You are an expert at reading MediaWiki pages about Pokémon game locations.
An automated scraper processed the page below but extracted zero wild Pokémon encounter rows from it.
Decide whether the page actually contains encounter tables (wild Pokémon listings with games, levels, rates) that the scraper must have missed, or whether the page legitimately has none (for example a city with no wild encounters, a disambiguation page, or a spin-off location).

Provide the output *only* as a single, minified JSON object. Do not wrap it in markdown backticks or any other text.
The JSON object must have these keys: "likely_missed_tables" (boolean), "reason" (string, one sentence), "hint" (string: the section heading or table caption the scraper likely missed, or "" if none).

Here is the page HTML to analyze:
---
%s
---`, excerpt)

	log.Println("🤖 [Triage] Sending request to Gemini API...")
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content from Gemini: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("received an empty or invalid response from Gemini API")
	}

	rawJSON := fmt.Sprintf("%s", resp.Candidates[0].Content.Parts[0])

	// Clean up potential markdown formatting from the response, just in case.
	re := regexp.MustCompile("(?s)```json(.*)```")
	matches := re.FindStringSubmatch(rawJSON)
	if len(matches) > 1 {
		rawJSON = matches[1]
	}
	rawJSON = strings.TrimSpace(rawJSON)

	var verdict GeminiTriageVerdict
	if err := json.Unmarshal([]byte(rawJSON), &verdict); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON from Gemini: %w. Raw response: %s", err, rawJSON)
	}

	return &verdict, nil
}
