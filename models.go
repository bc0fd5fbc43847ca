package main

import "database/sql"

// Pokemon is one species from the national dex. Seeded once by the `seed`
// command; the scraping pipeline only ever reads these rows.
type Pokemon struct {
	ID         int
	Name       string
	Generation int
	SpriteURL  string
}

// Game is a main-series game the encounter tables may reference.
type Game struct {
	ID         string
	Name       string
	Generation int
	Platform   string
}

// Location scrape statuses. The same set doubles as cache entry statuses.
const (
	statusPending  = "pending"
	statusComplete = "complete"
	statusPartial  = "partial"
	statusFailed   = "failed"
	statusSkipped  = "skipped"
)

// Location is a normalized, deduplicated place-of-encounter. The ID is
// derived from (region, name) and must be stable across runs.
type Location struct {
	ID             string
	Name           string
	Region         string
	LocationType   string
	BulbapediaPage string
	Generation     int
	ScrapeStatus   string
}

// Acquisition methods, the closed taxonomy classifyAcquisition maps into.
const (
	methodWild           = "wild"
	methodGift           = "gift"
	methodEvolution      = "evolution"
	methodTrade          = "trade"
	methodTradeEvolution = "trade-evolution"
	methodFossil         = "fossil"
	methodEvent          = "event"
	methodPokewalker     = "pokewalker"
	methodSpecial        = "special"
)

// Sentinel game tag for rows whose game column could not be resolved.
// These survive extraction (so counts stay auditable) and are filtered
// out at the persistence boundary instead.
const gameUnknown = "unknown"

// Special requirement kinds.
const (
	reqDualSlot  = "dual_slot"
	reqWeather   = "weather"
	reqSwarm     = "swarm"
	reqHoneyTree = "honey_tree"
)

// SpecialRequirement is a structured tag attached to an encounter when
// the location text mentions a dual-slot game, a weather condition, a
// swarm or a honey tree trigger. Kind selects the variant; Game is only
// set for dual_slot and Weather only for weather.
type SpecialRequirement struct {
	Kind    string `json:"type"`
	Game    string `json:"game,omitempty"`
	Weather string `json:"weather,omitempty"`
}

// Encounter is the central fact record: a species obtainable in a game
// at a described location. LocationID is empty for legacy rows that
// predate location resolution.
type Encounter struct {
	ID                 int
	PokemonID          int
	GameID             string
	LocationText       string
	LocationID         sql.NullString
	EncounterArea      string
	EncounterRate      string
	LevelRange         string
	TimeOfDay          string
	Season             string
	SpecialRequirement *SpecialRequirement
	AcquisitionMethod  string
}

// RawEncounter is what the extraction engine produces from one table
// row before any persistence decision is made.
type RawEncounter struct {
	PokemonID          int
	PokemonName        string
	GameID             string
	EncounterArea      string
	EncounterRate      string
	LevelRange         string
	TimeOfDay          string
	Season             string
	SpecialRequirement *SpecialRequirement
}

// GameLocationRef is one (game label, location text) pair read off a
// species page, with no identifier resolution done yet.
type GameLocationRef struct {
	GameLabel    string
	LocationName string
}

// CacheEntry mirrors one row of scrape_cache.
type CacheEntry struct {
	Key         string
	Kind        string
	LastQueried string
	Status      string
	Metadata    string
}

// CacheStats aggregates scrape_cache rows by status.
type CacheStats struct {
	Total    int
	Complete int
	Failed   int
	Partial  int
}

// CacheMetadata is the JSON blob stored alongside a complete cache entry.
type CacheMetadata struct {
	EncountersFound    int `json:"encountersFound"`
	EncountersInserted int `json:"encountersInserted"`
}

// BatchError records one failed location inside an otherwise-continuing
// batch. The orchestrator caps how many of these it keeps.
type BatchError struct {
	Location string
	Err      string
}

// BatchResult is the tally the orchestrator reports after a range.
type BatchResult struct {
	Success int
	Skipped int
	Failed  int
	Partial int
	Errors  []BatchError
}

// CrawlProgress is the crash-recoverable checkpoint of one long crawl.
// It is explicit state threaded through the crawl loop and persisted
// through a checkpointStore; there is deliberately no package-level
// instance of it.
type CrawlProgress struct {
	LastProcessedID   int      `json:"last_processed_id"`
	LastProcessedName string   `json:"last_processed_name"`
	TotalProcessed    int      `json:"total_processed"`
	TotalAdded        int      `json:"total_added"`
	Errors            []string `json:"errors"`
	Timestamp         string   `json:"timestamp"`
}
