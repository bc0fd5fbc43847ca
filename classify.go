package main

import (
	"regexp"
	"strconv"
	"strings"
)

// Everything in this file is a pure function over strings: no database,
// no network, no shared state. The scrapers feed extracted text through
// these and store whatever comes out.

// --- Acquisition method classification ---

var tradeEvolveRegex = regexp.MustCompile(`evol(ve|ves|ution)`)

// classifyAcquisition maps a free-text location description to one of
// the closed acquisition methods. The rule order is a designed
// tie-break and must not be reshuffled: e.g. a text containing both
// "trade" and "evolve" is a trade-evolution, never a plain trade or a
// plain evolution.
func classifyAcquisition(locationText, area string, special *SpecialRequirement) string {
	text := strings.ToLower(locationText)

	if special != nil && special.Kind == reqDualSlot {
		return methodSpecial
	}
	if strings.Contains(text, "event") || strings.Contains(text, "distribution") || strings.Contains(text, "mystery gift") {
		return methodEvent
	}
	if strings.Contains(text, "trade") && tradeEvolveRegex.MatchString(text) {
		return methodTradeEvolution
	}
	if strings.Contains(text, "trade") {
		return methodTrade
	}
	if tradeEvolveRegex.MatchString(text) {
		return methodEvolution
	}
	if strings.Contains(text, "gift") || strings.Contains(text, "starter") || strings.Contains(text, "given by") || strings.Contains(text, "received from") {
		return methodGift
	}
	if strings.Contains(text, "fossil") || strings.Contains(text, "old amber") {
		return methodFossil
	}
	if strings.Contains(text, "pokéwalker") || strings.Contains(text, "pokewalker") {
		return methodPokewalker
	}
	if area == "special" {
		return methodSpecial
	}
	return methodWild
}

// --- Special requirement detection ---

// dualSlotGames are the GBA carts a DS game can detect in its second
// slot. Keys are the names as they appear in location text.
var dualSlotGames = map[string]string{
	"ruby":       "ruby",
	"sapphire":   "sapphire",
	"emerald":    "emerald",
	"firered":    "firered",
	"fire red":   "firered",
	"leafgreen":  "leafgreen",
	"leaf green": "leafgreen",
}

var weatherKinds = []string{"rain", "snow", "hail", "sandstorm", "fog", "thunderstorm"}

// detectSpecialRequirement finds dual-slot, weather, swarm and honey
// tree conditions in a location description. Returns nil when the text
// carries none of them.
func detectSpecialRequirement(locationText string) *SpecialRequirement {
	text := strings.ToLower(locationText)

	if strings.Contains(text, "dual-slot") || strings.Contains(text, "dual slot") || strings.Contains(text, "dongle") {
		for name, id := range dualSlotGames {
			if strings.Contains(text, name) {
				return &SpecialRequirement{Kind: reqDualSlot, Game: id}
			}
		}
		// Dual-slot mentioned without a recognizable cart name.
		return &SpecialRequirement{Kind: reqDualSlot}
	}

	for _, kind := range weatherKinds {
		if strings.Contains(text, "during "+kind) || strings.Contains(text, "while "+kind+"ing") || strings.Contains(text, kind+"y weather") {
			return &SpecialRequirement{Kind: reqWeather, Weather: kind}
		}
	}

	if strings.Contains(text, "swarm") || strings.Contains(text, "outbreak") {
		return &SpecialRequirement{Kind: reqSwarm}
	}
	if strings.Contains(text, "honey tree") || strings.Contains(text, "honey-slathered") {
		return &SpecialRequirement{Kind: reqHoneyTree}
	}

	return nil
}

// --- Location identifiers ---

var nonAlnumRegex = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	s = strings.ToLower(s)
	s = nonAlnumRegex.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), "-")
}

// normalizeLocationID derives the stable location identifier from a
// display name and region. It is idempotent: feeding an already
// normalized id back in yields the same id.
func normalizeLocationID(name, region string) string {
	slug := slugify(name)
	regionSlug := slugify(region)
	if regionSlug == "" {
		return slug
	}
	if slug == regionSlug || strings.HasPrefix(slug, regionSlug+"-") {
		return slug
	}
	return regionSlug + "-" + slug
}

// locationTypeKeywords is checked in order; first hit wins so that
// "Lake Tower" classifies as a tower before a lake would match.
var locationTypeKeywords = []struct {
	keyword string
	typ     string
}{
	{"route", "route"},
	{"cave", "cave"},
	{"forest", "forest"},
	{"tower", "tower"},
	{"gym", "gym"},
	{"city", "city"},
	{"town", "city"},
	{"island", "island"},
	{"mt.", "mountain"},
	{"mount", "mountain"},
	{"lake", "lake"},
	{"sea", "water"},
	{"bay", "water"},
	{"shore", "water"},
	{"ocean", "water"},
	{"safari", "safari"},
	{"park", "park"},
	{"league", "league"},
}

func detectLocationType(name string) string {
	lower := strings.ToLower(name)
	for _, entry := range locationTypeKeywords {
		if strings.Contains(lower, entry.keyword) {
			return entry.typ
		}
	}
	return "special"
}

// --- Region inference ---

var knownRegions = []string{"kanto", "johto", "hoenn", "sinnoh", "unova", "kalos", "alola", "galar", "hisui", "paldea"}

var generationDefaultRegion = map[int]string{
	1: "kanto",
	2: "johto",
	3: "hoenn",
	4: "sinnoh",
	5: "unova",
	6: "kalos",
	7: "alola",
	8: "galar",
	9: "paldea",
}

// inferRegion takes the region named in the location text when there is
// one and otherwise falls back to the home region of the species'
// generation.
func inferRegion(locationText string, generation int) string {
	lower := strings.ToLower(locationText)
	for _, region := range knownRegions {
		if strings.Contains(lower, region) {
			return region
		}
	}
	if region, ok := generationDefaultRegion[generation]; ok {
		return region
	}
	return "kanto"
}

// --- Location candidate filtering ---

// regionRouteBounds limits numbered routes to the ranges each region
// actually has. A "Route 47" attributed to Kanto is an extraction
// artifact (Kanto stops at 28) and gets rejected.
//
// This table, like the denylists below, mirrors the source wiki's
// conventions as of writing and needs occasional re-syncing; it is
// policy, not domain truth.
var regionRouteBounds = map[string][2]int{
	"kanto":  {1, 28},
	"johto":  {29, 48},
	"hoenn":  {101, 134},
	"sinnoh": {201, 230},
	"unova":  {1, 23},
	"kalos":  {1, 22},
	"galar":  {1, 10},
}

var routeNumberRegex = regexp.MustCompile(`(?i)^(?:[a-z]+\s+)?route\s+(\d+)$`)

// spinOffMarkers are substrings of side-game location names that leak
// into species pages. None of them are places the pipeline tracks.
var spinOffMarkers = []string{
	"trozei",
	"mystery dungeon",
	"ranger",
	"pinball",
	"pokémon snap",
	"rumble",
	"shuffle",
	"conquest",
	"stadium",
	"colosseum",
	"pokémon xd",
	"pokéwalker",
	"dream world",
	"pokémon go",
	"masters ex",
	"picross",
	"café mix",
	"sleep",
	"unite",
}

// transferMarkers are pseudo-locations describing cross-game transfer
// mechanisms rather than places.
var transferMarkers = []string{
	"pal park",
	"poké transfer",
	"poke transfer",
	"time capsule",
	"global trade",
	"pokémon bank",
	"pokémon home",
	"transfer lab",
}

// genericWords are single-word cell values too vague to be a location.
var genericWords = map[string]bool{
	"grass":    true,
	"water":    true,
	"cave":     true,
	"all":      true,
	"various":  true,
	"many":     true,
	"none":     true,
	"unknown":  true,
	"anywhere": true,
	"trade":    true,
	"event":    true,
	"evolve":   true,
}

// isValidLocationName decides whether a candidate string from a species
// page names a real, scrapeable location in the given region.
func isValidLocationName(name, region string) bool {
	trimmed := strings.TrimSpace(name)
	if len(trimmed) < 3 {
		return false
	}
	lower := strings.ToLower(trimmed)

	if genericWords[lower] {
		return false
	}
	// Battle facility challenge names come through as "Facility: Mode".
	if strings.Contains(trimmed, ":") {
		return false
	}
	for _, marker := range spinOffMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	for _, marker := range transferMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}

	if matches := routeNumberRegex.FindStringSubmatch(trimmed); matches != nil {
		bounds, ok := regionRouteBounds[region]
		if !ok {
			return true
		}
		num, err := strconv.Atoi(matches[1])
		if err != nil {
			return false
		}
		if num < bounds[0] || num > bounds[1] {
			return false
		}
	}

	return true
}
