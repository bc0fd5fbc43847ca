package main

import (
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const enableExtractionDebugLogs = false

// Extraction runs a small ordered list of strategies against a parsed
// document, in documented precedence order:
//
//  1. tabular rows with resolvable game headers
//  2. header-less rows inheriting the game context of the row above
//  3. "special encounters" boxes (one-off/legendary layout), merged in
//     last and deduplicated against tabular output by (pokemon, game,
//     area)
//
// The engine never drops a row just because its game column failed to
// resolve: such rows carry the "unknown" sentinel so counts stay
// auditable, and the persistence boundary filters them.

const (
	maxLocationCellLen = 200
	minLocationLen     = 3
)

var (
	dexNumberRegex     = regexp.MustCompile(`(\d{3,4})[^/]*\.png`)
	levelRangeRegex    = regexp.MustCompile(`\b(\d{1,3})\s*[-–]\s*(\d{1,3})\b`)
	singleLevelRegex   = regexp.MustCompile(`(?i)lv\.?\s*(\d{1,3})`)
	encounterRateRegex = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)\s*%`)
	headingTagRegex    = regexp.MustCompile(`^h[2-4]$`)
)

// unavailableMarkers (lower-cased) flag cells that say a species cannot
// be obtained in that game at all.
var unavailableMarkers = []string{"unavailable", "unobtainable", "none", "n/a", "not available", "—"}

func isUnavailableMarker(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, marker := range unavailableMarkers {
		if lower == marker {
			return true
		}
	}
	return false
}

// headingLevel maps a heading tag name to its numeric level. Non-heading
// tags report 0.
func headingLevel(tag string) int {
	if headingTagRegex.MatchString(tag) {
		return int(tag[1] - '0')
	}
	return 0
}

// findSectionTables locates a section by its heading text and returns
// every table between that heading and the next one of equal or higher
// level. Subsections stay inside: an h3 under an h2 section contributes
// its tables too.
func findSectionTables(doc *goquery.Document, headingText string) []*goquery.Selection {
	var heading *goquery.Selection
	doc.Find("span.mw-headline").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if strings.EqualFold(strings.TrimSpace(s.Text()), headingText) {
			heading = s
			return false
		}
		return true
	})
	if heading == nil {
		return nil
	}

	sectionLevel := headingLevel(goquery.NodeName(heading.Parent()))
	if sectionLevel == 0 {
		sectionLevel = 2
	}

	var tables []*goquery.Selection
	for node := heading.Parent().Next(); node.Length() > 0; node = node.Next() {
		name := goquery.NodeName(node)
		if level := headingLevel(name); level > 0 && level <= sectionLevel {
			break
		}
		if name == "table" {
			tables = append(tables, node)
		} else {
			node.Find("table").Each(func(i int, t *goquery.Selection) {
				tables = append(tables, t)
			})
		}
	}
	return tables
}

// extractGameLocations reads the "Game locations" section of a species
// page into (game label, location text) pairs. No identifier
// resolution happens here; labels stay as the page wrote them.
func extractGameLocations(doc *goquery.Document, pokemonName string) []GameLocationRef {
	tables := findSectionTables(doc, "Game locations")
	if len(tables) == 0 {
		log.Printf("[W] [Extract] No 'Game locations' section found for %s", pokemonName)
		return nil
	}

	var refs []GameLocationRef
	for _, table := range tables {
		table.Find("tr").Each(func(i int, row *goquery.Selection) {
			var labels []string
			row.Find("th").Each(func(j int, th *goquery.Selection) {
				label := strings.TrimSpace(th.Text())
				if label != "" {
					labels = append(labels, label)
				}
			})
			if len(labels) == 0 {
				return
			}

			row.Find("td").Each(func(j int, td *goquery.Selection) {
				text := strings.Join(strings.Fields(td.Text()), " ")
				if !isUsableLocationCell(text, pokemonName) {
					return
				}
				for _, label := range labels {
					refs = append(refs, GameLocationRef{GameLabel: label, LocationName: text})
				}
			})
		})
	}

	if enableExtractionDebugLogs {
		log.Printf("[D] [Extract] %s: %d location references", pokemonName, len(refs))
	}
	return refs
}

// isUsableLocationCell applies the noise filters for species-page
// cells: empty values, unavailability markers, the species' own name
// (a malformed-row authoring artifact), paragraph-length prose and
// too-short fragments are all discarded.
func isUsableLocationCell(text, pokemonName string) bool {
	if len(text) < minLocationLen {
		return false
	}
	if len(text) > maxLocationCellLen {
		return false
	}
	if isUnavailableMarker(text) {
		return false
	}
	if strings.EqualFold(text, pokemonName) {
		return false
	}
	return true
}

// resolveRowGames resolves the game header cells of one encounter-table
// row. Link targets win over abbreviation text. hasHeaders reports
// whether the row carried any non-empty game header at all: a row with
// headers that resolve to nothing names games outside the catalog and
// must not inherit the previous row's games, while a header-less row
// does inherit.
func resolveRowGames(row *goquery.Selection) (games []string, hasHeaders bool) {
	seen := make(map[string]bool)

	row.Find("th").Each(func(i int, th *goquery.Selection) {
		if strings.TrimSpace(th.Text()) != "" {
			hasHeaders = true
		}
		resolved := false
		th.Find("a").Each(func(j int, a *goquery.Selection) {
			href, ok := a.Attr("href")
			if !ok {
				return
			}
			for _, id := range resolveGameLink(href) {
				if !seen[id] {
					seen[id] = true
					games = append(games, id)
				}
				resolved = true
			}
		})
		if resolved {
			return
		}
		if id := resolveGameLabel(th.Text()); id != gameUnknown {
			if !seen[id] {
				seen[id] = true
				games = append(games, id)
			}
		}
	})
	return games, hasHeaders
}

// resolvePokemonCell pulls the species out of a row: the dex number
// from the sprite filename when there is one, otherwise a name lookup
// against the seeded catalog.
func resolvePokemonCell(row *goquery.Selection, dex map[string]int) (int, string, bool) {
	link := row.Find(`a[href*="(Pok%C3%A9mon)"], a[href*="(Pokémon)"]`).First()
	if link.Length() == 0 {
		return 0, "", false
	}

	name := strings.TrimSpace(link.Text())
	if name == "" {
		if title, ok := link.Attr("title"); ok {
			name = strings.TrimSpace(strings.TrimSuffix(title, " (Pokémon)"))
		}
	}

	if src, ok := row.Find("img").First().Attr("src"); ok {
		if matches := dexNumberRegex.FindStringSubmatch(src); matches != nil {
			if id, err := strconv.Atoi(matches[1]); err == nil && id > 0 {
				return id, name, true
			}
		}
	}

	if id, ok := dex[strings.ToLower(name)]; ok {
		return id, name, true
	}
	return 0, name, false
}

// areaMarkers is ordered: the most specific phrases first so "tall
// grass" is not shadowed by a later plain keyword.
var areaMarkers = []struct {
	marker string
	area   string
}{
	{"tall grass", "grass"},
	{"dark grass", "grass"},
	{"old rod", "fishing"},
	{"good rod", "fishing"},
	{"super rod", "fishing"},
	{"fishing", "fishing"},
	{"surfing", "surf"},
	{"surf", "surf"},
	{"rock smash", "rock-smash"},
	{"headbutt", "headbutt"},
	{"grass", "grass"},
	{"walking", "grass"},
}

func detectArea(text string) string {
	lower := strings.ToLower(text)
	for _, entry := range areaMarkers {
		if strings.Contains(lower, entry.marker) {
			return entry.area
		}
	}
	return ""
}

func parseLevelRange(text string) string {
	if matches := levelRangeRegex.FindStringSubmatch(text); matches != nil {
		return matches[1] + "-" + matches[2]
	}
	if matches := singleLevelRegex.FindStringSubmatch(text); matches != nil {
		return matches[1]
	}
	return ""
}

func parseEncounterRate(text string) string {
	if matches := encounterRateRegex.FindStringSubmatch(text); matches != nil {
		return matches[1] + "%"
	}
	return ""
}

var timesOfDay = []string{"morning", "day", "night"}
var seasons = []string{"spring", "summer", "autumn", "winter"}

func detectTimeOfDay(text string) string {
	lower := strings.ToLower(text)
	for _, tod := range timesOfDay {
		if strings.Contains(lower, tod) {
			return tod
		}
	}
	return ""
}

func detectSeason(text string) string {
	lower := strings.ToLower(text)
	for _, season := range seasons {
		if strings.Contains(lower, season) {
			return season
		}
	}
	return ""
}

// extractEncounters reads every encounter a location page lists, across
// all games and layout generations.
func extractEncounters(doc *goquery.Document, dex map[string]int) []RawEncounter {
	var encounters []RawEncounter

	// Boxes under "Special encounters" also link to species pages, so
	// the tabular pass has to skip them by node identity.
	specialTables := findSectionTables(doc, "Special encounters")
	specialNodes := make(map[*html.Node]bool)
	for _, t := range specialTables {
		for _, n := range t.Nodes {
			specialNodes[n] = true
		}
	}

	// First pass: tabular layouts. A table qualifies when it links to at
	// least one species page.
	doc.Find("table").Each(func(i int, table *goquery.Selection) {
		if len(table.Nodes) > 0 && specialNodes[table.Nodes[0]] {
			return
		}
		if table.Find(`a[href*="(Pok%C3%A9mon)"], a[href*="(Pokémon)"]`).Length() == 0 {
			return
		}
		// Skip tables nested inside a qualifying table; the outer walk
		// already covers their rows.
		if table.ParentsFiltered("table").Length() > 0 {
			return
		}

		var currentGames []string
		table.Find("tr").Each(func(j int, row *goquery.Selection) {
			if games, hasHeaders := resolveRowGames(row); len(games) > 0 {
				currentGames = games
			} else if hasHeaders {
				// Headers that resolved to no known game invalidate the
				// inherited context instead of silently reusing it.
				currentGames = nil
			}

			id, name, ok := resolvePokemonCell(row, dex)
			if !ok {
				if enableExtractionDebugLogs && name != "" {
					log.Printf("[D] [Extract] Could not resolve dex number for %q", name)
				}
				return
			}

			rowText := row.Text()
			special := detectSpecialRequirement(rowText)

			games := currentGames
			if len(games) == 0 {
				// Kept under a sentinel tag rather than dropped, so the
				// development counts stay honest.
				games = []string{gameUnknown}
			}

			for _, gameID := range games {
				encounters = append(encounters, RawEncounter{
					PokemonID:          id,
					PokemonName:        name,
					GameID:             gameID,
					EncounterArea:      detectArea(rowText),
					EncounterRate:      parseEncounterRate(rowText),
					LevelRange:         parseLevelRange(rowText),
					TimeOfDay:          detectTimeOfDay(rowText),
					Season:             detectSeason(rowText),
					SpecialRequirement: special,
				})
			}
		})
	})

	// Second pass: the one-off/legendary "special encounters" layout,
	// deduplicated against the tabular results.
	seen := make(map[string]bool)
	for _, e := range encounters {
		seen[specialDedupeKey(e)] = true
	}
	for _, e := range extractSpecialEncounters(doc, dex) {
		if seen[specialDedupeKey(e)] {
			continue
		}
		seen[specialDedupeKey(e)] = true
		encounters = append(encounters, e)
	}

	return encounters
}

func specialDedupeKey(e RawEncounter) string {
	return strconv.Itoa(e.PokemonID) + "|" + e.GameID + "|" + e.EncounterArea
}

// extractSpecialEncounters parses the highlighted per-species boxes
// under a "Special encounters" heading: one box per species instead of
// one table row per slot.
func extractSpecialEncounters(doc *goquery.Document, dex map[string]int) []RawEncounter {
	tables := findSectionTables(doc, "Special encounters")
	if len(tables) == 0 {
		return nil
	}

	var encounters []RawEncounter
	for _, box := range tables {
		id, name, ok := resolvePokemonCell(box, dex)
		if !ok {
			continue
		}

		var games []string
		seen := make(map[string]bool)
		box.Find("a").Each(func(i int, a *goquery.Selection) {
			href, ok := a.Attr("href")
			if !ok {
				return
			}
			for _, gameID := range resolveGameLink(href) {
				if !seen[gameID] {
					seen[gameID] = true
					games = append(games, gameID)
				}
			}
		})
		if len(games) == 0 {
			games = []string{gameUnknown}
		}

		boxText := box.Text()
		for _, gameID := range games {
			encounters = append(encounters, RawEncounter{
				PokemonID:          id,
				PokemonName:        name,
				GameID:             gameID,
				EncounterArea:      "special",
				EncounterRate:      parseEncounterRate(boxText),
				LevelRange:         parseLevelRange(boxText),
				SpecialRequirement: detectSpecialRequirement(boxText),
			})
		}
	}
	return encounters
}
