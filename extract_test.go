package main

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func parseFixture(t *testing.T, page string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)
	return doc
}

var testDex = map[string]int{
	"pikachu": 25,
	"caterpie": 10,
	"snorlax": 143,
}

const tabularRoutePage = `
<h2><span class="mw-headline" id="Pok.C3.A9mon">Pokémon</span></h2>
<table>
<tr>
  <th><a href="/wiki/Pok%C3%A9mon_Yellow_Version">Y</a></th>
  <td><a href="/wiki/Pikachu_(Pokémon)">Pikachu</a></td>
  <td>Tall grass</td>
  <td>2-4</td>
  <td>30%</td>
</tr>
<tr>
  <td><a href="/wiki/Caterpie_(Pokémon)">Caterpie</a></td>
  <td>Tall grass</td>
  <td>3-5</td>
  <td>40%</td>
</tr>
</table>
`

func TestExtractEncountersTabular(t *testing.T) {
	doc := parseFixture(t, tabularRoutePage)
	encounters := extractEncounters(doc, testDex)
	require.Len(t, encounters, 2)

	pikachu := encounters[0]
	require.Equal(t, 25, pikachu.PokemonID)
	require.Equal(t, "yellow", pikachu.GameID)
	require.Equal(t, "grass", pikachu.EncounterArea)
	require.Equal(t, "2-4", pikachu.LevelRange)
	require.Equal(t, "30%", pikachu.EncounterRate)

	// The header-less second row inherits the game context above it.
	caterpie := encounters[1]
	require.Equal(t, 10, caterpie.PokemonID)
	require.Equal(t, "yellow", caterpie.GameID)
	require.Equal(t, "3-5", caterpie.LevelRange)
}

const pairedVersionPage = `
<table>
<tr>
  <th><a href="/wiki/Pok%C3%A9mon_HeartGold_and_SoulSilver_Versions">HGSS</a></th>
  <td><a href="/wiki/Pikachu_(Pokémon)">Pikachu</a></td>
  <td>Grass, Lv. 22, 5%, morning</td>
</tr>
</table>
`

func TestExtractEncountersPairedVersionLink(t *testing.T) {
	doc := parseFixture(t, pairedVersionPage)
	encounters := extractEncounters(doc, testDex)
	require.Len(t, encounters, 2)

	var games []string
	for _, e := range encounters {
		games = append(games, e.GameID)
		require.Equal(t, 25, e.PokemonID)
		require.Equal(t, "22", e.LevelRange)
		require.Equal(t, "5%", e.EncounterRate)
		require.Equal(t, "morning", e.TimeOfDay)
	}
	require.Equal(t, []string{"heartgold", "soulsilver"}, games)
}

const unknownGamePage = `
<table>
<tr>
  <td><a href="/wiki/Pikachu_(Pokémon)">Pikachu</a></td>
  <td>Tall grass</td>
</tr>
</table>
`

func TestExtractEncountersUnknownGameSentinel(t *testing.T) {
	doc := parseFixture(t, unknownGamePage)
	encounters := extractEncounters(doc, testDex)
	require.Len(t, encounters, 1)
	// Rows without any resolvable game context are kept under the
	// sentinel, not dropped.
	require.Equal(t, gameUnknown, encounters[0].GameID)
}

const staleGameHeaderPage = `
<table>
<tr>
  <th><a href="/wiki/Pok%C3%A9mon_Yellow_Version">Y</a></th>
  <td><a href="/wiki/Pikachu_(Pokémon)">Pikachu</a></td>
  <td>Tall grass</td>
</tr>
<tr>
  <th>Rumble Blast</th>
  <td><a href="/wiki/Caterpie_(Pokémon)">Caterpie</a></td>
  <td>Tall grass</td>
</tr>
</table>
`

func TestExtractEncountersUnresolvableHeaderBreaksInheritance(t *testing.T) {
	doc := parseFixture(t, staleGameHeaderPage)
	encounters := extractEncounters(doc, testDex)
	require.Len(t, encounters, 2)

	require.Equal(t, 25, encounters[0].PokemonID)
	require.Equal(t, "yellow", encounters[0].GameID)

	// The second row names a game outside the catalog. That must land
	// under the sentinel, not inherit yellow from the row above.
	require.Equal(t, 10, encounters[1].PokemonID)
	require.Equal(t, gameUnknown, encounters[1].GameID)
}

const specialEncounterPage = `
<h2><span class="mw-headline" id="Pok.C3.A9mon">Pokémon</span></h2>
<table>
<tr>
  <th><a href="/wiki/Pok%C3%A9mon_Yellow_Version">Y</a></th>
  <td><a href="/wiki/Pikachu_(Pokémon)">Pikachu</a></td>
  <td>Tall grass 2-4 30%</td>
</tr>
</table>
<h3><span class="mw-headline" id="Special_encounters">Special encounters</span></h3>
<table>
<tr>
  <td><a href="/wiki/Snorlax_(Pokémon)">Snorlax</a></td>
  <td><a href="/wiki/Pok%C3%A9mon_Red_and_Blue_Versions">Red and Blue</a> Lv. 30</td>
</tr>
</table>
<h2><span class="mw-headline" id="Trainers">Trainers</span></h2>
`

func TestExtractEncountersSpecialBoxes(t *testing.T) {
	doc := parseFixture(t, specialEncounterPage)
	encounters := extractEncounters(doc, testDex)
	require.Len(t, encounters, 3)

	require.Equal(t, 25, encounters[0].PokemonID)
	require.Equal(t, "yellow", encounters[0].GameID)

	// The special box yields one row per paired game, area "special",
	// and is not double-parsed by the tabular pass.
	var snorlax []RawEncounter
	for _, e := range encounters {
		if e.PokemonID == 143 {
			snorlax = append(snorlax, e)
		}
	}
	require.Len(t, snorlax, 2)
	require.Equal(t, "red", snorlax[0].GameID)
	require.Equal(t, "blue", snorlax[1].GameID)
	for _, e := range snorlax {
		require.Equal(t, "special", e.EncounterArea)
		require.Equal(t, "30", e.LevelRange)
	}
}

const speciesLocationsPage = `
<h2><span class="mw-headline" id="Game_locations">Game locations</span></h2>
<table>
<tr>
  <th>Yellow</th>
  <td>Viridian Forest, Power Plant</td>
</tr>
<tr>
  <th>FireRed</th>
  <td>Unavailable</td>
</tr>
<tr>
  <th>HeartGold</th>
  <td>Pikachu</td>
</tr>
</table>
<h2><span class="mw-headline" id="Stats">Stats</span></h2>
`

func TestExtractGameLocations(t *testing.T) {
	doc := parseFixture(t, speciesLocationsPage)
	refs := extractGameLocations(doc, "Pikachu")
	require.Len(t, refs, 1)
	require.Equal(t, "Yellow", refs[0].GameLabel)
	require.Equal(t, "Viridian Forest, Power Plant", refs[0].LocationName)
}

const subsectionedLocationsPage = `
<h2><span class="mw-headline" id="Game_locations">Game locations</span></h2>
<h3><span class="mw-headline" id="Core_series">Core series</span></h3>
<table>
<tr>
  <th>Yellow</th>
  <td>Viridian Forest</td>
</tr>
</table>
<h3><span class="mw-headline" id="Side_series">Side series</span></h3>
<table>
<tr>
  <th>Stadium</th>
  <td>Power Plant</td>
</tr>
</table>
<h2><span class="mw-headline" id="Stats">Stats</span></h2>
<table>
<tr>
  <th>HP</th>
  <td>35</td>
</tr>
</table>
`

func TestFindSectionTablesSpansSubsections(t *testing.T) {
	doc := parseFixture(t, subsectionedLocationsPage)

	// An h2 section owns the tables under its h3 subsections; only the
	// next h2 ends it.
	tables := findSectionTables(doc, "Game locations")
	require.Len(t, tables, 2)

	refs := extractGameLocations(doc, "Pikachu")
	require.Len(t, refs, 2)
	require.Equal(t, "Viridian Forest", refs[0].LocationName)
	require.Equal(t, "Power Plant", refs[1].LocationName)

	// An h3 section still ends at the next heading of its own level.
	require.Len(t, findSectionTables(doc, "Core series"), 1)
}

func TestExtractGameLocationsMissingSection(t *testing.T) {
	doc := parseFixture(t, "<p>nothing here</p>")
	require.Empty(t, extractGameLocations(doc, "Pikachu"))
}

func TestParseLevelRangeAndRate(t *testing.T) {
	require.Equal(t, "2-4", parseLevelRange("Levels 2-4"))
	require.Equal(t, "10-15", parseLevelRange("10–15"))
	require.Equal(t, "30", parseLevelRange("Lv. 30"))
	require.Equal(t, "", parseLevelRange("no levels"))

	require.Equal(t, "30%", parseEncounterRate("30%"))
	require.Equal(t, "7.5%", parseEncounterRate("about 7.5 % of the time"))
	require.Equal(t, "", parseEncounterRate("rare"))
}

func TestDetectArea(t *testing.T) {
	require.Equal(t, "grass", detectArea("Tall grass"))
	require.Equal(t, "fishing", detectArea("Super Rod"))
	require.Equal(t, "surf", detectArea("Surfing"))
	require.Equal(t, "rock-smash", detectArea("Rock Smash"))
	require.Equal(t, "", detectArea("Gift"))
}
