package main

import (
	"database/sql"
	"fmt"
	"strings"
)

// gameCatalog is the universe of valid game ids an encounter may
// reference. Seeded idempotently into the games table on startup so the
// encounters foreign key always has its targets.
var gameCatalog = []Game{
	{"red", "Red", 1, "GB"},
	{"blue", "Blue", 1, "GB"},
	{"yellow", "Yellow", 1, "GB"},
	{"gold", "Gold", 2, "GBC"},
	{"silver", "Silver", 2, "GBC"},
	{"crystal", "Crystal", 2, "GBC"},
	{"ruby", "Ruby", 3, "GBA"},
	{"sapphire", "Sapphire", 3, "GBA"},
	{"emerald", "Emerald", 3, "GBA"},
	{"firered", "FireRed", 3, "GBA"},
	{"leafgreen", "LeafGreen", 3, "GBA"},
	{"diamond", "Diamond", 4, "DS"},
	{"pearl", "Pearl", 4, "DS"},
	{"platinum", "Platinum", 4, "DS"},
	{"heartgold", "HeartGold", 4, "DS"},
	{"soulsilver", "SoulSilver", 4, "DS"},
	{"black", "Black", 5, "DS"},
	{"white", "White", 5, "DS"},
	{"black2", "Black 2", 5, "DS"},
	{"white2", "White 2", 5, "DS"},
	{"x", "X", 6, "3DS"},
	{"y", "Y", 6, "3DS"},
	{"omegaruby", "Omega Ruby", 6, "3DS"},
	{"alphasapphire", "Alpha Sapphire", 6, "3DS"},
	{"sun", "Sun", 7, "3DS"},
	{"moon", "Moon", 7, "3DS"},
	{"ultrasun", "Ultra Sun", 7, "3DS"},
	{"ultramoon", "Ultra Moon", 7, "3DS"},
	{"letsgopikachu", "Let's Go, Pikachu!", 7, "Switch"},
	{"letsgoeevee", "Let's Go, Eevee!", 7, "Switch"},
	{"sword", "Sword", 8, "Switch"},
	{"shield", "Shield", 8, "Switch"},
	{"brilliantdiamond", "Brilliant Diamond", 8, "Switch"},
	{"shiningpearl", "Shining Pearl", 8, "Switch"},
	{"legendsarceus", "Legends: Arceus", 8, "Switch"},
	{"scarlet", "Scarlet", 9, "Switch"},
	{"violet", "Violet", 9, "Switch"},
}

var knownGameIDs = func() map[string]bool {
	ids := make(map[string]bool, len(gameCatalog))
	for _, g := range gameCatalog {
		ids[g.ID] = true
	}
	return ids
}()

// gameAbbrevToID resolves the column header abbreviations the wiki uses.
// Single letters are ambiguous across generations ("S" is Silver, Sun
// or Sword depending on the table); where they collide the earliest
// generation wins, because older tables are the ones that use bare
// letters at all. Newer tables carry link targets and never reach this
// map.
var gameAbbrevToID = map[string]string{
	"R":    "red",
	"B":    "blue",
	"Y":    "yellow",
	"G":    "gold",
	"S":    "silver",
	"C":    "crystal",
	"Ru":   "ruby",
	"Sa":   "sapphire",
	"E":    "emerald",
	"FR":   "firered",
	"LG":   "leafgreen",
	"D":    "diamond",
	"P":    "pearl",
	"Pt":   "platinum",
	"HG":   "heartgold",
	"SS":   "soulsilver",
	"W":    "white",
	"B2":   "black2",
	"W2":   "white2",
	"X":    "x",
	"OR":   "omegaruby",
	"AS":   "alphasapphire",
	"M":    "moon",
	"US":   "ultrasun",
	"UM":   "ultramoon",
	"LGP":  "letsgopikachu",
	"LGE":  "letsgoeevee",
	"Sw":   "sword",
	"Sh":   "shield",
	"BD":   "brilliantdiamond",
	"SP":   "shiningpearl",
	"LA":   "legendsarceus",
	"Sc":   "scarlet",
	"V":    "violet",
	"GO":   gameUnknown, // side game, filtered downstream
	"Home": gameUnknown,
}

// resolveGameLabel maps a header's text to a game id: exact id, exact
// display name, then abbreviation. Unresolvable labels come back as the
// "unknown" sentinel, never as an error.
func resolveGameLabel(label string) string {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" {
		return gameUnknown
	}
	lower := strings.ToLower(trimmed)
	if knownGameIDs[lower] {
		return lower
	}
	for _, g := range gameCatalog {
		if strings.EqualFold(trimmed, g.Name) {
			return g.ID
		}
	}
	if id, ok := gameAbbrevToID[trimmed]; ok {
		return id
	}
	return gameUnknown
}

// gameLinkTokens maps page-title fragments of version links to game
// ids. Checked in order; the most specific tokens come first so that
// "ultra_sun_and_ultra_moon" never falls through to "sun_and_moon",
// nor "omega_ruby" to "ruby".
var gameLinkTokens = []struct {
	token string
	ids   []string
}{
	{"omega_ruby_and_alpha_sapphire", []string{"omegaruby", "alphasapphire"}},
	{"brilliant_diamond_and_shining_pearl", []string{"brilliantdiamond", "shiningpearl"}},
	{"ultra_sun_and_ultra_moon", []string{"ultrasun", "ultramoon"}},
	{"heartgold_and_soulsilver", []string{"heartgold", "soulsilver"}},
	{"firered_and_leafgreen", []string{"firered", "leafgreen"}},
	{"black_2_and_white_2", []string{"black2", "white2"}},
	{"scarlet_and_violet", []string{"scarlet", "violet"}},
	{"sword_and_shield", []string{"sword", "shield"}},
	{"ruby_and_sapphire", []string{"ruby", "sapphire"}},
	{"diamond_and_pearl", []string{"diamond", "pearl"}},
	{"black_and_white", []string{"black", "white"}},
	{"gold_and_silver", []string{"gold", "silver"}},
	{"red_and_blue", []string{"red", "blue"}},
	{"sun_and_moon", []string{"sun", "moon"}},
	{"x_and_y", []string{"x", "y"}},
	{"legends:_arceus", []string{"legendsarceus"}},
	{"legends_arceus", []string{"legendsarceus"}},
	{"go,_pikachu", []string{"letsgopikachu"}},
	{"go,_eevee", []string{"letsgoeevee"}},
	{"yellow", []string{"yellow"}},
	{"crystal", []string{"crystal"}},
	{"emerald", []string{"emerald"}},
	{"platinum", []string{"platinum"}},
}

// resolveGameLink maps a wiki link target like
// "/wiki/Pok%C3%A9mon_HeartGold_and_SoulSilver_Versions" to the game
// ids it names. Paired version links resolve to both members. Returns
// nil for links that are not version pages.
func resolveGameLink(href string) []string {
	lower := strings.ToLower(href)
	for _, entry := range gameLinkTokens {
		if strings.Contains(lower, entry.token) {
			return entry.ids
		}
	}
	return nil
}

func seedGames(db *sql.DB) error {
	stmt, err := db.Prepare(`
		INSERT INTO games (id, name, generation, platform)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare games seed statement: %w", err)
	}
	defer stmt.Close()

	for _, g := range gameCatalog {
		if _, err := stmt.Exec(g.ID, g.Name, g.Generation, g.Platform); err != nil {
			return fmt.Errorf("failed to seed game '%s': %w", g.ID, err)
		}
	}
	return nil
}
