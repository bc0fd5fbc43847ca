package main

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

var db *sql.DB

const (
	createPokemonTableSQL = `
	CREATE TABLE IF NOT EXISTS pokemon (
		"id" INTEGER NOT NULL PRIMARY KEY,
		"name" TEXT NOT NULL,
		"generation" INTEGER NOT NULL,
		"sprite_url" TEXT
	);`

	createGamesTableSQL = `
	CREATE TABLE IF NOT EXISTS games (
		"id" TEXT NOT NULL PRIMARY KEY,
		"name" TEXT NOT NULL,
		"generation" INTEGER NOT NULL,
		"platform" TEXT NOT NULL
	);`

	createLocationsTableSQL = `
	CREATE TABLE IF NOT EXISTS locations (
		"id" TEXT NOT NULL PRIMARY KEY,
		"name" TEXT NOT NULL,
		"region" TEXT NOT NULL,
		"location_type" TEXT NOT NULL,
		"bulbapedia_page" TEXT,
		"generation" INTEGER NOT NULL DEFAULT 1,
		"scrape_status" TEXT NOT NULL DEFAULT 'pending'
	);`

	// Duplicate suppression for encounters is done by the merge step on
	// (pokemon_id, game_id, location_text), deliberately NOT by a UNIQUE
	// constraint here. Two differently-worded descriptions of the same
	// real-world place are distinct rows; see DESIGN.md.
	createEncountersTableSQL = `
	CREATE TABLE IF NOT EXISTS encounters (
		"id" INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
		"pokemon_id" INTEGER NOT NULL,
		"game_id" TEXT NOT NULL,
		"location_text" TEXT NOT NULL,
		"location_id" TEXT,
		"encounter_area" TEXT,
		"encounter_rate" TEXT,
		"level_range" TEXT,
		"time_of_day" TEXT,
		"season" TEXT,
		"special_requirements_json" TEXT,
		"acquisition_method" TEXT NOT NULL DEFAULT 'wild',
		FOREIGN KEY(pokemon_id) REFERENCES pokemon(id),
		FOREIGN KEY(game_id) REFERENCES games(id),
		FOREIGN KEY(location_id) REFERENCES locations(id)
	);`

	createScrapeCacheTableSQL = `
	CREATE TABLE IF NOT EXISTS scrape_cache (
		"cache_key" TEXT NOT NULL PRIMARY KEY,
		"resource_kind" TEXT NOT NULL,
		"last_queried_at" TEXT NOT NULL,
		"status" TEXT NOT NULL,
		"metadata_json" TEXT
	);`
)

// applyMigrations brings older database files up to the current schema.
func applyMigrations(db *sql.DB) error {
	rows, err := db.Query("PRAGMA table_info(encounters);")
	if err != nil {
		return fmt.Errorf("could not query table info for encounters: %w", err)
	}
	defer rows.Close()

	var seasonExists bool
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notnull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if name == "season" {
			seasonExists = true
			break
		}
	}

	if !seasonExists {
		_, err := db.Exec("ALTER TABLE encounters ADD COLUMN season TEXT;")
		if err != nil {
			return fmt.Errorf("failed to add 'season' column to 'encounters' table: %w", err)
		}
	}

	return nil
}

func initDB(filepath string) (*sql.DB, error) {
	var err error
	db, err = sql.Open("sqlite3", filepath)
	if err != nil {
		return nil, err
	}

	queries := map[string]string{
		"pokemon":      createPokemonTableSQL,
		"games":        createGamesTableSQL,
		"locations":    createLocationsTableSQL,
		"encounters":   createEncountersTableSQL,
		"scrape_cache": createScrapeCacheTableSQL,
	}

	for name, query := range queries {
		if _, err = db.Exec(query); err != nil {
			return nil, fmt.Errorf("could not create table '%s': %w", name, err)
		}
	}

	indexQueries := []string{
		// 'encounters' table
		`CREATE INDEX IF NOT EXISTS idx_encounters_natural_key ON encounters (pokemon_id, game_id, location_text);`,
		`CREATE INDEX IF NOT EXISTS idx_encounters_game_id ON encounters (game_id);`,
		`CREATE INDEX IF NOT EXISTS idx_encounters_location_id ON encounters (location_id);`,
		`CREATE INDEX IF NOT EXISTS idx_encounters_method ON encounters (acquisition_method);`,
		// 'locations' table
		`CREATE INDEX IF NOT EXISTS idx_locations_status ON locations (scrape_status);`,
		`CREATE INDEX IF NOT EXISTS idx_locations_region ON locations (region);`,
		// 'scrape_cache' table
		`CREATE INDEX IF NOT EXISTS idx_cache_kind_status ON scrape_cache (resource_kind, status);`,
	}

	for i, query := range indexQueries {
		if _, err = db.Exec(query); err != nil {
			return nil, fmt.Errorf("could not create index #%d: %w", i, err)
		}
	}

	if err := applyMigrations(db); err != nil {
		return nil, err
	}

	if err := seedGames(db); err != nil {
		return nil, err
	}

	return db, nil
}
