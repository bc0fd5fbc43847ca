package main

import (
	"fmt"
	"log"
)

var gameGenByID = func() map[string]int {
	gens := make(map[string]int, len(gameCatalog))
	for _, g := range gameCatalog {
		gens[g.ID] = g.Generation
	}
	return gens
}()

// splitEncounterRows breaks up legacy rows whose location_text still
// holds a combined cell ("Route 1, Route 2 and Viridian Forest") into
// one row per place, recomputing location_id and location_type fields
// for each piece. The whole rewrite happens in one transaction so a
// failure leaves the table untouched.
func splitEncounterRows() (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin split transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT id, pokemon_id, game_id, location_text, encounter_area, encounter_rate,
		       level_range, time_of_day, season, special_requirements_json, acquisition_method
		FROM encounters
		WHERE location_text LIKE '%,%' OR location_text LIKE '% and %'
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to query combined encounter rows: %w", err)
	}

	type legacyRow struct {
		id     int
		e      Encounter
		area   interface{}
		rate   interface{}
		levels interface{}
		tod    interface{}
		season interface{}
		spec   interface{}
		method string
	}

	var legacy []legacyRow
	for rows.Next() {
		var r legacyRow
		if err := rows.Scan(&r.id, &r.e.PokemonID, &r.e.GameID, &r.e.LocationText,
			&r.area, &r.rate, &r.levels, &r.tod, &r.season, &r.spec, &r.method); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan combined encounter row: %w", err)
		}
		legacy = append(legacy, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	if len(legacy) == 0 {
		return 0, nil
	}

	insertStmt, err := tx.Prepare(`
		INSERT INTO encounters (pokemon_id, game_id, location_text, location_id, encounter_area,
			encounter_rate, level_range, time_of_day, season, special_requirements_json, acquisition_method)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare split insert statement: %w", err)
	}
	defer insertStmt.Close()

	split := 0
	for _, r := range legacy {
		pieces := splitLocationCell(r.e.LocationText)
		if len(pieces) < 2 {
			continue
		}

		generation := gameGenByID[r.e.GameID]
		for _, piece := range pieces {
			region := inferRegion(piece, generation)
			var locationID interface{}
			if isValidLocationName(piece, region) {
				locationID = normalizeLocationID(piece, region)
			}
			if _, err := insertStmt.Exec(r.e.PokemonID, r.e.GameID, piece, locationID,
				r.area, r.rate, r.levels, r.tod, r.season, r.spec, r.method); err != nil {
				return 0, fmt.Errorf("failed to insert split row for encounter #%d: %w", r.id, err)
			}
		}
		if _, err := tx.Exec("DELETE FROM encounters WHERE id = ?", r.id); err != nil {
			return 0, fmt.Errorf("failed to delete combined encounter #%d: %w", r.id, err)
		}
		split++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit split transaction: %w", err)
	}

	log.Printf("[I] [Maintenance] Split %d combined encounter row(s).", split)
	return split, nil
}

// dedupeLegacyEncounters removes rows sharing (pokemon_id, game_id,
// location_text) with another row. Within each group the row with a
// resolved location_id survives; legacy rows predating location
// resolution are the ones deleted. Lowest id breaks ties. Runs in one
// transaction.
func dedupeLegacyEncounters() (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin dedupe transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		DELETE FROM encounters
		WHERE id NOT IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (
					PARTITION BY pokemon_id, game_id, location_text
					ORDER BY (location_id IS NULL), id
				) AS rank
				FROM encounters
			) WHERE rank = 1
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete duplicate encounters: %w", err)
	}
	removed, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit dedupe transaction: %w", err)
	}

	log.Printf("[I] [Maintenance] Removed %d duplicate encounter row(s).", removed)
	return int(removed), nil
}
