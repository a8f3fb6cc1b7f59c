package seed

import (
	"database/sql"
	"fmt"
)

// Default reference data for a fresh installation.
const (
	defaultMaterialName  = "PLA (Generic)"
	defaultMaterialPrice = 25.0
	defaultMaterialDens  = 1.24
)

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
}

// Run executes the startup seed in an idempotent way: it creates the
// cost-settings singleton and a default PLA material if they are missing,
// and changes nothing otherwise.
func Run(db *sql.DB) (Stats, error) {
	tx, err := db.Begin()
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	if err := ensureSettings(tx, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureDefaultMaterial(tx, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func ensureSettings(tx *sql.Tx, stats *Stats) error {
	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM cost_settings WHERE id = 1)`).Scan(&exists); err != nil {
		return fmt.Errorf("check cost settings existence: %w", err)
	}
	if exists {
		return nil
	}

	// Column defaults carry the shop's starting configuration.
	if _, err := tx.Exec(`INSERT INTO cost_settings (id) VALUES (1)`); err != nil {
		return fmt.Errorf("insert cost settings singleton: %w", err)
	}
	stats.Inserts++
	return nil
}

func ensureDefaultMaterial(tx *sql.Tx, stats *Stats) error {
	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM materials WHERE name = ? LIMIT 1)`, defaultMaterialName).Scan(&exists); err != nil {
		return fmt.Errorf("check default material existence: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.Exec(`
		INSERT INTO materials (name, brand, price_per_kg, density, color, active)
		VALUES (?, '', ?, ?, '', TRUE)
	`, defaultMaterialName, defaultMaterialPrice, defaultMaterialDens); err != nil {
		return fmt.Errorf("insert default material: %w", err)
	}
	stats.Inserts++
	return nil
}
