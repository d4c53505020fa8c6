package opportunity

import (
	"database/sql"
	"time"

	"crossfeed/internal/models"
)

// SnapshotRepository durably persists the opportunity list the CSV
// source most recently loaded, mostly superseded by the CSV source of
// truth but kept wired for operators who want a queryable audit trail
// of what the assembler considered active at a given time.
type SnapshotRepository struct {
	db *sql.DB
}

func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Save records one opportunity snapshot batch under a shared loaded_at
// timestamp.
func (r *SnapshotRepository) Save(opps []models.Opportunity) error {
	if len(opps) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}

	loadedAt := time.Now()
	stmt, err := tx.Prepare(`
		INSERT INTO opportunity_snapshots (symbol, exchange1, exchange2, opportunity_cycles_040bp, loaded_at)
		VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, o := range opps {
		if _, err := stmt.Exec(o.Symbol, o.Exchange1, o.Exchange2, o.OpportunityCycles040bp, loadedAt); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// Latest returns the opportunity rows from the most recently saved
// snapshot batch.
func (r *SnapshotRepository) Latest() ([]models.Opportunity, error) {
	rows, err := r.db.Query(`
		SELECT symbol, exchange1, exchange2, opportunity_cycles_040bp
		FROM opportunity_snapshots
		WHERE loaded_at = (SELECT MAX(loaded_at) FROM opportunity_snapshots)
		ORDER BY symbol, exchange1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Opportunity
	for rows.Next() {
		var o models.Opportunity
		if err := rows.Scan(&o.Symbol, &o.Exchange1, &o.Exchange2, &o.OpportunityCycles040bp); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
