package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"gowa-blast/internal/model"
)

// InsertBlast stores a finished blast report. Per-row results are kept
// as a JSON column so the listing can return them without a join.
func (s *Store) InsertBlast(ctx context.Context, report model.BlastReport) error {
	results, err := json.Marshal(report.Results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	query := `
		INSERT INTO blasts (id, mode, template_name, total, sent, failed, results, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = s.DB.ExecContext(ctx, query,
		report.ID, string(report.Mode), report.TemplateName,
		report.Total, report.Sent, report.Failed,
		string(results), report.CreatedAt,
	)
	return err
}

// ListBlasts returns the most recent reports, newest first.
func (s *Store) ListBlasts(ctx context.Context, limit int) ([]model.BlastReport, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, mode, template_name, total, sent, failed, results, created_at
		FROM blasts
		ORDER BY created_at DESC
		LIMIT $1`
	rows, err := s.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := make([]model.BlastReport, 0, limit)
	for rows.Next() {
		var (
			report    model.BlastReport
			mode      string
			tmpl      sql.NullString
			results   string
			createdAt time.Time
		)
		if err := rows.Scan(&report.ID, &mode, &tmpl, &report.Total, &report.Sent, &report.Failed, &results, &createdAt); err != nil {
			s.log.Warn().Err(err).Msg("scan blast row failed")
			continue
		}
		report.Mode = model.Mode(mode)
		report.TemplateName = tmpl.String
		report.CreatedAt = createdAt
		if err := json.Unmarshal([]byte(results), &report.Results); err != nil {
			s.log.Warn().Err(err).Str("blast_id", report.ID).Msg("decode blast results failed")
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}
