package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/skillgate/internal/core/domain"
)

// InvocationRepo stores observability records in invocation_records.
type InvocationRepo struct {
	db *DB
}

// NewInvocationRepo creates a new PostgreSQL invocation repository.
func NewInvocationRepo(db *DB) *InvocationRepo {
	return &InvocationRepo{db: db}
}

type invocationRow struct {
	ID         string    `db:"id"`
	Skill      string    `db:"skill"`
	AgentID    string    `db:"agent_id"`
	RecordedAt time.Time `db:"recorded_at"`
	InputHash  string    `db:"input_hash"`
	OutputHash *string   `db:"output_hash"`
	DurationMs int64     `db:"duration_ms"`
	ErrorCode  *string   `db:"error_code"`
	RetryCount int       `db:"retry_count"`
	Success    bool      `db:"success"`
	Partial    bool      `db:"partial"`
	CacheHit   bool      `db:"cache_hit"`
}

func toRow(r domain.InvocationRecord) invocationRow {
	return invocationRow{
		ID:         r.ID,
		Skill:      r.Skill,
		AgentID:    r.AgentID,
		RecordedAt: r.Timestamp.UTC(),
		InputHash:  r.InputHash,
		OutputHash: r.OutputHash,
		DurationMs: r.DurationMs,
		ErrorCode:  r.ErrorCode,
		RetryCount: r.RetryCount,
		Success:    r.Success,
		Partial:    r.Partial,
		CacheHit:   r.CacheHit,
	}
}

func (r invocationRow) toDomain() domain.InvocationRecord {
	return domain.InvocationRecord{
		ID:         r.ID,
		Skill:      r.Skill,
		AgentID:    r.AgentID,
		Timestamp:  r.RecordedAt,
		InputHash:  r.InputHash,
		OutputHash: r.OutputHash,
		DurationMs: r.DurationMs,
		ErrorCode:  r.ErrorCode,
		RetryCount: r.RetryCount,
		Success:    r.Success,
		Partial:    r.Partial,
		CacheHit:   r.CacheHit,
	}
}

// Insert saves one record.
func (r *InvocationRepo) Insert(ctx context.Context, rec domain.InvocationRecord) error {
	query := `
		INSERT INTO invocation_records (
			id, skill, agent_id, recorded_at, input_hash, output_hash,
			duration_ms, error_code, retry_count, success, partial, cache_hit
		) VALUES (
			:id, :skill, :agent_id, :recorded_at, :input_hash, :output_hash,
			:duration_ms, :error_code, :retry_count, :success, :partial, :cache_hit
		)
	`

	if _, err := r.db.NamedExecContext(ctx, query, toRow(rec)); err != nil {
		return fmt.Errorf("failed to insert invocation record: %w", err)
	}
	return nil
}

// Recent returns the newest records of skill, newest first.
func (r *InvocationRepo) Recent(
	ctx context.Context,
	skill string,
	limit int,
) ([]domain.InvocationRecord, error) {
	query := `
		SELECT id, skill, agent_id, recorded_at, input_hash, output_hash,
			duration_ms, error_code, retry_count, success, partial, cache_hit
		FROM invocation_records
		WHERE skill = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`

	var rows []invocationRow
	if err := r.db.SelectContext(ctx, &rows, query, skill, limit); err != nil {
		return nil, fmt.Errorf("failed to list invocation records: %w", err)
	}

	records := make([]domain.InvocationRecord, len(rows))
	for i, row := range rows {
		records[i] = row.toDomain()
	}
	return records, nil
}

// SuccessStats summarises outcomes over a period.
type SuccessStats struct {
	Total     int `db:"total"`
	Successes int `db:"successes"`
}

// Rate returns successes / total, or 1 when nothing ran.
func (s SuccessStats) Rate() float64 {
	if s.Total == 0 {
		return 1
	}
	return float64(s.Successes) / float64(s.Total)
}

// SuccessRate counts outcomes of skill recorded at or after since.
func (r *InvocationRepo) SuccessRate(
	ctx context.Context,
	skill string,
	since time.Time,
) (SuccessStats, error) {
	query := `
		SELECT COUNT(*) AS total,
			COUNT(*) FILTER (WHERE success) AS successes
		FROM invocation_records
		WHERE skill = $1 AND recorded_at >= $2
	`

	var stats SuccessStats
	if err := r.db.GetContext(ctx, &stats, query, skill, since.UTC()); err != nil {
		return SuccessStats{}, fmt.Errorf("failed to compute success rate: %w", err)
	}
	return stats, nil
}

// DeleteOlderThan removes records written before cutoff and returns how many
// were deleted.
func (r *InvocationRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM invocation_records WHERE recorded_at < $1`

	res, err := r.db.ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete invocation records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted invocation records: %w", err)
	}
	return n, nil
}
