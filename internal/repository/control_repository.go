// internal/repository/control_repository.go
package repository

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"instrument-service/internal/database"
	"instrument-service/internal/model"
)

// controlRepository implements ControlRepository
type controlRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewControlRepository creates a new control-tick repository
func NewControlRepository(db *database.DB, logger *zap.Logger) ControlRepository {
	return &controlRepository{
		db:     db,
		logger: logger,
	}
}

// Create persists one control tick
func (r *controlRepository) Create(ctx context.Context, tick *model.ControlTick) error {
	query := `
		INSERT INTO control_ticks (
			id, instrument_id, setpoint, temperature, output_volts, clamped, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		tick.ID, tick.InstrumentID, tick.Setpoint, tick.Temperature,
		tick.OutputVolts, tick.Clamped, tick.RecordedAt,
	)

	if err != nil {
		r.logger.Error("Failed to create control tick", zap.Error(err), zap.String("instrument_id", tick.InstrumentID))
		return fmt.Errorf("failed to create control tick: %w", err)
	}
	return nil
}

// ListByInstrument returns the newest ticks for one controller
func (r *controlRepository) ListByInstrument(ctx context.Context, instrumentID string, limit int) ([]*model.ControlTick, error) {
	query := `
		SELECT id, instrument_id, setpoint, temperature, output_volts, clamped, recorded_at
		FROM control_ticks
		WHERE instrument_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, instrumentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list control ticks: %w", err)
	}
	defer rows.Close()

	ticks := make([]*model.ControlTick, 0)
	for rows.Next() {
		tick := &model.ControlTick{}
		if err := rows.Scan(
			&tick.ID, &tick.InstrumentID, &tick.Setpoint, &tick.Temperature,
			&tick.OutputVolts, &tick.Clamped, &tick.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan control tick: %w", err)
		}
		ticks = append(ticks, tick)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate control ticks: %w", err)
	}
	return ticks, nil
}

// DeleteOlderThan removes ticks older than the cutoff
func (r *controlRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM control_ticks WHERE recorded_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old control ticks: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted ticks: %w", err)
	}
	if deleted > 0 {
		r.logger.Info("Old control ticks deleted", zap.Int64("count", deleted))
	}
	return deleted, nil
}
