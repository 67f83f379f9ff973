// internal/repository/measurement_repository.go
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"instrument-service/internal/database"
	"instrument-service/internal/model"
)

// measurementRepository implements MeasurementRepository
type measurementRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewMeasurementRepository creates a new measurement repository
func NewMeasurementRepository(db *database.DB, logger *zap.Logger) MeasurementRepository {
	return &measurementRepository{
		db:     db,
		logger: logger,
	}
}

// Create persists one field reading
func (r *measurementRepository) Create(ctx context.Context, reading *model.FieldReading) error {
	query := `
		INSERT INTO field_readings (
			id, instrument_id, time_index, x, y, z, magnitude, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		reading.ID, reading.InstrumentID, reading.TimeIndex,
		reading.X, reading.Y, reading.Z, reading.Magnitude,
		reading.RecordedAt,
	)

	if err != nil {
		r.logger.Error("Failed to create field reading", zap.Error(err), zap.String("instrument_id", reading.InstrumentID))
		return fmt.Errorf("failed to create field reading: %w", err)
	}
	return nil
}

// ListByInstrument returns the newest readings for one instrument
func (r *measurementRepository) ListByInstrument(ctx context.Context, instrumentID string, limit int) ([]*model.FieldReading, error) {
	query := `
		SELECT id, instrument_id, time_index, x, y, z, magnitude, recorded_at
		FROM field_readings
		WHERE instrument_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, instrumentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list field readings: %w", err)
	}
	defer rows.Close()

	return scanFieldReadings(rows)
}

// ListSince returns readings recorded at or after the given time
func (r *measurementRepository) ListSince(ctx context.Context, instrumentID string, since time.Time) ([]*model.FieldReading, error) {
	query := `
		SELECT id, instrument_id, time_index, x, y, z, magnitude, recorded_at
		FROM field_readings
		WHERE instrument_id = $1 AND recorded_at >= $2
		ORDER BY recorded_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, instrumentID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list field readings: %w", err)
	}
	defer rows.Close()

	return scanFieldReadings(rows)
}

// DeleteOlderThan removes readings older than the cutoff
func (r *measurementRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM field_readings WHERE recorded_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old field readings: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted readings: %w", err)
	}
	if deleted > 0 {
		r.logger.Info("Old field readings deleted", zap.Int64("count", deleted))
	}
	return deleted, nil
}

func scanFieldReadings(rows *sql.Rows) ([]*model.FieldReading, error) {
	readings := make([]*model.FieldReading, 0)
	for rows.Next() {
		reading := &model.FieldReading{}
		if err := rows.Scan(
			&reading.ID, &reading.InstrumentID, &reading.TimeIndex,
			&reading.X, &reading.Y, &reading.Z, &reading.Magnitude,
			&reading.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan field reading: %w", err)
		}
		readings = append(readings, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate field readings: %w", err)
	}
	return readings, nil
}
