// internal/repository/interfaces.go
package repository

import (
	"context"
	"time"

	"instrument-service/internal/model"
)

// MeasurementRepository defines field-reading data access operations
type MeasurementRepository interface {
	Create(ctx context.Context, reading *model.FieldReading) error
	ListByInstrument(ctx context.Context, instrumentID string, limit int) ([]*model.FieldReading, error)
	ListSince(ctx context.Context, instrumentID string, since time.Time) ([]*model.FieldReading, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ControlRepository defines control-tick data access operations
type ControlRepository interface {
	Create(ctx context.Context, tick *model.ControlTick) error
	ListByInstrument(ctx context.Context, instrumentID string, limit int) ([]*model.ControlTick, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
