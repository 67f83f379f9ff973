// internal/service/instrument_service.go
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"instrument-service/internal/config"
	"instrument-service/internal/driver/gm3"
	"instrument-service/internal/driver/spd3303x"
	"instrument-service/internal/driver/webtc"
	"instrument-service/internal/model"
	"instrument-service/internal/repository"
	"instrument-service/internal/utils"
	"instrument-service/pkg/driver"
)

// EventPublisher fans instrument events out to subscribers. The handler
// layer's event bus implements it; a nil publisher drops events.
type EventPublisher interface {
	Publish(event *model.InstrumentEvent)
}

// InstrumentService owns the configured instrument drivers, polls the
// gaussmeter on its interval and persists measurement vectors.
type InstrumentService struct {
	config          *config.Config
	measurementRepo repository.MeasurementRepository
	publisher       EventPublisher
	logger          *utils.ServiceLogger

	gaussmeter  *gm3.Driver
	powerSupply *spd3303x.Driver
	daq         *webtc.Driver

	mutex     sync.Mutex
	pollStop  context.CancelFunc
	pollDone  chan struct{}
	pollCount uint64
}

// NewInstrumentService creates the instrument service. Any driver may be
// nil when its instrument is disabled in configuration.
func NewInstrumentService(
	cfg *config.Config,
	measurementRepo repository.MeasurementRepository,
	publisher EventPublisher,
	gaussmeter *gm3.Driver,
	powerSupply *spd3303x.Driver,
	daq *webtc.Driver,
	logger *zap.Logger,
) *InstrumentService {
	return &InstrumentService{
		config:          cfg,
		measurementRepo: measurementRepo,
		publisher:       publisher,
		gaussmeter:      gaussmeter,
		powerSupply:     powerSupply,
		daq:             daq,
		logger:          utils.NewServiceLogger(logger, "instrument-service"),
	}
}

// Gaussmeter returns the gaussmeter driver, nil when disabled
func (s *InstrumentService) Gaussmeter() *gm3.Driver {
	return s.gaussmeter
}

// PowerSupply returns the power supply driver, nil when disabled
func (s *InstrumentService) PowerSupply() *spd3303x.Driver {
	return s.powerSupply
}

// DAQ returns the temperature DAQ driver, nil when disabled
func (s *InstrumentService) DAQ() *webtc.Driver {
	return s.daq
}

// ConnectAll connects every configured instrument. A failed connect
// aborts startup so the service never runs half-wired.
func (s *InstrumentService) ConnectAll(ctx context.Context) error {
	for _, instrument := range s.instruments() {
		if err := instrument.drv.Connect(ctx); err != nil {
			return fmt.Errorf("connect %s: %w", instrument.id, err)
		}
		s.publish(instrument.id, model.EventTypeConnected, nil)
	}
	return nil
}

// DisconnectAll disconnects every configured instrument, keeping the
// first error while still attempting the rest.
func (s *InstrumentService) DisconnectAll(ctx context.Context) error {
	var firstErr error
	for _, instrument := range s.instruments() {
		if err := instrument.drv.Disconnect(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("disconnect %s: %w", instrument.id, err)
		}
		s.publish(instrument.id, model.EventTypeDisconnected, nil)
	}
	return firstErr
}

// Instruments lists the configured instruments and their live status
func (s *InstrumentService) Instruments() []*model.Instrument {
	records := make([]*model.Instrument, 0, 3)
	for _, instrument := range s.instruments() {
		record := &model.Instrument{
			InstrumentID:   instrument.id,
			InstrumentType: instrument.kind,
			Status:         model.InstrumentStatusOffline,
		}
		if info, err := instrument.drv.GetInstrumentInfo(); err == nil {
			record.Brand = info.Brand
			record.Model = info.Model
			record.ConnectionType = info.ConnectionType
		}
		if status, err := instrument.drv.GetStatus(); err == nil {
			record.Status = status.Status
			record.LastSeen = status.LastActivity
		}
		records = append(records, record)
	}
	return records
}

// StartPolling launches the gaussmeter polling loop. No-op when the
// gaussmeter is disabled or polling already runs.
func (s *InstrumentService) StartPolling(ctx context.Context) {
	if s.gaussmeter == nil {
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.pollStop != nil {
		return
	}

	pollCtx, cancel := context.WithCancel(ctx)
	s.pollStop = cancel
	s.pollDone = make(chan struct{})
	go s.pollLoop(pollCtx)

	s.logger.Info("Gaussmeter polling started",
		zap.Duration("interval", s.config.Gaussmeter.PollInterval),
	)
}

// StopPolling stops the polling loop and waits for it to exit
func (s *InstrumentService) StopPolling() {
	s.mutex.Lock()
	stop := s.pollStop
	done := s.pollDone
	s.pollStop = nil
	s.pollDone = nil
	s.mutex.Unlock()

	if stop == nil {
		return
	}
	stop()
	<-done
	s.logger.Info("Gaussmeter polling stopped")
}

// Sample takes one on-demand gaussmeter sample, persists and returns it
func (s *InstrumentService) Sample(ctx context.Context) (*model.FieldReading, error) {
	if s.gaussmeter == nil {
		return nil, fmt.Errorf("gaussmeter is not configured")
	}

	vector, err := s.gaussmeter.StreamSample(ctx)
	if err != nil {
		return nil, err
	}
	reading, err := s.gaussmeter.FieldReading(vector)
	if err != nil {
		return nil, err
	}
	if err := s.store(ctx, reading); err != nil {
		return nil, err
	}
	return reading, nil
}

// ResetAndSample zeroes the instrument's time index and samples once
func (s *InstrumentService) ResetAndSample(ctx context.Context) (*model.FieldReading, error) {
	if s.gaussmeter == nil {
		return nil, fmt.Errorf("gaussmeter is not configured")
	}

	vector, err := s.gaussmeter.ResetAndSample(ctx)
	if err != nil {
		return nil, err
	}
	reading, err := s.gaussmeter.FieldReading(vector)
	if err != nil {
		return nil, err
	}
	if err := s.store(ctx, reading); err != nil {
		return nil, err
	}
	return reading, nil
}

// Readings returns the newest persisted readings for an instrument
func (s *InstrumentService) Readings(ctx context.Context, instrumentID string, limit int) ([]*model.FieldReading, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	return s.measurementRepo.ListByInstrument(ctx, instrumentID, limit)
}

// pollLoop samples the gaussmeter at the configured interval until its
// context is canceled.
func (s *InstrumentService) pollLoop(ctx context.Context) {
	defer close(s.pollDone)

	interval := s.config.Gaussmeter.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sample(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Error("Gaussmeter poll failed", zap.Error(err))
			}
		}
	}
}

// store persists a reading and publishes the measurement event
func (s *InstrumentService) store(ctx context.Context, reading *model.FieldReading) error {
	if err := s.measurementRepo.Create(ctx, reading); err != nil {
		return fmt.Errorf("persist reading: %w", err)
	}
	s.publish(reading.InstrumentID, model.EventTypeMeasurement, map[string]interface{}{
		"time_index": reading.TimeIndex.String(),
		"x":          reading.X.String(),
		"y":          reading.Y.String(),
		"z":          reading.Z.String(),
		"magnitude":  reading.Magnitude.String(),
	})
	return nil
}

func (s *InstrumentService) publish(instrumentID, eventType string, data map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(&model.InstrumentEvent{
		InstrumentID: instrumentID,
		EventType:    eventType,
		Data:         data,
		Timestamp:    time.Now(),
	})
}

type managedInstrument struct {
	id   string
	kind model.InstrumentType
	drv  driver.InstrumentDriver
}

// instruments returns the configured drivers in startup order
func (s *InstrumentService) instruments() []managedInstrument {
	list := make([]managedInstrument, 0, 3)
	if s.gaussmeter != nil {
		list = append(list, managedInstrument{
			id:   s.config.Gaussmeter.InstrumentID,
			kind: model.InstrumentTypeGaussmeter,
			drv:  s.gaussmeter,
		})
	}
	if s.powerSupply != nil {
		list = append(list, managedInstrument{
			id:   s.config.PowerSupply.InstrumentID,
			kind: model.InstrumentTypePowerSupply,
			drv:  s.powerSupply,
		})
	}
	if s.daq != nil {
		list = append(list, managedInstrument{
			id:   s.config.DAQ.InstrumentID,
			kind: model.InstrumentTypeTemperatureDAQ,
			drv:  s.daq,
		})
	}
	return list
}
