// internal/service/oven_service.go
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"instrument-service/internal/config"
	"instrument-service/internal/control"
	"instrument-service/internal/driver/spd3303x"
	"instrument-service/internal/model"
	"instrument-service/internal/repository"
	"instrument-service/internal/utils"
)

// OvenService schedules the oven controller's ticks, persists the loop
// records and manages the supply channel around the loop's lifetime.
type OvenService struct {
	config      *config.OvenConfig
	controller  *control.OvenController
	powerSupply *spd3303x.Driver
	controlRepo repository.ControlRepository
	publisher   EventPublisher
	logger      *utils.ServiceLogger

	mutex    sync.Mutex
	stopLoop context.CancelFunc
	loopDone chan struct{}
}

// NewOvenService creates the oven scheduler
func NewOvenService(
	cfg *config.OvenConfig,
	controller *control.OvenController,
	powerSupply *spd3303x.Driver,
	controlRepo repository.ControlRepository,
	publisher EventPublisher,
	logger *zap.Logger,
) *OvenService {
	return &OvenService{
		config:      cfg,
		controller:  controller,
		powerSupply: powerSupply,
		controlRepo: controlRepo,
		publisher:   publisher,
		logger:      utils.NewServiceLogger(logger, "oven-service"),
	}
}

// Controller exposes the underlying loop, e.g. for handlers
func (s *OvenService) Controller() *control.OvenController {
	return s.controller
}

// Running reports whether the control loop is active
func (s *OvenService) Running() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.stopLoop != nil
}

// SetSetpoint forwards the target to the controller
func (s *OvenService) SetSetpoint(setpoint float64) error {
	return s.controller.SetSetpoint(setpoint)
}

// Start enables the supply channel and launches the tick loop. The tick
// cadence is the controller's sample period; the controller itself
// rate-limits, so an over-eager scheduler cannot wind the loop up.
func (s *OvenService) Start(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.stopLoop != nil {
		return fmt.Errorf("oven loop already running")
	}

	if err := s.powerSupply.SetChannelState(ctx, s.config.SupplyChannel, true); err != nil {
		return fmt.Errorf("enable supply channel: %w", err)
	}

	// the loop outlives the caller's (often per-request) context
	loopCtx, cancel := context.WithCancel(context.Background())
	s.stopLoop = cancel
	s.loopDone = make(chan struct{})
	go s.run(loopCtx)

	s.logger.Info("Oven control loop started",
		zap.Float64("setpoint", s.controller.Setpoint()),
		zap.Duration("sample_period", s.config.SamplePeriod),
	)
	return nil
}

// Stop halts the loop, zeroes the heater drive and disables the supply
// channel. Safe to call when not running.
func (s *OvenService) Stop(ctx context.Context) error {
	s.mutex.Lock()
	stop := s.stopLoop
	done := s.loopDone
	s.stopLoop = nil
	s.loopDone = nil
	s.mutex.Unlock()

	if stop == nil {
		return nil
	}
	stop()
	<-done

	if err := s.controller.Shutdown(ctx); err != nil {
		return err
	}
	if err := s.powerSupply.SetChannelState(ctx, s.config.SupplyChannel, false); err != nil {
		return fmt.Errorf("disable supply channel: %w", err)
	}
	s.logger.Info("Oven control loop stopped")
	return nil
}

// LastTick returns the most recent loop record, nil before the first
func (s *OvenService) LastTick() *model.ControlTick {
	return s.controller.LastTick()
}

// History returns the newest persisted ticks
func (s *OvenService) History(ctx context.Context, limit int) ([]*model.ControlTick, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	return s.controlRepo.ListByInstrument(ctx, s.config.InstrumentID, limit)
}

// run ticks the controller until its context is canceled
func (s *OvenService) run(ctx context.Context) {
	defer close(s.loopDone)

	ticker := time.NewTicker(s.config.SamplePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick, err := s.controller.Tick(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Error("Oven tick failed", zap.Error(err))
				continue
			}
			if err := s.controlRepo.Create(ctx, tick); err != nil {
				s.logger.Error("Failed to persist control tick", zap.Error(err))
			}
			s.publishTick(tick)
		}
	}
}

func (s *OvenService) publishTick(tick *model.ControlTick) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(&model.InstrumentEvent{
		InstrumentID: tick.InstrumentID,
		EventType:    model.EventTypeControlTick,
		Data: map[string]interface{}{
			"setpoint":     tick.Setpoint,
			"temperature":  tick.Temperature,
			"output_volts": tick.OutputVolts,
			"clamped":      tick.Clamped,
		},
		Timestamp: tick.RecordedAt,
	})
}
