// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"instrument-service/internal/config"
	"instrument-service/internal/control"
	"instrument-service/internal/database"
	"instrument-service/internal/driver/gm3"
	"instrument-service/internal/driver/spd3303x"
	"instrument-service/internal/driver/webtc"
	"instrument-service/internal/handler"
	"instrument-service/internal/model"
	"instrument-service/internal/repository"
	"instrument-service/internal/routes"
	"instrument-service/internal/service"
	"instrument-service/internal/transport"
	"instrument-service/internal/utils"
	"instrument-service/pkg/driver"
)

// Application wires the service's components together
type Application struct {
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	database *database.DB
	eventBus *handler.EventBus

	instrumentService *service.InstrumentService
	ovenService       *service.OvenService

	measurementRepo repository.MeasurementRepository
	controlRepo     repository.ControlRepository

	gaussmeter  *gm3.Driver
	powerSupply *spd3303x.Driver
	daq         *webtc.Driver
	simulator   *webtc.SimulatedGateway
}

func main() {
	app, err := NewApplication()
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, cfg.App.Name)
	serviceLogger.LogServiceStart(cfg.App.Version)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	if err := app.initializeDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.initializeRepositories()
	if err := app.initializeDrivers(); err != nil {
		return nil, fmt.Errorf("failed to initialize drivers: %w", err)
	}
	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.initializeServer()

	return app, nil
}

// initializeDatabase opens the pool and applies migrations
func (app *Application) initializeDatabase() error {
	db, err := database.NewConnection(&app.config.Database, app.logger)
	if err != nil {
		return err
	}
	app.database = db

	migrator := database.NewMigrator(db, app.logger, &app.config.Database)
	if err := migrator.Up(); err != nil {
		return err
	}
	return nil
}

// initializeRepositories creates the data access layer
func (app *Application) initializeRepositories() {
	app.measurementRepo = repository.NewMeasurementRepository(app.database, app.logger)
	app.controlRepo = repository.NewControlRepository(app.database, app.logger)
}

// initializeDrivers builds a driver per enabled instrument
func (app *Application) initializeDrivers() error {
	if cfg := &app.config.Gaussmeter; cfg.Enabled {
		conn := transport.NewSerialConnection(&transport.SerialConfig{
			Port:     cfg.Port,
			BaudRate: cfg.BaudRate,
			DataBits: cfg.DataBits,
			StopBits: cfg.StopBits,
			Parity:   cfg.Parity,
			Timeout:  cfg.ReadTimeout,
		}, app.logger)
		policy := gm3.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Delay:       cfg.Retry.Delay,
		}
		app.gaussmeter = gm3.NewDriver(cfg.InstrumentID, conn, policy, app.logger)
	}

	if cfg := &app.config.PowerSupply; cfg.Enabled {
		conn := transport.NewTCPConnection(&transport.TCPConfig{
			Host:        cfg.Host,
			Port:        cfg.Port,
			KeepAlive:   true,
			ReadTimeout: cfg.ReadTimeout,
		}, app.logger)
		session := transport.NewTextSession(conn, cfg.SettleDelay)

		supply, err := spd3303x.NewDriver(spd3303x.Config{
			InstrumentID:         cfg.InstrumentID,
			ChannelVoltageLimits: cfg.ChannelVoltageLimits,
			ChannelCurrentLimits: cfg.ChannelCurrentLimits,
			ResetOnStartup:       cfg.ResetOnStartup,
		}, conn, session, app.logger)
		if err != nil {
			return err
		}
		app.powerSupply = supply
	}

	if cfg := &app.config.DAQ; cfg.Enabled {
		var gateway driver.VendorGateway
		if cfg.Simulated {
			app.simulator = webtc.NewSimulatedGateway(20)
			gateway = app.simulator
		} else {
			return fmt.Errorf("daq hardware gateway is not configured; set daq.simulated for bench mode")
		}
		app.daq = webtc.NewDriver(webtc.Config{
			InstrumentID: cfg.InstrumentID,
			Board:        cfg.Board,
			Channel:      cfg.Channel,
			Units:        model.TemperatureUnit(cfg.Units),
		}, gateway, app.logger)
	}

	return nil
}

// initializeServices builds the service layer over the drivers
func (app *Application) initializeServices() error {
	app.eventBus = handler.NewEventBus(app.logger)
	go app.eventBus.Start()

	app.instrumentService = service.NewInstrumentService(
		app.config,
		app.measurementRepo,
		app.eventBus,
		app.gaussmeter,
		app.powerSupply,
		app.daq,
		app.logger,
	)

	if cfg := &app.config.Oven; cfg.Enabled {
		sink := app.powerSupply.ChannelSink(cfg.SupplyChannel)
		if app.simulator != nil {
			// bench mode: feed the drive back into the thermal model so
			// the loop actually closes
			supplySink := sink
			simulator := app.simulator
			sink = driver.PowerSinkFunc(func(ctx context.Context, volts float64) error {
				if err := supplySink.SetOutputVoltage(ctx, volts); err != nil {
					return err
				}
				return simulator.ApplyVolts(ctx, volts)
			})
		}
		controller := control.NewOvenController(control.OvenConfig{
			InstrumentID:  cfg.InstrumentID,
			SupplyChannel: cfg.SupplyChannel,
			PID: control.PIDConfig{
				Kp:           cfg.Kp,
				Ki:           cfg.Ki,
				Kd:           cfg.Kd,
				SamplePeriod: cfg.SamplePeriod,
			},
			Heater: control.Heater{
				MaxTemperature: cfg.Heater.MaxTemperature,
				MaxVolts:       cfg.Heater.MaxVolts,
				MaxCurrent:     cfg.Heater.MaxCurrent,
				Resistance:     cfg.Heater.Resistance,
			},
		},
			app.daq,
			sink,
			app.powerSupply.Limits(),
			app.logger,
		)

		app.ovenService = service.NewOvenService(
			cfg, controller, app.powerSupply, app.controlRepo, app.eventBus, app.logger,
		)
	}

	return nil
}

// initializeServer builds the HTTP server over the router
func (app *Application) initializeServer() {
	router := routes.NewRouter(
		app.config, app.logger, app.database,
		app.instrumentService, app.ovenService, app.eventBus,
	)

	app.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", app.config.Server.Host, app.config.Server.Port),
		Handler:      router.SetupRouter(),
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}
}

// Start connects the instruments, serves HTTP and blocks until shutdown
func (app *Application) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.instrumentService.ConnectAll(ctx); err != nil {
		return fmt.Errorf("instrument startup failed: %w", err)
	}
	app.instrumentService.StartPolling(context.Background())

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("HTTP server listening", zap.String("addr", app.server.Addr))
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		app.logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
	}

	return app.Shutdown()
}

// Shutdown stops loops, de-energizes hardware and closes everything
func (app *Application) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if app.ovenService != nil {
		if err := app.ovenService.Stop(ctx); err != nil {
			app.logger.Error("Oven stop failed during shutdown", zap.Error(err))
		}
	}
	app.instrumentService.StopPolling()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown failed", zap.Error(err))
	}

	if err := app.instrumentService.DisconnectAll(ctx); err != nil {
		app.logger.Error("Instrument disconnect failed during shutdown", zap.Error(err))
	}
	app.eventBus.Stop()

	if err := app.database.Close(); err != nil {
		app.logger.Error("Database close failed", zap.Error(err))
	}

	utils.NewServiceLogger(app.logger, app.config.App.Name).LogServiceStop("signal")
	return utils.CloseLogger(app.logger)
}
