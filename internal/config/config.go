// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Gaussmeter  GaussmeterConfig  `mapstructure:"gaussmeter"`
	PowerSupply PowerSupplyConfig `mapstructure:"power_supply"`
	DAQ         DAQConfig         `mapstructure:"daq"`
	Oven        OvenConfig        `mapstructure:"oven"`
	App         AppConfig         `mapstructure:"app"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	DBName         string        `mapstructure:"dbname"`
	SSLMode        string        `mapstructure:"sslmode"`
	MaxOpenConns   int           `mapstructure:"max_open_conns"`
	MaxIdleConns   int           `mapstructure:"max_idle_conns"`
	MaxLifetime    time.Duration `mapstructure:"max_lifetime"`
	MigrationsPath string        `mapstructure:"migrations_path"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// RetryConfig bounds the gaussmeter acknowledge-retry loop. MaxAttempts
// of zero keeps the instrument's native retry-until-acknowledged behavior.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Delay       time.Duration `mapstructure:"delay"`
}

// GaussmeterConfig represents the serial gaussmeter configuration
type GaussmeterConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	InstrumentID string        `mapstructure:"instrument_id"`
	Port         string        `mapstructure:"port"`
	BaudRate     int           `mapstructure:"baud_rate"`
	DataBits     int           `mapstructure:"data_bits"`
	StopBits     int           `mapstructure:"stop_bits"`
	Parity       string        `mapstructure:"parity"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Retry        RetryConfig   `mapstructure:"retry"`
}

// PowerSupplyConfig represents the ethernet power supply configuration
type PowerSupplyConfig struct {
	Enabled              bool          `mapstructure:"enabled"`
	InstrumentID         string        `mapstructure:"instrument_id"`
	Host                 string        `mapstructure:"host"`
	Port                 int           `mapstructure:"port"`
	SettleDelay          time.Duration `mapstructure:"settle_delay"`
	ReadTimeout          time.Duration `mapstructure:"read_timeout"`
	ChannelVoltageLimits []float64     `mapstructure:"channel_voltage_limits"`
	ChannelCurrentLimits []float64     `mapstructure:"channel_current_limits"`
	ResetOnStartup       bool          `mapstructure:"reset_on_startup"`
}

// DAQConfig represents the temperature DAQ configuration
type DAQConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	InstrumentID string `mapstructure:"instrument_id"`
	Board        int    `mapstructure:"board"`
	Channel      int    `mapstructure:"channel"`
	Units        string `mapstructure:"units"`
	Simulated    bool   `mapstructure:"simulated"`
}

// HeaterConfig describes the heater safety envelope
type HeaterConfig struct {
	MaxTemperature float64 `mapstructure:"max_temperature"`
	MaxVolts       float64 `mapstructure:"max_volts"`
	MaxCurrent     float64 `mapstructure:"max_current"`
	Resistance     float64 `mapstructure:"resistance"`
}

// OvenConfig represents the closed-loop temperature controller configuration
type OvenConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	InstrumentID  string        `mapstructure:"instrument_id"`
	SupplyChannel int           `mapstructure:"supply_channel"`
	Kp            float64       `mapstructure:"kp"`
	Ki            float64       `mapstructure:"ki"`
	Kd            float64       `mapstructure:"kd"`
	SamplePeriod  time.Duration `mapstructure:"sample_period"`
	Heater        HeaterConfig  `mapstructure:"heater"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("INSTRUMENT_SERVICE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file: defaults plus environment variables apply.
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8086")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "instrument_service")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.max_lifetime", "5m")
	viper.SetDefault("database.migrations_path", "./migrations")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
	viper.SetDefault("logging.max_size", 100)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age", 28)
	viper.SetDefault("logging.compress", true)

	// Gaussmeter defaults; the instrument talks 115200 8N1
	viper.SetDefault("gaussmeter.enabled", false)
	viper.SetDefault("gaussmeter.instrument_id", "gm3-1")
	viper.SetDefault("gaussmeter.baud_rate", 115200)
	viper.SetDefault("gaussmeter.data_bits", 8)
	viper.SetDefault("gaussmeter.stop_bits", 1)
	viper.SetDefault("gaussmeter.parity", "none")
	viper.SetDefault("gaussmeter.read_timeout", "2s")
	viper.SetDefault("gaussmeter.poll_interval", "1s")
	viper.SetDefault("gaussmeter.retry.max_attempts", 8)
	viper.SetDefault("gaussmeter.retry.delay", "0s")

	// Power supply defaults; Siglent recommends port 5025
	viper.SetDefault("power_supply.enabled", false)
	viper.SetDefault("power_supply.instrument_id", "spd3303x-1")
	viper.SetDefault("power_supply.port", 5025)
	viper.SetDefault("power_supply.settle_delay", "300ms")
	viper.SetDefault("power_supply.read_timeout", "2s")
	viper.SetDefault("power_supply.channel_voltage_limits", []float64{32, 32})
	viper.SetDefault("power_supply.channel_current_limits", []float64{3.3, 3.3})
	viper.SetDefault("power_supply.reset_on_startup", true)

	// DAQ defaults
	viper.SetDefault("daq.enabled", false)
	viper.SetDefault("daq.instrument_id", "web-tc-1")
	viper.SetDefault("daq.board", 0)
	viper.SetDefault("daq.channel", 0)
	viper.SetDefault("daq.units", "celsius")
	viper.SetDefault("daq.simulated", false)

	// Oven defaults mirror the bench tuning of the reference assembly
	viper.SetDefault("oven.enabled", false)
	viper.SetDefault("oven.instrument_id", "oven-1")
	viper.SetDefault("oven.supply_channel", 1)
	viper.SetDefault("oven.kp", 1.0)
	viper.SetDefault("oven.ki", 0.03)
	viper.SetDefault("oven.kd", 0.0)
	viper.SetDefault("oven.sample_period", "2s")
	viper.SetDefault("oven.heater.max_temperature", 200)
	viper.SetDefault("oven.heater.max_volts", 12)
	viper.SetDefault("oven.heater.max_current", 1)
	viper.SetDefault("oven.heater.resistance", 20)

	// App defaults
	viper.SetDefault("app.name", "instrument-service")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)
}

// validate checks configuration consistency
func validate(config *Config) error {
	if config.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if config.Gaussmeter.Enabled && config.Gaussmeter.Port == "" {
		return fmt.Errorf("gaussmeter is enabled but no serial port is configured")
	}

	if config.PowerSupply.Enabled {
		if config.PowerSupply.Host == "" {
			return fmt.Errorf("power supply is enabled but no host is configured")
		}
		if len(config.PowerSupply.ChannelVoltageLimits) != len(config.PowerSupply.ChannelCurrentLimits) {
			return fmt.Errorf("channel voltage and current limit lists differ in length")
		}
	}

	if config.Oven.Enabled {
		if !config.PowerSupply.Enabled || !config.DAQ.Enabled {
			return fmt.Errorf("oven requires both power supply and DAQ to be enabled")
		}
		if config.Oven.SupplyChannel < 1 {
			return fmt.Errorf("oven supply channel must be 1-based")
		}
		if config.Oven.SamplePeriod <= 0 {
			return fmt.Errorf("oven sample period must be positive")
		}
	}

	return nil
}
