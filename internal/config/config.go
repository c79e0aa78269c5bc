// Package config loads console settings from a JSON file with viper,
// backed by defaults for every tunable.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// JournalConfig holds journal backend settings.
type JournalConfig struct {
	Backend string `json:"backend" mapstructure:"backend"`
	Path    string `json:"path" mapstructure:"path"`
}

// OTelConfig holds OpenTelemetry exporter settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. A missing file is
// not an error; defaults apply.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./consolelogs")

	viper.SetDefault("server.baseUrl", "http://localhost:8000")
	viper.SetDefault("server.websocketUrl", "ws://localhost:8000/ws/telemetry")
	viper.SetDefault("server.requestTimeoutMs", 5000)

	viper.SetDefault("vehicles.connectionTimeoutMs", 5000)

	viper.SetDefault("mission.arrivalThresholdM", 5.0)
	viper.SetDefault("mission.surveyClearDelayMs", 3000)

	viper.SetDefault("safety.warningThresholdM", 490.0)
	viper.SetDefault("safety.dangerThresholdM", 500.0)

	viper.SetDefault("guidance.straightToleranceDeg", 15.0)
	viper.SetDefault("guidance.stationarySpeed", 0.5)
	viper.SetDefault("guidance.comfortMinSpeed", 1.0)
	viper.SetDefault("guidance.comfortMaxSpeed", 8.0)

	viper.SetDefault("poll.intervalMs", 2000)
	viper.SetDefault("poll.pendingExpiryMs", 10000)

	viper.SetDefault("reconnect.baseDelayMs", 1000)
	viper.SetDefault("reconnect.maxDelayMs", 10000)

	viper.SetDefault("liveness.checkIntervalMs", 1000)

	viper.SetDefault("journal.backend", "sqlite")
	viper.SetDefault("journal.path", "./console.db")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "console")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "console-metrics")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "groundlink-console")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetConfigName("console.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetFloat returns a float64 config value.
func GetFloat(key string) float64 {
	return viper.GetFloat64(key)
}

// GetDurationMs reads an integer millisecond value as a duration.
func GetDurationMs(key string) time.Duration {
	return time.Duration(viper.GetInt(key)) * time.Millisecond
}

// GetJournalConfig returns journal settings.
func GetJournalConfig() JournalConfig {
	return JournalConfig{
		Backend: viper.GetString("journal.backend"),
		Path:    viper.GetString("journal.path"),
	}
}

// GetOTelConfig returns OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}
