package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CAMPUSSIM_PORT
const EnvPrefix = "CAMPUSSIM"

// Setting keys
const (
	KeyHost          = "host"
	KeyPort          = "port"
	KeyScenariosDir  = "scenariosDir"
	KeyLogLevel      = "logLevel"
	KeyTickInterval  = "tickInterval"
	KeyRunMaxAge     = "runMaxAge"
	KeyMCPEnabled    = "mcp.enabled"
	KeyMCPAPIBaseURL = "mcp.apiBaseUrl"
)

// Load sets server defaults, binds CAMPUSSIM_ environment overrides and, when
// file is not empty, reads it as JSON.
func Load(file string) error {
	viper.SetDefault(KeyHost, "")
	viper.SetDefault(KeyPort, 8080)
	viper.SetDefault(KeyScenariosDir, "configs")
	viper.SetDefault(KeyLogLevel, "info")
	viper.SetDefault(KeyTickInterval, "200ms")
	viper.SetDefault(KeyRunMaxAge, "1h")
	viper.SetDefault(KeyMCPEnabled, false)
	viper.SetDefault(KeyMCPAPIBaseURL, "")

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if file == "" {
		return nil
	}

	viper.SetConfigFile(file)
	viper.SetConfigType("json")
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// GetString returns a string setting.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int setting.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool setting.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration setting.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// Set overrides a setting, typically from a command-line flag.
func Set(key string, value any) {
	viper.Set(key, value)
}

// Addr returns the host:port the server listens on
func Addr() string {
	return fmt.Sprintf("%s:%d", viper.GetString(KeyHost), viper.GetInt(KeyPort))
}

// LogLevel maps the logLevel setting to a zerolog level, defaulting to info
func LogLevel() zerolog.Level {
	switch strings.ToUpper(viper.GetString(KeyLogLevel)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "DISABLED":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
