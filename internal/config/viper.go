// Package config reads settings through viper, falling back to the OS
// environment for keys viper has not bound.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/agentstation/ordersync/pkg/errors"
)

// EnvPrefix prefixes every environment variable read by ordersync.
const EnvPrefix = "ORDERSYNC"

var envReplacer = strings.NewReplacer(".", "_", "-", "_")

// EnvKey returns the environment variable for a dotted viper key
// ("carrier.api_key" -> "ORDERSYNC_CARRIER_API_KEY").
func EnvKey(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(envReplacer.Replace(key))
}

// Setup binds viper to the ORDERSYNC_ environment.
func Setup(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()
}

// GetString is a helper to get string values from Viper.
// It checks both OS environment variables and Viper configuration.
func GetString(key string) string {
	viperValue := viper.GetString(key)
	if viperValue != "" {
		return viperValue
	}
	// Check OS env directly when viper has nothing
	if osValue := os.Getenv(EnvKey(key)); osValue != "" {
		return osValue
	}
	return os.Getenv(key)
}

// GetStringDefault returns the value for key or def when it is unset.
func GetStringDefault(key, def string) string {
	if v := GetString(key); v != "" {
		return v
	}
	return def
}

// GetBool returns the boolean value for key. Unparseable values are false.
func GetBool(key string) bool {
	if viper.IsSet(key) {
		return viper.GetBool(key)
	}
	b, _ := strconv.ParseBool(GetString(key))
	return b
}

// GetDuration returns the duration for key, or def when unset.
func GetDuration(key string, def time.Duration) (time.Duration, error) {
	raw := GetString(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.NewConfigError(key, "invalid duration "+strconv.Quote(raw), err)
	}
	return d, nil
}

// GetInt returns the integer for key, or def when unset.
func GetInt(key string, def int) (int, error) {
	raw := GetString(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, errors.NewConfigError(key, "invalid integer "+strconv.Quote(raw), err)
	}
	return n, nil
}
