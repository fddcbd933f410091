package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "ORDERSYNC_CARRIER_API_KEY", EnvKey("carrier.api_key"))
	assert.Equal(t, "ORDERSYNC_STORE_PATH", EnvKey("store-path"))
}

func TestGetStringFallsBackToEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("ORDERSYNC_CARRIER_URL", "https://carrier.test")
	assert.Equal(t, "https://carrier.test", GetString("carrier.url"))

	viper.Set("carrier.url", "https://override.test")
	assert.Equal(t, "https://override.test", GetString("carrier.url"))

	assert.Equal(t, "files", GetStringDefault("store.backend", "files"))
}

func TestTypedGetters(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("ORDERSYNC_SYNC_INTERVAL", "90s")
	d, err := GetDuration("sync.interval", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	d, err = GetDuration("carrier.timeout", 15*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, d)

	t.Setenv("ORDERSYNC_CARRIER_TIMEOUT", "soon")
	_, err = GetDuration("carrier.timeout", 0)
	assert.Error(t, err)

	t.Setenv("ORDERSYNC_PAYMENT_ADVANCE_PERCENT", "12")
	n, err := GetInt("payment.advance_percent", 10)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	t.Setenv("ORDERSYNC_ALLOCATE_REMAINDER", "true")
	assert.True(t, GetBool("allocate.remainder"))
	viper.Set("allocate.remainder", false)
	assert.False(t, GetBool("allocate.remainder"))
}
