package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform")
	t.Setenv("REDIS_URL", "redis://platform:6379/0")
	t.Setenv("PORT", "9090")

	cfg := Config{Addr: defaultAddr}
	cfg.applyPlatformDefaults()

	assert.Equal(t, "postgres://platform", cfg.DatabaseURL)
	assert.Equal(t, "redis://platform:6379/0", cfg.Redis.URL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)

	explicit := Config{Addr: "127.0.0.1:7000", DatabaseURL: "postgres://explicit"}
	explicit.applyPlatformDefaults()
	assert.Equal(t, "postgres://explicit", explicit.DatabaseURL)
	assert.Equal(t, "127.0.0.1:7000", explicit.Addr)
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		DatabaseURL: "postgres://x",
		Checkout:    CheckoutConfig{SessionTTL: time.Minute, SweepInterval: time.Second},
	}
	require.NoError(t, valid.validate())

	noDB := valid
	noDB.DatabaseURL = ""
	assert.ErrorContains(t, noDB.validate(), "database URL")

	noTTL := valid
	noTTL.Checkout.SessionTTL = 0
	assert.Error(t, noTTL.validate())
}
