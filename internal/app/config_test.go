package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Every knob has a default; a bare environment must boot.
func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("STOCK_UNIT", "boxes")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 720*time.Hour, cfg.SessionTTL)
	require.Equal(t, 10*time.Minute, cfg.ForecastCacheTTL)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsUnknownStockUnit(t *testing.T) {
	t.Setenv("STOCK_UNIT", "crates")
	_, err := LoadConfig()
	require.Error(t, err)
}
