package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name       string
		production bool
		level      string
		enabled    zapcore.Level
		disabled   zapcore.Level
	}{
		{name: "production info", production: true, level: "info", enabled: zapcore.InfoLevel, disabled: zapcore.DebugLevel},
		{name: "development debug", production: false, level: "debug", enabled: zapcore.DebugLevel, disabled: zapcore.DebugLevel - 1},
		{name: "unknown level falls back to info", production: true, level: "chatty", enabled: zapcore.InfoLevel, disabled: zapcore.DebugLevel},
		{name: "warn", production: false, level: "warn", enabled: zapcore.WarnLevel, disabled: zapcore.InfoLevel},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			logger, err := NewLogger(tc.production, tc.level)
			require.NoError(t, err)

			core := logger.Desugar().Core()
			require.True(t, core.Enabled(tc.enabled))
			require.False(t, core.Enabled(tc.disabled))
		})
	}
}
