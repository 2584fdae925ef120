// File: internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/uipilot/internal/config"
)

// testSyncer adapts a bytes.Buffer to zapcore.WriteSyncer.
type testSyncer struct {
	bytes.Buffer
}

func (t *testSyncer) Sync() error { return nil }

func TestInitializeJSONFormat(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	buf := &testSyncer{}
	Initialize(config.LoggerConfig{
		Level:       "debug",
		Format:      "json",
		ServiceName: "uipilot-test",
	}, buf)

	logger := GetLogger()
	require.NotNil(t, logger)
	logger.Info("element located")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "element located", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "uipilot-test", entry["logger"])
}

func TestInitializeRespectsLevel(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	buf := &testSyncer{}
	Initialize(config.LoggerConfig{Level: "warn", Format: "json"}, buf)

	GetLogger().Info("suppressed")
	assert.Zero(t, buf.Len())

	GetLogger().Warn("surfaced")
	assert.NotZero(t, buf.Len())
}

func TestInitializeRunsOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	first := &testSyncer{}
	second := &testSyncer{}
	Initialize(config.LoggerConfig{Level: "info", Format: "json"}, first)
	Initialize(config.LoggerConfig{Level: "info", Format: "json"}, second)

	GetLogger().Info("routed to the first writer")
	assert.NotZero(t, first.Len())
	assert.Zero(t, second.Len())
}

func TestGetLoggerFallback(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	// No Initialize call; the fallback must still hand out a usable logger.
	logger := GetLogger()
	require.NotNil(t, logger)
	logger.Debug("fallback logger is safe to use")
}

func TestInvalidLevelDefaultsToInfo(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	buf := &testSyncer{}
	Initialize(config.LoggerConfig{Level: "nonsense", Format: "json"}, buf)

	GetLogger().Debug("below default level")
	assert.Zero(t, buf.Len())

	GetLogger().Info("at default level")
	assert.NotZero(t, buf.Len())
}
