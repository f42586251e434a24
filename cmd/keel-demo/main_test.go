package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadConfig_FromEnvFile(t *testing.T) {
	t.Setenv("KEEL_ADDR", "")
	t.Setenv("KEEL_ENV", "")
	t.Setenv("KEEL_LOG_LEVEL", "")

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("KEEL_ADDR=:9090\nKEEL_LOG_LEVEL=debug\n"), 0o600))

	// godotenv.Load does not override variables that are already set, even
	// when empty, so clear them first.
	require.NoError(t, os.Unsetenv("KEEL_ADDR"))
	require.NoError(t, os.Unsetenv("KEEL_LOG_LEVEL"))

	cfg := LoadConfig(path)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "debug", cfg.LogLevel)

	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestConfig_InvalidLogLevel(t *testing.T) {
	cfg := &Config{LogLevel: "loud"}

	_, err := cfg.NewLogger()
	assert.Error(t, err)
}

func TestHelloEndpoint(t *testing.T) {
	c, err := buildContainer(zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Dispose() })

	router := newRouter(c, zap.NewNop())

	var counts []float64

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hello", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "hello from keel", body["message"])
		assert.NotEmpty(t, body["request_id"])

		counts = append(counts, body["count"].(float64))
	}

	assert.Equal(t, []float64{1, 2}, counts)
}
