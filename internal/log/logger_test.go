package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductionLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("production", &buf)

	logger.Info().Int64("user_id", 7).Msg("license activated")
	logger.Debug().Msg("suppressed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "license activated", entry["message"])
	assert.Equal(t, "production", entry["env"])
	assert.Equal(t, "taskboard-api", entry["service"])
	assert.EqualValues(t, 7, entry["user_id"])
}

func TestDevelopmentLoggerIsHumanReadable(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("development", &buf)

	logger.Debug().Msg("visible")
	assert.Contains(t, buf.String(), "visible")
	assert.Contains(t, buf.String(), "development")
	assert.NotContains(t, buf.String(), "{")
}
