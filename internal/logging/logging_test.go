package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewJSONWritesStructuredRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "json")
	logger.Info("sale recorded", "receipt", "R-20260101-0001")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "sale recorded", record["msg"])
	require.Equal(t, "R-20260101-0001", record["receipt"])
	require.Contains(t, record, "source")
}

func TestNewTextIsDefault(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf, "").Warn("cart flush failed")
	require.Contains(t, buf.String(), "level=WARN")
}

func TestOrDefault(t *testing.T) {
	require.Same(t, slog.Default(), OrDefault(nil))
	custom := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	require.Same(t, custom, OrDefault(custom))
}
