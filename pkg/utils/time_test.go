package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNow_IsUTC(t *testing.T) {
	now := Now()
	assert.Equal(t, time.UTC, now.Location())
}

func TestStartOfDayIn(t *testing.T) {
	adelaide, err := time.LoadLocation("Australia/Adelaide")
	require.NoError(t, err)

	// 2025-06-01 20:30 UTC is already 2025-06-02 06:00 in Adelaide (+09:30).
	at := time.Date(2025, 6, 1, 20, 30, 0, 0, time.UTC)
	start := StartOfDayIn(at, adelaide)

	assert.Equal(t, 2025, start.Year())
	assert.Equal(t, time.June, start.Month())
	assert.Equal(t, 2, start.Day())
	assert.Equal(t, 0, start.Hour())
	assert.Equal(t, adelaide, start.Location())
	assert.True(t, start.Before(at) || start.Equal(at))
}

func TestStartOfDayIn_UTC(t *testing.T) {
	at := time.Date(2025, 3, 15, 13, 45, 12, 0, time.UTC)
	start := StartOfDayIn(at, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), start)
}

func TestFormatISO8601(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "2025-01-02T03:04:05Z", FormatISO8601(at))
}
