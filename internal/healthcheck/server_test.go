package healthcheck

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestHandleHealth(t *testing.T) {
	s := NewServer("0", zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "UP", resp.Status)
}

func TestHandleReady(t *testing.T) {
	t.Run("AllChecksPass", func(t *testing.T) {
		s := NewServer("0", zaptest.NewLogger(t))
		s.AddReadyCheck("database", func(ctx context.Context) error { return nil })

		rec := httptest.NewRecorder()
		s.handleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "READY", resp.Status)
		assert.Equal(t, "ok", resp.Details["database"])
	})

	t.Run("FailingCheckReportsUnavailable", func(t *testing.T) {
		s := NewServer("0", zaptest.NewLogger(t))
		s.AddReadyCheck("database", func(ctx context.Context) error { return errors.New("connection refused") })

		rec := httptest.NewRecorder()
		s.handleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "NOT_READY", resp.Status)
		assert.Equal(t, "connection refused", resp.Details["database"])
	})
}
