package stats

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// One updater for the whole package: expvar registration is global to the
// process and would panic on a second NewStatsUpdater.
func TestStatsUpdater(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	su.Run()
	defer su.Stop()

	t.Run("default metrics registered", func(t *testing.T) {
		for _, name := range defaultMetrics {
			assert.NotNil(t, su.vars.Get(name), "expected %s to be registered", name)
		}
		assert.NotNil(t, su.vars.Get("Uptime"))
	})

	t.Run("incr and decr", func(t *testing.T) {
		su.Incr(MessagesSent)
		su.Incr(MessagesSent)
		su.Decr(MessagesSent)

		assert.Eventually(t, func() bool {
			return su.vars.Get(MessagesSent).String() == "1"
		}, time.Second, 10*time.Millisecond, "expected two increments and one decrement to settle at 1")
	})

	t.Run("custom metric", func(t *testing.T) {
		su.RegisterMetric("CustomMetric")
		su.Incr("CustomMetric")

		assert.Eventually(t, func() bool {
			return su.vars.Get("CustomMetric").String() == "1"
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("expvar handler", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/debug/vars", nil)
		rec := httptest.NewRecorder()

		mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Contains(t, body, FramesReceived)
		assert.Contains(t, body, "Uptime")
	})
}
