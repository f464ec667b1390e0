package service

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceMileageCounters(t *testing.T) {
	m := NewMetricsService()
	m.RecordMileageWrite("submit", "created")
	m.RecordMileageWrite("submit", "created")
	m.RecordMileageStatus("ALERT", "override")
	m.RecordMileageStatus("", "engine")
	m.RecordSkippedImages(2)
	m.RecordSkippedImages(0)
	m.RecordRecalculated(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.mileageWrites.WithLabelValues("submit", "created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mileageStatus.WithLabelValues("ALERT", "override")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.skippedImages))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.recalculated))
}

func TestMetricsServiceHandlerExposesCollectors(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest("POST", "/api/v1/mileage", 201, 20*time.Millisecond)
	m.ObserveDBQuery("mileage_upsert_daily", time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "http_requests_total"))
	assert.True(t, strings.Contains(body, `db_query_duration_seconds_count{query="mileage_upsert_daily"} 1`))
	assert.True(t, strings.Contains(body, "mileage_api_cache_hit_ratio 1"))
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	assert.NotPanics(t, func() {
		m.RecordMileageWrite("save", "created")
		m.RecordRecalculated(1)
		m.ObserveDBQuery("x", time.Second)
	})
}

func TestMetricsServiceTracksQueueDepth(t *testing.T) {
	m := NewMetricsService()
	depth := 4
	m.TrackQueueDepth("mileage-blob-cleanup", func() int { return depth })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `mileage_api_jobs_queue_depth{queue="mileage-blob-cleanup"} 4`)
}
