package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/sma-adp-comments/pkg/consistency"
	"github.com/noah-isme/sma-adp-comments/pkg/middleware/requestid"
)

// counterValue sums a counter family over the series matching labels.
func counterValue(t *testing.T, m *MetricsService, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var total float64
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	series:
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if want, ok := labels[pair.GetName()]; ok && want != pair.GetValue() {
					continue series
				}
			}
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func TestMetricsServiceConsistency(t *testing.T) {
	m := NewMetricsService()

	m.ObserveConsistencyWait("create", "Comment", true, 200*time.Millisecond)
	m.ObserveConsistencyWait("create", "Comment", false, 5*time.Second)
	m.ObserveConsistencyWait("delete", "Comment", false, 5*time.Second)

	assert.Equal(t, float64(1), counterValue(t, m, "entity_consistency_polls_total", map[string]string{"operation": "create", "outcome": "confirmed"}))
	assert.Equal(t, float64(2), counterValue(t, m, "entity_consistency_polls_total", map[string]string{"outcome": "timeout"}))
	assert.Equal(t, float64(1), counterValue(t, m, "entity_consistency_timeouts_total", map[string]string{"operation": "delete", "entity": "Comment"}))
}

func TestMetricsServiceSearchAndHandler(t *testing.T) {
	m := NewMetricsService()
	m.RecordSearchOperation("put", "success")
	m.RecordSearchOperation("put", "error")
	m.ObserveHTTPRequest(http.MethodGet, "/comments/:id", http.StatusOK, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.ObserveDBQuery("comments.lookup", time.Millisecond)

	assert.Equal(t, float64(1), counterValue(t, m, "search_index_operations_total", map[string]string{"operation": "put", "outcome": "error"}))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "http_requests_total"))
	assert.True(t, strings.Contains(body, "cache_hit_ratio 1"))
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	assert.NotPanics(t, func() {
		m.ObserveConsistencyWait("create", "Comment", false, time.Second)
		m.RecordSearchOperation("put", "success")
		m.RecordCacheOperation(false, time.Millisecond)
	})
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStoreEventsTimeout(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	m := NewMetricsService()
	events := NewStoreEvents(zap.New(core), m)
	ctx := requestid.WithValue(context.Background(), "req-1")

	events.ConsistencyTimeout(ctx, "create", "Comment", "Comment[id=<unassigned>]", consistency.Result{
		Attempts: 51,
		Waited:   5 * time.Second,
		LastErr:  errors.New("replica lag"),
	})

	entries := logs.FilterMessage("write not visible before timeout").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "create", fields["operation"])
	assert.Equal(t, "Comment[id=<unassigned>]", fields["identification"])
	assert.Equal(t, 5*time.Second, fields["waited"])
	assert.Equal(t, "replica lag", fields["last_error"])
	assert.Equal(t, float64(1), counterValue(t, m, "entity_consistency_timeouts_total", nil))
}

func TestStoreEventsConfirmedAndExisting(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	m := NewMetricsService()
	events := NewStoreEvents(zap.New(core), m)

	events.ConsistencyConfirmed(context.Background(), "delete", "Comment", consistency.Result{Satisfied: true, Attempts: 2, Waited: 100 * time.Millisecond})
	events.EntityAlreadyExists(context.Background(), "Comment", "Comment[id=3]")

	assert.Equal(t, 1, logs.FilterMessage("write visible").Len())
	assert.Equal(t, 1, logs.FilterMessage("entity already exists").Len())
	assert.Equal(t, float64(1), counterValue(t, m, "entity_consistency_polls_total", map[string]string{"operation": "delete", "outcome": "confirmed"}))
	assert.Zero(t, counterValue(t, m, "entity_consistency_timeouts_total", nil))
}
