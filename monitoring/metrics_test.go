package monitoring

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCounterAccumulates(t *testing.T) {
	mc := NewMetricsCollector()
	labels := map[string]string{"outcome": "ok"}
	for i := 0; i < 3; i++ {
		mc.IncrCounter("predictions_total", labels)
	}
	mc.IncrCounter("predictions_total", map[string]string{"outcome": "invalid"})

	v, ok := mc.Value("predictions_total", labels)
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)

	_, ok = mc.Value("predictions_total", nil)
	assert.False(t, ok)
}

func TestGaugeReplaces(t *testing.T) {
	mc := NewMetricsCollector()
	mc.SetGauge("model_features", 12, nil)
	mc.SetGauge("model_features", 14, nil)

	v, _ := mc.Value("model_features", nil)
	assert.Equal(t, 14.0, v)
}

func TestObserveDurationSummary(t *testing.T) {
	mc := NewMetricsCollector()
	mc.ObserveDuration("predict_seconds", 100*time.Millisecond, nil)
	mc.ObserveDuration("predict_seconds", 300*time.Millisecond, nil)

	snapshot := mc.Snapshot()
	assert.Len(t, snapshot, 1)
	assert.Equal(t, int64(2), snapshot[0].Count)
	assert.InDelta(t, 0.2, snapshot[0].Average, 1e-9)
	assert.InDelta(t, 0.1, snapshot[0].Min, 1e-9)
	assert.InDelta(t, 0.3, snapshot[0].Max, 1e-9)
}

func TestExportPrometheus(t *testing.T) {
	mc := NewMetricsCollector()
	mc.IncrCounter("http_requests_total", map[string]string{"path": "/", "code": "200"})
	mc.ObserveDuration("predict_seconds", time.Second, nil)

	out := mc.ExportPrometheus()
	assert.Contains(t, out, "# TYPE http_requests_total counter")
	assert.Contains(t, out, `http_requests_total{code="200",path="/"} 1`)
	assert.Contains(t, out, "predict_seconds_count 1")
	assert.Contains(t, out, "predict_seconds_sum 1")
}

func TestCollectorConcurrentUse(t *testing.T) {
	mc := NewMetricsCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mc.IncrCounter("hits", nil)
		}()
	}
	wg.Wait()

	v, _ := mc.Value("hits", nil)
	assert.Equal(t, 50.0, v)
}
