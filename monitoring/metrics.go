// Package monitoring collects in-process service metrics.
package monitoring

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// MetricType is the Prometheus type of a metric.
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
)

// Metric is one observed value.
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// series accumulates a metric for one label set.
type series struct {
	metric Metric
	count  int64
	sum    float64
	min    float64
	max    float64
}

// MetricsCollector aggregates counters, gauges and latency observations.
type MetricsCollector struct {
	series      map[string]*series
	metricsLock sync.RWMutex

	startTime time.Time
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		series:    make(map[string]*series),
		startTime: time.Now(),
	}
}

// RecordMetric folds one observation into its series. Counters add, gauges
// replace, histograms keep count/sum/min/max.
func (mc *MetricsCollector) RecordMetric(metric Metric) {
	mc.metricsLock.Lock()
	defer mc.metricsLock.Unlock()

	metric.Timestamp = time.Now()
	key := seriesKey(metric.Name, metric.Labels)
	s, ok := mc.series[key]
	if !ok {
		s = &series{metric: metric, min: metric.Value, max: metric.Value}
		s.metric.Value = 0
		mc.series[key] = s
	}

	s.count++
	s.sum += metric.Value
	if metric.Value < s.min {
		s.min = metric.Value
	}
	if metric.Value > s.max {
		s.max = metric.Value
	}
	s.metric.Timestamp = metric.Timestamp
	switch metric.Type {
	case MetricTypeCounter:
		s.metric.Value += metric.Value
	default:
		s.metric.Value = metric.Value
	}
}

func (mc *MetricsCollector) IncrCounter(name string, labels map[string]string) {
	mc.RecordMetric(Metric{Name: name, Type: MetricTypeCounter, Value: 1, Labels: labels})
}

func (mc *MetricsCollector) SetGauge(name string, value float64, labels map[string]string) {
	mc.RecordMetric(Metric{Name: name, Type: MetricTypeGauge, Value: value, Labels: labels})
}

// ObserveDuration records a latency in seconds.
func (mc *MetricsCollector) ObserveDuration(name string, d time.Duration, labels map[string]string) {
	mc.RecordMetric(Metric{Name: name, Type: MetricTypeHistogram, Value: d.Seconds(), Labels: labels})
}

// Value returns the current value of a series.
func (mc *MetricsCollector) Value(name string, labels map[string]string) (float64, bool) {
	mc.metricsLock.RLock()
	defer mc.metricsLock.RUnlock()

	s, ok := mc.series[seriesKey(name, labels)]
	if !ok {
		return 0, false
	}
	return s.metric.Value, true
}

// Summary describes one series.
type Summary struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Labels    map[string]string `json:"labels,omitempty"`
	Value     float64           `json:"value"`
	Count     int64             `json:"count"`
	Average   float64           `json:"average"`
	Min       float64           `json:"min"`
	Max       float64           `json:"max"`
	Timestamp time.Time         `json:"timestamp"`
}

// Snapshot returns every series sorted by name and labels.
func (mc *MetricsCollector) Snapshot() []Summary {
	mc.metricsLock.RLock()
	defer mc.metricsLock.RUnlock()

	keys := make([]string, 0, len(mc.series))
	for key := range mc.series {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]Summary, 0, len(keys))
	for _, key := range keys {
		s := mc.series[key]
		summary := Summary{
			Name:      s.metric.Name,
			Type:      s.metric.Type,
			Labels:    s.metric.Labels,
			Value:     s.metric.Value,
			Count:     s.count,
			Min:       s.min,
			Max:       s.max,
			Timestamp: s.metric.Timestamp,
		}
		if s.count > 0 {
			summary.Average = s.sum / float64(s.count)
		}
		out = append(out, summary)
	}
	return out
}

// ExportPrometheus renders the collector in the Prometheus text format.
// Histograms are exported as _count and _sum.
func (mc *MetricsCollector) ExportPrometheus() string {
	var b strings.Builder
	typed := make(map[string]bool)
	for _, s := range mc.Snapshot() {
		if !typed[s.Name] {
			promType := s.Type
			if promType == MetricTypeHistogram {
				promType = "summary"
			}
			fmt.Fprintf(&b, "# TYPE %s %s\n", s.Name, promType)
			typed[s.Name] = true
		}
		labels := formatLabels(s.Labels)
		if s.Type == MetricTypeHistogram {
			fmt.Fprintf(&b, "%s_count%s %d\n", s.Name, labels, s.Count)
			fmt.Fprintf(&b, "%s_sum%s %g\n", s.Name, labels, s.Average*float64(s.Count))
			continue
		}
		fmt.Fprintf(&b, "%s%s %g\n", s.Name, labels, s.Value)
	}
	return b.String()
}

func (mc *MetricsCollector) GetUptime() time.Duration {
	return time.Since(mc.startTime)
}

// GetSystemStats reports process-level runtime statistics.
func (mc *MetricsCollector) GetSystemStats() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"uptime":     mc.GetUptime().String(),
		"goroutines": runtime.NumGoroutine(),
		"memory": map[string]interface{}{
			"heap_alloc": m.HeapAlloc,
			"heap_sys":   m.HeapSys,
			"gc_count":   m.NumGC,
		},
		"num_cpu": runtime.NumCPU(),
	}
}

func seriesKey(name string, labels map[string]string) string {
	return name + formatLabels(labels)
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%q", k, labels[k])
	}
	return "{" + strings.Join(parts, ",") + "}"
}
