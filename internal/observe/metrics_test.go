package observe

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumFor returns the counter value of the data point carrying key=value.
func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not an int64 sum", name)
	}
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value
		}
	}
	t.Fatalf("metric %q has no data point with %s=%s", name, key, value)
	return 0
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestHistograms(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordLookupDuration(ctx, 120*time.Millisecond, 5)
	m.RecordLookupDuration(ctx, 300*time.Millisecond, 0)
	m.RecordTouchupDuration(ctx, 2*time.Second)

	rm := collect(t, reader)

	tests := []struct {
		name  string
		count uint64
	}{
		{"voicewriter.lookup.duration", 2},
		{"voicewriter.touchup.duration", 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a histogram", tc.name)
			}
			var total uint64
			for _, dp := range hist.DataPoints {
				total += dp.Count
			}
			if total != tc.count {
				t.Errorf("sample count = %d, want %d", total, tc.count)
			}
		})
	}
}

func TestProviderCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderRequest(ctx, "crossref", "bibliography", "ok")
	m.RecordProviderRequest(ctx, "crossref", "bibliography", "ok")
	m.RecordProviderRequest(ctx, "crossref", "bibliography", "error")
	m.RecordProviderError(ctx, "crossref", "bibliography")

	rm := collect(t, reader)
	if got := sumFor(t, rm, "voicewriter.provider.requests", "status", "ok"); got != 2 {
		t.Errorf("requests{status=ok} = %d, want 2", got)
	}
	if got := sumFor(t, rm, "voicewriter.provider.errors", "provider", "crossref"); got != 1 {
		t.Errorf("errors{provider=crossref} = %d, want 1", got)
	}
}

func TestDictationCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordUtterance(ctx, "dictate")
	m.RecordUtterance(ctx, "dictate")
	m.RecordUtterance(ctx, "cite")
	m.RecordCitationInserted(ctx, "APA")
	m.RecordToolCall(ctx, "format_citation", "ok")

	rm := collect(t, reader)
	if got := sumFor(t, rm, "voicewriter.dictation.utterances", "intent", "dictate"); got != 2 {
		t.Errorf("utterances{intent=dictate} = %d, want 2", got)
	}
	if got := sumFor(t, rm, "voicewriter.citations.inserted", "style", "APA"); got != 1 {
		t.Errorf("citations.inserted{style=APA} = %d, want 1", got)
	}
	if got := sumFor(t, rm, "voicewriter.tool.calls", "tool", "format_citation"); got != 1 {
		t.Errorf("tool.calls{tool=format_citation} = %d, want 1", got)
	}
}

func TestActiveSessionsGauge(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, -1)

	rm := collect(t, reader)
	met := findMetric(rm, "voicewriter.active_sessions")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) == 0 {
		t.Fatal("metric is not a populated sum")
	}
	if got := sum.DataPoints[0].Value; got != 1 {
		t.Errorf("active_sessions = %d, want 1", got)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}
