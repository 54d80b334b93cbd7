package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestHTTPMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.Observe("PATCH", "/api/v1/seller/orders/{id}/status", 200, 40*time.Millisecond)
	m.Observe("PATCH", "/api/v1/seller/orders/{id}/status", 200, 10*time.Millisecond)
	m.Observe("GET", "", 404, time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	got, err := fetchCounterValue(mfs, "thalibox_http_requests_total", "route", "/api/v1/seller/orders/{id}/status")
	if err != nil {
		t.Fatalf("fetch requests: %v", err)
	}
	if got != 2 {
		t.Fatalf("expected 2 requests, got %f", got)
	}
	if _, err := fetchCounterValue(mfs, "thalibox_http_requests_total", "route", "unmatched"); err != nil {
		t.Fatalf("expected unmatched route label: %v", err)
	}
}

func TestRealtimeMetricsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRealtimeMetrics(reg)
	m.Connected()
	m.Connected()
	m.Disconnected()
	m.Delivered("settlementProcessed")
	m.Dropped()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	mf := findMetricFamily(mfs, "thalibox_realtime_connections")
	if mf == nil {
		t.Fatal("connections gauge missing")
	}
	if v := mf.GetMetric()[0].GetGauge().GetValue(); v != 1 {
		t.Fatalf("expected 1 connection, got %f", v)
	}
	if got, err := fetchCounterValue(mfs, "thalibox_realtime_events_delivered_total", "event", "settlementProcessed"); err != nil || got != 1 {
		t.Fatalf("expected one delivered event, got %f (%v)", got, err)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var h *HTTPMetrics
	h.Observe("GET", "/", 200, time.Millisecond)
	var r *RealtimeMetrics
	r.Connected()
	r.Dropped()
	NewRealtimeMetrics(nil).Delivered("x")
}
