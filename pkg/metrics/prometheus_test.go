package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegisterer(reg)

	r.RecordBroadcast("WDOV25-M1", 2)
	r.RecordBroadcast("WDOV25-M1", 3)
	r.RecordSendFailure("WDOV25-M1")
	r.RecordRefresherActive(1)
	r.RecordRefresherActive(1)
	r.RecordRefresherActive(-1)

	if got := testutil.ToFloat64(r.broadcasts.WithLabelValues("WDOV25-M1")); got != 2 {
		t.Fatalf("broadcasts = %v", got)
	}
	if got := testutil.ToFloat64(r.delivered.WithLabelValues("WDOV25-M1")); got != 5 {
		t.Fatalf("delivered = %v", got)
	}
	if got := testutil.ToFloat64(r.sendFailures.WithLabelValues("WDOV25-M1")); got != 1 {
		t.Fatalf("send failures = %v", got)
	}
	if got := testutil.ToFloat64(r.refreshersAlive); got != 1 {
		t.Fatalf("refreshers = %v", got)
	}
}

func TestRecorderSubscribersZeroRemovesSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegisterer(reg)

	r.RecordSubscribers("A-M1", 2)
	if n := testutil.CollectAndCount(r.subscribers); n != 1 {
		t.Fatalf("expected 1 series, got %d", n)
	}
	r.RecordSubscribers("A-M1", 0)
	if n := testutil.CollectAndCount(r.subscribers); n != 0 {
		t.Fatalf("expected 0 series, got %d", n)
	}
}
