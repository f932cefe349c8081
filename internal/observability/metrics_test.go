package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveExternalCall(t *testing.T) {
	m := NewMetrics("fracpool_test")

	start := time.Now().Add(-10 * time.Millisecond)
	m.ObserveExternalCall("vault", "submit_transaction", start, nil)
	m.ObserveExternalCall("vault", "submit_transaction", start, errors.New("connection refused"))

	if got := testutil.ToFloat64(m.ExternalCallErrors.WithLabelValues("vault", "submit_transaction")); got != 1 {
		t.Errorf("error count: got %v, want 1", got)
	}
	// Both calls land in the same latency series.
	if got := testutil.CollectAndCount(m.ExternalCallLatency); got != 1 {
		t.Errorf("latency series: got %d, want 1", got)
	}
}

func TestObserveExternalCallNilReceiver(t *testing.T) {
	var m *Metrics
	// Engines without metrics wired call through a nil receiver.
	m.ObserveExternalCall("ledger", "get_balance", time.Now(), nil)
}
