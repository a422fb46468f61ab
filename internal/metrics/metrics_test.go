package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()
	m.MessageIn("light_and_heavy/move")
	m.MessageIn("light_and_heavy/move")
	m.Drop("parse_fault")
	m.ObservePolicy(time.Millisecond)

	if got := testutil.ToFloat64(m.Inbound.WithLabelValues("light_and_heavy/move")); got != 2 {
		t.Errorf("inbound = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Dropped.WithLabelValues("parse_fault")); got != 1 {
		t.Errorf("dropped = %v, want 1", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.MessageIn("x")
	m.Drop("x")
	m.MessageOut("x")
	m.Transition("x")
	m.GameFinished("x")
	m.ObservePolicy(time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.Transition("playing")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), `lhbot_session_transitions_total{phase="playing"} 1`) {
		t.Errorf("metrics output lacks transition counter:\n%s", rec.Body.String())
	}
}
