package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRouteCountsByResult(t *testing.T) {
	c := New()
	c.ObserveRoute("routed", 10*time.Millisecond)
	c.ObserveRoute("routed", 20*time.Millisecond)
	c.ObserveRoute("rejected", time.Millisecond)

	if got := testutil.ToFloat64(c.routeResults.WithLabelValues("routed")); got != 2 {
		t.Fatalf("expected 2 routed, got %v", got)
	}
	if got := testutil.ToFloat64(c.routeResults.WithLabelValues("rejected")); got != 1 {
		t.Fatalf("expected 1 rejected, got %v", got)
	}
}

func TestHandlerExposesSyncCounters(t *testing.T) {
	c := New()
	c.ObserveSync("property", "applied", time.Millisecond)
	c.IncDeadLetter("property", "malformed")
	c.AddPurged(3)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`searchahouse_indexsync_events_total{entity_type="property",result="applied"} 1`,
		`searchahouse_indexsync_dead_letters_total{entity_type="property",reason="malformed"} 1`,
		`searchahouse_indexsync_tombstones_purged_total 3`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("expected exposition to contain %q", want)
		}
	}
}
