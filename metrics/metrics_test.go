package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewRegistryMetricsAreUsable(t *testing.T) {
	r := NewRegistry()

	r.QueueDepth.Set(3)
	r.ProofDuration.WithLabelValues("local").Observe(1.5)
	r.BackendErrors.WithLabelValues("market", "ExecutionError").Inc()
	r.ProposalsTracked.Set(12)
	r.CacheHits.Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200 from metrics handler, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"kailua_proof_queue_depth",
		"kailua_proof_duration_seconds",
		"kailua_backend_errors_total",
		"kailua_proposals_tracked",
		"kailua_proof_cache_hits_total",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected metrics output to contain %q", want)
		}
	}
}
