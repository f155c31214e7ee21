package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveChat(t *testing.T) {
	m := New()
	m.ObserveChat(OutcomeOK, 2*time.Second)
	m.ObserveChat(OutcomeOK, time.Second)
	m.ObserveChat(OutcomeInvalid, 0)

	if got := testutil.ToFloat64(m.chatRequests.WithLabelValues(OutcomeOK)); got != 2 {
		t.Errorf("ok requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.chatRequests.WithLabelValues(OutcomeInvalid)); got != 1 {
		t.Errorf("invalid requests = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.chatDuration); got != 1 {
		t.Errorf("duration series = %d, want 1", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.SetIndexPassages(42)
	m.ObserveChat(OutcomeRateLimited, 0)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body, _ := io.ReadAll(w.Body)
	for _, want := range []string{
		"kotae_index_passages 42",
		`kotae_chat_requests_total{outcome="rate_limited"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestNew_independentRegistries(t *testing.T) {
	a, b := New(), New()
	a.SetIndexPassages(1)
	b.SetIndexPassages(2)
	if got := testutil.ToFloat64(a.indexPassages); got != 1 {
		t.Errorf("a = %v, want 1", got)
	}
}
