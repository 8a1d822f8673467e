package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"fanliga/internal/gateway"
	"fanliga/internal/gateway/memory"
	"fanliga/internal/seed"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, OutcomeOK},
		{fmt.Errorf("wrap: %w", gateway.ErrNotFound), OutcomeNotFound},
		{gateway.ErrUnauthorized, OutcomeUnauthorized},
		{gateway.ErrMalformed, OutcomeMalformed},
		{gateway.ErrUnavailable, OutcomeUnavailable},
		{context.Canceled, OutcomeCanceled},
		{errors.New("other"), OutcomeError},
	}
	for _, tt := range tests {
		if got := Outcome(tt.err); got != tt.want {
			t.Errorf("Outcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestInstrumentGateway(t *testing.T) {
	m := NewManager()
	gw := InstrumentGateway(memory.New(seed.Demo(), memory.Credentials{}), m)

	if _, err := gw.ListParticipants(context.Background()); err != nil {
		t.Fatalf("ListParticipants: %v", err)
	}
	if _, err := gw.RankHistory(context.Background(), "nobody"); err == nil {
		t.Fatal("expected not found for unknown participant")
	}
	if err := gw.DeletePenalty(context.Background(), "p1"); err == nil {
		t.Fatal("expected unauthorized delete without token")
	}

	if got := testutil.ToFloat64(m.gatewayCalls.WithLabelValues("list_participants", OutcomeOK)); got != 1 {
		t.Errorf("list_participants ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.gatewayCalls.WithLabelValues("rank_history", OutcomeNotFound)); got != 1 {
		t.Errorf("rank_history not_found = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.gatewayCalls.WithLabelValues("delete_penalty", OutcomeUnauthorized)); got != 1 {
		t.Errorf("delete_penalty unauthorized = %v, want 1", got)
	}
}

func TestManagerHandler(t *testing.T) {
	m := NewManager(WithNamespace("test"))
	m.ObserveHTTP("/ledger", http.MethodGet, http.StatusOK, 20*time.Millisecond)
	m.SessionTransition("authenticated")
	m.ViewDiscarded("ledger")
	m.ChangePublished("penalty_inserted", nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`test_http_requests_total{method="GET",route="/ledger",status_code="200"} 1`,
		`test_session_transitions_total{state="authenticated"} 1`,
		`test_views_discarded_total{view="ledger"} 1`,
		`test_amqp_changes_published_total{kind="penalty_inserted",result="ok"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestManagerMirrorSynced(t *testing.T) {
	m := NewManager()
	at := time.Unix(1_700_000_000, 0)
	m.MirrorSynced("startup", nil, at)
	m.MirrorSynced("change", errors.New("quota"), at.Add(time.Minute))

	if got := testutil.ToFloat64(m.mirrorSyncs.WithLabelValues("startup", "ok")); got != 1 {
		t.Errorf("startup ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.mirrorSyncs.WithLabelValues("change", "error")); got != 1 {
		t.Errorf("change error = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.mirrorLastSuccess); got != float64(at.Unix()) {
		t.Errorf("last success = %v, want %v", got, at.Unix())
	}
}

func TestManagerOptions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewManager(WithRegistry(reg), WithHistogramBuckets([]float64{0.1, 1}))
	m.ObserveGatewayCall("list_penalties", OutcomeOK, 50*time.Millisecond)

	if m.Registry() != reg {
		t.Fatal("manager does not use the given registry")
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() != "fanliga_gateway_call_duration_seconds" {
			continue
		}
		buckets := f.GetMetric()[0].GetHistogram().GetBucket()
		if len(buckets) != 2 || buckets[0].GetUpperBound() != 0.1 || buckets[0].GetCumulativeCount() != 1 {
			t.Errorf("buckets = %v", buckets)
		}
		return
	}
	t.Error("gateway latency histogram not registered")
}
