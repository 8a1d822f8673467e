package http

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"fanliga/internal/core"
	"fanliga/internal/gateway"
	"fanliga/internal/gateway/memory"
	applog "fanliga/internal/log"
	"fanliga/internal/metrics"
	"fanliga/internal/seed"
	"fanliga/internal/services"
	"fanliga/internal/session"
	"fanliga/internal/views"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "secret"
)

// countingWriter records how many writes reach the backend.
type countingWriter struct {
	gateway.Gateway
	inserts atomic.Int64
}

func (w *countingWriter) InsertPenalty(ctx context.Context, in core.PenaltyInput) (core.PenaltyEntry, error) {
	w.inserts.Add(1)
	return w.Gateway.InsertPenalty(ctx, in)
}

type testServer struct {
	srv     *Server
	writer  *countingWriter
	metrics *metrics.Manager
}

func newTestServer(t *testing.T, ready func(context.Context) error) *testServer {
	t.Helper()
	store := memory.New(seed.Demo(), memory.Credentials{Email: adminEmail, Password: adminPassword})
	backend := services.NewLedgerService(store, nil)
	writer := &countingWriter{Gateway: backend}
	m := metrics.NewManager()

	srv, err := NewServer(Options{
		Addr:     ":0",
		Views:    views.NewService(backend, views.Options{OnDiscard: m.ViewDiscarded}),
		Writer:   writer,
		Sessions: session.NewStore(backend, time.Hour, nil),
		Metrics:  m,
		Ready:    ready,
		Logger:   applog.New(applog.Config{Handler: slog.NewTextHandler(io.Discard, nil)}),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testServer{srv: srv, writer: writer, metrics: m}
}

func (ts *testServer) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	return ts.do(httptest.NewRequest(http.MethodGet, path, nil), cookies...)
}

func (ts *testServer) post(path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return ts.do(req, cookies...)
}

func (ts *testServer) login(t *testing.T) *http.Cookie {
	t.Helper()
	rec := ts.post("/login", url.Values{"email": {adminEmail}, "password": {adminPassword}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("login status = %d, body = %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie && c.Value != "" {
			return c
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil
}

func TestPagesRender(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		path       string
		wantStatus int
		wantBody   []string
	}{
		{"/", http.StatusOK, []string{"Podio · jornada 3", "Bruno", "Últimos movimientos"}},
		{"/ledger", http.StatusOK, []string{`id="ledger"`, "Las Panteras", "entry-p4"}},
		{"/participants", http.StatusOK, []string{"Carmen", "Real Carmen"}},
		{"/participants/1", http.StatusOK, []string{"Ana", "<polyline", "Evolución"}},
		{"/participants/nobody", http.StatusNotFound, []string{"No encontrado"}},
		{"/standings?matchday=1", http.StatusOK, []string{"jornada 1", "+61", `<a href="/participants/4">Diego</a></td><td>-</td>`}},
		{"/standings", http.StatusOK, []string{"jornada 3"}},
		{"/comparison?matchday=1", http.StatusOK, []string{"Comparativa", "amount-negative"}},
		{"/rules", http.StatusOK, []string{`id="articulo-1-objeto"`, `href="#articulo-1-objeto"`}},
		{"/login", http.StatusOK, []string{`name="password"`}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := ts.get(tt.path)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := html.UnescapeString(rec.Body.String())
			for _, want := range tt.wantBody {
				if !strings.Contains(body, want) {
					t.Errorf("body missing %q", want)
				}
			}
			if strings.Contains(body, "admin-form") {
				t.Error("anonymous visitors must not see admin forms")
			}
			if rec.Header().Get("X-Frame-Options") != "DENY" {
				t.Error("security headers missing")
			}
		})
	}
}

func TestLedgerPartialFiltersAndSorts(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.get("/ui/ledger?sort=amount&dir=asc&participant=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "<html") {
		t.Error("partial must not include the page layout")
	}
	p1, p2 := strings.Index(body, "entry-p1"), strings.Index(body, "entry-p2")
	if p1 < 0 || p2 < 0 || p1 > p2 {
		t.Errorf("expected p1 before p2 in ascending amount order (p1=%d, p2=%d)", p1, p2)
	}
	if strings.Contains(body, "entry-p3") {
		t.Error("filter by participant 1 must drop other participants' entries")
	}
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t, nil)
	for _, path := range []string{"/healthz", "/readyz"} {
		if rec := ts.get(path); rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rec.Code)
		}
	}

	down := newTestServer(t, func(context.Context) error { return gateway.ErrUnavailable })
	rec := down.get("/readyz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"not_ready"`) {
		t.Errorf("readyz body = %s", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.get("/ledger")
	ts.get("/participants/7")

	rec := ts.get("/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`fanliga_http_requests_total{method="GET",route="/ledger",status_code="200"} 1`,
		`fanliga_http_requests_total{method="GET",route="/participants/{id}",status_code="404"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestDiscardedViewWritesNothing(t *testing.T) {
	ts := newTestServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/ledger", nil).WithContext(ctx)
	rec := ts.do(req)
	if rec.Body.Len() != 0 {
		t.Errorf("discarded view wrote %d bytes", rec.Body.Len())
	}
}

func TestAdminRequiresSession(t *testing.T) {
	ts := newTestServer(t, nil)
	form := url.Values{"participant_id": {"1"}, "amount": {"-1"}}

	rec := ts.post("/admin/penalties", form)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Errorf("anonymous post: status = %d, location = %q", rec.Code, rec.Header().Get("Location"))
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/penalties", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	rec = ts.do(req)
	if rec.Code != http.StatusUnauthorized || rec.Header().Get("HX-Redirect") != "/login" {
		t.Errorf("htmx anonymous post: status = %d, redirect = %q", rec.Code, rec.Header().Get("HX-Redirect"))
	}
	if n := ts.writer.inserts.Load(); n != 0 {
		t.Errorf("backend saw %d inserts", n)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.post("/login", url.Values{"email": {adminEmail}, "password": {"nope"}})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "incorrectos") {
		t.Error("expected credential error message")
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			t.Error("failed login must not set a session cookie")
		}
	}
}

func TestCreatePenalty(t *testing.T) {
	ts := newTestServer(t, nil)
	cookie := ts.login(t)

	rec := ts.post("/admin/penalties", url.Values{
		"participant_id": {"2"},
		"amount":         {"-1,5"},
		"date":           {"2025-09-20"},
		"reason":         {"Alineación incompleta"},
	}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	trigger := rec.Header().Get("HX-Trigger")
	for _, want := range []string{`"ledger:changed"`, `"kind":"penalty_inserted"`, `"form:reset"`} {
		if !strings.Contains(trigger, want) {
			t.Errorf("HX-Trigger missing %q: %s", want, trigger)
		}
	}

	ledger := ts.get("/ledger", cookie).Body.String()
	if !strings.Contains(ledger, "Alineación incompleta") {
		t.Error("new entry not listed in ledger")
	}
	if !strings.Contains(ledger, "admin-form") {
		t.Error("admin should see the entry form")
	}
}

func TestCreatePenaltyValidation(t *testing.T) {
	ts := newTestServer(t, nil)
	cookie := ts.login(t)

	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{"missing participant", url.Values{"amount": {"-1"}}, "Selecciona un participante"},
		{"bad amount", url.Values{"participant_id": {"1"}, "amount": {"diez"}}, "Importe no válido"},
		{"bad date", url.Values{"participant_id": {"1"}, "amount": {"2"}, "date": {"20/09/2025"}}, "Fecha no válida"},
		{"reason too long", url.Values{"participant_id": {"1"}, "amount": {"2"}, "reason": {strings.Repeat("x", 201)}}, "Motivo demasiado largo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.post("/admin/penalties", tt.form, cookie)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("body = %s, want %q", rec.Body.String(), tt.want)
			}
		})
	}
	if n := ts.writer.inserts.Load(); n != 0 {
		t.Errorf("invalid submissions reached the backend %d times", n)
	}
}

func TestUpdateAndDeletePenalty(t *testing.T) {
	ts := newTestServer(t, nil)
	cookie := ts.login(t)

	rec := ts.post("/admin/penalties/p3", url.Values{
		"participant_id": {"2"},
		"amount":         {"-4"},
		"date":           {"2025-08-31"},
	}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodDelete, "/admin/penalties/p3/delete", nil)
	rec = ts.do(req, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Header().Get("HX-Trigger"), `"penalty_deleted"`) {
		t.Errorf("HX-Trigger = %s", rec.Header().Get("HX-Trigger"))
	}

	rec = ts.post("/admin/penalties/p3/delete", nil, cookie)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestUpdateParticipant(t *testing.T) {
	ts := newTestServer(t, nil)
	cookie := ts.login(t)

	rec := ts.post("/admin/participants/4", url.Values{"team": {"Los Diegos"}, "photo_url": {"https://example.com/d.png"}}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Header().Get("HX-Trigger"), `"participant:changed":{"id":"4"}`) {
		t.Errorf("HX-Trigger = %s", rec.Header().Get("HX-Trigger"))
	}
	if body := ts.get("/participants/4").Body.String(); !strings.Contains(body, "Los Diegos") {
		t.Error("participant page does not show the new team")
	}

	rec = ts.post("/admin/participants/4", url.Values{"photo_url": {"ftp://example.com/d.png"}}, cookie)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid photo status = %d, want 422", rec.Code)
	}
}

func TestLogoutEndsSession(t *testing.T) {
	ts := newTestServer(t, nil)
	cookie := ts.login(t)

	rec := ts.post("/logout", nil, cookie)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("logout status = %d", rec.Code)
	}

	rec = ts.post("/admin/penalties", url.Values{"participant_id": {"1"}, "amount": {"-1"}}, cookie)
	if rec.Code != http.StatusSeeOther {
		t.Errorf("post after logout status = %d, want redirect to login", rec.Code)
	}
}

func TestGatewayErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{gateway.ErrUnauthorized, http.StatusUnauthorized},
		{gateway.ErrNotFound, http.StatusNotFound},
		{gateway.ErrMalformed, http.StatusUnprocessableEntity},
		{fmt.Errorf("insert penalty: %w", core.ErrNoParticipant), http.StatusUnprocessableEntity},
		{gateway.ErrUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		gatewayError(tt.err).Write(rec)
		if rec.Code != tt.want {
			t.Errorf("gatewayError(%v) status = %d, want %d", tt.err, rec.Code, tt.want)
		}
	}
}
