package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"model-gateway/middleware/pipeline/application"
	"model-gateway/middleware/pipeline/domain"
)

var pipeSecret = []byte("pipe-secret")

// countingBuckets is a minimal in-memory bucket store: burst tokens per key,
// no refill. Enough to drive the middleware without Redis.
type countingBuckets struct {
	mu     sync.Mutex
	tokens map[string]int
}

func (s *countingBuckets) Take(_ context.Context, key string, rule domain.RateRule, _ time.Time) (domain.Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokens == nil {
		s.tokens = make(map[string]int)
	}
	left, ok := s.tokens[key]
	if !ok {
		left = rule.Burst
	}
	if left < 1 {
		return domain.Lease{}, nil
	}
	s.tokens[key] = left - 1
	return domain.Lease{Allowed: true, Remaining: float64(left - 1)}, nil
}

type staticConfig struct {
	snap domain.Snapshot
}

func (c staticConfig) Snapshot(context.Context) (domain.Snapshot, error) { return c.snap, nil }

func testConfig() staticConfig {
	snap := domain.DefaultSnapshot()
	return staticConfig{snap: snap}
}

type envelopeBody struct {
	Error   string `json:"error"`
	Type    string `json:"type"`
	TraceID string `json:"trace_id"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelopeBody {
	t.Helper()
	var env envelopeBody
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not an envelope: %v (%q)", err, w.Body.String())
	}
	return env
}

func newPipeline(h Handler) (http.Handler, *int) {
	calls := 0
	if h == nil {
		h = func(w http.ResponseWriter, r *http.Request) error {
			calls++
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"ok":true}`))
			return nil
		}
	}

	cfg := testConfig()
	admission := application.AdmissionService{Buckets: &countingBuckets{}, Config: cfg}
	auth := application.AuthService{Config: cfg, Secret: pipeSecret}

	chained := Chain(h,
		RateLimit(admission),
		Auth(auth),
		Access(DefaultSlowThreshold),
	)
	return Boundary(chained), &calls
}

func validToken() string {
	return domain.NewToken(pipeSecret, "demo", time.Now().Add(time.Hour).Unix())
}

func TestPipeline_AllowListedPathPassesWithoutToken(t *testing.T) {
	h, calls := newPipeline(nil)

	r := httptest.NewRequest(http.MethodGet, "http://gw/status", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if *calls != 1 {
		t.Fatalf("expected handler to run once, got %d", *calls)
	}
}

func TestPipeline_MissingTokenIsUnauthorized(t *testing.T) {
	h, calls := newPipeline(nil)

	r := httptest.NewRequest(http.MethodGet, "http://gw/guarded", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Error != string(domain.KindTokenMissing) {
		t.Fatalf("expected TOKEN_MISSING, got %q", env.Error)
	}
	if env.TraceID == "" {
		t.Fatalf("expected a trace id in the envelope")
	}
	if got := w.Header().Get(domain.TraceHeader); got != env.TraceID {
		t.Fatalf("header trace id %q != envelope trace id %q", got, env.TraceID)
	}
	if *calls != 0 {
		t.Fatalf("expected handler not to run")
	}
}

func TestPipeline_MalformedTokenIsNotA500(t *testing.T) {
	h, _ := newPipeline(nil)

	r := httptest.NewRequest(http.MethodGet, "http://gw/guarded", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set(domain.TokenHeader, "garbage")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Error != string(domain.KindTokenMalformed) {
		t.Fatalf("expected TOKEN_MALFORMED, got %q", env.Error)
	}
}

func TestPipeline_BurstExhaustion(t *testing.T) {
	// /rerank carries the default override: burst=2, rate=0.2, max_wait=1.
	// wait = 1/0.2 = 5s > 1s budget, so the third request gets a 429.
	h, calls := newPipeline(nil)

	do := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "http://gw/rerank", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		r.Header.Set(domain.TokenHeader, validToken())
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	w1 := do()
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 1st request to pass, got %d (%s)", w1.Code, w1.Body.String())
	}
	if got := w1.Header().Get("X-Rate-Remaining"); got != "1" {
		t.Fatalf("expected 1 token remaining after 1st request, got %q", got)
	}

	w2 := do()
	if w2.Code != http.StatusOK {
		t.Fatalf("expected 2nd request to pass, got %d", w2.Code)
	}
	if got := w2.Header().Get("X-Rate-Remaining"); got != "0" {
		t.Fatalf("expected 0 tokens remaining after 2nd request, got %q", got)
	}

	w3 := do()
	if w3.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w3.Code)
	}
	if got := w3.Header().Get("Retry-After"); got != "5" {
		t.Fatalf("expected Retry-After=5, got %q", got)
	}
	env := decodeEnvelope(t, w3)
	if env.Error != string(domain.KindRateLimited) {
		t.Fatalf("expected RATE_LIMIT_HIT, got %q", env.Error)
	}
	if *calls != 2 {
		t.Fatalf("expected handler to run twice, got %d", *calls)
	}
}

func TestPipeline_SuccessHeaders(t *testing.T) {
	h, _ := newPipeline(nil)

	r := httptest.NewRequest(http.MethodGet, "http://gw/guarded", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set(domain.TokenHeader, validToken())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if got := w.Header().Get("X-Rate-Limit"); got != "10 burst / 2/s" {
		t.Fatalf("unexpected X-Rate-Limit %q", got)
	}
	if got := w.Header().Get("X-Rate-Remaining"); got == "" {
		t.Fatalf("expected X-Rate-Remaining to be set")
	}
	if got := w.Header().Get(domain.TraceHeader); got == "" {
		t.Fatalf("expected X-Trace-ID to be set")
	}
	if got := w.Header().Get("X-Process-Time"); got == "" {
		t.Fatalf("expected X-Process-Time to be set")
	}
}

func TestPipeline_ReusesInboundTraceID(t *testing.T) {
	h, _ := newPipeline(nil)

	r := httptest.NewRequest(http.MethodGet, "http://gw/status", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set(domain.TraceHeader, "upstream-trace-1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if got := w.Header().Get(domain.TraceHeader); got != "upstream-trace-1" {
		t.Fatalf("expected inbound trace id to be reused, got %q", got)
	}
}

func TestPipeline_UpstreamFailure(t *testing.T) {
	h, _ := newPipeline(func(http.ResponseWriter, *http.Request) error {
		return domain.UpstreamFailure(errors.New("connect: connection refused"))
	})

	r := httptest.NewRequest(http.MethodGet, "http://gw/status", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Error != string(domain.KindUpstream) {
		t.Fatalf("expected UPSTREAM_CALL_FAILED, got %q", env.Error)
	}
	if env.TraceID == "" {
		t.Fatalf("expected a trace id in the envelope")
	}
	if got := w.Header().Get("X-Process-Time"); got == "" {
		t.Fatalf("expected X-Process-Time on the failure response")
	}
}

func TestPipeline_PanicBecomesInternalError(t *testing.T) {
	h, _ := newPipeline(func(http.ResponseWriter, *http.Request) error {
		panic("boom")
	})

	r := httptest.NewRequest(http.MethodGet, "http://gw/status", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Error != string(domain.KindInternal) {
		t.Fatalf("expected INTERNAL_ERROR, got %q", env.Error)
	}
}

func TestPipeline_ClientCancelMapsTo499(t *testing.T) {
	h, _ := newPipeline(func(_ http.ResponseWriter, r *http.Request) error {
		return r.Context().Err()
	})

	r := httptest.NewRequest(http.MethodGet, "http://gw/status", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	ctx, cancel := context.WithCancel(r.Context())
	cancel()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r.WithContext(ctx))

	if w.Code != 499 {
		t.Fatalf("expected 499, got %d", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Error != string(domain.KindClientClosed) {
		t.Fatalf("expected CLIENT_CLOSED, got %q", env.Error)
	}
}

func TestChain_FirstStageRunsOutermost(t *testing.T) {
	var order []string
	mark := func(name string) Stage {
		return func(next Handler) Handler {
			return func(w http.ResponseWriter, r *http.Request) error {
				order = append(order, name)
				return next(w, r)
			}
		}
	}

	h := Chain(func(http.ResponseWriter, *http.Request) error {
		order = append(order, "handler")
		return nil
	}, mark("a"), mark("b"))

	r := httptest.NewRequest(http.MethodGet, "http://gw/", nil)
	if err := h(httptest.NewRecorder(), r); err != nil {
		t.Fatalf("chain: %v", err)
	}

	want := []string{"a", "b", "handler"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, order)
		}
	}
}
