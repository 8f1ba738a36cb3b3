package gate

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdeck/platform/internal/audit"
	"github.com/opsdeck/platform/internal/auth"
	"github.com/opsdeck/platform/internal/domain"
	"github.com/opsdeck/platform/internal/guard"
	"github.com/opsdeck/platform/internal/handler"
)

// captureStore records events in memory for assertions.
type captureStore struct {
	mu     sync.Mutex
	events []domain.SecurityEvent
}

func (s *captureStore) Insert(_ context.Context, event domain.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *captureStore) byKind(kind domain.EventKind) []domain.SecurityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SecurityEvent
	for _, ev := range s.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// failingStore always errors.
type failingStore struct{}

func (failingStore) Insert(context.Context, domain.SecurityEvent) error {
	return assert.AnError
}

// stubVerifier returns a fixed identity or error.
type stubVerifier struct {
	identity domain.Identity
	err      error
}

func (v stubVerifier) Verify(context.Context, string) (domain.Identity, error) {
	return v.identity, v.err
}

// hangingVerifier blocks until the context is cancelled.
type hangingVerifier struct{}

func (hangingVerifier) Verify(ctx context.Context, _ string) (domain.Identity, error) {
	<-ctx.Done()
	return domain.Identity{}, ctx.Err()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTiers() guard.TierSet {
	return guard.TierSet{
		guard.TierGeneral: {MaxRequests: 100, Window: time.Minute},
		guard.TierAI:      {MaxRequests: 20, Window: time.Minute},
		guard.TierAuth:    {MaxRequests: 5, Window: time.Minute},
	}
}

func newTestGatekeeper(t *testing.T, verifier auth.Verifier, eventStore audit.EventStore) (*Gatekeeper, *audit.Recorder) {
	t.Helper()
	recorder := audit.NewRecorder(eventStore, nil, "", "test", time.Second, quietLogger())
	store := guard.NewMemoryWindowStore(testTiers())
	return New(store, verifier, recorder, time.Second, quietLogger()), recorder
}

func serve(g *Gatekeeper, r *http.Request) (*httptest.ResponseRecorder, bool) {
	var reached bool
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reached = true
		handler.RespondJSON(w, http.StatusOK, map[string]string{"ok": "true"})
	})
	w := httptest.NewRecorder()
	g.Protect()(next).ServeHTTP(w, r)
	return w, reached
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) handler.ErrorEnvelope {
	t.Helper()
	var env handler.ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&env))
	require.NotNil(t, env.Error)
	return env
}

func TestGatekeeper_PublicRoutePassesWithoutCredential(t *testing.T) {
	g, _ := newTestGatekeeper(t, stubVerifier{err: auth.ErrInvalidCredential}, &captureStore{})

	r := httptest.NewRequest("GET", "/ping", nil)
	w, reached := serve(g, r)

	assert.True(t, reached)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "100", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "99", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
}

func TestGatekeeper_MissingCredentialOnProtectedRoute(t *testing.T) {
	events := &captureStore{}
	g, recorder := newTestGatekeeper(t, stubVerifier{identity: domain.Identity{Subject: "u1"}}, events)

	r := httptest.NewRequest("GET", "/api/admin/security-events", nil)
	r.RemoteAddr = "203.0.113.4:9999"
	w, reached := serve(g, r)
	recorder.Flush()

	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))

	env := decodeEnvelope(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, domain.CodeAuthentication, env.Error.Code)
	assert.Equal(t, "Authentication required", env.Error.Message)
	assert.Equal(t, 401, env.Error.Status)

	failures := events.byKind(domain.EventAuthFailure)
	require.Len(t, failures, 1)
	assert.Equal(t, "203.0.113.4", failures[0].SourceIP)
	assert.Equal(t, "/api/admin/security-events", failures[0].Path)
}

func TestGatekeeper_InvalidTokenOnProtectedRoute(t *testing.T) {
	events := &captureStore{}
	g, recorder := newTestGatekeeper(t, stubVerifier{err: auth.ErrInvalidCredential}, events)

	r := httptest.NewRequest("GET", "/api/projects/42", nil)
	r.Header.Set("Authorization", "Bearer bogus")
	w, reached := serve(g, r)
	recorder.Flush()

	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Len(t, events.byKind(domain.EventAuthFailure), 1)
}

func TestGatekeeper_NonAdminRoleRejected(t *testing.T) {
	events := &captureStore{}
	g, recorder := newTestGatekeeper(t,
		stubVerifier{identity: domain.Identity{Subject: "user-7", Role: domain.RoleEditor}}, events)

	r := httptest.NewRequest("POST", "/api/admin/export", nil)
	r.Header.Set("Authorization", "Bearer valid-but-not-admin")
	w, reached := serve(g, r)
	recorder.Flush()

	assert.False(t, reached)
	assert.Equal(t, http.StatusForbidden, w.Code)

	env := decodeEnvelope(t, w)
	assert.Equal(t, domain.CodeAuthorization, env.Error.Code)
	assert.Equal(t, "Insufficient permissions", env.Error.Message)

	denied := events.byKind(domain.EventUnauthorizedAccess)
	require.Len(t, denied, 1)
	assert.Equal(t, "user-7", denied[0].Subject)
	assert.Equal(t, domain.SeverityHigh, denied[0].Severity)
}

func TestGatekeeper_AdminRoleAccepted(t *testing.T) {
	g, _ := newTestGatekeeper(t,
		stubVerifier{identity: domain.Identity{Subject: "admin-1", Role: domain.RoleAdmin}}, &captureStore{})

	r := httptest.NewRequest("POST", "/api/admin/export", nil)
	r.Header.Set("Authorization", "Bearer admin-token")
	w, reached := serve(g, r)

	assert.True(t, reached)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGatekeeper_IdentityAttachedToContext(t *testing.T) {
	g, _ := newTestGatekeeper(t,
		stubVerifier{identity: domain.Identity{Subject: "user-9", Role: domain.RoleViewer}}, &captureStore{})

	var got domain.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	r := httptest.NewRequest("GET", "/api/tickets", nil)
	r.Header.Set("Authorization", "Bearer valid")
	w := httptest.NewRecorder()
	g.Protect()(next).ServeHTTP(w, r)

	assert.Equal(t, "user-9", got.Subject)
	assert.Equal(t, domain.RoleViewer, got.Role)
}

func TestGatekeeper_RateLimitBeforeAuth(t *testing.T) {
	// Over-limit and carrying an invalid token: the caller sees 429, not
	// 401, and no verification is attempted.
	events := &captureStore{}
	g, recorder := newTestGatekeeper(t, stubVerifier{err: auth.ErrInvalidCredential}, events)

	r := httptest.NewRequest("POST", "/api/auth/login", nil)
	r.Header.Set("Authorization", "Bearer bogus")
	r.RemoteAddr = "203.0.113.4:1000"

	var w *httptest.ResponseRecorder
	for i := 0; i < 6; i++ {
		w, _ = serve(g, r)
	}
	recorder.Flush()

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	env := decodeEnvelope(t, w)
	assert.Equal(t, domain.CodeRateLimited, env.Error.Code)
	assert.Greater(t, env.Error.RetryAfter, 0)

	require.Len(t, events.byKind(domain.EventRateLimitExceeded), 1)
	assert.Empty(t, events.byKind(domain.EventAuthFailure), "verifier must not run once throttled")
}

func TestGatekeeper_RateHeadersOnFailure(t *testing.T) {
	g, _ := newTestGatekeeper(t, stubVerifier{err: auth.ErrInvalidCredential}, &captureStore{})

	r := httptest.NewRequest("GET", "/api/projects", nil)
	w, _ := serve(g, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "100", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "99", w.Header().Get("X-RateLimit-Remaining"))
}

func TestGatekeeper_AuditFailureInvisibleToCaller(t *testing.T) {
	g, recorder := newTestGatekeeper(t,
		stubVerifier{identity: domain.Identity{Subject: "admin-1", Role: domain.RoleAdmin}}, failingStore{})

	// A request that triggers an audit write (role denied would too, but a
	// success path plus a failure path cover both sides).
	r := httptest.NewRequest("GET", "/api/admin/security-events", nil)
	w, reached := serve(g, r)
	recorder.Flush()

	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "audit store failure must not change the response")

	r2 := httptest.NewRequest("GET", "/api/admin/security-events", nil)
	r2.Header.Set("Authorization", "Bearer admin")
	w2, reached2 := serve(g, r2)
	recorder.Flush()

	assert.True(t, reached2)
	assert.Equal(t, http.StatusOK, w2.Code)
}

func TestGatekeeper_HangingVerifierTimesOut(t *testing.T) {
	events := &captureStore{}
	recorder := audit.NewRecorder(events, nil, "", "test", time.Second, quietLogger())
	store := guard.NewMemoryWindowStore(testTiers())
	g := New(store, hangingVerifier{}, recorder, 20*time.Millisecond, quietLogger())

	r := httptest.NewRequest("GET", "/api/projects", nil)
	r.Header.Set("Authorization", "Bearer whatever")

	start := time.Now()
	w, reached := serve(g, r)
	recorder.Flush()

	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Less(t, time.Since(start), time.Second, "verifier timeout must bound the request")
	assert.Len(t, events.byKind(domain.EventAuthFailure), 1)
}

func TestGatekeeper_ExplicitOptionsOverridePolicy(t *testing.T) {
	g, _ := newTestGatekeeper(t,
		stubVerifier{identity: domain.Identity{Subject: "u", Role: domain.RoleViewer}}, &captureStore{})

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	// Public path, but the mount demands auth.
	r := httptest.NewRequest("GET", "/internal/metrics", nil)
	w := httptest.NewRecorder()
	g.Middleware(Options{RequireAuth: true})(next).ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Role option implies auth and is enforced.
	r2 := httptest.NewRequest("GET", "/internal/metrics", nil)
	r2.Header.Set("Authorization", "Bearer viewer")
	w2 := httptest.NewRecorder()
	g.Middleware(Options{RequiredRole: domain.RoleAdmin})(next).ServeHTTP(w2, r2)
	assert.Equal(t, http.StatusForbidden, w2.Code)
}
