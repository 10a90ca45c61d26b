package bulklimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"adminconsole/internal/platform/metrics"
	dErrors "adminconsole/pkg/domain-errors"
	tu "adminconsole/pkg/testutil"
)

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (Result, error) {
	return Result{}, errors.New("redis: connection refused")
}

type MiddlewareSuite struct {
	suite.Suite
	metrics *metrics.Metrics
	calls   int
}

func TestMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(MiddlewareSuite))
}

func (s *MiddlewareSuite) SetupTest() {
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.calls = 0
}

func (s *MiddlewareSuite) handler(store Store, limit int) http.Handler {
	l := New(store, limit, time.Minute,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
	)
	return l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.calls++
		w.WriteHeader(http.StatusOK)
	}))
}

func (s *MiddlewareSuite) bulkRequest() *http.Request {
	return httptest.NewRequest(http.MethodPost, "/api/admin/users/bulk-status", nil)
}

func (s *MiddlewareSuite) TestRejectsOverLimit() {
	h := s.handler(NewMemoryStore(), 2)
	adminID := "0b0f6c1e-5f5a-4d59-8f4c-2f3d8f0e9a11"

	for range 2 {
		rr := tu.DoRequest(h, tu.WithAdmin(s.bulkRequest(), adminID, "admin"))
		s.Equal(http.StatusOK, rr.Code)
	}

	rr := tu.DoRequest(h, tu.WithAdmin(s.bulkRequest(), adminID, "admin"))
	tu.AssertError(s.T(), rr, dErrors.CodeRateLimited)
	tu.AssertRetryAfter(s.T(), rr, 60)
	s.NotContains(rr.Body.String(), "2", "the limit is not revealed")
	s.Equal(2, s.calls)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.BulkLimitRejected))

	s.Run("another admin has its own budget", func() {
		rr := tu.DoRequest(h, tu.WithAdmin(s.bulkRequest(), "a4c1e7a2-0d3e-4b8f-9f61-7b2c3d4e5f60", "admin"))
		s.Equal(http.StatusOK, rr.Code)
	})
}

func (s *MiddlewareSuite) TestStoreErrorFailsOpen() {
	h := s.handler(failingStore{}, 1)
	for range 3 {
		rr := tu.DoRequest(h, s.bulkRequest())
		s.Equal(http.StatusOK, rr.Code)
	}
	s.Equal(3, s.calls)
}

func TestActorKey(t *testing.T) {
	base := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "198.51.100.4:5123"
		return req
	}
	tests := []struct {
		name string
		req  *http.Request
		want string
	}{
		{"admin identity", tu.WithUser(tu.WithAdmin(base(), "a1", "admin"), "u1", "user"), "admin:a1"},
		{"end-user identity", tu.WithUser(base(), "u1", "user"), "user:u1"},
		{"client ip from context", tu.WithClient(base(), "203.0.113.9", "ua"), "ip:203.0.113.9"},
		{"remote address fallback", base(), "ip:198.51.100.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ActorKey(tt.req); got != tt.want {
				t.Errorf("ActorKey() = %q, want %q", got, tt.want)
			}
		})
	}
}
