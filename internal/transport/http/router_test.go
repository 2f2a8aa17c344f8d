package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/IgorGrieder/linkstats/internal/config"
	"github.com/IgorGrieder/linkstats/internal/constants"
	"github.com/IgorGrieder/linkstats/internal/infrastructure/collector"
	"github.com/IgorGrieder/linkstats/internal/infrastructure/metrics"
	"github.com/IgorGrieder/linkstats/internal/processing/links"
	"github.com/IgorGrieder/linkstats/internal/storage/memory"
	"github.com/IgorGrieder/linkstats/pkg/httpclient"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLocator struct {
	mu      sync.Mutex
	country string
	err     error
	ips     []string
}

func (f *fakeLocator) Locate(_ context.Context, ip string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ips = append(f.ips, ip)
	return f.country, f.err
}

type fakeLogSender struct {
	entries []collector.Entry
	logID   string
	err     error
}

func (f *fakeLogSender) Send(_ context.Context, entry collector.Entry) (string, error) {
	f.entries = append(f.entries, entry)
	return f.logID, f.err
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "linkstats-test", Version: "test"},
		Shortener: config.ShortenerConfig{
			BaseURL:         "http://localhost:7000",
			SlugLength:      6,
			DefaultValidity: 30 * time.Minute,
			RedirectStatus:  http.StatusFound,
		},
	}
}

type testServer struct {
	handler http.Handler
	repo    *memory.LinksRepository
	locator *fakeLocator
}

func newTestServer(t *testing.T, sender LogSender) *testServer {
	t.Helper()

	repo := memory.NewLinksRepository()
	locator := &fakeLocator{country: "Brazil"}
	svc := links.NewService(repo, locator, nil, links.NewCryptoSlugger(), links.Options{})
	if sender == nil {
		sender = &fakeLogSender{logID: "log-1"}
	}

	opts := DefaultRouterOptions()
	opts.EnableLogging = false
	handler := NewRouterWithOptions(testConfig(), Dependencies{Links: svc, LogSender: sender}, opts)

	return &testServer{handler: handler, repo: repo, locator: locator}
}

func (s *testServer) do(t *testing.T, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) create(t *testing.T, body string) (*httptest.ResponseRecorder, createLinkResponse) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/shorturls", body, nil)
	var resp createLinkResponse
	if rec.Code == http.StatusCreated {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func (s *testServer) stats(t *testing.T, code string) (*httptest.ResponseRecorder, statsResponse) {
	t.Helper()
	rec := s.do(t, http.MethodGet, "/shorturls/"+code, "", nil)
	var resp statsResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestCreate_GeneratesSixCharacterCode(t *testing.T) {
	s := newTestServer(t, nil)

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		rec, resp := s.create(t, `{"url":"https://example.com/long/path"}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		require.True(t, strings.HasPrefix(resp.ShortLink, "http://localhost:7000/"))
		code := strings.TrimPrefix(resp.ShortLink, "http://localhost:7000/")
		assert.Len(t, code, 6)
		assert.False(t, seen[code], "code %s issued twice", code)
		seen[code] = true

		expiry, err := time.Parse(time.RFC3339, resp.Expiry)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(30*time.Minute), expiry, time.Minute)
	}
}

func TestCreate_CustomCodeAndValidityString(t *testing.T) {
	s := newTestServer(t, nil)

	rec, resp := s.create(t, `{"url":"https://example.com","validity":"5","shortcode":"promo"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "http://localhost:7000/promo", resp.ShortLink)

	expiry, err := time.Parse(time.RFC3339, resp.Expiry)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), expiry, time.Minute)
}

func TestCreate_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"missing url", `{}`, constants.CodeInvalidURL},
		{"blank url", `{"url":"   "}`, constants.CodeInvalidURL},
		{"url not a string", `{"url":42}`, constants.CodeInvalidURL},
		{"malformed json", `{"url":`, constants.CodeInvalidRequest},
		{"negative validity", `{"url":"https://x.test","validity":-1}`, constants.CodeInvalidValidity},
		{"fractional validity", `{"url":"https://x.test","validity":1.5}`, constants.CodeInvalidValidity},
		{"validity too large", `{"url":"https://x.test","validity":200000000,"shortcode":"big"}`, constants.CodeInvalidValidity},
		{"non numeric validity", `{"url":"https://x.test","validity":"soon"}`, constants.CodeInvalidValidity},
		{"bad shortcode", `{"url":"https://x.test","shortcode":"a/b"}`, constants.CodeInvalidShortcode},
		{"reserved shortcode", `{"url":"https://x.test","shortcode":"health"}`, constants.CodeInvalidShortcode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			rec, _ := s.create(t, tt.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec)["error"])
			assert.Equal(t, 0, s.repo.Len())
		})
	}
}

func TestCreate_NullValidityUsesDefault(t *testing.T) {
	s := newTestServer(t, nil)

	rec, resp := s.create(t, `{"url":"https://example.com","validity":null}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	expiry, err := time.Parse(time.RFC3339, resp.Expiry)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), expiry, time.Minute)
}

func TestCreate_CollisionKeepsExistingRecord(t *testing.T) {
	s := newTestServer(t, nil)

	rec, _ := s.create(t, `{"url":"https://first.test","shortcode":"dup"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	_, before := s.stats(t, "dup")

	rec, _ = s.create(t, `{"url":"https://second.test","shortcode":"dup","validity":1}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, constants.CodeShortcodeTaken, body["error"])
	assert.Equal(t, constants.MsgShortcodeTaken, body["message"])

	_, after := s.stats(t, "dup")
	assert.Equal(t, before, after)
	assert.Equal(t, "https://first.test", after.URL)
}

func TestUnknownCode_NotFoundOnRedirectAndStats(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/nope42", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), constants.MsgLinkNotFound)

	rec, _ = s.stats(t, "nope42")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, constants.CodeLinkNotFound, decodeError(t, rec)["error"])
}

func TestZeroValidity_ExpiresImmediately(t *testing.T) {
	s := newTestServer(t, nil)

	rec, _ := s.create(t, `{"url":"https://example.com","validity":0,"shortcode":"gone"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	time.Sleep(time.Millisecond)

	rec = s.do(t, http.MethodGet, "/gone", "", nil)
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Contains(t, rec.Body.String(), constants.MsgLinkExpired)

	rec, stats := s.stats(t, "gone")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), stats.TotalClicks)
	assert.Empty(t, stats.ClickDetails)
}

func TestRedirect_RecordsEachClick(t *testing.T) {
	s := newTestServer(t, nil)

	rec, _ := s.create(t, `{"url":"https://example.com/target","shortcode":"hits"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/hits", "", map[string]string{
		"X-Forwarded-For": "203.0.113.7, 10.0.0.1",
		"Referer":         "https://news.test/post",
	})
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://example.com/target", rec.Header().Get("Location"))

	_, stats := s.stats(t, "hits")
	assert.Equal(t, int64(1), stats.TotalClicks)
	require.Len(t, stats.ClickDetails, 1)

	rec = s.do(t, http.MethodGet, "/hits", "", nil)
	require.Equal(t, http.StatusFound, rec.Code)

	_, stats = s.stats(t, "hits")
	assert.Equal(t, int64(2), stats.TotalClicks)
	require.Len(t, stats.ClickDetails, 2)

	first, second := stats.ClickDetails[0], stats.ClickDetails[1]
	assert.Equal(t, "203.0.113.7", first.IP)
	assert.Equal(t, "https://news.test/post", first.Source)
	assert.Equal(t, "Brazil", first.Location)
	assert.Equal(t, links.DirectSource, second.Source)
	assert.Equal(t, "192.0.2.1", second.IP)

	assert.Equal(t, []string{"203.0.113.7", "192.0.2.1"}, s.locator.ips)
}

func TestRedirect_GeolocationFailureStillRedirects(t *testing.T) {
	s := newTestServer(t, nil)
	s.locator.err = errors.New("quota exceeded")

	rec, _ := s.create(t, `{"url":"https://example.com","shortcode":"geo"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/geo", "", nil)
	require.Equal(t, http.StatusFound, rec.Code)

	_, stats := s.stats(t, "geo")
	require.Len(t, stats.ClickDetails, 1)
	assert.Equal(t, links.UnknownLocation, stats.ClickDetails[0].Location)
}

func TestLog_ForwardsThroughCollector(t *testing.T) {
	var got collector.Entry
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]string{"logID": "abc-123"})
	}))
	defer upstream.Close()

	client := collector.NewClient(httpclient.NewClient(httpclient.Options{}), upstream.URL, "token")
	s := newTestServer(t, client)

	body, _ := json.Marshal(map[string]string{
		"stack":       "frontend",
		"level":       "info",
		"packageName": strings.Repeat("p", 60),
		"message":     strings.Repeat("m", 60),
	})
	rec := s.do(t, http.MethodPost, "/log", string(body), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"logID":"abc-123"}`, rec.Body.String())
	assert.Len(t, got.Package, collector.MaxFieldLength)
	assert.Len(t, got.Message, collector.MaxFieldLength)
	assert.Equal(t, "frontend", got.Stack)
}

func TestLog_Errors(t *testing.T) {
	t.Run("collector failure", func(t *testing.T) {
		s := newTestServer(t, &fakeLogSender{err: errors.New("unreachable")})
		rec := s.do(t, http.MethodPost, "/log", `{"stack":"backend","level":"error","packageName":"handler","message":"boom"}`, nil)

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, constants.MsgLogForwardFailure, decodeError(t, rec)["message"])
	})

	t.Run("invalid level", func(t *testing.T) {
		sender := &fakeLogSender{}
		s := newTestServer(t, sender)
		rec := s.do(t, http.MethodPost, "/log", `{"stack":"backend","level":"loud","packageName":"handler","message":"boom"}`, nil)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, sender.entries)
	})
}

func TestQRCode(t *testing.T) {
	s := newTestServer(t, nil)
	rec, _ := s.create(t, `{"url":"https://example.com","shortcode":"qr1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/shorturls/qr1/qr", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = s.do(t, http.MethodGet, "/shorturls/qr1/qr?size=5", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/shorturls/missing/qr", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndUI(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeError(t, rec)["status"])

	rec = s.do(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	rec = s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "shortlinks_created_total")
}

type failingClickRepo struct {
	*memory.LinksRepository
}

func (failingClickRepo) AppendClick(context.Context, string, links.Click) (*links.Link, error) {
	return nil, errors.New("click log unavailable")
}

func TestRedirect_ClickFailureStillRedirects(t *testing.T) {
	repo := failingClickRepo{memory.NewLinksRepository()}
	svc := links.NewService(repo, nil, nil, links.NewCryptoSlugger(), links.Options{})
	opts := DefaultRouterOptions()
	opts.EnableLogging = false
	handler := NewRouterWithOptions(testConfig(), Dependencies{Links: svc, LogSender: &fakeLogSender{}}, opts)

	_, err := svc.CreateLink(context.Background(), links.CreateLinkInput{URL: "https://example.com/t", Shortcode: "flaky"})
	require.NoError(t, err)

	failed := testutil.ToFloat64(metrics.Redirects.WithLabelValues(metrics.OutcomeError))
	ok := testutil.ToFloat64(metrics.Redirects.WithLabelValues(metrics.OutcomeOK))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/flaky", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://example.com/t", rec.Header().Get("Location"))
	assert.Equal(t, failed+1, testutil.ToFloat64(metrics.Redirects.WithLabelValues(metrics.OutcomeError)))
	assert.Equal(t, ok, testutil.ToFloat64(metrics.Redirects.WithLabelValues(metrics.OutcomeOK)))
}
