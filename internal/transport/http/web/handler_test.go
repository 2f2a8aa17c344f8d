package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/IgorGrieder/linkstats/internal/processing/links"
	"github.com/IgorGrieder/linkstats/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (*Handler, *links.Service) {
	t.Helper()
	svc := links.NewService(memory.NewLinksRepository(), nil, nil, links.NewCryptoSlugger(), links.Options{})
	return NewHandler(svc, "http://localhost:7000"), svc
}

func postForm(h http.HandlerFunc, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/ui/shorten", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestForm_RendersFiveRows(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.Form(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	for i := 0; i < MaxRows; i++ {
		assert.Contains(t, body, `name="url_`+string(rune('0'+i))+`"`)
	}
	assert.NotContains(t, body, `name="url_5"`)
}

func TestShorten_MixedRows(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := postForm(h.Shorten, url.Values{
		"url_0":       {"https://example.com/a"},
		"shortcode_0": {"promo"},
		"validity_0":  {"10"},
		"url_1":       {"not a url"},
		"url_2":       {"https://example.com/b"},
		"shortcode_2": {"promo"},
		"url_3":       {"https://example.com/c"},
		"validity_3":  {"-1"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "http://localhost:7000/promo")
	assert.Contains(t, body, "Invalid or missing URL")
	assert.Contains(t, body, "Shortcode already exists")
	assert.Contains(t, body, "Validity must be a non-negative whole number of minutes")
}

func TestShorten_RejectsValidityBeyondRange(t *testing.T) {
	h, svc := newTestHandler(t)

	rec := postForm(h.Shorten, url.Values{
		"url_0":       {"https://example.com/a"},
		"shortcode_0": {"forever"},
		"validity_0":  {"200000000"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Validity must be a non-negative whole number of minutes")
	_, err := svc.GetLink(context.Background(), "forever")
	assert.ErrorIs(t, err, links.ErrNotFound)
}

func TestShorten_NoRows(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := postForm(h.Shorten, url.Values{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Enter at least one URL")
}

func TestStats_Page(t *testing.T) {
	h, svc := newTestHandler(t)
	ctx := context.Background()

	_, err := svc.CreateLink(ctx, links.CreateLinkInput{URL: "https://example.com", Shortcode: "docs"})
	require.NoError(t, err)
	_, err = svc.RecordClick(ctx, "docs", links.ClickInput{IP: "203.0.113.7", Referrer: "https://news.test"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/ui/stats?shortcode=docs", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "https://example.com")
	assert.Contains(t, body, "203.0.113.7")
	assert.Contains(t, body, "https://news.test")
	assert.Contains(t, body, links.UnknownLocation)
}

func TestStats_Unknown(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/ui/stats?shortcode=missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Shortlink not found")

	rec = httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/ui/stats", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStats_ExpiryBoundary(t *testing.T) {
	h, svc := newTestHandler(t)
	ctx := context.Background()

	link, err := svc.CreateLink(ctx, links.CreateLinkInput{URL: "https://example.com", Shortcode: "edge"})
	require.NoError(t, err)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"at expiry", link.ExpiresAt, false},
		{"after expiry", link.ExpiresAt.Add(time.Nanosecond), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.now = func() time.Time { return tt.now }
			rec := httptest.NewRecorder()
			h.Stats(rec, httptest.NewRequest(http.MethodGet, "/ui/stats?shortcode=edge", nil))

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, strings.Contains(rec.Body.String(), "(expired)"))
		})
	}
}
