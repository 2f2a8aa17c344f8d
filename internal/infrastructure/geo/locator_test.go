package geo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/IgorGrieder/linkstats/pkg/httpclient"
	"golang.org/x/time/rate"
)

type mockCache struct {
	values map[string]string
	getErr error
	sets   int
}

func (m *mockCache) Get(ctx context.Context, ip string) (string, bool, error) {
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.values[ip]
	return v, ok, nil
}

func (m *mockCache) Set(ctx context.Context, ip, country string) error {
	m.sets++
	if m.values == nil {
		m.values = map[string]string{}
	}
	m.values[ip] = country
	return nil
}

func newAPI(t *testing.T, status int, body string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		if r.URL.Path != "/203.0.113.7" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("access_key") != "key" {
			t.Errorf("access_key = %q", r.URL.Query().Get("access_key"))
		}
		if r.URL.Query().Get("fields") != "ip,country_name" {
			t.Errorf("fields = %q", r.URL.Query().Get("fields"))
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestLocator(baseURL string, opts Options) *Locator {
	opts.BaseURL = baseURL
	opts.APIKey = "key"
	return NewLocator(httpclient.NewClient(httpclient.Options{MaxFailures: 100}), opts)
}

func TestLocate(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr bool
	}{
		{name: "country", status: 200, body: `{"ip":"203.0.113.7","country_name":"Brazil"}`, want: "Brazil"},
		{name: "empty country", status: 200, body: `{"ip":"203.0.113.7","country_name":null}`, want: Unknown},
		{name: "api error", status: 200, body: `{"success":false,"error":{"code":101,"info":"invalid key"}}`, want: Unknown, wantErr: true},
		{name: "bad status", status: 403, body: `{}`, want: Unknown, wantErr: true},
		{name: "bad json", status: 200, body: `not json`, want: Unknown, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newAPI(t, tt.status, tt.body, nil)
			got, err := newTestLocator(srv.URL, Options{}).Locate(context.Background(), "203.0.113.7")

			if tt.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want && !tt.wantErr {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLocate_UsesCache(t *testing.T) {
	var calls atomic.Int32
	srv := newAPI(t, 200, `{"country_name":"Chile"}`, &calls)
	cache := &mockCache{}
	loc := newTestLocator(srv.URL, Options{Cache: cache})

	for i := 0; i < 3; i++ {
		got, err := loc.Locate(context.Background(), "203.0.113.7")
		if err != nil || got != "Chile" {
			t.Fatalf("got %q, %v", got, err)
		}
	}

	if calls.Load() != 1 {
		t.Fatalf("expected one upstream call, got %d", calls.Load())
	}
	if cache.sets != 1 {
		t.Fatalf("expected one cache write, got %d", cache.sets)
	}
}

func TestLocate_CacheErrorFallsThrough(t *testing.T) {
	srv := newAPI(t, 200, `{"country_name":"Peru"}`, nil)
	loc := newTestLocator(srv.URL, Options{Cache: &mockCache{getErr: errors.New("down")}})

	got, err := loc.Locate(context.Background(), "203.0.113.7")
	if err != nil || got != "Peru" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestLocate_BudgetExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := newAPI(t, 200, `{"country_name":"Chile"}`, &calls)
	loc := newTestLocator(srv.URL, Options{Limiter: rate.NewLimiter(rate.Limit(0.0001), 1)})

	if _, err := loc.Locate(context.Background(), "203.0.113.7"); err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	got, err := loc.Locate(context.Background(), "203.0.113.7")
	if !errors.Is(err, ErrBudgetExhausted) {
		t.Fatalf("expected ErrBudgetExhausted, got %v", err)
	}
	if got != Unknown {
		t.Fatalf("got %q", got)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one upstream call, got %d", calls.Load())
	}
}

func TestNopLocator(t *testing.T) {
	got, err := NopLocator{}.Locate(context.Background(), "1.1.1.1")
	if err != nil || got != Unknown {
		t.Fatalf("got %q, %v", got, err)
	}
}
