package directory_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goliatone/go-causality"
	"github.com/goliatone/go-causality/directory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func newDirectoryServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/sale/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/sale/foo", "/api/v1/sale/slug":
			_, _ = w.Write([]byte(`{"_id":"foo","id":"slug","name":"Foo sale"}`))
		case "/api/v1/sale/broken":
			w.WriteHeader(http.StatusInternalServerError)
		case "/api/v1/sale/blank":
			_, _ = w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"type":"error","message":"Sale Not Found"}`))
		}
	})
	mux.HandleFunc("/api/v1/me", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Header.Get(causality.HeaderAccessToken) {
		case "craig-token":
			_, _ = w.Write([]byte(`{"_id":"craig","type":"User","paddle_number":"123"}`))
		case "admin-token":
			_, _ = w.Write([]byte(`{"_id":"admin","type":"Admin"}`))
		case "role-admin-token":
			_, _ = w.Write([]byte(`{"_id":"ops","type":"User","roles":["bidder","admin"]}`))
		case "flaky-token":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	})
	mux.HandleFunc("/api/v1/me/bidders", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Header.Get(causality.HeaderAccessToken) {
		case "craig-token":
			_, _ = w.Write([]byte(`[
				{"id":"old-bidder","sale":{"_id":"past-sale"}},
				{"id":"","sale":{"_id":"foo"}},
				{"id":"bidder1","sale":{"_id":"foo","id":"slug"}}
			]`))
		case "flaky-token":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newClient(t *testing.T, opts ...directory.Option) *directory.Client {
	server := newDirectoryServer(t)
	opts = append([]directory.Option{directory.WithLogger(nopLogger{})}, opts...)
	return directory.NewClient(server.URL+"/", opts...)
}

func TestClient_ResolveSale(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()

	t.Run("by id", func(t *testing.T) {
		sale, err := client.ResolveSale(ctx, "foo")
		require.NoError(t, err)
		assert.Equal(t, &causality.Sale{ID: "foo", Slug: "slug", Name: "Foo sale"}, sale)
	})

	t.Run("by slug", func(t *testing.T) {
		sale, err := client.ResolveSale(ctx, "slug")
		require.NoError(t, err)
		assert.Equal(t, "foo", sale.ID)
	})

	t.Run("not found", func(t *testing.T) {
		sale, err := client.ResolveSale(ctx, "missing")
		require.Error(t, err)
		assert.Nil(t, sale)
		assert.True(t, causality.IsSaleNotFound(err))
	})

	t.Run("empty payload", func(t *testing.T) {
		_, err := client.ResolveSale(ctx, "blank")
		require.Error(t, err)
		assert.True(t, causality.IsSaleNotFound(err))
	})

	t.Run("server error", func(t *testing.T) {
		_, err := client.ResolveSale(ctx, "broken")
		require.Error(t, err)
		assert.True(t, causality.IsBackendUnavailable(err))
	})
}

func TestClient_ResolveViewer(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		credential string
		want       *causality.Viewer
		wantErr    bool
	}{
		{name: "anonymous", credential: ""},
		{name: "rejected", credential: "expired-token"},
		{
			name:       "user",
			credential: "craig-token",
			want:       &causality.Viewer{UserID: "craig", PaddleNumber: "123"},
		},
		{
			name:       "admin type",
			credential: "admin-token",
			want:       &causality.Viewer{UserID: "admin", IsAdmin: true},
		},
		{
			name:       "admin role",
			credential: "role-admin-token",
			want:       &causality.Viewer{UserID: "ops", IsAdmin: true},
		},
		{name: "backend failure", credential: "flaky-token", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viewer, err := client.ResolveViewer(ctx, tt.credential)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, causality.IsBackendUnavailable(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, viewer)
		})
	}
}

func TestClient_ListBidderRecords(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()

	records, err := client.ListBidderRecords(ctx, "craig-token")
	require.NoError(t, err)
	assert.Equal(t, []causality.BidderRecord{
		{BidderID: "old-bidder", SaleID: "past-sale"},
		{BidderID: "bidder1", SaleID: "foo"},
	}, records)

	records, err = client.ListBidderRecords(ctx, "expired-token")
	require.NoError(t, err)
	assert.Empty(t, records)

	records, err = client.ListBidderRecords(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = client.ListBidderRecords(ctx, "flaky-token")
	require.Error(t, err)
	assert.True(t, causality.IsBackendUnavailable(err))
}

func TestClient_ForwardsHeaders(t *testing.T) {
	var gotToken, gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get(causality.HeaderAccessToken)
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"_id":"craig"}`))
	}))
	defer server.Close()

	client := directory.NewClient(server.URL,
		directory.WithLogger(nopLogger{}),
		directory.WithUserAgent("causality-test"),
	)

	viewer, err := client.ResolveViewer(context.Background(), "craig-token")
	require.NoError(t, err)
	require.NotNil(t, viewer)

	assert.Equal(t, "craig-token", gotToken)
	assert.Equal(t, "causality-test", gotAgent)
}

func TestClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := directory.NewClient(url, directory.WithLogger(nopLogger{}), directory.WithTimeout(time.Second))

	_, err := client.ResolveSale(context.Background(), "foo")
	require.Error(t, err)
	assert.True(t, causality.IsBackendUnavailable(err))
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()
	defer close(release)

	client := directory.NewClient(server.URL, directory.WithLogger(nopLogger{}), directory.WithTimeout(50*time.Millisecond))

	_, err := client.ResolveSale(context.Background(), "foo")
	require.Error(t, err)
	assert.True(t, causality.IsBackendUnavailable(err))
}

func TestClient_CanceledContext(t *testing.T) {
	client := newClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.ResolveSale(ctx, "foo")
	require.Error(t, err)
	assert.True(t, causality.IsBackendUnavailable(err))
}

func TestClient_CanceledMidFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		select {
		case <-release:
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()
	defer close(release)

	client := directory.NewClient(server.URL, directory.WithLogger(nopLogger{}), directory.WithTimeout(5*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	start := time.Now()
	_, err := client.ResolveViewer(ctx, "craig-token")
	require.Error(t, err)
	assert.True(t, causality.IsBackendUnavailable(err))
	assert.Less(t, time.Since(start), 2*time.Second, "cancellation should not wait for the request timeout")
}
