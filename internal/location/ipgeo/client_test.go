package ipgeo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swiftroute/swiftroute/internal/geo"
	"github.com/swiftroute/swiftroute/internal/location"
	"github.com/swiftroute/swiftroute/internal/provider/resilience"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *resilience.Registry) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	registry := resilience.NewRegistry()
	client := NewClient(ClientConfig{
		Endpoint:  server.URL,
		UserAgent: "swiftroute-test",
		Registry:  registry,
		Logger:    zerolog.Nop(),
	})
	return client, registry
}

func TestClient_Locate(t *testing.T) {
	client, registry := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "swiftroute-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","lat":28.6315,"lon":77.2167}`))
	})

	loc, err := client.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, geo.Location{Lat: 28.6315, Lng: 77.2167}, loc)

	health := registry.GetHealth(ProviderName)
	require.NotNil(t, health)
	assert.NotNil(t, health.LastSuccessAt)
}

func TestClient_LocateFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"lookup failed", http.StatusOK, `{"status":"fail","message":"private range"}`},
		{"missing coordinates", http.StatusOK, `{"status":"success"}`},
		{"server error", http.StatusInternalServerError, ``},
		{"not json", http.StatusOK, `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.Locate(context.Background())
			assert.ErrorIs(t, err, location.ErrUnavailable)
		})
	}
}

func TestClient_FallsBackThroughAcquire(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	res := location.Acquire(context.Background(), client, 0, zerolog.Nop())
	assert.True(t, res.Fallback)
	assert.Equal(t, geo.Location{Lat: 28.6139, Lng: 77.2090}, res.Location)
}
