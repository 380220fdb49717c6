package prim

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomlapa/paris-transit-dashboard/internal/models"
)

const siriBody = `{
	"Siri": {"ServiceDelivery": {"StopMonitoringDelivery": [{"MonitoredStopVisit": [
		{"MonitoredVehicleJourney": {
			"LineRef": {"value": "STIF:Line::C01742:"},
			"DestinationRef": {"value": "STIF:StopPoint:Q:411395:"},
			"DestinationName": [{"value": "Saint-Germain-en-Laye"}],
			"PublishedLineName": [{"value": "A"}]
		}},
		{"MonitoredVehicleJourney": {
			"LineRef": {"value": "STIF:Line::C01742:"},
			"DestinationRef": {"value": "STIF:StopPoint:Q:411395:"},
			"DestinationName": [{"value": "Saint-Germain-en-Laye"}],
			"PublishedLineName": [{"value": "A"}]
		}},
		{"MonitoredVehicleJourney": {
			"LineRef": {"value": "STIF:Line::C01742:"},
			"DestinationRef": {"value": "STIF:StopPoint:Q:474151:"},
			"DestinationName": [{"value": "Boissy-Saint-Léger"}],
			"PublishedLineName": [{"value": "A"}]
		}}
	]}]}}
}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, key string, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, StaticKey(key), discardLogger())
}

func TestGetStopMonitoringSendsCredentialsAndParams(t *testing.T) {
	var gotKey, gotMonitoringRef, gotLineRef string
	client := newTestClient(t, "test-key", func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("apikey")
		gotMonitoringRef = r.URL.Query().Get("MonitoringRef")
		gotLineRef = r.URL.Query().Get("LineRef")
		_, _ = w.Write([]byte(siriBody))
	})

	response, err := client.GetStopMonitoring(context.Background(), "STIF:StopPoint:Q:473921:", "STIF:Line::C01742:")
	require.NoError(t, err)

	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "STIF:StopPoint:Q:473921:", gotMonitoringRef)
	assert.Equal(t, "STIF:Line::C01742:", gotLineRef)
	require.Len(t, response.Siri.ServiceDelivery.StopMonitoringDelivery, 1)
	assert.Len(t, response.Siri.ServiceDelivery.StopMonitoringDelivery[0].MonitoredStopVisit, 3)
}

func TestGetStopMonitoringOmitsEmptyLineRef(t *testing.T) {
	client := newTestClient(t, "test-key", func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("LineRef"))
		_, _ = w.Write([]byte(`{"Siri": {}}`))
	})

	_, err := client.GetStopMonitoring(context.Background(), "STIF:StopPoint:Q:473921:", "")
	require.NoError(t, err)
}

func TestGetStopMonitoringStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
	}{
		{name: "bad request means unknown stop", status: http.StatusBadRequest, sentinel: ErrUnknownStop},
		{name: "too many requests means rate limited", status: http.StatusTooManyRequests, sentinel: ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, "test-key", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := client.GetStopMonitoring(context.Background(), "STIF:StopPoint:Q:1:", "")
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}

	t.Run("other statuses carry the code", func(t *testing.T) {
		client := newTestClient(t, "test-key", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := client.GetStopMonitoring(context.Background(), "STIF:StopPoint:Q:1:", "")
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusBadGateway, statusErr.Code)
	})
}

func TestGetStopMonitoringWithoutKey(t *testing.T) {
	called := false
	client := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := client.GetStopMonitoring(context.Background(), "STIF:StopPoint:Q:1:", "")
	assert.ErrorIs(t, err, ErrNoAPIKey)
	assert.False(t, called, "no request should be sent without a key")
}

func TestGetStopMonitoringInvalidJSON(t *testing.T) {
	client := newTestClient(t, "test-key", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	})

	_, err := client.GetStopMonitoring(context.Background(), "STIF:StopPoint:Q:1:", "")
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestListDirectionsDeduplicates(t *testing.T) {
	client := newTestClient(t, "test-key", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(siriBody))
	})

	directions, err := client.ListDirections(context.Background(), "STIF:StopPoint:Q:473921:", "")
	require.NoError(t, err)

	require.Len(t, directions, 2)
	assert.Equal(t, "Saint-Germain-en-Laye", directions[0].Direction)
	assert.Equal(t, "STIF:StopPoint:Q:411395:", directions[0].DirectionID)
	assert.Equal(t, "A", directions[0].LineName)
	assert.Equal(t, "Boissy-Saint-Léger", directions[1].Direction)
}

func TestListDirectionsEmptyDelivery(t *testing.T) {
	client := newTestClient(t, "test-key", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Siri": {"ServiceDelivery": {"StopMonitoringDelivery": []}}}`))
	})

	directions, err := client.ListDirections(context.Background(), "STIF:StopPoint:Q:473921:", "")
	require.NoError(t, err)
	assert.Empty(t, directions)
}

func TestTestConnection(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		wantSuccess bool
		wantMessage string
	}{
		{
			name: "valid key",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, TestStopID, r.URL.Query().Get("MonitoringRef"))
				_, _ = w.Write([]byte(siriBody))
			},
			wantSuccess: true,
			wantMessage: models.ConnectedMessage,
		},
		{
			name: "quota notice in a 200 body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"message": "Quota exceeded for this key"}`))
			},
			wantSuccess: false,
			wantMessage: models.RateLimitedMessage,
		},
		{
			name: "200 without a SIRI envelope",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"message": "ok"}`))
			},
			wantSuccess: false,
			wantMessage: models.InvalidResponseMessage,
		},
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
			wantSuccess: false,
			wantMessage: models.InvalidKeyMessage,
		},
		{
			name: "forbidden",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
			},
			wantSuccess: false,
			wantMessage: models.InvalidKeyMessage,
		},
		{
			name: "throttled",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantSuccess: false,
			wantMessage: models.RateLimitedMessage,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantSuccess: false,
			wantMessage: "Erreur 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, "candidate-key", tt.handler)

			result := client.TestConnection(context.Background())

			assert.Equal(t, tt.wantSuccess, result.Success)
			assert.Equal(t, tt.wantMessage, result.Message)
		})
	}
}

func TestTestConnectionTimeout(t *testing.T) {
	client := newTestClient(t, "test-key", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result := client.TestConnection(ctx)

	assert.False(t, result.Success)
	assert.Equal(t, models.TimeoutMessage, result.Message)
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(context.DeadlineExceeded))
	assert.False(t, IsTimeout(errors.New("connection refused")))
}
