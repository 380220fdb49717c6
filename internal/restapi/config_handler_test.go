package restapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postForm(path string, values url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func TestGetConfigMasksAPIKey(t *testing.T) {
	api, _ := newTestAPI(t, "")
	require.NoError(t, api.Settings.SetAPIKey("secret-key-123456"))

	w := serveAPI(api, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var response configResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))

	assert.True(t, response.APIKeyConfigured)
	assert.Equal(t, "secret-k...", response.APIKeyMasked)
	assert.NotContains(t, w.Body.String(), "secret-key-123456")
	assert.Equal(t, 30, response.RefreshIntervalSeconds)
	assert.Equal(t, 3, response.MaxDepartures)
	assert.False(t, response.PollingRunning)
}

func TestSetAPIKeyVerifiesAndPersists(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "new-key", r.Header.Get("apikey"))
		_, _ = w.Write([]byte(`{"Siri":{"ServiceDelivery":{}}}`))
	}))
	defer upstream.Close()

	api, _ := newTestAPI(t, upstream.URL)

	w := serveAPI(api, postForm("/api/config/apikey", url.Values{"api_key": {"new-key"}}))
	require.Equal(t, http.StatusOK, w.Code)

	var result actionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, "API connectée ✓", result.Message)
	assert.Equal(t, "new-key", api.Settings.APIKey())
	assert.GreaterOrEqual(t, calls.Load(), int32(1), "the new key must be checked upstream")
}

func TestSetAPIKeyReportsInvalidKey(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer upstream.Close()

	api, _ := newTestAPI(t, upstream.URL)
	addTestStop(t, api, "STIF:StopPoint:Q:1:", "Alésia", "")

	w := serveAPI(api, postForm("/api/config/apikey", url.Values{"api_key": {"bad-key"}}))
	require.Equal(t, http.StatusOK, w.Code)

	var result actionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.False(t, result.Success)
	assert.Equal(t, "Clé API invalide", result.Message)
	assert.False(t, api.PollingRunning(), "a rejected key must not start polling")
}

func TestSetAPIKeyRequiresValue(t *testing.T) {
	api, _ := newTestAPI(t, "")

	w := serveAPI(api, postForm("/api/config/apikey", url.Values{}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetRefreshIntervalRejectsOutOfRange(t *testing.T) {
	api, _ := newTestAPI(t, "")

	for _, seconds := range []string{"5", "301"} {
		w := serveAPI(api, postForm("/api/config/refresh_interval", url.Values{"seconds": {seconds}}))
		assert.Equal(t, http.StatusBadRequest, w.Code, "seconds=%s", seconds)
	}

	w := serveAPI(api, postForm("/api/config/refresh_interval", url.Values{"seconds": {"60"}}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(60), api.Settings.RefreshInterval().Seconds())
}

func TestTestConnectionWithoutKey(t *testing.T) {
	api, _ := newTestAPI(t, "")

	w := serveAPI(api, httptest.NewRequest(http.MethodGet, "/api/config/test", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var result actionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.False(t, result.Success)
	assert.Equal(t, "Clé API non configurée", result.Message)
}

func TestTestConnectionAgainstStubUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "valid-key", r.Header.Get("apikey"))
		_, _ = w.Write([]byte(`{"Siri":{"ServiceDelivery":{}}}`))
	}))
	defer upstream.Close()

	api, _ := newTestAPI(t, upstream.URL)
	require.NoError(t, api.Settings.SetAPIKey("valid-key"))

	w := serveAPI(api, httptest.NewRequest(http.MethodGet, "/api/config/test", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var result actionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, "API connectée ✓", result.Message)
}
