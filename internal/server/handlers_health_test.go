package server

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiveness(t *testing.T) {
	_, ts := newTestServer(t, testConfig(), nil, nil)

	resp, err := http.Get(ts.URL + "/health/live")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	decodeJSON(t, resp, &body)
	assert.Equal(t, "alive", body["status"])
}

func TestReadinessWithoutBackends(t *testing.T) {
	_, ts := newTestServer(t, testConfig(), nil, nil)

	resp, err := http.Get(ts.URL + "/health/ready")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	decodeJSON(t, resp, &body)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, float64(0), body["connected_clients"])
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t, testConfig(), nil, nil)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
