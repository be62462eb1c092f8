package common

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHeaders(t *testing.T) (*httptest.Server, *http.Header) {
	t.Helper()
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server, &got
}

func TestHTTPClient(t *testing.T) {
	server, got := echoHeaders(t)

	timeout := 5 * time.Second
	client := HTTPClient(timeout)
	assert.Equal(t, timeout, client.Timeout)
	assert.NotNil(t, client.Transport)

	req, err := http.NewRequest("GET", server.URL, nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "overridden")
	req.Header.Set("Accept", "text/csv")

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, UserAgent(), got.Get("User-Agent"))
	assert.Equal(t, "text/csv", got.Get("Accept"), "plain client leaves Accept alone")
	assert.Equal(t, "overridden", req.Header.Get("User-Agent"), "original request must not be modified")
	assert.NotEmpty(t, Version())
}

func TestJSONClient(t *testing.T) {
	server, got := echoHeaders(t)

	client := JSONClient(time.Second)
	for i := 0; i < 2; i++ {
		req, err := http.NewRequest("GET", server.URL, nil)
		require.NoError(t, err)
		req.Header.Set("Accept", "text/html")

		resp, err := client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, "application/json", got.Get("Accept"))
		assert.Equal(t, []string{"application/json"}, (*got)["Accept"], "headers aren't appended across requests")
		assert.Equal(t, UserAgent(), got.Get("User-Agent"))
		assert.Equal(t, "text/html", req.Header.Get("Accept"))
	}
}
