package common

import (
	_ "embed"
	"net/http"
	"strings"
	"time"
)

//go:embed VERSION
var version string

// Version returns the embedded release version.
func Version() string {
	return strings.TrimSpace(version)
}

// UserAgent is sent with every outgoing request.
func UserAgent() string {
	return "SolarPrep/" + Version()
}

// headerTransport overrides headers on every request it sends.
type headerTransport struct {
	transport http.RoundTripper
	headers   http.Header
}

// RoundTrip sets the transport's headers on a clone of req.
func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// the caller may reuse req after we return
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header[k] = append([]string(nil), v...)
	}
	return t.transport.RoundTrip(req)
}

func newClient(timeout time.Duration, headers http.Header) *http.Client {
	h := http.Header{}
	h.Set("User-Agent", UserAgent())
	for k, v := range headers {
		h[http.CanonicalHeaderKey(k)] = v
	}
	return &http.Client{
		Transport: &headerTransport{
			transport: http.DefaultTransport,
			headers:   h,
		},
		Timeout: timeout,
	}
}

// HTTPClient returns an http client with the SolarPrep user-agent set
func HTTPClient(timeout time.Duration) *http.Client {
	return newClient(timeout, nil)
}

// JSONClient is an HTTPClient for APIs that can answer in several formats. It
// asks for JSON with the Accept header.
func JSONClient(timeout time.Duration) *http.Client {
	return newClient(timeout, http.Header{"Accept": {"application/json"}})
}
