package habbo

import (
	"net"
	"net/http"
	"time"
)

// NewHTTPClient creates an HTTP client tuned for the hotel public APIs:
// connection pooling, keep-alive and bounded timeouts at every stage so
// a stuck fetch can never hang a sync cycle.
func NewHTTPClient() *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10, // one host per hotel domain
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,

		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		ForceAttemptHTTP2: true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}
}
