// Package httpconfig builds the *http.Client used for the auto-configuration
// stream connection, applying proxy and TLS options the same way ldactl's
// ambient configuration exposes them.
package httpconfig

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// HTTPConfig holds the resolved transport options for outbound connections.
type HTTPConfig struct {
	ProxyURL    *url.URL
	CACertFiles []string
	UserAgent   string
}

// NewHTTPConfig validates the proxy URL and returns an HTTPConfig. An empty
// proxyURL means "use the environment's proxy settings", matching
// http.ProxyFromEnvironment. CA cert files are not read here; Client reads
// and checks them.
func NewHTTPConfig(proxyURL string, caCertFiles []string, userAgent string, loggers ldlog.Loggers) (HTTPConfig, error) {
	cfg := HTTPConfig{UserAgent: userAgent, CACertFiles: caCertFiles}

	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return cfg, fmt.Errorf("invalid proxy URL: %w", err)
		}
		loggers.Infof("Using proxy server at %s", u.Redacted())
		cfg.ProxyURL = u
	}

	return cfg, nil
}

// Client builds a new *http.Client with no request timeout, suitable for a
// long-lived streaming connection. Callers that need a per-request timeout
// for something other than the stream should build their own client from
// the same Transport settings instead of mutating this one's Timeout.
func (c HTTPConfig) Client() (*http.Client, error) {
	transport := &http.Transport{}

	if c.ProxyURL != nil {
		transport.Proxy = http.ProxyURL(c.ProxyURL)
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	if len(c.CACertFiles) > 0 {
		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}
		for _, file := range c.CACertFiles {
			if file == "" {
				continue
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return nil, fmt.Errorf("reading CA cert file %s: %w", file, err)
			}
			if !pool.AppendCertsFromPEM(data) {
				return nil, fmt.Errorf("no certificates found in %s", file)
			}
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}

	return &http.Client{Transport: transport, Timeout: 0}, nil
}
