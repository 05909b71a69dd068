// Package deliver posts a JSON payload to an HTTPS endpoint that requires a
// client certificate.
//
// Server certificates are verified against the system trust store plus a
// caller-supplied CA, so the endpoint may present either a publicly issued
// certificate or one signed by the private CA that also issued the client
// certificate.
package deliver

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	appLog "owacal/internal/log"
)

// DefaultTimeout bounds the whole POST, TLS handshake included.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of a failed response is kept in StatusError.
const maxErrorBody = 64 << 10

// Trust holds the paths of the PEM files used for mutual TLS.
type Trust struct {
	CA   string
	Cert string
	Key  string
}

type options struct {
	timeout     time.Duration
	systemRoots bool
}

// Option adjusts a single Post call.
type Option func(*options)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithoutSystemRoots trusts only the CA from Trust, like curl --cacert.
func WithoutSystemRoots() Option {
	return func(o *options) {
		o.systemRoots = false
	}
}

// Check verifies that all three trust files exist. It performs no I/O beyond
// stat and is called by Post before anything touches the network.
func (t Trust) Check() error {
	for _, f := range []struct{ name, path string }{
		{"CA", t.CA},
		{"cert", t.Cert},
		{"key", t.Key},
	} {
		if f.path == "" {
			return &MissingFileError{Name: f.name, Path: f.path, Err: os.ErrNotExist}
		}
		if _, err := os.Stat(f.path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return &MissingFileError{Name: f.name, Path: f.path, Err: err}
			}
			return fmt.Errorf("deliver: stat %s file %s: %w", f.name, f.path, err)
		}
	}
	return nil
}

// TLSConfig loads the trust material into a client TLS configuration.
func (t Trust) TLSConfig(systemRoots bool) (*tls.Config, error) {
	if err := t.Check(); err != nil {
		return nil, err
	}

	var pool *x509.CertPool
	if systemRoots {
		sys, err := x509.SystemCertPool()
		if err != nil {
			appLog.Error("deliver: system cert pool unavailable; using CA file only", err)
			sys = x509.NewCertPool()
		}
		pool = sys
	} else {
		pool = x509.NewCertPool()
	}

	caPEM, err := os.ReadFile(t.CA)
	if err != nil {
		return nil, fmt.Errorf("deliver: read CA file: %w", err)
	}
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("deliver: no certificates found in CA file %s", t.CA)
	}

	cert, err := tls.LoadX509KeyPair(t.Cert, t.Key)
	if err != nil {
		return nil, fmt.Errorf("deliver: load client certificate: %w", err)
	}

	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		RootCAs:      pool,
		Certificates: []tls.Certificate{cert},
	}, nil
}

// Post sends payload to url exactly once with Content-Type application/json.
//
// Errors:
//   - *MissingFileError when a trust file does not exist (no network I/O);
//   - *StatusError for a non-2xx response, redirects included;
//   - a wrapped transport error for connection or TLS failures.
//
// Post never retries.
func Post(ctx context.Context, payload []byte, url string, trust Trust, opts ...Option) error {
	o := options{timeout: DefaultTimeout, systemRoots: true}
	for _, opt := range opts {
		opt(&o)
	}

	tlsConf, err := trust.TLSConfig(o.systemRoots)
	if err != nil {
		return err
	}

	client := &http.Client{
		Timeout: o.timeout,
		// A redirect is not a delivery; surface it as a StatusError.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			TLSClientConfig:     tlsConf,
			TLSHandshakeTimeout: o.timeout,
		},
	}
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("deliver: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	appLog.Info("deliver post start", "url", redactURL(url), "bytes", len(payload))

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver: post %s: %w", redactURL(url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	appLog.Info("deliver post success", "url", redactURL(url), "status", resp.StatusCode)
	return nil
}
