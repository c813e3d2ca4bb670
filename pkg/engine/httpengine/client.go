// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package httpengine

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/BlindspotSoftware/streambridge/pkg/engine"
	"golang.org/x/net/http2"
)

var errNoCertificates = errors.New("no certificates found")

// newHTTPClient builds the client an engine sends its streams with.
// Insecure configurations speak h2c (HTTP/2 without TLS) with prior
// knowledge, all others require TLS 1.3.
func newHTTPClient(cfg *engine.Config) (*http.Client, error) {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}

	if cfg.Insecure {
		return &http.Client{
			Transport: &http2.Transport{
				AllowHTTP:       true,
				IdleConnTimeout: cfg.IdleTimeout,
				DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
					return dialer.DialContext(ctx, network, addr)
				},
			},
		}, nil
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS13}

	if cfg.CAFile != "" {
		pool, err := loadCertPool(cfg.CAFile)
		if err != nil {
			return nil, err
		}

		tlsConfig.RootCAs = pool
	}

	return &http.Client{
		Transport: &http.Transport{
			DialContext:       dialer.DialContext,
			TLSClientConfig:   tlsConfig,
			ForceAttemptHTTP2: true,
			IdleConnTimeout:   cfg.IdleTimeout,
		},
	}, nil
}

// loadCertPool adds the PEM certificates in path to the system roots.
func loadCertPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CA file: %w", err)
	}

	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}

	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("CA file %s: %w", path, errNoCertificates)
	}

	return pool, nil
}
