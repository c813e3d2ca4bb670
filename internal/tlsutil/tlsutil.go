// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tlsutil creates and loads self-signed server certificates.
package tlsutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const (
	// File and directory permissions.
	certFileMode = 0o644 // Public read, owner write.
	keyFileMode  = 0o600 // Owner read/write only
	dirMode      = 0o755

	serialNumberBits = 128

	defaultValidity = 10 * 365 * 24 * time.Hour
)

// Options describe the certificate to generate.
type Options struct {
	// CommonName of the subject. Defaults to "streambridge".
	CommonName string
	// Hosts are DNS names or IP addresses the certificate is valid for.
	// Defaults to localhost, the system hostname and the loopback addresses.
	Hosts []string
	// Validity defaults to ten years.
	Validity time.Duration
	// Log receives generation and load messages. Defaults to a no-op logger.
	Log *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.CommonName == "" {
		o.CommonName = "streambridge"
	}

	if len(o.Hosts) == 0 {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "localhost"
		}

		o.Hosts = []string{"localhost", hostname, "127.0.0.1", "::1"}
	}

	if o.Validity <= 0 {
		o.Validity = defaultValidity
	}

	if o.Log == nil {
		o.Log = zap.NewNop()
	}

	return o
}

// GenerateSelfSignedCert writes a new Ed25519 certificate and private key
// as PEM files.
func GenerateSelfSignedCert(certPath, keyPath string, opts Options) error {
	opts = opts.withDefaults()

	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate keys: %w", err)
	}

	derBytes, err := createCertificate(publicKey, privateKey, opts)
	if err != nil {
		return err
	}

	if err := writePEM(certPath, certFileMode, "CERTIFICATE", derBytes); err != nil {
		return err
	}

	privBytes, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return fmt.Errorf("failed to marshal private key: %w", err)
	}

	if err := writePEM(keyPath, keyFileMode, "PRIVATE KEY", privBytes); err != nil {
		return err
	}

	opts.Log.Info("Generated self-signed TLS certificate",
		zap.String("cert", certPath),
		zap.String("key", keyPath),
		zap.Strings("hosts", opts.Hosts),
	)

	return nil
}

func createCertificate(publicKey ed25519.PublicKey, privateKey ed25519.PrivateKey, opts Options) ([]byte, error) {
	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), serialNumberBits))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"Blindspot Software"},
			CommonName:   opts.CommonName,
		},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(opts.Validity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	for _, h := range opts.Hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, template, template, publicKey, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	return derBytes, nil
}

func writePEM(path string, mode os.FileMode, blockType string, der []byte) error {
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create %s file: %w", blockType, err)
	}
	defer out.Close()

	if err := pem.Encode(out, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		return fmt.Errorf("failed to write %s: %w", blockType, err)
	}

	return nil
}

// LoadOrGenerateCert loads the certificate/key pair, generating it first if
// neither file exists. Files that exist but do not load are never overwritten.
func LoadOrGenerateCert(certPath, keyPath string, opts Options) (tls.Certificate, error) {
	opts = opts.withDefaults()

	certExists := fileExists(certPath)
	keyExists := fileExists(keyPath)

	if certExists || keyExists {
		cert, err := tls.LoadX509KeyPair(certPath, keyPath)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("certificate/key files exist but failed to load (cert exists: %v, key exists: %v): %w",
				certExists, keyExists, err)
		}

		opts.Log.Info("Loaded existing TLS certificate", zap.String("cert", certPath))

		return cert, nil
	}

	for _, dir := range []string{filepath.Dir(certPath), filepath.Dir(keyPath)} {
		if err := os.MkdirAll(dir, dirMode); err != nil {
			return tls.Certificate{}, fmt.Errorf("failed to create certificate directory: %w", err)
		}
	}

	if err := GenerateSelfSignedCert(certPath, keyPath, opts); err != nil {
		return tls.Certificate{}, err
	}

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to load generated certificate: %w", err)
	}

	return cert, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	return !info.IsDir()
}
