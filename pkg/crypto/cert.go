// Package crypto provides the TLS material for the HTTPS listener.
package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

const (
	// KeyBits is the RSA key size of generated certificates.
	KeyBits = 2048

	// Validity is how long a generated certificate is valid.
	Validity = 365 * 24 * time.Hour

	// Organization is the subject organization of generated certificates.
	Organization = "3DS Video Converter"
)

// EnsureSelfSigned makes sure certFile and keyFile hold a usable pair. An
// existing pair is reused; otherwise a self-signed certificate for
// localhost and 127.0.0.1 is written. It reports whether a new pair was
// generated.
func EnsureSelfSigned(certFile, keyFile string) (bool, error) {
	if fileExists(certFile) && fileExists(keyFile) {
		if _, err := tls.LoadX509KeyPair(certFile, keyFile); err != nil {
			return false, fmt.Errorf("load existing certificate: %w", err)
		}
		return false, nil
	}

	certPEM, keyPEM, err := GenerateSelfSigned(time.Now())
	if err != nil {
		return false, err
	}

	for _, dir := range []string{filepath.Dir(certFile), filepath.Dir(keyFile)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return false, fmt.Errorf("create certificate directory: %w", err)
		}
	}
	if err := os.WriteFile(keyFile, keyPEM, 0600); err != nil {
		return false, fmt.Errorf("write key: %w", err)
	}
	if err := os.WriteFile(certFile, certPEM, 0644); err != nil {
		os.Remove(keyFile)
		return false, fmt.Errorf("write certificate: %w", err)
	}
	return true, nil
}

// GenerateSelfSigned returns a PEM-encoded self-signed certificate and
// PKCS#8 private key valid from now for Validity.
func GenerateSelfSigned(now time.Time) (certPEM, keyPEM []byte, err error) {
	key, err := rsa.GenerateKey(rand.Reader, KeyBits)
	if err != nil {
		return nil, nil, fmt.Errorf("generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, fmt.Errorf("generate serial: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   "localhost",
			Organization: []string{Organization},
		},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(Validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		SignatureAlgorithm:    x509.SHA256WithRSA,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("create certificate: %w", err)
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal key: %w", err)
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
