package crypto

import (
	"bytes"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGenerateSelfSigned(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	certPEM, keyPEM, err := GenerateSelfSigned(now)
	if err != nil {
		t.Fatalf("GenerateSelfSigned failed: %v", err)
	}

	if _, err := tls.X509KeyPair(certPEM, keyPEM); err != nil {
		t.Fatalf("generated pair does not load: %v", err)
	}

	block, _ := pem.Decode(certPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		t.Fatal("certificate PEM block missing")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}

	if cert.SignatureAlgorithm != x509.SHA256WithRSA {
		t.Errorf("SignatureAlgorithm = %v, want SHA256WithRSA", cert.SignatureAlgorithm)
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		t.Fatalf("public key is %T, want RSA", cert.PublicKey)
	}
	if pub.N.BitLen() != KeyBits {
		t.Errorf("key size = %d, want %d", pub.N.BitLen(), KeyBits)
	}
	if got := cert.NotAfter.Sub(now); got != Validity {
		t.Errorf("validity = %v, want %v", got, Validity)
	}
	if err := cert.VerifyHostname("localhost"); err != nil {
		t.Errorf("localhost should be valid: %v", err)
	}
	if err := cert.VerifyHostname("127.0.0.1"); err != nil {
		t.Errorf("127.0.0.1 should be valid: %v", err)
	}
}

func TestEnsureSelfSigned(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "tls", "cert.pem")
	keyFile := filepath.Join(dir, "tls", "key.pem")

	created, err := EnsureSelfSigned(certFile, keyFile)
	if err != nil {
		t.Fatalf("EnsureSelfSigned failed: %v", err)
	}
	if !created {
		t.Error("first call should generate a pair")
	}

	info, err := os.Stat(keyFile)
	if err != nil {
		t.Fatalf("stat key: %v", err)
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		t.Errorf("key permissions = %v, want owner only", perm)
	}

	first, _ := os.ReadFile(certFile)

	created, err = EnsureSelfSigned(certFile, keyFile)
	if err != nil {
		t.Fatalf("second EnsureSelfSigned failed: %v", err)
	}
	if created {
		t.Error("existing pair should be reused")
	}
	second, _ := os.ReadFile(certFile)
	if !bytes.Equal(first, second) {
		t.Error("certificate should not be rewritten")
	}
}

func TestEnsureSelfSigned_CorruptPair(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")
	os.WriteFile(certFile, []byte("not a cert"), 0644)
	os.WriteFile(keyFile, []byte("not a key"), 0600)

	if _, err := EnsureSelfSigned(certFile, keyFile); err == nil {
		t.Error("corrupt pair should be reported")
	}
}
