package certgen

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGenerateServerCertificate(t *testing.T) {
	certPEM, keyPEM, err := GenerateServerCertificate([]string{"localhost", "127.0.0.1"}, 24*time.Hour)
	if err != nil {
		t.Fatalf("GenerateServerCertificate error: %v", err)
	}

	if _, err := tls.X509KeyPair(certPEM, keyPEM); err != nil {
		t.Fatalf("certificate and key do not form a pair: %v", err)
	}

	block, _ := pem.Decode(certPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		t.Fatal("invalid certificate PEM")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}

	if cert.Subject.CommonName != "localhost" {
		t.Errorf("CN = %q; want localhost", cert.Subject.CommonName)
	}
	if len(cert.DNSNames) != 1 || cert.DNSNames[0] != "localhost" {
		t.Errorf("DNSNames = %v; want [localhost]", cert.DNSNames)
	}
	if len(cert.IPAddresses) != 1 || cert.IPAddresses[0].String() != "127.0.0.1" {
		t.Errorf("IPAddresses = %v; want [127.0.0.1]", cert.IPAddresses)
	}
	if err := cert.VerifyHostname("localhost"); err != nil {
		t.Errorf("VerifyHostname(localhost): %v", err)
	}
	if cert.NotAfter.Before(time.Now().Add(23 * time.Hour)) {
		t.Errorf("NotAfter too early: %v", cert.NotAfter)
	}

	pool := x509.NewCertPool()
	pool.AddCert(cert)
	if _, err := cert.Verify(x509.VerifyOptions{DNSName: "localhost", Roots: pool}); err != nil {
		t.Errorf("self-signed certificate does not verify against itself: %v", err)
	}
}

func TestGenerateServerCertificate_NoHosts(t *testing.T) {
	if _, _, err := GenerateServerCertificate(nil, time.Hour); err == nil {
		t.Error("expected error for empty host list")
	}
}

func TestWriteFiles(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "certs", "server.crt")
	keyPath := filepath.Join(dir, "certs", "server.key")

	if err := WriteFiles(certPath, keyPath, []byte("cert"), []byte("key")); err != nil {
		t.Fatalf("WriteFiles error: %v", err)
	}

	info, err := os.Stat(keyPath)
	if err != nil {
		t.Fatalf("stat key: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("key mode = %o; want 600", perm)
	}
	data, _ := os.ReadFile(certPath)
	if string(data) != "cert" {
		t.Errorf("cert content = %q", data)
	}
}
