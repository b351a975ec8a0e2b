package certgen

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestServerCertificate(t *testing.T) {
	certPEM, keyPEM, err := ServerCertificate([]string{"localhost", "127.0.0.1"}, 24*time.Hour)
	if err != nil {
		t.Fatalf("ServerCertificate: %v", err)
	}

	if _, err := tls.X509KeyPair(certPEM, keyPEM); err != nil {
		t.Fatalf("pair does not load: %v", err)
	}

	block, _ := pem.Decode(certPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		t.Fatalf("unexpected PEM block %v", block)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if cert.Subject.CommonName != "localhost" {
		t.Errorf("CommonName = %q, want localhost", cert.Subject.CommonName)
	}
	if len(cert.DNSNames) != 1 || cert.DNSNames[0] != "localhost" {
		t.Errorf("DNSNames = %v", cert.DNSNames)
	}
	if len(cert.IPAddresses) != 1 || !cert.IPAddresses[0].Equal(net.ParseIP("127.0.0.1")) {
		t.Errorf("IPAddresses = %v", cert.IPAddresses)
	}
	if len(cert.ExtKeyUsage) != 1 || cert.ExtKeyUsage[0] != x509.ExtKeyUsageServerAuth {
		t.Errorf("ExtKeyUsage = %v", cert.ExtKeyUsage)
	}
	if err := cert.VerifyHostname("localhost"); err != nil {
		t.Errorf("VerifyHostname: %v", err)
	}
	if got := cert.NotAfter.Sub(cert.NotBefore); got < 24*time.Hour || got > 25*time.Hour {
		t.Errorf("validity = %s", got)
	}
}

func TestServerCertificate_Invalid(t *testing.T) {
	if _, _, err := ServerCertificate(nil, time.Hour); err == nil {
		t.Error("expected error for no hosts")
	}
	if _, _, err := ServerCertificate([]string{"localhost"}, 0); err == nil {
		t.Error("expected error for zero validity")
	}
}

func TestWritePair(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "server.crt")
	keyPath := filepath.Join(dir, "server.key")

	if err := WritePair(certPath, keyPath, []byte("cert"), []byte("key")); err != nil {
		t.Fatalf("WritePair: %v", err)
	}

	info, err := os.Stat(keyPath)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("key mode = %o, want 600", perm)
	}
	got, err := os.ReadFile(certPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "cert" {
		t.Errorf("cert = %q", got)
	}

	if err := WritePair(filepath.Join(dir, "missing", "a.crt"), keyPath, nil, nil); err == nil {
		t.Error("expected error for missing directory")
	}
}
