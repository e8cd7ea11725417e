package pemkit

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"
)

// newECKey generates a P-256 key for tests.
func newECKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

// newRSAKey generates a small RSA key for tests. 1024 bits keeps the suite
// fast; nothing here depends on key strength.
func newRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

// newSelfSignedCert issues a self-signed certificate for the given key.
func newSelfSignedCert(t *testing.T, cn string, key crypto.Signer) *x509.Certificate {
	t.Helper()
	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		t.Fatal(err)
	}
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-1 * time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	if err != nil {
		t.Fatal(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	return cert
}

// certPEM encodes a certificate as a PEM CERTIFICATE block.
func certPEM(t *testing.T, cert *x509.Certificate) []byte {
	t.Helper()
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
}

// pkcs8PEM encodes a private key as an unencrypted PKCS#8 PRIVATE KEY block.
func pkcs8PEM(t *testing.T, key crypto.PrivateKey) []byte {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

// pkcs1PEM encodes an RSA key as a legacy RSA PRIVATE KEY block.
func pkcs1PEM(t *testing.T, key *rsa.PrivateKey) []byte {
	t.Helper()
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}

// ecPEM encodes an EC key as a legacy EC PRIVATE KEY block.
func ecPEM(t *testing.T, key *ecdsa.PrivateKey) []byte {
	t.Helper()
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
}

// newRSAIdentityPEM generates a matched legacy-format key and self-signed
// certificate, the classic "server.crt + server.key" pair.
func newRSAIdentityPEM(t *testing.T, cn string) (certData, keyData []byte) {
	t.Helper()
	key := newRSAKey(t)
	cert := newSelfSignedCert(t, cn, key)
	return certPEM(t, cert), pkcs1PEM(t, key)
}

// newECIdentityPEM generates a matched PKCS#8 EC key and self-signed
// certificate.
func newECIdentityPEM(t *testing.T, cn string) (certData, keyData []byte) {
	t.Helper()
	key := newECKey(t)
	cert := newSelfSignedCert(t, cn, key)
	return certPEM(t, cert), pkcs8PEM(t, key)
}
