package pemkit

import (
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// IdentityEntry pairs a decoded private key with its certificate chain under
// a single alias derived from the leaf certificate. The chain is ordered
// leaf first.
type IdentityEntry struct {
	Alias string
	Key   PrivateKeyMaterial
	Chain []*x509.Certificate
}

// TLSCertificate converts the entry into a tls.Certificate usable directly
// in a tls.Config.
func (e *IdentityEntry) TLSCertificate() tls.Certificate {
	chain := make([][]byte, 0, len(e.Chain))
	for _, cert := range e.Chain {
		chain = append(chain, cert.Raw)
	}
	return tls.Certificate{
		Certificate: chain,
		PrivateKey:  e.Key.Key,
		Leaf:        e.Chain[0],
	}
}

// VerifyKeyMatch reports whether the private key corresponds to the public
// key in the leaf certificate. Uses the Equal method available on all
// standard public key types, which handles cross-type mismatches by
// returning false. This is a stronger check than the algorithm-family
// comparison AssembleIdentity performs.
func (e *IdentityEntry) VerifyKeyMatch() (bool, error) {
	signer, ok := e.Key.Key.(crypto.Signer)
	if !ok {
		return false, fmt.Errorf("unsupported private key type: %T", e.Key.Key)
	}
	type equalKey interface {
		Equal(crypto.PublicKey) bool
	}
	pub, ok := signer.Public().(equalKey)
	if !ok {
		return false, fmt.Errorf("unsupported public key type: %T", signer.Public())
	}
	return pub.Equal(e.Chain[0].PublicKey), nil
}

// AliasFor derives a deterministic store alias from a certificate: the
// lowercased subject common name, falling back to the first DNS SAN, then to
// the SHA-256 fingerprint for certificates with neither.
func AliasFor(cert *x509.Certificate) string {
	if cn := cert.Subject.CommonName; cn != "" {
		return strings.ToLower(cn)
	}
	if len(cert.DNSNames) > 0 {
		return strings.ToLower(cert.DNSNames[0])
	}
	return Fingerprint(cert)
}

// AssembleIdentity pairs a private key with a certificate chain. The chain
// must be non-empty and ordered leaf first, and the key's algorithm family
// must match the leaf's public key algorithm; an EC key paired with an RSA
// certificate fails with ErrKeyCertificateMismatch. The check is
// best-effort by family only — full cryptographic binding stays with the
// TLS layer at handshake time (or VerifyKeyMatch for callers that want it
// earlier).
func AssembleIdentity(chain []*x509.Certificate, key PrivateKeyMaterial) (*IdentityEntry, error) {
	if len(chain) == 0 {
		return nil, errors.New("certificate chain is empty")
	}
	certAlg := PublicKeyAlgorithmName(chain[0].PublicKey)
	if key.Algorithm != certAlg {
		return nil, fmt.Errorf("%w: key is %s, certificate is %s",
			ErrKeyCertificateMismatch, key.Algorithm, certAlg)
	}
	return &IdentityEntry{
		Alias: AliasFor(chain[0]),
		Key:   key,
		Chain: chain,
	}, nil
}

// ParseIdentity loads identity material from PEM text: the certificate chain
// from certData and the private key from keyData. Passing the same text for
// both supports combined files holding certificate and key together. The
// passphrase may be nil for unencrypted keys; encrypted keys without a
// passphrase fail with ErrMissingPassphrase.
func ParseIdentity(certData, keyData, passphrase []byte) (*IdentityEntry, error) {
	key, err := ParsePrivateKey(keyData, passphrase)
	if err != nil {
		return nil, err
	}
	chain, err := DecodeCertificates(certData)
	if err != nil {
		return nil, fmt.Errorf("decoding identity certificates: %w", err)
	}
	return AssembleIdentity(chain, key)
}

// LoadIdentity reads certificate and private key files and parses them as
// identity material. The two paths may be the same file.
func LoadIdentity(certPath, keyPath string, passphrase []byte) (*IdentityEntry, error) {
	certData, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("reading certificate file: %w", err)
	}
	keyData := certData
	if keyPath != certPath {
		keyData, err = os.ReadFile(keyPath)
		if err != nil {
			return nil, fmt.Errorf("reading private key file: %w", err)
		}
	}
	return ParseIdentity(certData, keyData, passphrase)
}

// ReadIdentity reads certificate and private key PEM text from the given
// readers and parses them as identity material.
func ReadIdentity(certReader, keyReader io.Reader, passphrase []byte) (*IdentityEntry, error) {
	certData, err := io.ReadAll(certReader)
	if err != nil {
		return nil, fmt.Errorf("reading certificate stream: %w", err)
	}
	keyData, err := io.ReadAll(keyReader)
	if err != nil {
		return nil, fmt.Errorf("reading private key stream: %w", err)
	}
	return ParseIdentity(certData, keyData, passphrase)
}
