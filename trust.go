package pemkit

import (
	"crypto/x509"
	"fmt"
	"io"
	"os"

	"github.com/breml/rootcerts/embedded"
)

// TrustSet is a set of unique certificates. Membership is determined by
// exact encoded bytes, not by subject or issuer fields; duplicates across
// merged sources collapse silently. Insertion order is preserved for
// iteration but carries no meaning.
type TrustSet struct {
	certs []*x509.Certificate
	seen  map[string]struct{}
}

// NewTrustSet creates an empty TrustSet.
func NewTrustSet() *TrustSet {
	return &TrustSet{seen: make(map[string]struct{})}
}

// Add inserts a certificate, returning false if it was already present.
func (s *TrustSet) Add(cert *x509.Certificate) bool {
	id := string(cert.Raw)
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	s.certs = append(s.certs, cert)
	return true
}

// AddAll inserts each certificate in turn.
func (s *TrustSet) AddAll(certs []*x509.Certificate) {
	for _, cert := range certs {
		s.Add(cert)
	}
}

// Merge inserts every certificate from another set.
func (s *TrustSet) Merge(other *TrustSet) {
	if other != nil {
		s.AddAll(other.certs)
	}
}

// Contains reports whether a byte-identical certificate is in the set.
func (s *TrustSet) Contains(cert *x509.Certificate) bool {
	_, ok := s.seen[string(cert.Raw)]
	return ok
}

// Len returns the number of unique certificates in the set.
func (s *TrustSet) Len() int {
	return len(s.certs)
}

// Certificates returns the set's certificates in insertion order. The
// returned slice is a copy; mutating it does not affect the set.
func (s *TrustSet) Certificates() []*x509.Certificate {
	out := make([]*x509.Certificate, len(s.certs))
	copy(out, s.certs)
	return out
}

// Pool builds an x509.CertPool from the set, usable as RootCAs or ClientCAs
// in a tls.Config.
func (s *TrustSet) Pool() *x509.CertPool {
	pool := x509.NewCertPool()
	for _, cert := range s.certs {
		pool.AddCert(cert)
	}
	return pool
}

// ParseTrust aggregates certificates from one or more independent sources
// into a single deduplicated TrustSet. Each source may be PEM text, a DER
// certificate, or a DER PKCS#7 bundle. Within a PEM source, envelopes with
// unparsable certificate DER are tolerated and skipped; a source yielding
// zero certificates is not an error by itself. A source that is malformed as
// a whole fails the entire call — aggregation is all-or-nothing at this
// boundary. If all sources together yield nothing, the result is
// ErrEmptyTrustMaterial.
func ParseTrust(sources ...[]byte) (*TrustSet, error) {
	set := NewTrustSet()
	for i, src := range sources {
		certs, err := decodeCertificatesLenient(src)
		if err != nil {
			return nil, fmt.Errorf("trust source %d: %w", i, err)
		}
		set.AddAll(certs)
	}
	if set.Len() == 0 {
		return nil, fmt.Errorf("%w: %d sources yielded no certificates", ErrEmptyTrustMaterial, len(sources))
	}
	return set, nil
}

// LoadTrust reads each file and aggregates the certificates they contain
// into a TrustSet.
func LoadTrust(paths ...string) (*TrustSet, error) {
	sources := make([][]byte, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading trust file: %w", err)
		}
		sources = append(sources, data)
	}
	return ParseTrust(sources...)
}

// ReadTrust reads each stream fully and aggregates the certificates they
// contain into a TrustSet.
func ReadTrust(readers ...io.Reader) (*TrustSet, error) {
	sources := make([][]byte, 0, len(readers))
	for _, r := range readers {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("reading trust stream: %w", err)
		}
		sources = append(sources, data)
	}
	return ParseTrust(sources...)
}

// TrustFromCertificates builds a TrustSet from already-decoded certificates.
func TrustFromCertificates(certs ...*x509.Certificate) (*TrustSet, error) {
	if len(certs) == 0 {
		return nil, ErrEmptyTrustMaterial
	}
	set := NewTrustSet()
	set.AddAll(certs)
	return set, nil
}

// MozillaTrust returns a TrustSet holding the embedded Mozilla CA bundle,
// usable as one more source alongside caller-supplied certificates.
func MozillaTrust() (*TrustSet, error) {
	return ParseTrust([]byte(embedded.MozillaCACertificatesPEM()))
}
