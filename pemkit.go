// Package pemkit loads PEM-encoded private keys and certificates and
// assembles them into identity material (a private key paired with its
// certificate chain) and trust material (a deduplicated set of certificates)
// ready for use by a TLS stack.
package pemkit

import (
	"bytes"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"iter"
	"log/slog"

	"github.com/smallstep/pkcs7"
)

// EnvelopeKind classifies a PEM envelope by its header label. Private keys
// appear in several mutually incompatible historical encodings; the kind
// tells the recognizer which decode path applies without the caller knowing
// the format in advance.
type EnvelopeKind int

const (
	// KindUnknown covers labels this package does not act on (CSRs, CRLs,
	// public keys, ...). Unknown envelopes are skipped, never an error.
	KindUnknown EnvelopeKind = iota
	// KindCertificate is a "CERTIFICATE" or "TRUSTED CERTIFICATE" envelope.
	KindCertificate
	// KindPKCS8 is an unencrypted "PRIVATE KEY" envelope.
	KindPKCS8
	// KindEncryptedPKCS8 is an "ENCRYPTED PRIVATE KEY" envelope (PBES2).
	KindEncryptedPKCS8
	// KindLegacyKeyPair is an algorithm-specific pre-PKCS#8 envelope such as
	// "RSA PRIVATE KEY" or "EC PRIVATE KEY", without encryption headers.
	KindLegacyKeyPair
	// KindLegacyKeyPairEncrypted is a legacy keypair envelope carrying a
	// "Proc-Type: 4,ENCRYPTED" header (RFC 1423 cipher and salt in DEK-Info).
	KindLegacyKeyPairEncrypted
	// KindOpenSSH is an "OPENSSH PRIVATE KEY" envelope. OpenSSH uses its own
	// container and encryption format, unrelated to PKCS#8 and RFC 1423.
	KindOpenSSH
	// KindPKCS7 is a "PKCS7" envelope holding a certs-only SignedData bundle.
	KindPKCS7
	// KindPKCS12 marks key material recovered from a PKCS#12 container
	// rather than a PEM envelope.
	KindPKCS12
)

// String returns the conventional PEM label for the kind.
func (k EnvelopeKind) String() string {
	switch k {
	case KindCertificate:
		return "CERTIFICATE"
	case KindPKCS8:
		return "PRIVATE KEY"
	case KindEncryptedPKCS8:
		return "ENCRYPTED PRIVATE KEY"
	case KindLegacyKeyPair:
		return "legacy PRIVATE KEY"
	case KindLegacyKeyPairEncrypted:
		return "legacy PRIVATE KEY (encrypted)"
	case KindOpenSSH:
		return "OPENSSH PRIVATE KEY"
	case KindPKCS7:
		return "PKCS7"
	case KindPKCS12:
		return "PKCS12"
	default:
		return "unknown"
	}
}

// Envelope is one typed PEM block produced by Scan. Envelopes are ephemeral:
// the recognizer consumes them and they are not retained afterwards.
type Envelope struct {
	Kind  EnvelopeKind
	Block *pem.Block
}

// IsKey reports whether the envelope carries private key material.
func (e Envelope) IsKey() bool {
	switch e.Kind {
	case KindPKCS8, KindEncryptedPKCS8, KindLegacyKeyPair, KindLegacyKeyPairEncrypted, KindOpenSSH:
		return true
	}
	return false
}

// legacyKeyLabels are the algorithm-specific pre-PKCS#8 private key labels.
var legacyKeyLabels = map[string]bool{
	"RSA PRIVATE KEY": true,
	"EC PRIVATE KEY":  true,
	"DSA PRIVATE KEY": true,
}

// isEncryptedLegacyBlock reports whether a legacy block carries RFC 1423
// encryption headers.
//
//nolint:staticcheck // x509.IsEncryptedPEMBlock is deprecated but needed for legacy encrypted PEM support
func isEncryptedLegacyBlock(block *pem.Block) bool {
	return x509.IsEncryptedPEMBlock(block)
}

func classify(block *pem.Block) EnvelopeKind {
	switch block.Type {
	case "CERTIFICATE", "TRUSTED CERTIFICATE":
		return KindCertificate
	case "PRIVATE KEY":
		return KindPKCS8
	case "ENCRYPTED PRIVATE KEY":
		return KindEncryptedPKCS8
	case "OPENSSH PRIVATE KEY":
		return KindOpenSSH
	case "PKCS7", "CMS":
		return KindPKCS7
	}
	if legacyKeyLabels[block.Type] {
		if isEncryptedLegacyBlock(block) {
			return KindLegacyKeyPairEncrypted
		}
		return KindLegacyKeyPair
	}
	return KindUnknown
}

// Scan splits PEM text into a lazy sequence of typed envelopes, terminating
// at end of input. Blocks with malformed base64 or a truncated footer are
// skipped and scanning continues at the next BEGIN marker; only well-formed
// envelopes are yielded. The sequence is single-pass and restartable only by
// re-invoking Scan on the same text.
func Scan(data []byte) iter.Seq[Envelope] {
	return func(yield func(Envelope) bool) {
		rest := data
		for {
			var block *pem.Block
			block, rest = pem.Decode(rest)
			if block == nil {
				return
			}
			if !yield(Envelope{Kind: classify(block), Block: block}) {
				return
			}
		}
	}
}

// IsPEM returns true if the data appears to contain PEM-encoded content.
func IsPEM(data []byte) bool {
	return bytes.Contains(data, []byte("-----BEGIN"))
}

// Fingerprint returns the SHA-256 fingerprint of a certificate as a
// lowercase hex string. Fingerprints are the byte-exact identity used for
// trust set membership and trusted-entry aliases.
func Fingerprint(cert *x509.Certificate) string {
	hash := sha256.Sum256(cert.Raw)
	return hex.EncodeToString(hash[:])
}

// decodeCertificatesLenient extracts certificates from one source. Within a
// PEM source, envelopes whose inner DER fails to parse are skipped; a PEM
// source yielding zero certificates is not an error here. Non-PEM sources
// must be a single DER certificate or a DER PKCS#7 bundle, otherwise the
// whole source is rejected as malformed.
func decodeCertificatesLenient(data []byte) ([]*x509.Certificate, error) {
	if !IsPEM(data) {
		if len(bytes.TrimSpace(data)) == 0 {
			return nil, nil
		}
		if cert, err := x509.ParseCertificate(data); err == nil {
			return []*x509.Certificate{cert}, nil
		}
		if certs, err := decodePKCS7Certificates(data); err == nil {
			return certs, nil
		}
		return nil, fmt.Errorf("%w: not PEM, DER certificate, or PKCS#7", ErrMalformedPEM)
	}

	var certs []*x509.Certificate
	for env := range Scan(data) {
		switch env.Kind {
		case KindCertificate:
			cert, err := x509.ParseCertificate(env.Block.Bytes)
			if err != nil {
				slog.Debug("skipping certificate envelope with unparsable DER", "error", err)
				continue
			}
			certs = append(certs, cert)
		case KindPKCS7:
			p7Certs, err := decodePKCS7Certificates(env.Block.Bytes)
			if err != nil {
				slog.Debug("skipping unparsable PKCS#7 envelope", "error", err)
				continue
			}
			certs = append(certs, p7Certs...)
		}
	}
	return certs, nil
}

// DecodeCertificates parses all certificates from one source. The source may
// be PEM text (CERTIFICATE and PKCS7 envelopes, other envelope types are
// skipped), a single DER certificate, or a DER PKCS#7 bundle. Returns an
// error if the source is malformed or yields no certificates.
func DecodeCertificates(data []byte) ([]*x509.Certificate, error) {
	certs, err := decodeCertificatesLenient(data)
	if err != nil {
		return nil, err
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("no certificates found in data")
	}
	return certs, nil
}

// decodePKCS7Certificates parses a DER PKCS#7 SignedData structure and
// returns the certificates it contains.
func decodePKCS7Certificates(der []byte) ([]*x509.Certificate, error) {
	p7, err := pkcs7.Parse(der)
	if err != nil {
		return nil, fmt.Errorf("parsing PKCS#7: %w", err)
	}
	if len(p7.Certificates) == 0 {
		return nil, fmt.Errorf("PKCS#7 bundle contains no certificates")
	}
	return p7.Certificates, nil
}
