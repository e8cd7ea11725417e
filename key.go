package pemkit

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/youmark/pkcs8"
	"golang.org/x/crypto/ssh"
)

// PrivateKeyMaterial is a normalized, decoded private key together with its
// algorithm name and the envelope kind it was recovered from. It must never
// be logged or serialized by the loading pipeline itself; only the store's
// explicit export methods write key material out.
type PrivateKeyMaterial struct {
	Key       crypto.PrivateKey
	Algorithm string // "RSA", "ECDSA", "Ed25519", or "unknown"
	Encoding  EnvelopeKind
}

// ParsePrivateKey scans PEM text and recognizes the first private key
// envelope it contains. See RecognizePrivateKey for the recognition rules.
func ParsePrivateKey(data, passphrase []byte) (PrivateKeyMaterial, error) {
	return RecognizePrivateKey(Scan(data), passphrase)
}

// RecognizePrivateKey consumes a scanned envelope sequence and recovers a
// private key from the first key-bearing envelope:
//
//   - unencrypted PKCS#8 decodes directly (with PKCS#1/EC fallback for
//     mislabeled blocks, e.g. from pkcs12.ToPEM)
//   - encrypted PKCS#8 requires a passphrase and decrypts via PBES2
//   - legacy keypairs decode per their algorithm label; encrypted variants
//     decrypt via the RFC 1423 cipher header first
//   - OpenSSH keys delegate to x/crypto/ssh
//
// Non-key envelopes (certificates etc.) are skipped without error, and the
// first recognized key short-circuits the scan, so "cert + key in one file"
// works in either order and later key envelopes are ignored. A key envelope
// with unparsable contents is skipped like a malformed envelope; decryption
// failures are terminal and never retried under a different interpretation.
// If no key is recovered the result is ErrUnsupportedPrivateKey, or
// ErrMalformedPEM when the input held no well-formed envelope at all.
func RecognizePrivateKey(envelopes iter.Seq[Envelope], passphrase []byte) (PrivateKeyMaterial, error) {
	sawEnvelope := false
	var lastSkip error
	for env := range envelopes {
		sawEnvelope = true
		if !env.IsKey() {
			continue
		}
		material, err := recognizeOne(env, passphrase)
		if err == nil {
			return material, nil
		}
		if errors.Is(err, ErrMissingPassphrase) || errors.Is(err, ErrKeyDecryption) {
			return PrivateKeyMaterial{}, err
		}
		slog.Debug("skipping unparsable key envelope", "label", env.Block.Type, "error", err)
		lastSkip = err
	}
	if !sawEnvelope {
		return PrivateKeyMaterial{}, fmt.Errorf("%w: no PEM envelopes in input", ErrMalformedPEM)
	}
	if lastSkip != nil {
		return PrivateKeyMaterial{}, fmt.Errorf("%w: %v", ErrUnsupportedPrivateKey, lastSkip)
	}
	return PrivateKeyMaterial{}, ErrUnsupportedPrivateKey
}

func recognizeOne(env Envelope, passphrase []byte) (PrivateKeyMaterial, error) {
	block := env.Block
	switch env.Kind {
	case KindPKCS8:
		key, err := parsePKCS8Block(block.Bytes)
		if err != nil {
			return PrivateKeyMaterial{}, err
		}
		return newMaterial(key, env.Kind), nil

	case KindEncryptedPKCS8:
		if passphrase == nil {
			return PrivateKeyMaterial{}, ErrMissingPassphrase
		}
		key, err := pkcs8.ParsePKCS8PrivateKey(block.Bytes, passphrase)
		if err != nil {
			return PrivateKeyMaterial{}, fmt.Errorf("%w: PKCS#8: %v", ErrKeyDecryption, err)
		}
		return newMaterial(key, env.Kind), nil

	case KindLegacyKeyPair:
		key, err := parseLegacyBlock(block.Type, block.Bytes)
		if err != nil {
			return PrivateKeyMaterial{}, err
		}
		return newMaterial(key, env.Kind), nil

	case KindLegacyKeyPairEncrypted:
		if passphrase == nil {
			return PrivateKeyMaterial{}, ErrMissingPassphrase
		}
		//nolint:staticcheck // x509.DecryptPEMBlock is deprecated but needed for legacy encrypted PEM support
		decrypted, err := x509.DecryptPEMBlock(block, passphrase)
		if err != nil {
			return PrivateKeyMaterial{}, fmt.Errorf("%w: %s: %v", ErrKeyDecryption, block.Type, err)
		}
		// A wrong passphrase can survive the padding check and only fail
		// here, so a post-decryption parse failure is still a decryption
		// failure, not a malformed envelope.
		key, err := parseLegacyBlock(block.Type, decrypted)
		if err != nil {
			return PrivateKeyMaterial{}, fmt.Errorf("%w: %s: %v", ErrKeyDecryption, block.Type, err)
		}
		return newMaterial(key, env.Kind), nil

	case KindOpenSSH:
		return recognizeOpenSSH(block, passphrase)
	}
	return PrivateKeyMaterial{}, fmt.Errorf("envelope %q is not a private key", block.Type)
}

// parsePKCS8Block parses a "PRIVATE KEY" block, trying PKCS#8 first and
// falling back to PKCS#1 and EC parsers for mislabeled keys.
func parsePKCS8Block(der []byte) (crypto.PrivateKey, error) {
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	return nil, fmt.Errorf("parsing PRIVATE KEY block with any known format")
}

func parseLegacyBlock(label string, der []byte) (crypto.PrivateKey, error) {
	switch label {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(der)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(der)
	default:
		return nil, fmt.Errorf("unsupported legacy key label %q", label)
	}
}

func recognizeOpenSSH(block *pem.Block, passphrase []byte) (PrivateKeyMaterial, error) {
	pemData := pem.EncodeToMemory(block)
	key, err := ssh.ParseRawPrivateKey(pemData)
	if err == nil {
		return newMaterial(normalizeKey(key), KindOpenSSH), nil
	}
	var missing *ssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		return PrivateKeyMaterial{}, fmt.Errorf("parsing OpenSSH private key: %w", err)
	}
	if passphrase == nil {
		return PrivateKeyMaterial{}, ErrMissingPassphrase
	}
	key, err = ssh.ParseRawPrivateKeyWithPassphrase(pemData, passphrase)
	if err != nil {
		return PrivateKeyMaterial{}, fmt.Errorf("%w: OpenSSH: %v", ErrKeyDecryption, err)
	}
	return newMaterial(normalizeKey(key), KindOpenSSH), nil
}

// normalizeKey converts non-standard private key representations to their
// canonical Go form. ssh.ParseRawPrivateKey returns *ed25519.PrivateKey;
// dereferencing it means downstream type switches only need one case.
func normalizeKey(key crypto.PrivateKey) crypto.PrivateKey {
	if ptr, ok := key.(*ed25519.PrivateKey); ok {
		return *ptr
	}
	return key
}

func newMaterial(key crypto.PrivateKey, kind EnvelopeKind) PrivateKeyMaterial {
	return PrivateKeyMaterial{
		Key:       key,
		Algorithm: KeyAlgorithmName(key),
		Encoding:  kind,
	}
}

// KeyAlgorithmName returns a human-readable name for a private key's algorithm.
func KeyAlgorithmName(key crypto.PrivateKey) string {
	switch key.(type) {
	case *ecdsa.PrivateKey:
		return "ECDSA"
	case *rsa.PrivateKey:
		return "RSA"
	case ed25519.PrivateKey, *ed25519.PrivateKey:
		return "Ed25519"
	default:
		return "unknown"
	}
}

// PublicKeyAlgorithmName returns a human-readable name for a public key's algorithm.
func PublicKeyAlgorithmName(key crypto.PublicKey) string {
	switch key.(type) {
	case *ecdsa.PublicKey:
		return "ECDSA"
	case *rsa.PublicKey:
		return "RSA"
	case ed25519.PublicKey, *ed25519.PublicKey:
		return "Ed25519"
	default:
		return "unknown"
	}
}
