package pemkit

import "errors"

// Error kinds surfaced by the loading pipeline. All are terminal to the call
// that produced them; none of the underlying conditions are transient, so
// callers should not retry. Match with errors.Is.
var (
	// ErrMalformedPEM indicates the input contained PEM markers but no
	// well-formed envelope could be decoded from it.
	ErrMalformedPEM = errors.New("malformed PEM data")

	// ErrMissingPassphrase indicates an encrypted private key envelope was
	// found but no passphrase was supplied. An empty or default passphrase is
	// never substituted.
	ErrMissingPassphrase = errors.New("encrypted private key requires a passphrase")

	// ErrKeyDecryption indicates decryption of a private key failed. A wrong
	// passphrase and corrupt ciphertext are deliberately not distinguished.
	ErrKeyDecryption = errors.New("decrypting private key failed")

	// ErrUnsupportedPrivateKey indicates no recognizable private key envelope
	// was found in the input.
	ErrUnsupportedPrivateKey = errors.New("no supported private key found")

	// ErrKeyCertificateMismatch indicates the private key's algorithm family
	// does not match the leaf certificate's public key algorithm.
	ErrKeyCertificateMismatch = errors.New("private key algorithm does not match leaf certificate")

	// ErrDuplicateAlias indicates two identities derived the same alias
	// within one store.
	ErrDuplicateAlias = errors.New("duplicate alias in store")

	// ErrEmptyTrustMaterial indicates trust aggregation yielded no
	// certificates across all sources.
	ErrEmptyTrustMaterial = errors.New("no trust material found")
)
