package pemkit

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"fmt"

	gopkcs12 "software.sslmate.com/src/go-pkcs12"
)

// DecodeIdentityPKCS12 decodes a PKCS#12/PFX container into an identity
// entry. The leaf becomes chain[0], followed by any CA certificates in the
// container. A wrong password surfaces as ErrKeyDecryption.
func DecodeIdentityPKCS12(data []byte, password string) (*IdentityEntry, error) {
	key, leaf, caCerts, err := gopkcs12.DecodeChain(data, password)
	if err != nil {
		return nil, fmt.Errorf("%w: PKCS#12: %v", ErrKeyDecryption, err)
	}
	chain := append([]*x509.Certificate{leaf}, caCerts...)
	return AssembleIdentity(chain, newMaterial(key, KindPKCS12))
}

// EncodeIdentityPKCS12 serializes an identity entry as a PKCS#12/PFX
// container using modern ciphers, protected by the given password.
func EncodeIdentityPKCS12(entry *IdentityEntry, password string) ([]byte, error) {
	if err := validatePKCS12KeyType(entry.Key.Key); err != nil {
		return nil, err
	}
	return gopkcs12.Modern.Encode(entry.Key.Key, entry.Chain[0], entry.Chain[1:], password)
}

// validatePKCS12KeyType checks that the private key is a supported type for
// PKCS#12 encoding.
func validatePKCS12KeyType(privateKey crypto.PrivateKey) error {
	switch privateKey.(type) {
	case *rsa.PrivateKey, *ecdsa.PrivateKey, ed25519.PrivateKey:
		return nil
	default:
		return fmt.Errorf("unsupported private key type %T", privateKey)
	}
}
