package pemkit

import (
	"crypto/ecdsa"
	"errors"
	"testing"
)

func TestPKCS12_RoundTrip(t *testing.T) {
	// WHY: The PFX path must preserve the key, the leaf, and CA order, since
	// DecodeChain is the only way Java-exported identities enter the loader.
	t.Parallel()

	entry := newTestIdentity(t, "p12.example.com")
	data, err := EncodeIdentityPKCS12(entry, "export-secret")
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := DecodeIdentityPKCS12(data, "export-secret")
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Alias != "p12.example.com" {
		t.Errorf("alias = %q", decoded.Alias)
	}
	if len(decoded.Chain) != 1 {
		t.Fatalf("chain length = %d, want 1", len(decoded.Chain))
	}
	if _, ok := decoded.Key.Key.(*ecdsa.PrivateKey); !ok {
		t.Errorf("key type = %T, want *ecdsa.PrivateKey", decoded.Key.Key)
	}
	if decoded.Key.Encoding != KindPKCS12 {
		t.Errorf("encoding = %v, want %v", decoded.Key.Encoding, KindPKCS12)
	}
	if ok, err := decoded.VerifyKeyMatch(); err != nil || !ok {
		t.Errorf("decoded key does not match chain: ok=%v err=%v", ok, err)
	}
}

func TestPKCS12_WrongPassword(t *testing.T) {
	// WHY: A wrong container password is a decryption failure, same sentinel
	// as an encrypted PEM key with the wrong passphrase.
	t.Parallel()

	entry := newTestIdentity(t, "p12wrong.example.com")
	data, err := EncodeIdentityPKCS12(entry, "right")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeIdentityPKCS12(data, "wrong"); !errors.Is(err, ErrKeyDecryption) {
		t.Errorf("err = %v, want ErrKeyDecryption", err)
	}
}

func TestPKCS12_GarbageInput(t *testing.T) {
	t.Parallel()
	if _, err := DecodeIdentityPKCS12([]byte("not a pfx"), ""); !errors.Is(err, ErrKeyDecryption) {
		t.Errorf("err = %v, want ErrKeyDecryption", err)
	}
}
