package pemkit

import (
	"bytes"
	"crypto/x509"
	"errors"
	"testing"
	"time"

	"github.com/pavlo-v-chernykh/keystore-go/v4"
)

func newTestIdentity(t *testing.T, cn string) *IdentityEntry {
	t.Helper()
	certData, keyData := newECIdentityPEM(t, cn)
	entry, err := ParseIdentity(certData, keyData, nil)
	if err != nil {
		t.Fatal(err)
	}
	return entry
}

func TestStore_PutAndIdentities(t *testing.T) {
	t.Parallel()

	store := NewStore()
	entry := newTestIdentity(t, "store.example.com")
	if err := store.Put(entry); err != nil {
		t.Fatal(err)
	}

	entries, err := store.Identities()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Alias != "store.example.com" {
		t.Errorf("alias = %q", entries[0].Alias)
	}
	if ok, err := entries[0].VerifyKeyMatch(); err != nil || !ok {
		t.Errorf("round-tripped key does not match chain: ok=%v err=%v", ok, err)
	}
}

func TestStore_DuplicateAlias(t *testing.T) {
	// WHY: Two identities deriving the same alias would silently shadow each
	// other in a map; the store must reject the second explicitly.
	t.Parallel()

	store := NewStore()
	if err := store.Put(newTestIdentity(t, "dup.example.com")); err != nil {
		t.Fatal(err)
	}
	err := store.Put(newTestIdentity(t, "dup.example.com"))
	if !errors.Is(err, ErrDuplicateAlias) {
		t.Errorf("err = %v, want ErrDuplicateAlias", err)
	}
}

func TestStore_PutRejectsIncompleteEntries(t *testing.T) {
	t.Parallel()

	store := NewStore()
	if err := store.Put(nil); err == nil {
		t.Error("nil entry accepted")
	}
	entry := newTestIdentity(t, "incomplete.example.com")
	entry.Alias = ""
	if err := store.Put(entry); err == nil {
		t.Error("entry without alias accepted")
	}
}

func TestStore_AddTrustDeduplicates(t *testing.T) {
	// WHY: Trusted entries are aliased by fingerprint, so adding overlapping
	// sets twice must not error or grow the trust view.
	t.Parallel()

	sources := threeDistinctCertPEMs(t)
	set, err := ParseTrust(sources...)
	if err != nil {
		t.Fatal(err)
	}

	store := NewStore()
	if err := store.AddTrust(set); err != nil {
		t.Fatal(err)
	}
	if err := store.AddTrust(set); err != nil {
		t.Fatal(err)
	}

	pool, err := store.TrustManager()
	if err != nil {
		t.Fatal(err)
	}
	if pool == nil {
		t.Fatal("nil pool")
	}
}

func TestStore_AddTrustEmpty(t *testing.T) {
	t.Parallel()

	store := NewStore()
	if err := store.AddTrust(nil); !errors.Is(err, ErrEmptyTrustMaterial) {
		t.Errorf("err = %v, want ErrEmptyTrustMaterial", err)
	}
	if err := store.AddTrust(NewTrustSet()); !errors.Is(err, ErrEmptyTrustMaterial) {
		t.Errorf("err = %v, want ErrEmptyTrustMaterial", err)
	}
}

func TestStore_KeyManager(t *testing.T) {
	t.Parallel()

	store := NewStore()
	if _, err := store.KeyManager(); err == nil {
		t.Error("expected error for empty store")
	}

	if err := store.Put(newTestIdentity(t, "km.example.com")); err != nil {
		t.Fatal(err)
	}
	certs, err := store.KeyManager()
	if err != nil {
		t.Fatal(err)
	}
	if len(certs) != 1 || certs[0].PrivateKey == nil {
		t.Errorf("unexpected key manager view: %d certificates", len(certs))
	}
}

func TestStore_TrustManagerEmpty(t *testing.T) {
	// WHY: An empty trust manager would accept nothing at the TLS layer;
	// surfacing it as ErrEmptyTrustMaterial catches the misconfiguration
	// before a connection ever fails.
	t.Parallel()

	store := NewStore()
	if err := store.Put(newTestIdentity(t, "notrust.example.com")); err != nil {
		t.Fatal(err)
	}
	if _, err := store.TrustManager(); !errors.Is(err, ErrEmptyTrustMaterial) {
		t.Errorf("err = %v, want ErrEmptyTrustMaterial", err)
	}
}

func TestStore_JKSRoundTrip(t *testing.T) {
	// WHY: Export and re-import must preserve both entry kinds, and the
	// exported keystore must open only with the caller's password.
	t.Parallel()

	store := NewStore()
	if err := store.Put(newTestIdentity(t, "jks.example.com")); err != nil {
		t.Fatal(err)
	}
	set, err := ParseTrust(threeDistinctCertPEMs(t)...)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.AddTrust(set); err != nil {
		t.Fatal(err)
	}

	data, err := store.ExportJKS("changeit")
	if err != nil {
		t.Fatal(err)
	}

	imported := NewStore()
	if err := imported.ImportJKS(data, "changeit"); err != nil {
		t.Fatal(err)
	}
	entries, err := imported.Identities()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Alias != "jks.example.com" {
		t.Fatalf("identities after round trip: %d", len(entries))
	}
	if _, err := imported.TrustManager(); err != nil {
		t.Errorf("trust entries lost in round trip: %v", err)
	}

	if err := NewStore().ImportJKS(data, "wrong-password"); err == nil {
		t.Error("wrong keystore password accepted")
	}
}

func TestStore_ImportJKSRejectsChainlessKey(t *testing.T) {
	// WHY: The keystore format permits a private key entry with no
	// certificate chain, but every identity in the store pairs its key with a
	// non-empty chain. Letting one in would blow up later when building the
	// tls.Certificate view.
	t.Parallel()

	der, err := x509.MarshalPKCS8PrivateKey(newECKey(t))
	if err != nil {
		t.Fatal(err)
	}
	ks := keystore.New()
	if err := ks.SetPrivateKeyEntry("orphan", keystore.PrivateKeyEntry{
		CreationTime: time.Now(),
		PrivateKey:   der,
	}, []byte("changeit")); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := ks.Store(&buf, []byte("changeit")); err != nil {
		t.Fatal(err)
	}

	store := NewStore()
	if err := store.ImportJKS(buf.Bytes(), "changeit"); err == nil {
		t.Fatal("chainless private key entry accepted")
	}
	entries, err := store.Identities()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %d after failed import, want 0", len(entries))
	}
}

func TestStore_ImportJKSSkipsExistingTrustedEntries(t *testing.T) {
	// WHY: Trusted entries follow AddTrust semantics on import: an alias
	// already present is skipped, never overwritten and never an error.
	t.Parallel()

	set, err := ParseTrust(threeDistinctCertPEMs(t)...)
	if err != nil {
		t.Fatal(err)
	}
	exporter := NewStore()
	if err := exporter.AddTrust(set); err != nil {
		t.Fatal(err)
	}
	data, err := exporter.ExportJKS("changeit")
	if err != nil {
		t.Fatal(err)
	}

	store := NewStore()
	if err := store.ImportJKS(data, "changeit"); err != nil {
		t.Fatal(err)
	}
	if err := store.ImportJKS(data, "changeit"); err != nil {
		t.Fatalf("re-import of trusted entries errored: %v", err)
	}
	pool, err := store.TrustManager()
	if err != nil {
		t.Fatal(err)
	}
	if pool == nil {
		t.Fatal("nil pool")
	}
}

func TestStore_ImportJKSDuplicateAlias(t *testing.T) {
	t.Parallel()

	store := NewStore()
	if err := store.Put(newTestIdentity(t, "collide.example.com")); err != nil {
		t.Fatal(err)
	}
	data, err := store.ExportJKS("changeit")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.ImportJKS(data, "changeit"); !errors.Is(err, ErrDuplicateAlias) {
		t.Errorf("err = %v, want ErrDuplicateAlias", err)
	}
}
