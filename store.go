package pemkit

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/pavlo-v-chernykh/keystore-go/v4"
)

// inMemoryProtection is the fixed filler credential required only because
// the underlying keystore API assumes password protection even for
// transient in-memory entries. It is never derived from or equal to any
// caller passphrase, never persisted, and never exposed: ExportJKS
// re-encodes entries under the caller's password instead.
var inMemoryProtection = []byte("pemkit-in-memory")

// Store is an in-memory secret store for identity and trust material,
// backed by a JKS keystore. Identity entries live under their derived
// aliases; trusted certificates live under fingerprint aliases. Store is
// safe for concurrent use.
type Store struct {
	mu sync.Mutex
	ks keystore.KeyStore
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{ks: keystore.New()}
}

// Put publishes an identity entry into the store under its alias. Two
// identities deriving the same alias are a caller error surfaced as
// ErrDuplicateAlias.
func (s *Store) Put(entry *IdentityEntry) error {
	if entry == nil || len(entry.Chain) == 0 {
		return fmt.Errorf("identity entry must have a non-empty chain")
	}
	if entry.Alias == "" {
		return fmt.Errorf("identity entry must have an alias")
	}

	der, err := x509.MarshalPKCS8PrivateKey(entry.Key.Key)
	if err != nil {
		return fmt.Errorf("marshaling private key to PKCS#8: %w", err)
	}
	chain := make([]keystore.Certificate, 0, len(entry.Chain))
	for _, cert := range entry.Chain {
		chain = append(chain, keystore.Certificate{Type: "X.509", Content: cert.Raw})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if slices.Contains(s.ks.Aliases(), entry.Alias) {
		return fmt.Errorf("%w: %q", ErrDuplicateAlias, entry.Alias)
	}
	if err := s.ks.SetPrivateKeyEntry(entry.Alias, keystore.PrivateKeyEntry{
		CreationTime:     time.Now(),
		PrivateKey:       der,
		CertificateChain: chain,
	}, inMemoryProtection); err != nil {
		return fmt.Errorf("storing identity %q: %w", entry.Alias, err)
	}
	return nil
}

// AddTrust publishes every certificate in the set as a trusted entry.
// Trusted entries are aliased by fingerprint, so re-adding a certificate is
// a no-op rather than a collision.
func (s *Store) AddTrust(set *TrustSet) error {
	if set == nil || set.Len() == 0 {
		return ErrEmptyTrustMaterial
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, cert := range set.Certificates() {
		alias := Fingerprint(cert)
		if s.ks.IsTrustedCertificateEntry(alias) {
			continue
		}
		if err := s.ks.SetTrustedCertificateEntry(alias, keystore.TrustedCertificateEntry{
			CreationTime: time.Now(),
			Certificate:  keystore.Certificate{Type: "X.509", Content: cert.Raw},
		}); err != nil {
			return fmt.Errorf("storing trusted certificate %s: %w", alias, err)
		}
	}
	return nil
}

// Identities returns the decoded identity entries in the store.
func (s *Store) Identities() ([]*IdentityEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []*IdentityEntry
	for _, alias := range s.ks.Aliases() {
		if !s.ks.IsPrivateKeyEntry(alias) {
			continue
		}
		entry, err := s.identityEntry(alias)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Store) identityEntry(alias string) (*IdentityEntry, error) {
	raw, err := s.ks.GetPrivateKeyEntry(alias, inMemoryProtection)
	if err != nil {
		return nil, fmt.Errorf("reading identity %q: %w", alias, err)
	}
	key, err := x509.ParsePKCS8PrivateKey(raw.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("parsing stored key for %q: %w", alias, err)
	}
	chain := make([]*x509.Certificate, 0, len(raw.CertificateChain))
	for _, c := range raw.CertificateChain {
		cert, err := x509.ParseCertificate(c.Content)
		if err != nil {
			return nil, fmt.Errorf("parsing stored chain for %q: %w", alias, err)
		}
		chain = append(chain, cert)
	}
	return &IdentityEntry{
		Alias: alias,
		Key:   newMaterial(key, KindPKCS8),
		Chain: chain,
	}, nil
}

// KeyManager builds the key-manager view of the store: one tls.Certificate
// per identity entry, ready for tls.Config.Certificates.
func (s *Store) KeyManager() ([]tls.Certificate, error) {
	entries, err := s.Identities()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("store holds no identity material")
	}
	certs := make([]tls.Certificate, 0, len(entries))
	for _, entry := range entries {
		certs = append(certs, entry.TLSCertificate())
	}
	return certs, nil
}

// TrustManager builds the trust-manager view of the store: an x509.CertPool
// holding every trusted certificate, ready for tls.Config.RootCAs.
func (s *Store) TrustManager() (*x509.CertPool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pool := x509.NewCertPool()
	n := 0
	for _, alias := range s.ks.Aliases() {
		if !s.ks.IsTrustedCertificateEntry(alias) {
			continue
		}
		entry, err := s.ks.GetTrustedCertificateEntry(alias)
		if err != nil {
			return nil, fmt.Errorf("reading trusted entry %q: %w", alias, err)
		}
		cert, err := x509.ParseCertificate(entry.Certificate.Content)
		if err != nil {
			return nil, fmt.Errorf("parsing trusted entry %q: %w", alias, err)
		}
		pool.AddCert(cert)
		n++
	}
	if n == 0 {
		return nil, ErrEmptyTrustMaterial
	}
	return pool, nil
}

// ExportJKS serializes the store as a Java KeyStore protected by the given
// password. Identity entries are re-encoded under the caller's password;
// the in-memory protection secret never leaves the process.
func (s *Store) ExportJKS(password string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := keystore.New()
	for _, alias := range s.ks.Aliases() {
		switch {
		case s.ks.IsPrivateKeyEntry(alias):
			entry, err := s.ks.GetPrivateKeyEntry(alias, inMemoryProtection)
			if err != nil {
				return nil, fmt.Errorf("reading identity %q: %w", alias, err)
			}
			if err := out.SetPrivateKeyEntry(alias, entry, []byte(password)); err != nil {
				return nil, fmt.Errorf("re-encoding identity %q: %w", alias, err)
			}
		case s.ks.IsTrustedCertificateEntry(alias):
			entry, err := s.ks.GetTrustedCertificateEntry(alias)
			if err != nil {
				return nil, fmt.Errorf("reading trusted entry %q: %w", alias, err)
			}
			if err := out.SetTrustedCertificateEntry(alias, entry); err != nil {
				return nil, fmt.Errorf("re-encoding trusted entry %q: %w", alias, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := out.Store(&buf, []byte(password)); err != nil {
		return nil, fmt.Errorf("storing JKS: %w", err)
	}
	return buf.Bytes(), nil
}

// ImportJKS loads entries from a Java KeyStore into the store. Private key
// entries are re-homed under the in-memory protection secret; the caller's
// password is used only to open the source keystore. A private key entry
// without a certificate chain fails the import, since every identity in the
// store must pair its key with a non-empty chain. Trusted entries whose
// alias is already present are skipped, mirroring AddTrust.
func (s *Store) ImportJKS(data []byte, password string) error {
	src := keystore.New()
	if err := src.Load(bytes.NewReader(data), []byte(password)); err != nil {
		return fmt.Errorf("loading JKS: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, alias := range src.Aliases() {
		switch {
		case src.IsPrivateKeyEntry(alias):
			entry, err := src.GetPrivateKeyEntry(alias, []byte(password))
			if err != nil {
				return fmt.Errorf("reading JKS identity %q: %w", alias, err)
			}
			if len(entry.CertificateChain) == 0 {
				return fmt.Errorf("JKS identity %q has no certificate chain", alias)
			}
			if slices.Contains(s.ks.Aliases(), alias) {
				return fmt.Errorf("%w: %q", ErrDuplicateAlias, alias)
			}
			if err := s.ks.SetPrivateKeyEntry(alias, entry, inMemoryProtection); err != nil {
				return fmt.Errorf("importing identity %q: %w", alias, err)
			}
		case src.IsTrustedCertificateEntry(alias):
			entry, err := src.GetTrustedCertificateEntry(alias)
			if err != nil {
				return fmt.Errorf("reading JKS trusted entry %q: %w", alias, err)
			}
			if s.ks.IsTrustedCertificateEntry(alias) {
				continue
			}
			if err := s.ks.SetTrustedCertificateEntry(alias, entry); err != nil {
				return fmt.Errorf("importing trusted entry %q: %w", alias, err)
			}
		}
	}
	return nil
}
