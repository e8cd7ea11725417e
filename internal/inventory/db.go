// Package inventory catalogs aggregated trust certificates in SQLite so
// operators can audit what a trust set contained and when it was loaded.
// Only certificates are recorded — never private keys.
package inventory

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"database/sql"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	_ "modernc.org/sqlite"

	"github.com/sensiblebit/pemkit"
)

// Record encodes one trusted certificate and its metadata.
type Record struct {
	Fingerprint string         `db:"fingerprint"`
	CommonName  sql.NullString `db:"common_name"`
	SANsJSON    types.JSONText `db:"sans"`
	KeyType     string         `db:"key_type"`
	NotBefore   time.Time      `db:"not_before"`
	NotAfter    time.Time      `db:"not_after"`
	PEM         string         `db:"pem"`
	Source      string         `db:"source"`
	AddedAt     time.Time      `db:"added_at"`
}

// DB represents the inventory database connection.
type DB struct {
	*sqlx.DB
}

// New opens an inventory database at the given path, creating the schema if
// needed. An empty path opens an in-memory database, pinned to a single
// connection since each :memory: connection is a separate database.
func New(path string) (*DB, error) {
	dsn := path
	if dsn == "" {
		dsn = "file::memory:?_pragma=temp_store(2)&_pragma=journal_mode(off)&_pragma=synchronous(off)"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	dbObj := &DB{DB: db}
	if err := dbObj.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	slog.Debug("inventory database initialized", "path", path)
	return dbObj, nil
}

func (db *DB) initSchema() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS trust_certificates (
			fingerprint  text NOT NULL,
			common_name  text,
			sans         text,
			key_type     text NOT NULL,
			not_before   timestamp,
			not_after    timestamp,
			pem          text NOT NULL,
			source       text NOT NULL,
			added_at     timestamp NOT NULL,
			PRIMARY KEY (fingerprint)
		)`)
	return err
}

// RecordCertificate inserts one certificate into the inventory. Re-recording
// a byte-identical certificate is a no-op, matching trust set dedup
// semantics.
func (db *DB) RecordCertificate(cert *x509.Certificate, source string) error {
	sans, err := json.Marshal(cert.DNSNames)
	if err != nil {
		return fmt.Errorf("marshaling SANs: %w", err)
	}
	rec := Record{
		Fingerprint: pemkit.Fingerprint(cert),
		CommonName:  sql.NullString{String: cert.Subject.CommonName, Valid: cert.Subject.CommonName != ""},
		SANsJSON:    types.JSONText(sans),
		KeyType:     keyTypeDescription(cert),
		NotBefore:   cert.NotBefore,
		NotAfter:    cert.NotAfter,
		PEM:         string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})),
		Source:      source,
		AddedAt:     time.Now().UTC(),
	}

	_, err = db.NamedExec(`
		INSERT OR IGNORE INTO trust_certificates
			(fingerprint, common_name, sans, key_type, not_before, not_after, pem, source, added_at)
		VALUES
			(:fingerprint, :common_name, :sans, :key_type, :not_before, :not_after, :pem, :source, :added_at)`,
		rec)
	if err != nil {
		return fmt.Errorf("inserting certificate: %w", err)
	}
	return nil
}

// RecordTrustSet inserts every certificate in the set.
func (db *DB) RecordTrustSet(set *pemkit.TrustSet, source string) error {
	for _, cert := range set.Certificates() {
		if err := db.RecordCertificate(cert, source); err != nil {
			return err
		}
	}
	return nil
}

// All returns every inventory record ordered by expiry.
func (db *DB) All() ([]Record, error) {
	var records []Record
	if err := db.Select(&records, "SELECT * FROM trust_certificates ORDER BY not_after"); err != nil {
		return nil, fmt.Errorf("getting all trust certificates: %w", err)
	}
	return records, nil
}

// Count returns the number of recorded certificates.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.Get(&n, "SELECT COUNT(*) FROM trust_certificates"); err != nil {
		return 0, fmt.Errorf("counting trust certificates: %w", err)
	}
	return n, nil
}

// GetByFingerprint returns the record matching the given fingerprint, or nil
// if none exists.
func (db *DB) GetByFingerprint(fingerprint string) (*Record, error) {
	var rec Record
	err := db.Get(&rec, "SELECT * FROM trust_certificates WHERE fingerprint = ?", fingerprint)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting certificate by fingerprint: %w", err)
	}
	return &rec, nil
}

// keyTypeDescription returns a human-readable public key description,
// e.g. "RSA 2048 bits" or "ECDSA P-256".
func keyTypeDescription(cert *x509.Certificate) string {
	switch pub := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		return fmt.Sprintf("RSA %d bits", pub.N.BitLen())
	case *ecdsa.PublicKey:
		return fmt.Sprintf("ECDSA %s", pub.Curve.Params().Name)
	case ed25519.PublicKey:
		return "Ed25519"
	default:
		return fmt.Sprintf("unknown key type: %T", pub)
	}
}
