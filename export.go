package pemkit

import (
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"

	"gopkg.in/yaml.v3"
)

// k8sSecret represents a Kubernetes TLS secret.
type k8sSecret struct {
	APIVersion string            `yaml:"apiVersion"`
	Kind       string            `yaml:"kind"`
	Type       string            `yaml:"type"`
	Metadata   k8sMetadata       `yaml:"metadata"`
	Data       map[string]string `yaml:"data"`
}

// k8sMetadata represents Kubernetes resource metadata.
type k8sMetadata struct {
	Name        string            `yaml:"name"`
	Annotations map[string]string `yaml:"annotations,omitempty"`
}

// ChainPEM encodes the entry's certificate chain as concatenated PEM, leaf
// first.
func (e *IdentityEntry) ChainPEM() []byte {
	var out []byte
	for _, cert := range e.Chain {
		out = append(out, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})...)
	}
	return out
}

// KeyPEM encodes the entry's private key as PKCS#8 PEM, regardless of the
// encoding it was loaded from.
func (e *IdentityEntry) KeyPEM() ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(e.Key.Key)
	if err != nil {
		return nil, fmt.Errorf("marshaling private key to PKCS#8: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// KubernetesTLSSecret renders the identity entry as a kubernetes.io/tls
// secret manifest with the given resource name.
func KubernetesTLSSecret(entry *IdentityEntry, name string) ([]byte, error) {
	if name == "" {
		name = entry.Alias
	}
	keyPEM, err := entry.KeyPEM()
	if err != nil {
		return nil, err
	}

	secret := k8sSecret{
		APIVersion: "v1",
		Kind:       "Secret",
		Type:       "kubernetes.io/tls",
		Metadata: k8sMetadata{
			Name: name,
			Annotations: map[string]string{
				"pemkit/alias": entry.Alias,
			},
		},
		Data: map[string]string{
			"tls.crt": base64.StdEncoding.EncodeToString(entry.ChainPEM()),
			"tls.key": base64.StdEncoding.EncodeToString(keyPEM),
		},
	}

	out, err := yaml.Marshal(secret)
	if err != nil {
		return nil, fmt.Errorf("marshaling Kubernetes secret: %w", err)
	}
	return out, nil
}

// BundlePEM encodes a trust set as concatenated CERTIFICATE PEM blocks in
// insertion order.
func BundlePEM(set *TrustSet) []byte {
	var out []byte
	for _, cert := range set.Certificates() {
		out = append(out, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})...)
	}
	return out
}
