package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sensiblebit/pemkit"
	"github.com/sensiblebit/pemkit/internal"
)

var (
	identityCertPath string
	identityKeyPath  string
	identityP12Path  string
	identityVerify   bool
	identityJKSOut   string
	identityJKSPass  string
	identityP12Out   string
	identityP12Pass  string
	identityK8sName  string
	identityK8sOut   string
)

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Load identity material (certificate chain + private key)",
	Long:  "Load identity material from PEM files or a PKCS#12 container and optionally export it as a JKS keystore, PKCS#12 container, or Kubernetes TLS secret. A single combined PEM file may hold both certificate and key.",
	RunE:  runIdentity,
}

func init() {
	identityCmd.Flags().StringVarP(&identityCertPath, "cert", "c", "", "Certificate PEM file (may also contain the key)")
	identityCmd.Flags().StringVarP(&identityKeyPath, "key", "k", "", "Private key PEM file (defaults to the cert file)")
	identityCmd.Flags().StringVar(&identityP12Path, "p12", "", "PKCS#12 input file instead of PEM files")
	identityCmd.Flags().BoolVar(&identityVerify, "verify", false, "Verify the key matches the leaf certificate's public key")
	identityCmd.Flags().StringVar(&identityJKSOut, "jks-out", "", "Write identity to a JKS keystore at this path")
	identityCmd.Flags().StringVar(&identityJKSPass, "jks-password", "changeit", "Password for the exported JKS keystore")
	identityCmd.Flags().StringVar(&identityP12Out, "p12-out", "", "Write identity to a PKCS#12 container at this path")
	identityCmd.Flags().StringVar(&identityP12Pass, "p12-password", "changeit", "Password for the exported PKCS#12 container")
	identityCmd.Flags().StringVar(&identityK8sName, "k8s-name", "", "Resource name for the Kubernetes TLS secret (defaults to the alias)")
	identityCmd.Flags().StringVar(&identityK8sOut, "k8s-out", "", "Write a Kubernetes TLS secret manifest to this path")
}

func runIdentity(cmd *cobra.Command, args []string) error {
	entry, err := loadIdentityEntry()
	if err != nil {
		return err
	}
	slog.Info("loaded identity",
		"alias", entry.Alias,
		"algorithm", entry.Key.Algorithm,
		"encoding", entry.Key.Encoding.String(),
		"chain_length", len(entry.Chain))

	if identityVerify {
		ok, err := entry.VerifyKeyMatch()
		if err != nil {
			return fmt.Errorf("verifying key binding: %w", err)
		}
		if !ok {
			return fmt.Errorf("private key does not match the leaf certificate's public key")
		}
		slog.Info("key matches leaf certificate")
	}

	store := pemkit.NewStore()
	if err := store.Put(entry); err != nil {
		return err
	}

	if identityJKSOut != "" {
		data, err := store.ExportJKS(identityJKSPass)
		if err != nil {
			return fmt.Errorf("exporting JKS: %w", err)
		}
		if err := os.WriteFile(identityJKSOut, data, 0600); err != nil {
			return fmt.Errorf("writing %s: %w", identityJKSOut, err)
		}
		slog.Info("wrote JKS keystore", "path", identityJKSOut)
	}

	if identityP12Out != "" {
		data, err := pemkit.EncodeIdentityPKCS12(entry, identityP12Pass)
		if err != nil {
			return fmt.Errorf("exporting PKCS#12: %w", err)
		}
		if err := os.WriteFile(identityP12Out, data, 0600); err != nil {
			return fmt.Errorf("writing %s: %w", identityP12Out, err)
		}
		slog.Info("wrote PKCS#12 container", "path", identityP12Out)
	}

	if identityK8sOut != "" {
		data, err := pemkit.KubernetesTLSSecret(entry, identityK8sName)
		if err != nil {
			return fmt.Errorf("rendering Kubernetes secret: %w", err)
		}
		if err := os.WriteFile(identityK8sOut, data, 0600); err != nil {
			return fmt.Errorf("writing %s: %w", identityK8sOut, err)
		}
		slog.Info("wrote Kubernetes TLS secret", "path", identityK8sOut)
	}

	return nil
}

func loadIdentityEntry() (*pemkit.IdentityEntry, error) {
	secret, err := internal.ResolvePassphrase(passphrase, passphraseFile)
	if err != nil {
		return nil, err
	}

	if identityP12Path != "" {
		if identityCertPath != "" || identityKeyPath != "" {
			return nil, fmt.Errorf("--p12 and --cert/--key are mutually exclusive")
		}
		data, err := os.ReadFile(identityP12Path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", identityP12Path, err)
		}
		return pemkit.DecodeIdentityPKCS12(data, string(secret))
	}

	if identityCertPath == "" {
		return nil, fmt.Errorf("--cert is required (or --p12)")
	}
	keyPath := identityKeyPath
	if keyPath == "" {
		keyPath = identityCertPath
	}
	return pemkit.LoadIdentity(identityCertPath, keyPath, secret)
}
