package main

import (
	"github.com/spf13/cobra"

	"github.com/sensiblebit/pemkit/internal"
)

var (
	logLevel       string
	passphrase     string
	passphraseFile string
)

var rootCmd = &cobra.Command{
	Use:   "pemkit",
	Short: "PEM identity and trust material loader",
	Long:  "Load PEM-encoded private keys and certificates, assemble identity and trust material, and export it as PEM bundles, JKS keystores, PKCS#12 containers, or Kubernetes TLS secrets.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetupLogger(logLevel)
	},
	// Errors are printed once by main; a runtime failure is not a usage
	// problem, so no help text either.
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "Passphrase for encrypted private keys")
	rootCmd.PersistentFlags().StringVar(&passphraseFile, "passphrase-file", "", "File containing the private key passphrase")

	rootCmd.AddCommand(identityCmd)
	rootCmd.AddCommand(trustCmd)
}
