package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sensiblebit/pemkit"
	"github.com/sensiblebit/pemkit/internal"
	"github.com/sensiblebit/pemkit/internal/inventory"
)

var (
	trustMozilla    bool
	trustConfigPath string
	trustBundleOut  string
	trustJKSOut     string
	trustJKSPass    string
	trustDBPath     string
)

var trustCmd = &cobra.Command{
	Use:   "trust [files...]",
	Short: "Aggregate trust material from certificate sources",
	Long:  "Merge certificates from PEM, DER, or PKCS#7 sources into one deduplicated trust set. Sources come from file arguments, a YAML config, or the embedded Mozilla bundle. The set can be exported as a PEM bundle or JKS truststore and recorded in a SQLite inventory.",
	RunE:  runTrust,
}

func init() {
	trustCmd.Flags().BoolVar(&trustMozilla, "mozilla", false, "Merge the embedded Mozilla CA bundle into the trust set")
	trustCmd.Flags().StringVarP(&trustConfigPath, "config", "c", "", "YAML config listing trust sources")
	trustCmd.Flags().StringVarP(&trustBundleOut, "out", "o", "", "Write the trust set as a PEM bundle to this path")
	trustCmd.Flags().StringVar(&trustJKSOut, "jks-out", "", "Write the trust set as a JKS truststore to this path")
	trustCmd.Flags().StringVar(&trustJKSPass, "jks-password", "changeit", "Password for the exported JKS truststore")
	trustCmd.Flags().StringVarP(&trustDBPath, "db", "d", "", "Record the trust set in a SQLite inventory at this path")
}

func runTrust(cmd *cobra.Command, args []string) error {
	paths := append([]string{}, args...)

	if trustConfigPath != "" {
		cfg, err := internal.LoadSourcesConfig(trustConfigPath)
		if err != nil {
			return fmt.Errorf("loading sources config: %w", err)
		}
		for _, src := range cfg.Trust {
			paths = append(paths, src.Path)
		}
		if cfg.IncludeMozillaRoots {
			trustMozilla = true
		}
	}

	if len(paths) == 0 && !trustMozilla {
		return fmt.Errorf("no trust sources given: pass files, --config, or --mozilla")
	}

	set := pemkit.NewTrustSet()
	if len(paths) > 0 {
		loaded, err := pemkit.LoadTrust(paths...)
		if err != nil {
			return err
		}
		set.Merge(loaded)
	}
	if trustMozilla {
		mozilla, err := pemkit.MozillaTrust()
		if err != nil {
			return fmt.Errorf("loading Mozilla bundle: %w", err)
		}
		set.Merge(mozilla)
	}
	slog.Info("aggregated trust material", "sources", len(paths), "certificates", set.Len())

	if trustBundleOut != "" {
		if err := os.WriteFile(trustBundleOut, pemkit.BundlePEM(set), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", trustBundleOut, err)
		}
		slog.Info("wrote PEM bundle", "path", trustBundleOut)
	}

	if trustJKSOut != "" {
		store := pemkit.NewStore()
		if err := store.AddTrust(set); err != nil {
			return err
		}
		data, err := store.ExportJKS(trustJKSPass)
		if err != nil {
			return fmt.Errorf("exporting JKS truststore: %w", err)
		}
		if err := os.WriteFile(trustJKSOut, data, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", trustJKSOut, err)
		}
		slog.Info("wrote JKS truststore", "path", trustJKSOut)
	}

	if trustDBPath != "" {
		db, err := inventory.New(trustDBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.RecordTrustSet(set, "pemkit trust"); err != nil {
			return fmt.Errorf("recording trust set: %w", err)
		}
		n, err := db.Count()
		if err != nil {
			return err
		}
		slog.Info("recorded trust set", "path", trustDBPath, "total", n)
	}

	return nil
}
