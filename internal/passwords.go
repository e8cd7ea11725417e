package internal

import (
	"bytes"
	"errors"
	"fmt"
	"os"
)

// ResolvePassphrase determines the private key passphrase from a flag value
// or a passphrase file, which are mutually exclusive. The file form strips
// trailing newlines so `echo secret > file` works as expected. Returns nil
// when neither is set — the loader treats nil as "no passphrase supplied"
// and fails on encrypted keys rather than guessing.
func ResolvePassphrase(flagValue, filePath string) ([]byte, error) {
	if flagValue != "" && filePath != "" {
		return nil, errors.New("--passphrase and --passphrase-file are mutually exclusive")
	}
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("reading passphrase file: %w", err)
		}
		data = bytes.TrimRight(data, "\r\n")
		if len(data) == 0 {
			return nil, fmt.Errorf("passphrase file %s is empty", filePath)
		}
		return data, nil
	}
	if flagValue != "" {
		return []byte(flagValue), nil
	}
	return nil, nil
}
