// Package status persists the process-wide presence status the user last
// set explicitly. New accounts get it pushed on creation.
package status

import (
	"os"
	"strings"
)

// Load reads the persisted global status from the given file. A missing
// file means no status override is configured and returns "".
func Load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Save writes the global status. An empty status removes the override.
func Save(path, status string) error {
	if status == "" {
		err := os.Remove(path)
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return os.WriteFile(path, []byte(status+"\n"), 0600)
}
