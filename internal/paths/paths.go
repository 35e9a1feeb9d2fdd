// Package paths defines the on-disk layout under the nuqql config directory.
package paths

import (
	"os"
	"path/filepath"
)

// base is overridable for tests.
var base string

// BaseDir returns ~/.config/nuqql, or the override set with SetBaseDir.
func BaseDir() string {
	if base != "" {
		return base
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "nuqql")
}

// SetBaseDir overrides the config directory. Intended for tests.
func SetBaseDir(dir string) {
	base = dir
}

// BackendDir returns the working directory for a backend subprocess.
func BackendDir(backend string) string {
	return filepath.Join(BaseDir(), "backends", backend)
}

// SocketPath returns the unix socket path a backend subprocess is asked to create.
func SocketPath(backend string) string {
	return filepath.Join(BackendDir(backend), backend+".sock")
}

// ConversationDir returns the directory holding one conversation's persisted state,
// namespaced by backend name, account id and conversation name.
func ConversationDir(backend, accountID, name string) string {
	return filepath.Join(BaseDir(), "conversations", backend, accountID, name)
}

// HistoryPath returns the append-only history file for a conversation.
func HistoryPath(backend, accountID, name string) string {
	return filepath.Join(ConversationDir(backend, accountID, name), "history")
}

// LastReadPath returns the lastread marker file for a conversation.
func LastReadPath(backend, accountID, name string) string {
	return filepath.Join(ConversationDir(backend, accountID, name), "lastread")
}

// GlobalStatusPath returns the file holding the last explicitly set presence.
func GlobalStatusPath() string {
	return filepath.Join(BaseDir(), "global_status")
}

// LogDir returns the diagnostic log directory.
func LogDir() string {
	return filepath.Join(BaseDir(), "logs")
}

// LogPath returns the nuqql log file path.
func LogPath() string {
	return filepath.Join(LogDir(), "nuqql.log")
}

// ConfigPath returns the config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureBase creates the base directory tree with private permissions.
func EnsureBase() error {
	dirs := []string{
		BaseDir(),
		LogDir(),
		filepath.Join(BaseDir(), "backends"),
		filepath.Join(BaseDir(), "conversations"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}

// EnsureBackendDir creates a backend's working directory.
func EnsureBackendDir(backend string) error {
	return os.MkdirAll(BackendDir(backend), 0700)
}

// EnsureConversationDir creates a conversation's state directory.
func EnsureConversationDir(backend, accountID, name string) error {
	return os.MkdirAll(ConversationDir(backend, accountID, name), 0700)
}
