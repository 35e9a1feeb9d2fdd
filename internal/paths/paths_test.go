package paths

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLayout(t *testing.T) {
	dir := t.TempDir()
	SetBaseDir(dir)
	t.Cleanup(func() { SetBaseDir("") })

	tests := []struct {
		got  string
		want string
	}{
		{BackendDir("purpled"), filepath.Join(dir, "backends", "purpled")},
		{SocketPath("slixmppd"), filepath.Join(dir, "backends", "slixmppd", "slixmppd.sock")},
		{HistoryPath("purpled", "0", "bob"), filepath.Join(dir, "conversations", "purpled", "0", "bob", "history")},
		{LastReadPath("purpled", "0", "bob"), filepath.Join(dir, "conversations", "purpled", "0", "bob", "lastread")},
		{GlobalStatusPath(), filepath.Join(dir, "global_status")},
		{LogPath(), filepath.Join(dir, "logs", "nuqql.log")},
		{ConfigPath(), filepath.Join(dir, "config.toml")},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("path = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestDefaultBaseDir(t *testing.T) {
	SetBaseDir("")
	if !strings.HasSuffix(BaseDir(), filepath.Join(".config", "nuqql")) {
		t.Errorf("default base dir = %q", BaseDir())
	}
}

func TestEnsureBase(t *testing.T) {
	dir := t.TempDir()
	SetBaseDir(dir)
	t.Cleanup(func() { SetBaseDir("") })

	if err := EnsureBase(); err != nil {
		t.Fatal(err)
	}
	for _, d := range []string{LogDir(), filepath.Join(dir, "backends"), filepath.Join(dir, "conversations")} {
		info, err := os.Stat(d)
		if err != nil || !info.IsDir() {
			t.Errorf("directory %q not created: %v", d, err)
		}
	}
}
