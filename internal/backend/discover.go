package backend

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/nuqql/nuqql/internal/paths"
)

// backendPrefix is the executable name prefix backends are discovered by.
const backendPrefix = "nuqql-"

// Discovered describes one backend executable found on the search path.
type Discovered struct {
	Name    string
	Path    string
	Network string // "unix" or "tcp"
	Addr    string
}

// wellKnown lists backends not matching the name prefix. purpled only
// speaks TCP.
var wellKnown = map[string]struct {
	network string
	addr    string
}{
	"purpled": {network: "tcp", addr: "localhost:32000"},
}

// Discover scans PATH for backend executables: anything matching the
// name prefix plus the fixed well-known set. disabled filters results by
// backend name.
func Discover(disabled func(string) bool) []Discovered {
	seen := make(map[string]bool)
	var found []Discovered

	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			name, ok := backendName(e.Name())
			if !ok || seen[name] || disabled != nil && disabled(name) {
				continue
			}
			full := filepath.Join(dir, e.Name())
			if !isExecutable(full) {
				continue
			}
			seen[name] = true
			d := Discovered{
				Name:    name,
				Path:    full,
				Network: "unix",
				Addr:    paths.SocketPath(name),
			}
			if wk, ok := wellKnown[e.Name()]; ok {
				d.Network = wk.network
				d.Addr = wk.addr
			}
			found = append(found, d)
		}
	}
	return found
}

// backendName maps an executable file name to a backend name, or reports
// that the file is not a backend.
func backendName(file string) (string, bool) {
	if _, ok := wellKnown[file]; ok {
		return file, true
	}
	if rest, ok := strings.CutPrefix(file, backendPrefix); ok && rest != "" {
		return rest, true
	}
	return "", false
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0111 != 0
}
