// Package store persists wrapper enabled flags per workspace.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store keeps wrapper flags keyed by workspace and template id. Templates
// without a saved flag are absent from the map Load returns.
type Store interface {
	Load(ctx context.Context, workspace string) (map[string]bool, error)
	Save(ctx context.Context, workspace, id string, enabled bool) error
	Close() error
}

type Backend string

const (
	BackendSQLite  Backend = "sqlite"
	BackendMsgpack Backend = "msgpack"
	BackendMemory  Backend = "memory"
)

func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendSQLite, BackendMsgpack, BackendMemory:
		return b, nil
	case "":
		return BackendSQLite, nil
	default:
		return "", fmt.Errorf("unknown store backend %q", s)
	}
}

const appName = "widgetwrap"

// Open returns a store of the given backend. An empty path selects the
// default location under the user cache directory.
func Open(backend Backend, path string) (Store, error) {
	switch backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendMsgpack:
		if path == "" {
			dir, err := cacheDir()
			if err != nil {
				return nil, err
			}
			path = filepath.Join(dir, "flags")
		}
		return OpenFileStore(path)
	case BackendSQLite, "":
		if path == "" {
			dir, err := cacheDir()
			if err != nil {
				return nil, err
			}
			path = filepath.Join(dir, "wrappers.db")
		}
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

func cacheDir() (string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, appName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// workspaceKey names a workspace on disk.
func workspaceKey(workspace string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(workspace)))
	return hex.EncodeToString(sum[:16])
}
