package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Current schema version - increment when filePayload changes.
const fileSchemaVersion uint16 = 1

// FileStore keeps one msgpack file per workspace under dir.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

type filePayload struct {
	Schema    uint16
	Workspace string
	Flags     map[string]bool
}

func OpenFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) pathFor(workspace string) string {
	return filepath.Join(s.dir, workspaceKey(workspace)+".mp")
}

func (s *FileStore) Load(ctx context.Context, workspace string) (map[string]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.read(workspace)
	if err != nil {
		return nil, err
	}
	return p.Flags, nil
}

func (s *FileStore) read(workspace string) (*filePayload, error) {
	workspace = filepath.Clean(workspace)
	empty := &filePayload{Schema: fileSchemaVersion, Workspace: workspace, Flags: make(map[string]bool)}
	data, err := os.ReadFile(s.pathFor(workspace))
	if errors.Is(err, os.ErrNotExist) {
		return empty, nil
	}
	if err != nil {
		return nil, err
	}
	var p filePayload
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", s.pathFor(workspace), err)
	}
	// старые схемы просто сбрасываем
	if p.Schema != fileSchemaVersion || p.Workspace != workspace {
		return empty, nil
	}
	if p.Flags == nil {
		p.Flags = make(map[string]bool)
	}
	return &p, nil
}

func (s *FileStore) Save(ctx context.Context, workspace, id string, enabled bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.read(workspace)
	if err != nil {
		return err
	}
	p.Flags[id] = enabled

	f, err := os.CreateTemp(s.dir, "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if err := msgpack.NewEncoder(f).Encode(p); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Атомарная замена
	return os.Rename(f.Name(), s.pathFor(workspace))
}

func (s *FileStore) Close() error { return nil }
