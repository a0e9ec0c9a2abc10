// Package config loads widgetwrap.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"widgetwrap/internal/store"
)

// FileName is the project configuration file looked up from the working
// directory towards the filesystem root.
const FileName = "widgetwrap.toml"

type Config struct {
	// Path is empty when no file was found.
	Path string `toml:"-"`
	// Root is the directory holding the file, or the start directory.
	Root string `toml:"-"`

	Language Language `toml:"language"`
	Outline  Outline  `toml:"outline"`
	LSP      LSP      `toml:"lsp"`
	Format   Format   `toml:"format"`
	Wrappers Wrappers `toml:"wrappers"`
	Store    Store    `toml:"store"`
}

type Language struct {
	ID string `toml:"id"`
}

type Outline struct {
	InitialDepth int  `toml:"initial_depth"`
	Compact      bool `toml:"compact"`
	ChunkSize    int  `toml:"chunk_size"`
	Threshold    int  `toml:"threshold"`
}

type LSP struct {
	Debounce       time.Duration `toml:"debounce"`
	CursorDebounce time.Duration `toml:"cursor_debounce"`
}

type Format struct {
	// Command runs with the document on stdin; empty disables formatting.
	Command []string `toml:"command"`
}

type Wrappers struct {
	Disabled []string `toml:"disabled"`
	// Custom is a catalog file merged over the builtin one.
	Custom string `toml:"custom"`
}

type Store struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

func Default() *Config {
	return &Config{
		Language: Language{ID: "dart"},
		Outline: Outline{
			InitialDepth: 2,
			Compact:      true,
			ChunkSize:    50_000,
			Threshold:    100_000,
		},
		LSP: LSP{
			Debounce:       300 * time.Millisecond,
			CursorDebounce: 200 * time.Millisecond,
		},
		Format: Format{Command: []string{"dart", "format", "--output=show"}},
		Store:  Store{Backend: string(store.BackendSQLite)},
	}
}

// Find walks up from startDir looking for FileName.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Discover loads the nearest config above startDir, or the defaults.
func Discover(startDir string) (*Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		cfg := Default()
		if root, err := filepath.Abs(startDir); err == nil {
			cfg.Root = root
		}
		return cfg, nil
	}
	return Load(path)
}

// Load decodes path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}
	cfg.Path = path
	cfg.Root = filepath.Dir(path)
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Language.ID) == "" {
		return errors.New("[language].id must not be empty")
	}
	if c.Outline.InitialDepth < 1 {
		return fmt.Errorf("[outline].initial_depth must be at least 1, got %d", c.Outline.InitialDepth)
	}
	if c.Outline.ChunkSize < 1 {
		return fmt.Errorf("[outline].chunk_size must be positive, got %d", c.Outline.ChunkSize)
	}
	if c.Outline.Threshold < 1 {
		return fmt.Errorf("[outline].threshold must be positive, got %d", c.Outline.Threshold)
	}
	if c.LSP.Debounce < 0 {
		return fmt.Errorf("[lsp].debounce must not be negative")
	}
	if c.LSP.CursorDebounce < 0 {
		return fmt.Errorf("[lsp].cursor_debounce must not be negative")
	}
	if _, err := store.ParseBackend(c.Store.Backend); err != nil {
		return fmt.Errorf("[store].backend: %w", err)
	}
	return nil
}

// CustomCatalog resolves [wrappers].custom against Root.
func (c *Config) CustomCatalog() string {
	p := strings.TrimSpace(c.Wrappers.Custom)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, filepath.FromSlash(p))
}

// StorePath resolves [store].path against Root. Empty keeps the default.
func (c *Config) StorePath() string {
	p := strings.TrimSpace(c.Store.Path)
	if p == "" || filepath.IsAbs(p) || p == ":memory:" {
		return p
	}
	return filepath.Join(c.Root, filepath.FromSlash(p))
}

func (c *Config) StoreBackend() store.Backend {
	b, err := store.ParseBackend(c.Store.Backend)
	if err != nil {
		return store.BackendSQLite
	}
	return b
}
