package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"widgetwrap/internal/config"
	"widgetwrap/internal/format"
	"widgetwrap/internal/locate"
	"widgetwrap/internal/outline"
	"widgetwrap/internal/store"
	"widgetwrap/internal/wrapper"
)

// workspace bundles what every command derives from widgetwrap.toml.
type workspace struct {
	cfg      *config.Config
	store    store.Store
	registry *wrapper.Registry
}

// loadConfig honours --config and otherwise searches upwards from the
// working directory.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	if path != "" {
		return config.Load(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return config.Discover(wd)
}

// openWorkspace loads the config, opens the flag store and binds a wrapper
// registry to the config root.
func openWorkspace(ctx context.Context, cmd *cobra.Command) (*workspace, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	catalog, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.StoreBackend(), cfg.StorePath())
	if err != nil {
		return nil, fmt.Errorf("open wrapper store: %w", err)
	}
	registry := wrapper.NewRegistry(catalog, st, cfg.Wrappers.Disabled...)
	if err := registry.Init(ctx, cfg.Root); err != nil {
		return nil, errors.Join(err, st.Close())
	}
	return &workspace{cfg: cfg, store: st, registry: registry}, nil
}

func (w *workspace) Close() error {
	if w == nil || w.store == nil {
		return nil
	}
	return w.store.Close()
}

func loadCatalog(cfg *config.Config) (*wrapper.Catalog, error) {
	catalog, err := wrapper.Builtin()
	if err != nil {
		return nil, err
	}
	if custom := cfg.CustomCatalog(); custom != "" {
		extra, err := wrapper.LoadFile(custom)
		if err != nil {
			return nil, err
		}
		catalog = catalog.Merge(extra)
	}
	return catalog, nil
}

func (w *workspace) locator() (*locate.Locator, error) {
	return locate.New(w.cfg.Language.ID)
}

// formatter returns the configured command, or nil when none is set.
func (w *workspace) formatter() format.Formatter {
	if len(w.cfg.Format.Command) == 0 {
		return nil
	}
	return format.NewCommand(w.cfg.Format.Command...)
}

func (w *workspace) outlineOptions() outline.Options {
	return outline.Options{
		InitialDepth: w.cfg.Outline.InitialDepth,
		Compact:      w.cfg.Outline.Compact,
		Builder: &outline.Builder{
			Threshold: w.cfg.Outline.Threshold,
			ChunkSize: w.cfg.Outline.ChunkSize,
		},
	}
}
