package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"widgetwrap/internal/lsp"
	"widgetwrap/internal/version"
)

var lspCmd = &cobra.Command{
	Use:          "lsp",
	Short:        "Run the widget wrapper language server over stdio",
	SilenceUsage: true,
	RunE:         runLSP,
}

func runLSP(cmd *cobra.Command, _ []string) error {
	cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ws, err := openWorkspace(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := ws.Close(); cerr != nil {
			fmt.Fprintf(os.Stderr, "lsp: close store: %v\n", cerr)
		}
	}()
	locator, err := ws.locator()
	if err != nil {
		return err
	}

	server, err := lsp.NewServer(os.Stdin, os.Stdout, lsp.ServerOptions{
		Debounce:       ws.cfg.LSP.Debounce,
		CursorDebounce: ws.cfg.LSP.CursorDebounce,
		Registry:       ws.registry,
		Locator:        locator,
		Formatter:      ws.formatter(),
		Outline:        ws.outlineOptions(),
		Version:        version.Version,
	})
	if err != nil {
		return err
	}
	if err := server.Run(cmd.Context()); err != nil {
		if errors.Is(err, lsp.ErrExit) {
			return nil
		}
		if errors.Is(err, lsp.ErrExitWithoutShutdown) {
			return fmt.Errorf("lsp exit without shutdown")
		}
		return err
	}
	return nil
}
