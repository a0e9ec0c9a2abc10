package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"widgetwrap/internal/observ"
	"widgetwrap/internal/outline"
	"widgetwrap/internal/source"
	"widgetwrap/internal/ui"
)

var outlineCmd = &cobra.Command{
	Use:   "outline PATH...",
	Short: "Print the widget tree of Dart files",
	Long: `Print the widget tree of one or more Dart files. Directories are
searched for .dart files, honouring their .gitignore. With a single file on
a terminal the tree opens in an interactive browser unless --ui=off.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOutline,
}

func init() {
	outlineCmd.Flags().String("format", "text", "output format (text|json)")
	outlineCmd.Flags().Bool("detailed", false, "show keys and properties instead of line numbers")
	outlineCmd.Flags().Int("depth", 0, "initial expansion depth (default from config)")
	outlineCmd.Flags().Bool("expand-all", false, "expand every node")
	outlineCmd.Flags().Bool("collapse-all", false, "collapse every node")
	outlineCmd.Flags().String("ui", "auto", "interactive browser (auto|on|off)")
}

type outlineFlags struct {
	format      string
	detailed    bool
	depth       int
	expandAll   bool
	collapseAll bool
	ui          uiMode
}

func readOutlineFlags(cmd *cobra.Command) (outlineFlags, error) {
	var out outlineFlags
	var err error
	if out.format, err = cmd.Flags().GetString("format"); err != nil {
		return out, fmt.Errorf("failed to get format flag: %w", err)
	}
	out.format = strings.ToLower(out.format)
	if out.format != "text" && out.format != "json" {
		return out, fmt.Errorf("unsupported format %q (must be text or json)", out.format)
	}
	if out.detailed, err = cmd.Flags().GetBool("detailed"); err != nil {
		return out, fmt.Errorf("failed to get detailed flag: %w", err)
	}
	if out.depth, err = cmd.Flags().GetInt("depth"); err != nil {
		return out, fmt.Errorf("failed to get depth flag: %w", err)
	}
	if out.depth < 0 {
		return out, fmt.Errorf("--depth must not be negative")
	}
	if out.expandAll, err = cmd.Flags().GetBool("expand-all"); err != nil {
		return out, fmt.Errorf("failed to get expand-all flag: %w", err)
	}
	if out.collapseAll, err = cmd.Flags().GetBool("collapse-all"); err != nil {
		return out, fmt.Errorf("failed to get collapse-all flag: %w", err)
	}
	if out.expandAll && out.collapseAll {
		return out, fmt.Errorf("--expand-all and --collapse-all cannot be used together")
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return out, fmt.Errorf("failed to get ui flag: %w", err)
	}
	if out.ui, err = readUIMode(uiValue); err != nil {
		return out, err
	}
	return out, nil
}

func runOutline(cmd *cobra.Command, args []string) error {
	flags, err := readOutlineFlags(cmd)
	if err != nil {
		return err
	}
	cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	timer, err := newTimer(cmd)
	if err != nil {
		return err
	}
	defer printTimings(timer)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts := (&workspace{cfg: cfg}).outlineOptions()
	if flags.depth > 0 {
		opts.InitialDepth = flags.depth
	}
	if flags.detailed {
		opts.Compact = false
	}

	paths, err := expandDartFiles(cmd.Context(), args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no .dart files found")
	}
	sessions, err := buildOutlines(cmd.Context(), timer, opts, paths)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		switch {
		case flags.expandAll:
			s.ExpandAll()
		case flags.collapseAll:
			s.CollapseAll()
		}
	}

	if len(sessions) == 1 && flags.format == "text" && shouldUseTUI(flags.ui) {
		return browseOutline(paths[0], sessions[0])
	}
	if flags.format == "json" {
		return writeOutlineJSON(cmd.OutOrStdout(), sessions)
	}
	out := cmd.OutOrStdout()
	for i, s := range sessions {
		if len(sessions) > 1 {
			if i > 0 {
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "%s:\n", s.Path())
		}
		writeOutlineText(out, s)
	}
	return nil
}

// buildOutlines scans files concurrently. Results keep argument order; the
// first load failure cancels the rest.
func buildOutlines(ctx context.Context, timer *observ.Timer, opts outline.Options, paths []string) ([]*outline.Session, error) {
	sessions := make([]*outline.Session, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			var doc *source.Document
			if err := timer.Track("load "+path, func() (string, error) {
				var err error
				doc, err = source.Load(path)
				return "", err
			}); err != nil {
				return err
			}
			s := outline.NewSession(opts)
			err := timer.Track("outline "+path, func() (string, error) {
				// scan failures stay in the session as an error placeholder
				if err := s.Rebuild(gctx, doc); err != nil && gctx.Err() != nil {
					return "", err
				}
				return fmt.Sprintf("%d nodes", len(s.Nodes())), nil
			})
			if err != nil {
				return err
			}
			sessions[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sessions, nil
}

func writeOutlineText(out io.Writer, s *outline.Session) {
	if msg, ok := s.Placeholder(); ok {
		fmt.Fprintf(out, "  %s\n", msg.Label)
		return
	}
	var walk func(nodes []*outline.Node, level int)
	walk = func(nodes []*outline.Node, level int) {
		for _, n := range nodes {
			item := s.Item(n)
			marker := "  "
			switch item.State {
			case outline.StateExpanded:
				marker = "▾ "
			case outline.StateCollapsed:
				marker = "▸ "
			}
			line := strings.Repeat("  ", level) + marker + item.Label
			if item.Description != "" {
				line += "  " + item.Description
			}
			fmt.Fprintln(out, line)
			if item.State == outline.StateExpanded {
				walk(n.Children, level+1)
			}
		}
	}
	walk(s.Roots(), 0)
}

type outlineJSONNode struct {
	outline.Item
	Children []outlineJSONNode `json:"children,omitempty"`
}

type outlineJSONFile struct {
	Path    string            `json:"path"`
	Message string            `json:"message,omitempty"`
	Nodes   []outlineJSONNode `json:"nodes"`
}

// writeOutlineJSON emits the whole tree; collapsibleState tells consumers
// what a view would show.
func writeOutlineJSON(out io.Writer, sessions []*outline.Session) error {
	var convert func(nodes []*outline.Node) []outlineJSONNode
	files := make([]outlineJSONFile, len(sessions))
	for i, s := range sessions {
		convert = func(nodes []*outline.Node) []outlineJSONNode {
			res := make([]outlineJSONNode, len(nodes))
			for j, n := range nodes {
				res[j] = outlineJSONNode{Item: s.Item(n), Children: convert(n.Children)}
			}
			return res
		}
		files[i] = outlineJSONFile{Path: s.Path(), Nodes: convert(s.Roots())}
		if msg, ok := s.Placeholder(); ok {
			files[i].Message = msg.Label
		}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(files)
}

func browseOutline(path string, s *outline.Session) error {
	model := ui.NewBrowser(path, s)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout), tea.WithAltScreen())
	_, err := program.Run()
	return err
}
