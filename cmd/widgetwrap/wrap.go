package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"widgetwrap/internal/edit"
	"widgetwrap/internal/format"
	"widgetwrap/internal/observ"
	"widgetwrap/internal/source"
	"widgetwrap/internal/transform"
	"widgetwrap/internal/wrapper"
)

var wrapCmd = &cobra.Command{
	Use:   "wrap FILE",
	Short: "Wrap the widget at a position with a template",
	Long: `Wrap the widget expression at --line/--col, or the selection ending at
--end-line/--end-col, with the wrapper named by --with. The result is
printed to stdout unless --write is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runWrap,
}

var unwrapCmd = &cobra.Command{
	Use:   "unwrap FILE",
	Short: "Replace the widget at a position with its child",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnwrap,
}

func init() {
	for _, cmd := range []*cobra.Command{wrapCmd, unwrapCmd} {
		cmd.Flags().Int("line", 0, "1-based line of the cursor")
		cmd.Flags().Int("col", 1, "1-based byte column of the cursor")
		cmd.Flags().Bool("write", false, "write the result back to FILE")
		cmd.Flags().Bool("format", false, "run the configured formatter on the result")
		_ = cmd.MarkFlagRequired("line")
	}
	wrapCmd.Flags().Int("end-line", 0, "1-based end line of a selection")
	wrapCmd.Flags().Int("end-col", 0, "1-based end column of a selection")
	wrapCmd.Flags().String("with", "", "wrapper id, e.g. wrapping.wrapWithPadding or Padding")
}

type editFlags struct {
	sel    source.Range
	write  bool
	format bool
}

func readEditFlags(cmd *cobra.Command) (editFlags, error) {
	var out editFlags
	line, err := cmd.Flags().GetInt("line")
	if err != nil {
		return out, fmt.Errorf("failed to get line flag: %w", err)
	}
	col, err := cmd.Flags().GetInt("col")
	if err != nil {
		return out, fmt.Errorf("failed to get col flag: %w", err)
	}
	start, err := toPosition(line, col)
	if err != nil {
		return out, err
	}
	out.sel = source.Range{Start: start, End: start}

	if f := cmd.Flags().Lookup("end-line"); f != nil && f.Changed {
		endLine, _ := cmd.Flags().GetInt("end-line")
		endCol, _ := cmd.Flags().GetInt("end-col")
		if endCol == 0 {
			endCol = 1
		}
		end, err := toPosition(endLine, endCol)
		if err != nil {
			return out, err
		}
		if end.Less(start) {
			return out, fmt.Errorf("selection end %s is before its start %s", end, start)
		}
		out.sel.End = end
	}

	if out.write, err = cmd.Flags().GetBool("write"); err != nil {
		return out, fmt.Errorf("failed to get write flag: %w", err)
	}
	if out.format, err = cmd.Flags().GetBool("format"); err != nil {
		return out, fmt.Errorf("failed to get format flag: %w", err)
	}
	return out, nil
}

// toPosition converts 1-based flags to a zero-based position.
func toPosition(line, col int) (source.Position, error) {
	if line < 1 || col < 1 {
		return source.Position{}, fmt.Errorf("invalid position %d:%d (line and column start at 1)", line, col)
	}
	return source.Position{Line: line - 1, Column: col - 1}, nil
}

// resolveTemplate accepts a full id, or a widget name matched against the
// "wrapWith" suffix of ids and against titles.
func resolveTemplate(reg *wrapper.Registry, name string) (*wrapper.Template, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("--with is required (see `widgetwrap wrappers list`)")
	}
	tmpl, ok := reg.Get(name)
	if !ok {
		for _, t := range reg.Catalog().Templates() {
			if strings.EqualFold(strings.TrimPrefix(t.ID[strings.LastIndex(t.ID, ".")+1:], "wrapWith"), name) ||
				strings.EqualFold(t.Title, name) || strings.EqualFold(t.Title, "Wrap with "+name) {
				tmpl, ok = t, true
				break
			}
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", wrapper.ErrUnknown, name)
	}
	if !reg.IsEnabled(tmpl.ID) {
		return nil, fmt.Errorf("wrapper %s is disabled", tmpl.ID)
	}
	return tmpl, nil
}

func runWrap(cmd *cobra.Command, args []string) error {
	flags, err := readEditFlags(cmd)
	if err != nil {
		return err
	}
	with, err := cmd.Flags().GetString("with")
	if err != nil {
		return fmt.Errorf("failed to get with flag: %w", err)
	}
	return runEdit(cmd, args[0], flags, func(ctx context.Context, env *editEnv) (string, error) {
		tmpl, err := resolveTemplate(env.ws.registry, with)
		if err != nil {
			return "", err
		}
		res, err := transform.WrapAt(ctx, env.doc, flags.sel, tmpl, env.finder)
		if err != nil {
			if errors.Is(err, transform.ErrNotFound) {
				return "", fmt.Errorf("no widget found to wrap at %s: %w", flags.sel.Start, err)
			}
			return "", err
		}
		env.edits = append(env.edits, res.Edit)
		return "Wrapped with " + tmpl.Title, nil
	})
}

func runUnwrap(cmd *cobra.Command, args []string) error {
	flags, err := readEditFlags(cmd)
	if err != nil {
		return err
	}
	return runEdit(cmd, args[0], flags, func(ctx context.Context, env *editEnv) (string, error) {
		res, err := transform.UnwrapAt(ctx, env.doc, flags.sel.Start, env.finder)
		if err != nil {
			if errors.Is(err, transform.ErrNotFound) {
				return "", fmt.Errorf("could not detect a widget at %s: %w", flags.sel.Start, err)
			}
			return "", err
		}
		env.edits = append(env.edits, res.Edit)
		if res.Deleted {
			return "Removed " + res.Name, nil
		}
		return "Removed " + res.Name + " wrapper", nil
	})
}

type editEnv struct {
	ws     *workspace
	doc    *source.Document
	finder transform.Finder
	edits  []source.TextEdit
}

// runEdit loads path, lets compute add edits, applies them, optionally
// formats, and writes or prints the result.
func runEdit(cmd *cobra.Command, path string, flags editFlags, compute func(context.Context, *editEnv) (string, error)) error {
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
	ctx := cmd.Context()

	ws, err := openWorkspace(ctx, cmd)
	if err != nil {
		return err
	}
	defer ws.Close()
	locator, err := ws.locator()
	if err != nil {
		return err
	}

	env := &editEnv{ws: ws, finder: locator}
	if err := timer.Track("load "+path, func() (string, error) {
		env.doc, err = source.Load(path)
		return "", err
	}); err != nil {
		return err
	}

	var message string
	if err := timer.Track("transform", func() (string, error) {
		message, err = compute(ctx, env)
		return "", err
	}); err != nil {
		return err
	}

	text, err := edit.Apply(env.doc, env.edits)
	if err != nil {
		return err
	}
	if flags.format {
		text = formatResult(ctx, timer, ws.formatter(), env.doc.Path, text, cmd.ErrOrStderr())
	}
	text = restoreEncoding(env.doc, text)

	fmt.Fprintln(cmd.ErrOrStderr(), message)
	if flags.write {
		return timer.Track("write", func() (string, error) {
			return "", edit.WriteFile(path, text)
		})
	}
	_, err = io.WriteString(cmd.OutOrStdout(), text)
	return err
}

// formatResult runs f over text. A failing formatter leaves the text as it
// was and prints a warning.
func formatResult(ctx context.Context, timer *observ.Timer, f format.Formatter, path, text string, warn io.Writer) string {
	if f == nil {
		return text
	}
	out := text
	err := timer.Track("format", func() (string, error) {
		formatted, err := f.Format(ctx, path, text)
		if err != nil {
			return "", err
		}
		out = formatted
		return "", nil
	})
	if err != nil && !errors.Is(err, format.ErrDisabled) {
		fmt.Fprintf(warn, "warning: formatting skipped: %v\n", err)
	}
	return out
}

// restoreEncoding undoes the normalisation source.Load applied.
func restoreEncoding(doc *source.Document, text string) string {
	if doc.Flags&source.NormalizedCRLF != 0 {
		text = strings.ReplaceAll(text, "\n", "\r\n")
	}
	if doc.Flags&source.HadBOM != 0 {
		text = "\ufeff" + text
	}
	return text
}
