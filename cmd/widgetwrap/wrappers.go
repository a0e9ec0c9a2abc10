package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"widgetwrap/internal/wrapper"
)

var wrappersCmd = &cobra.Command{
	Use:   "wrappers",
	Short: "List wrapper templates and switch them on or off",
}

var wrappersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List wrapper templates by category",
	Args:  cobra.NoArgs,
	RunE:  runWrappersList,
}

var wrappersEnableCmd = &cobra.Command{
	Use:   "enable ID...",
	Short: "Enable wrapper templates for this workspace",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setWrappers(cmd, args, func(*wrapper.Registry, string) bool { return true })
	},
}

var wrappersDisableCmd = &cobra.Command{
	Use:   "disable ID...",
	Short: "Disable wrapper templates for this workspace",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setWrappers(cmd, args, func(*wrapper.Registry, string) bool { return false })
	},
}

var wrappersToggleCmd = &cobra.Command{
	Use:   "toggle ID...",
	Short: "Flip wrapper templates for this workspace",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setWrappers(cmd, args, func(r *wrapper.Registry, id string) bool { return !r.IsEnabled(id) })
	},
}

func init() {
	wrappersListCmd.Flags().String("format", "text", "output format (text|json)")
	wrappersListCmd.Flags().Bool("enabled", false, "only list enabled templates")
	wrappersCmd.AddCommand(wrappersListCmd, wrappersEnableCmd, wrappersDisableCmd, wrappersToggleCmd)
}

type wrapperJSON struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Kind     string `json:"kind"`
	Enabled  bool   `json:"enabled"`
}

func runWrappersList(cmd *cobra.Command, _ []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	onlyEnabled, err := cmd.Flags().GetBool("enabled")
	if err != nil {
		return fmt.Errorf("failed to get enabled flag: %w", err)
	}
	ws, err := openWorkspace(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer ws.Close()

	groups := ws.registry.Groups()
	switch strings.ToLower(format) {
	case "json":
		return writeWrappersJSON(cmd.OutOrStdout(), groups, onlyEnabled)
	case "text":
		writeWrappersText(cmd.OutOrStdout(), groups, onlyEnabled)
		return nil
	default:
		return fmt.Errorf("unsupported format %q (must be text or json)", format)
	}
}

func writeWrappersText(out io.Writer, groups []wrapper.Group, onlyEnabled bool) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Category", "ID", "Title", "Kind", "Enabled"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	enabled := 0
	for _, g := range groups {
		for _, e := range g.Entries {
			if e.Enabled {
				enabled++
			} else if onlyEnabled {
				continue
			}
			mark := "no"
			if e.Enabled {
				mark = "yes"
			}
			table.Append([]string{g.Name, e.ID, e.Title, e.Kind.String(), mark})
		}
	}
	table.Render()
	fmt.Fprintf(out, "\n%s wrappers enabled\n", color.New(color.Bold).Sprint(enabled))
}

func writeWrappersJSON(out io.Writer, groups []wrapper.Group, onlyEnabled bool) error {
	items := make([]wrapperJSON, 0, 32)
	for _, g := range groups {
		for _, e := range g.Entries {
			if onlyEnabled && !e.Enabled {
				continue
			}
			items = append(items, wrapperJSON{
				ID:       e.ID,
				Title:    e.Title,
				Category: g.Name,
				Kind:     e.Kind.String(),
				Enabled:  e.Enabled,
			})
		}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}

// setWrappers persists a flag per id. Ids are checked before anything is
// saved.
func setWrappers(cmd *cobra.Command, ids []string, want func(*wrapper.Registry, string) bool) error {
	ws, err := openWorkspace(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer ws.Close()

	for _, id := range ids {
		if _, ok := ws.registry.Get(id); !ok {
			return fmt.Errorf("%w: %s", wrapper.ErrUnknown, id)
		}
	}
	for _, id := range ids {
		on := want(ws.registry, id)
		if err := ws.registry.SetEnabled(cmd.Context(), id, on); err != nil {
			return err
		}
		state := "disabled"
		if on {
			state = "enabled"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", id, state)
	}
	return nil
}
