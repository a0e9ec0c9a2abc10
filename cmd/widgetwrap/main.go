package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"widgetwrap/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "widgetwrap",
	Short: "Wrap, unwrap and outline Flutter widgets",
	Long: `widgetwrap rewrites Flutter widget expressions in Dart sources and
shows their widget tree. It runs as a language server for editors or as a
command line tool.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(lspCmd)
	rootCmd.AddCommand(wrapCmd)
	rootCmd.AddCommand(unwrapCmd)
	rootCmd.AddCommand(outlineCmd)
	rootCmd.AddCommand(wrappersCmd)
	rootCmd.AddCommand(versionCmd)

	// Глобальные флаги
	rootCmd.PersistentFlags().String("config", "", "path to widgetwrap.toml (default: search upwards from the working directory)")
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")
	rootCmd.PersistentFlags().String("trace", "", "write trace events to file (- for stderr)")
	rootCmd.PersistentFlags().String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	rootCmd.PersistentFlags().String("trace-mode", "stream", "trace storage mode (stream|ring|both)")
	rootCmd.PersistentFlags().Int("trace-ring-size", 4096, "events kept by the ring tracer")
	rootCmd.PersistentFlags().Duration("trace-heartbeat", 0, "emit heartbeat events at this interval (0 disables)")

	rootCmd.PersistentFlags().String("cpuprofile", "", "write a CPU profile to file")
	rootCmd.PersistentFlags().String("memprofile", "", "write a heap profile to file on exit")
	rootCmd.PersistentFlags().String("runtime-trace", "", "write a Go runtime trace to file")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if err := applyColor(cmd); err != nil {
			return err
		}
		return startProfiling(cmd)
	}
	rootCmd.PersistentPostRunE = func(*cobra.Command, []string) error {
		return stopProfiling()
	}
}

// main executes the root command. Any error exits with status 1.
func main() {
	defer func() {
		if r := recover(); r != nil {
			dumpTraceRing(os.Stderr)
			panic(r)
		}
	}()
	err := rootCmd.Execute()
	// RunE errors skip PersistentPostRunE
	if perr := stopProfiling(); perr != nil {
		fmt.Fprintf(os.Stderr, "profile: %v\n", perr)
	}
	if err != nil {
		dumpTraceRing(os.Stderr)
		os.Exit(1)
	}
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
