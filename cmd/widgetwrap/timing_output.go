package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"widgetwrap/internal/observ"
)

// newTimer returns a timer when --timings is set. A nil timer records
// nothing.
func newTimer(cmd *cobra.Command) (*observ.Timer, error) {
	show, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return nil, fmt.Errorf("failed to get timings flag: %w", err)
	}
	if !show {
		return nil, nil
	}
	return observ.NewTimer(), nil
}

func printTimings(timer *observ.Timer) {
	if timer == nil {
		return
	}
	if err := timer.WriteSummary(os.Stderr); err != nil {
		panic(err)
	}
}
