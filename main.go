package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "solarfarm",
	Short: "Solar farm telemetry simulation service",
	Long: `solarfarm simulates a large solar farm, serves its state and analytics over
HTTP, and streams live snapshots to websocket and SSE subscribers.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
