package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"solarfarm-cloud/internal/config"
	"solarfarm-cloud/internal/report"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a sector report of the current farm to a file",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", report.FormatPDF, "report format: pdf or xlsx")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output path (default sectors.<format>)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := log.New(os.Stderr, "", log.LstdFlags)

	app, err := bootstrap(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	out, _, err := report.Build(exportFormat, report.FromOverview(app.analytics.Overview()))
	if err != nil {
		return err
	}
	path := exportOut
	if path == "" {
		path = "sectors." + exportFormat
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return err
	}
	logger.Printf("export: wrote report: format=%s path=%s bytes=%d", exportFormat, path, len(out))
	return nil
}
