package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/yapay-ai/garmin-downloader/pkg/csvexport"
	"github.com/yapay-ai/garmin-downloader/pkg/exporter"
	"github.com/yapay-ai/garmin-downloader/pkg/model"
	"github.com/yapay-ai/garmin-downloader/pkg/storage"
)

var exportCmd = &cobra.Command{
	Use:   "export <year> <month-or-range>",
	Short: "Export monthly health data to CSV",
	Long: `Export one CSV file per requested datatype and month.

The month is either a single month ("9") or an inclusive range within the
same year ("7-8"). Files are named <datatype><year><month>.csv, for example
bb202507.csv, and are overwritten when they already exist.`,
	Example: `  gdl export 2025 7-8 --datatype bb,hr
  gdl export 2024 12 --datatype hr --output-dir ./exports`,
	Args: cobra.ExactArgs(2),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringP("datatype", "d", "", "Comma-separated datatypes to export (bb, hr)")
	exportCmd.Flags().StringP("output-dir", "o", "", "Directory for CSV files (default from config)")
	exportCmd.Flags().Bool("continue-on-error", false, "Skip failed months instead of stopping at the first failure")
	_ = exportCmd.MarkFlagRequired("datatype")
}

func runExport(cmd *cobra.Command, args []string) error {
	req, err := parseExportRequest(cmd, args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	outputDir, _ := cmd.Flags().GetString("output-dir")
	if outputDir == "" {
		outputDir = cfg.Export.OutputDir
	}
	continueOnError := cfg.Export.ContinueOnError
	if cmd.Flags().Changed("continue-on-error") {
		continueOnError, _ = cmd.Flags().GetBool("continue-on-error")
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := initClient(ctx, cfg, loc, logger)
	if err != nil {
		return err
	}

	var journal storage.Journal
	db, err := initJournal(cfg)
	if err != nil {
		return fmt.Errorf("open export journal: %w", err)
	}
	if db != nil {
		defer db.Close()
		journal = db
	}

	e := exporter.NewExporter(client, csvexport.NewWriter(outputDir, loc), journal,
		initNotifiers(cfg), continueOnError, logger)

	res, runErr := e.Run(ctx, req)
	if res != nil {
		for _, f := range res.Files {
			fmt.Printf("  %s  (%d samples)\n", f.Path, f.Samples)
		}
		fmt.Printf("Exported %d of %d files\n", len(res.Files), len(req.Months)*len(req.Kinds))
	}
	return runErr
}

// parseExportRequest validates the positional arguments and --datatype
// before anything touches the network or the filesystem.
func parseExportRequest(cmd *cobra.Command, args []string) (model.ExportRequest, error) {
	year, err := parseYear(args[0])
	if err != nil {
		return model.ExportRequest{}, err
	}

	months, err := model.ParseMonths(year, args[1])
	if err != nil {
		return model.ExportRequest{}, err
	}

	datatype, _ := cmd.Flags().GetString("datatype")
	kinds, err := model.ParseKinds(datatype)
	if err != nil {
		return model.ExportRequest{}, err
	}

	req := model.ExportRequest{Months: months, Kinds: kinds}
	return req, req.Validate()
}

func parseYear(s string) (int, error) {
	if len(s) != 4 {
		return 0, &model.InvalidRangeError{Spec: s, Reason: "year must have four digits"}
	}
	year, err := strconv.Atoi(s)
	if err != nil || year < 1000 {
		return 0, &model.InvalidRangeError{Spec: s, Reason: "year must have four digits"}
	}
	return year, nil
}
