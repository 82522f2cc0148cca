package cli

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/yapay-ai/garmin-downloader/pkg/model"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List previously exported files",
	Long:  `List the export journal, newest first, optionally filtered by datatype and year.`,
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of entries (0 for all)")
	historyCmd.Flags().StringP("datatype", "d", "", "Filter by datatype (bb, hr)")
	historyCmd.Flags().Int("year", 0, "Filter by year")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	datatype, _ := cmd.Flags().GetString("datatype")
	year, _ := cmd.Flags().GetInt("year")

	filter := model.HistoryFilter{Year: year, Limit: limit}
	if datatype != "" {
		kind, err := model.ParseKind(datatype)
		if err != nil {
			return err
		}
		filter.Kind = kind
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := initJournal(cfg)
	if err != nil {
		return fmt.Errorf("open export journal: %w", err)
	}
	if db == nil {
		return errors.New("export journal is disabled (storage.enabled is false)")
	}
	defer db.Close()

	records, err := db.ListExports(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("list exports: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No exports recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "EXPORTED\tDATATYPE\tMONTH\tSAMPLES\tSIZE\tPATH\n")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%04d-%02d\t%s\t%s\t%s\n",
			humanize.Time(r.ExportedAt),
			r.Kind,
			r.Year, r.Month,
			humanize.Comma(r.Samples),
			humanize.Bytes(uint64(r.Bytes)),
			r.Path,
		)
	}
	return w.Flush()
}
