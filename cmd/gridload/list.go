package main

import (
	"fmt"
	"time"

	"github.com/jgoulah/gridload/internal/database"
	"github.com/spf13/cobra"
)

var (
	listEntity string
	listFrom   string
	listTo     string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored readings",
	Long:  `Displays the classified readings of one transformer or customer stored by export.`,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listEntity, "entity", "", "Transformer or customer ID")
	listCmd.Flags().StringVar(&listFrom, "from", "", "Only readings on or after this date (YYYY-MM-DD or Nd)")
	listCmd.Flags().StringVar(&listTo, "to", "", "Only readings on or before this date (YYYY-MM-DD)")
	listCmd.MarkFlagRequired("entity")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	var from, to time.Time
	if listFrom != "" {
		if from, err = parseDate(listFrom); err != nil {
			return fmt.Errorf("parsing --from date: %w", err)
		}
	}
	if listTo != "" {
		if to, err = parseDate(listTo); err != nil {
			return fmt.Errorf("parsing --to date: %w", err)
		}
		to = to.AddDate(0, 0, 1)
	}

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	data, err := db.ListReadings(listEntity, from, to)
	if err != nil {
		return fmt.Errorf("listing readings for %s: %w", listEntity, err)
	}
	if len(data) == 0 {
		fmt.Printf("No data found for %s\n", listEntity)
		return nil
	}

	fmt.Printf("\n%s Readings:\n", listEntity)
	fmt.Println("------------------------------------------------------------")
	fmt.Printf("%-20s  %9s  %9s  %-12s  %s\n", "Time", "kW", "Loading%", "Status", "Sent")
	fmt.Println("------------------------------------------------------------")

	var peak *database.StoredReading
	for i, record := range data {
		sent := ""
		if record.Published {
			sent = "✓"
		}
		fmt.Printf("%-20s  %9s  %9s  %-12s  %s\n", record.Timestamp.Format("2006-01-02 15:04:05"),
			formatFloat(record.PowerKW, 2), formatFloat(record.LoadingPercentage, 1), record.LoadRange, sent)
		if record.LoadingPercentage != nil && (peak == nil || *record.LoadingPercentage > *peak.LoadingPercentage) {
			peak = &data[i]
		}
	}

	fmt.Println("------------------------------------------------------------")
	fmt.Printf("Total: %d records\n", len(data))
	if peak != nil {
		fmt.Printf("Peak: %.1f%% (%s) at %s\n", *peak.LoadingPercentage, peak.LoadRange, peak.Timestamp.Format("2006-01-02 15:04:05"))
	}
	return nil
}
