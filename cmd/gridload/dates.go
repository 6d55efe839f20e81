package main

import (
	"fmt"

	"github.com/jgoulah/gridload/internal/partition"
	"github.com/spf13/cobra"
)

var datesFeeder int

var datesCmd = &cobra.Command{
	Use:   "dates",
	Short: "Show the range of dates with data for a feeder",
	Long:  `Scans a feeder's directory and prints the first and last dates that have a daily partition.`,
	RunE:  runDates,
}

func init() {
	datesCmd.Flags().IntVar(&datesFeeder, "feeder", 1, "Feeder number")
	rootCmd.AddCommand(datesCmd)
}

func runDates(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Close()

	loc := partition.NewLocator(cfg.GetBasePath(), cfg.GetFeeders(), logger.Logger)
	first, last, ok, err := loc.AvailableDates(datesFeeder)
	if err != nil {
		return fmt.Errorf("scanning partitions: %w", err)
	}
	if !ok {
		fmt.Printf("No daily partitions found for feeder %d\n", datesFeeder)
		return nil
	}

	days := int(last.Sub(first).Hours()/24) + 1
	fmt.Printf("Feeder %d: %s to %s (%d days)\n", datesFeeder, first.Format("2006-01-02"), last.Format("2006-01-02"), days)
	return nil
}
