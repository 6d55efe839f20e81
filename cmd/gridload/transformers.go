package main

import (
	"fmt"

	"github.com/jgoulah/gridload/internal/partition"
	"github.com/jgoulah/gridload/internal/storage"
	"github.com/spf13/cobra"
)

var (
	transformersFeeder int
	transformersDate   string
)

var transformersCmd = &cobra.Command{
	Use:   "transformers",
	Short: "List the transformers on a feeder",
	Long:  `Reads one daily partition (the latest, unless --date is given) and lists the transformer IDs it contains.`,
	RunE:  runTransformers,
}

func init() {
	transformersCmd.Flags().IntVar(&transformersFeeder, "feeder", 1, "Feeder number")
	transformersCmd.Flags().StringVar(&transformersDate, "date", "", "Partition date (YYYY-MM-DD, default: latest)")
	rootCmd.AddCommand(transformersCmd)
}

func runTransformers(cmd *cobra.Command, args []string) error {
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

	day := transformersDate
	if day == "" {
		_, last, ok, err := loc.AvailableDates(transformersFeeder)
		if err != nil {
			return fmt.Errorf("scanning partitions: %w", err)
		}
		if !ok {
			fmt.Printf("No daily partitions found for feeder %d\n", transformersFeeder)
			return nil
		}
		day = last.Format("2006-01-02")
	}
	date, err := parseDate(day)
	if err != nil {
		return fmt.Errorf("parsing --date: %w", err)
	}

	res, err := loc.LocateFeeder(transformersFeeder, date, date)
	if err != nil {
		return fmt.Errorf("locating partitions: %w", err)
	}
	printWarnings(res.Warnings)
	if len(res.Partitions) == 0 {
		fmt.Printf("No partition for feeder %d on %s\n", transformersFeeder, date.Format("2006-01-02"))
		return nil
	}

	ids, err := storage.TransformerIDs(res.Partitions[0].Path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", res.Partitions[0].Name, err)
	}

	fmt.Printf("Feeder %d transformers on %s:\n", transformersFeeder, date.Format("2006-01-02"))
	for _, id := range ids {
		fmt.Printf("  %s\n", id)
	}
	fmt.Printf("Total: %d transformers\n", len(ids))
	return nil
}
