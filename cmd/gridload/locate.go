package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jgoulah/gridload/internal/partition"
	"github.com/spf13/cobra"
)

var (
	locateFeeder      int
	locateTransformer string
	locateFrom        string
	locateTo          string
)

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "List the partition files covering a date range",
	Long: `Lists the daily partitions of a feeder, or with --transformer the monthly customer
partitions of that transformer, that cover the requested dates.`,
	RunE: runLocate,
}

func init() {
	locateCmd.Flags().IntVar(&locateFeeder, "feeder", 0, "Feeder number (daily partitions)")
	locateCmd.Flags().StringVar(&locateTransformer, "transformer", "", "Transformer ID (monthly customer partitions)")
	locateCmd.Flags().StringVar(&locateFrom, "from", "", "Start date (YYYY-MM-DD or Nd)")
	locateCmd.Flags().StringVar(&locateTo, "to", "", "End date, inclusive (default: --from)")
	locateCmd.MarkFlagsMutuallyExclusive("feeder", "transformer")
	locateCmd.MarkFlagsOneRequired("feeder", "transformer")
	rootCmd.AddCommand(locateCmd)
}

func runLocate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Close()

	start, end, err := parseRange(locateFrom, locateTo)
	if err != nil {
		return err
	}

	loc := partition.NewLocator(cfg.GetBasePath(), cfg.GetFeeders(), logger.Logger)

	var res *partition.Result
	if locateTransformer != "" {
		res, err = loc.LocateCustomers(locateTransformer, start, end)
	} else {
		res, err = loc.LocateFeeder(locateFeeder, start, end)
	}
	if err != nil {
		return fmt.Errorf("locating partitions: %w", err)
	}

	printWarnings(res.Warnings)
	if len(res.Partitions) == 0 {
		fmt.Println("No partitions found")
		return nil
	}

	var total uint64
	fmt.Printf("%-32s  %-8s  %-10s  %10s\n", "File", "Kind", "Start", "Size")
	fmt.Println("----------------------------------------------------------------------")
	for _, p := range res.Partitions {
		fmt.Printf("%-32s  %-8s  %-10s  %10s\n", p.Name, p.Kind, p.Start.Format("2006-01-02"), humanize.Bytes(uint64(p.Size)))
		total += uint64(p.Size)
	}
	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("Total: %d partitions, %s\n", len(res.Partitions), humanize.Bytes(total))
	return nil
}
