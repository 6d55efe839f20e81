package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jgoulah/gridload/internal/database"
	"github.com/jgoulah/gridload/internal/influxdb"
	"github.com/jgoulah/gridload/pkg/models"
	"github.com/spf13/cobra"
)

var (
	exportFeeder int
	exportFrom   string
	exportTo     string
	exportInflux bool
	exportBatch  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Store a feeder's classified readings",
	Long: `Aggregates a feeder over the date range and upserts the classified readings into
the local SQLite database. With --influx, readings not yet sent are also written to InfluxDB.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().IntVar(&exportFeeder, "feeder", 1, "Feeder number")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "Start date (YYYY-MM-DD or Nd)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "End date, inclusive (default: --from)")
	exportCmd.Flags().BoolVar(&exportInflux, "influx", false, "Also write unsent readings to InfluxDB")
	exportCmd.Flags().IntVar(&exportBatch, "batch", 5000, "Readings per InfluxDB write")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Export started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Close()

	start, end, err := parseRange(exportFrom, exportTo)
	if err != nil {
		return err
	}

	report, err := newAnalyzer(cfg, logger).Transformers(exportFeeder, "", start, end)
	if err != nil {
		return fmt.Errorf("aggregating feeder %d: %w", exportFeeder, err)
	}
	printWarnings(report.Warnings)

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	n, err := db.InsertReadings(exportFeeder, report.Result.Readings)
	if err != nil {
		return fmt.Errorf("storing readings: %w", err)
	}
	fmt.Printf("✓ Stored %d readings from %d partitions\n", n, len(report.Partitions))

	if !exportInflux {
		return nil
	}
	if !cfg.InfluxDB.Enabled {
		return fmt.Errorf("InfluxDB is not enabled in config")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	client, err := influxdb.NewClient(ctx, cfg.InfluxDB)
	if err != nil {
		return err
	}
	defer client.Close()

	sent := 0
	for {
		pending, err := db.ListUnpublished(exportBatch)
		if err != nil {
			return fmt.Errorf("listing unsent readings: %w", err)
		}
		if len(pending) == 0 {
			break
		}

		// Points are grouped by the feeder each reading was stored under
		ids := make([]int64, 0, len(pending))
		for feeder, group := range groupByFeeder(pending) {
			if err := client.WriteReadings(ctx, feeder, group.readings); err != nil {
				return fmt.Errorf("writing to InfluxDB: %w", err)
			}
			ids = append(ids, group.ids...)
		}

		if err := db.MarkPublished(ids); err != nil {
			return fmt.Errorf("marking readings as sent: %w", err)
		}
		sent += len(ids)
		logger.Debug("sent batch to InfluxDB", "readings", len(ids))
	}

	fmt.Printf("✓ Sent %d readings to InfluxDB bucket %s\n", sent, cfg.InfluxDB.Bucket)
	return nil
}

type feederGroup struct {
	ids      []int64
	readings []models.Reading
}

// groupByFeeder splits stored readings by the feeder they were exported under
func groupByFeeder(stored []database.StoredReading) map[int]*feederGroup {
	groups := make(map[int]*feederGroup)
	for _, s := range stored {
		g, ok := groups[s.Feeder]
		if !ok {
			g = &feederGroup{}
			groups[s.Feeder] = g
		}
		g.ids = append(g.ids, s.ID)
		g.readings = append(g.readings, s.Reading)
	}
	return groups
}
