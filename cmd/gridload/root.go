package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jgoulah/gridload/internal/aggregate"
	"github.com/jgoulah/gridload/internal/analysis"
	"github.com/jgoulah/gridload/internal/config"
	"github.com/jgoulah/gridload/internal/database"
	"github.com/jgoulah/gridload/internal/logging"
	"github.com/jgoulah/gridload/internal/partition"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	dbPath   string
	dataPath string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "gridload",
	Short: "Compute transformer loading and alerts from partitioned meter data",
	Long: `GridLoad reads hourly transformer and customer measurements stored as Parquet
partitions, derives loading percentage and status tier for every reading and decides
whether an hour of a transformer's day warrants an operator alert.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "export database file (default is ./loading.db)")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data", "", "partition root containing hourly/feeder<N>/ (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// loadConfig loads the configuration file and applies flag overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, err
	}
	if dataPath != "" {
		cfg.Data.BasePath = dataPath
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// newLogger builds the slog logger described by the config
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	return logging.New(cfg.GetLogLevel(), cfg.Logging.File)
}

// newAnalyzer wires the locator and engine from config
func newAnalyzer(cfg *config.Config, logger *logging.Logger) *analysis.Analyzer {
	loc := partition.NewLocator(cfg.GetBasePath(), cfg.GetFeeders(), logger.Logger)
	engine := aggregate.NewEngine(cfg.GetReadWorkers(), logger.Logger)
	return analysis.New(loc, engine, cfg.GetTimestampUnit())
}

// openDB opens the export database
func openDB(cfg *config.Config) (*database.DB, error) {
	path := cfg.GetDatabasePath()

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	return database.New(path)
}

// parseDate parses a date string in either YYYY-MM-DD format or relative format (e.g., "7d")
func parseDate(dateStr string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", dateStr)
	if err == nil {
		return t, nil
	}

	// Relative format, "7d" for 7 days ago
	if len(dateStr) > 1 && dateStr[len(dateStr)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(dateStr[:len(dateStr)-1], "%d", &days); err == nil {
			y, m, d := time.Now().UTC().AddDate(0, 0, -days).Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date format: %s (use YYYY-MM-DD or Nd for N days ago)", dateStr)
}

// parseRange parses --from/--to, defaulting an empty --to to --from
func parseRange(from, to string) (time.Time, time.Time, error) {
	if from == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("--from is required")
	}
	start, err := parseDate(from)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing --from date: %w", err)
	}
	end := start
	if to != "" {
		end, err = parseDate(to)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing --to date: %w", err)
		}
	}
	return start, end, nil
}

// printWarnings prints non-fatal problems before any data
func printWarnings(warnings []string) {
	for _, w := range warnings {
		fmt.Printf("⚠ %s\n", w)
	}
}

// formatFloat renders a nullable measurement
func formatFloat(v *float64, precision int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.*f", precision, *v)
}
