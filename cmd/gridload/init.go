package main

import (
	"fmt"
	"os"

	"github.com/jgoulah/gridload/internal/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	Long:  `Creates the config file (./config.yaml or --config) with every default spelled out, ready to edit.`,
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	path := getConfigPath()
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cfg.Data.BasePath = cfg.GetBasePath()
	cfg.Data.Feeders = cfg.GetFeeders()
	cfg.Data.ReadWorkers = cfg.GetReadWorkers()
	cfg.Data.TimestampUnit = cfg.GetTimestampUnit()
	cfg.Database.Path = cfg.GetDatabasePath()
	cfg.Logging.Level = cfg.GetLogLevel()
	cfg.Alerts.DashboardURL = cfg.GetDashboardURL()
	cfg.Alerts.MQTT.TopicPrefix = cfg.Alerts.MQTT.GetTopicPrefix()
	cfg.Alerts.Kafka.Topic = cfg.Alerts.Kafka.GetTopic()

	if err := config.Save(path, cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("✓ Wrote %s\n", path)
	return nil
}
