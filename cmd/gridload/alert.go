package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jgoulah/gridload/internal/alert"
	"github.com/jgoulah/gridload/internal/config"
	"github.com/jgoulah/gridload/internal/publisher"
	"github.com/jgoulah/gridload/pkg/models"
	"github.com/spf13/cobra"
)

var (
	alertTransformer string
	alertDate        string
	alertHour        int
	alertPublish     bool
)

var alertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Evaluate one hour of a transformer's day",
	Long: `Finds the reading with the highest loading in the requested hour and reports its
status tier. Critical, Overloaded and Warning hours are alert-worthy; with --publish the
alert is sent to the MQTT and Kafka channels enabled in the config.`,
	RunE: runAlert,
}

func init() {
	alertCmd.Flags().StringVar(&alertTransformer, "transformer", "", "Transformer ID")
	alertCmd.Flags().StringVar(&alertDate, "date", "", "Date (YYYY-MM-DD or Nd)")
	alertCmd.Flags().IntVar(&alertHour, "hour", -1, "Hour of day, 0-23 (UTC)")
	alertCmd.Flags().BoolVar(&alertPublish, "publish", false, "Send the alert when it is alert-worthy")
	alertCmd.MarkFlagRequired("transformer")
	alertCmd.MarkFlagRequired("date")
	alertCmd.MarkFlagRequired("hour")
	rootCmd.AddCommand(alertCmd)
}

func runAlert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Close()

	date, err := parseDate(alertDate)
	if err != nil {
		return fmt.Errorf("parsing --date: %w", err)
	}

	decision, report, err := newAnalyzer(cfg, logger).Alert(alertTransformer, date, alertHour)
	if err != nil {
		return fmt.Errorf("evaluating alert: %w", err)
	}
	printWarnings(report.Warnings)

	fmt.Printf("Transformer %s, %s hour %02d:00\n", alertTransformer, date.Format("2006-01-02"), alertHour)
	fmt.Printf("  Readings in hour: %d\n", decision.Considered)
	fmt.Printf("  Status:           %s\n", decision.Status)
	if decision.Reading != nil {
		fmt.Printf("  Peak loading:     %.1f%% at %s\n", *decision.Reading.LoadingPercentage,
			decision.Reading.Timestamp.Format("15:04:05"))
		fmt.Printf("  Power / size:     %s kW / %s kVA\n", formatFloat(decision.Reading.PowerKW, 2), formatFloat(decision.Reading.SizeKVA, 0))
	}

	if !decision.ShouldNotify {
		fmt.Println("✓ No alert needed")
		return nil
	}

	link, err := alert.DeepLink(cfg.GetDashboardURL(), decision, alertTransformer, date)
	if err != nil {
		return fmt.Errorf("building dashboard link: %w", err)
	}
	fmt.Printf("⚠ Alert: %s loading\n", decision.Status)
	fmt.Printf("  %s\n", link)

	if !alertPublish {
		return nil
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	notifier, err := newNotifier(ctx, cfg.Alerts)
	if err != nil {
		return err
	}
	if notifier == nil {
		fmt.Println("⚠ --publish given but no alert channel is enabled in config")
		return nil
	}
	defer notifier.Close()

	event := alert.NewEvent(decision, alertTransformer, date, link)
	sent, err := deliverAlert(ctx, notifier, alertPublish, decision, event)
	if err != nil {
		return err
	}
	if sent {
		logger.Info("alert published", "id", event.ID, "transformer", event.TransformerID, "status", event.Status)
		fmt.Printf("✓ Alert %s published\n", event.ID)
	}
	return nil
}

// deliverAlert sends the event when the decision is alert-worthy and publishing was asked for
func deliverAlert(ctx context.Context, n publisher.Notifier, publish bool, d alert.Decision, event models.AlertEvent) (bool, error) {
	if !publish || !d.ShouldNotify || n == nil {
		return false, nil
	}
	if err := n.Notify(ctx, event); err != nil {
		return false, fmt.Errorf("publishing alert: %w", err)
	}
	return true, nil
}

// Constructors for the alert channels, replaced in tests
var (
	newMQTTNotifier = func(ctx context.Context, cfg config.MQTTConfig) (publisher.Notifier, error) {
		p, err := publisher.NewMQTT(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	newKafkaNotifier = func(cfg config.KafkaConfig) (publisher.Notifier, error) {
		k, err := publisher.NewKafka(cfg)
		if err != nil {
			return nil, err
		}
		return k, nil
	}
)

// newNotifier connects the enabled channels; nil when none is enabled
func newNotifier(ctx context.Context, cfg config.AlertConfig) (publisher.Notifier, error) {
	var multi publisher.Multi
	if cfg.MQTT.Enabled {
		p, err := newMQTTNotifier(ctx, cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("creating MQTT publisher: %w", err)
		}
		multi = append(multi, p)
	}
	if cfg.Kafka.Enabled {
		k, err := newKafkaNotifier(cfg.Kafka)
		if err != nil {
			multi.Close()
			return nil, fmt.Errorf("creating Kafka publisher: %w", err)
		}
		multi = append(multi, k)
	}
	if len(multi) == 0 {
		return nil, nil
	}
	return multi, nil
}
