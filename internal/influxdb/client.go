package influxdb

import (
	"context"
	"fmt"
	"strconv"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/jgoulah/gridload/internal/config"
	"github.com/jgoulah/gridload/pkg/models"
)

// Measurement names
const (
	TransformerMeasurement = "transformer_loading"
	CustomerMeasurement    = "customer_load"
)

// Client writes classified readings to InfluxDB v2
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	config   config.InfluxDBConfig
}

// NewClient initializes the InfluxDB v2 client and verifies connectivity
func NewClient(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	if _, err := client.Health(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to InfluxDB at %s: %w", cfg.URL, err)
	}

	return &Client{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		config:   cfg,
	}, nil
}

// WriteReadings writes one point per reading
func (c *Client) WriteReadings(ctx context.Context, feeder int, readings []models.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(readings))
	for _, r := range readings {
		points = append(points, PointFor(feeder, r))
	}
	if err := c.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("writing %d points: %w", len(points), err)
	}
	return nil
}

// Close closes the InfluxDB client
func (c *Client) Close() {
	c.client.Close()
}

// PointFor maps a reading to a point. Null measurements are left out of the field set.
func PointFor(feeder int, r models.Reading) *write.Point {
	measurement := TransformerMeasurement
	if r.Kind == models.KindCustomer {
		measurement = CustomerMeasurement
	}

	tags := map[string]string{
		"transformer_id": r.TransformerID,
		"feeder":         strconv.Itoa(feeder),
		"load_range":     string(r.LoadRange),
	}
	if r.Kind == models.KindCustomer {
		tags["customer_id"] = r.EntityID
	}

	fields := map[string]interface{}{}
	for name, v := range map[string]*float64{
		"power_kw":           r.PowerKW,
		"current_a":          r.CurrentA,
		"voltage_v":          r.VoltageV,
		"power_factor":       r.PowerFactor,
		"size_kva":           r.SizeKVA,
		"loading_percentage": r.LoadingPercentage,
	} {
		if v != nil {
			fields[name] = *v
		}
	}
	// A point needs at least one field
	fields["severity"] = r.LoadRange.Severity()

	return write.NewPoint(measurement, tags, fields, r.Timestamp)
}
