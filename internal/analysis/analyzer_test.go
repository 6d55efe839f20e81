package analysis

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jgoulah/gridload/internal/aggregate"
	"github.com/jgoulah/gridload/internal/partition"
	"github.com/jgoulah/gridload/internal/storage"
	"github.com/jgoulah/gridload/pkg/models"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func clock(day string, hour, minute int) time.Time {
	return date(day).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// row builds a transformer reading whose loading is pct for a 100 kVA unit at unity power factor
func row(id string, at time.Time, pct float64) storage.TransformerRow {
	return storage.TransformerRow{
		Timestamp:     storage.Micros(at),
		TransformerID: id,
		SizeKVA:       models.Float(100),
		PowerFactor:   models.Float(1),
		PowerKW:       models.Float(pct),
	}
}

func setup(t *testing.T) (*Analyzer, string) {
	t.Helper()
	base := t.TempDir()
	dir := filepath.Join(base, "hourly", "feeder1")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	day := []storage.TransformerRow{
		row("S1F1ATF001", clock("2024-01-15", 14, 0), 45),
		row("S1F1ATF002", clock("2024-01-15", 14, 0), 60),
		row("S1F1ATF001", clock("2024-01-15", 14, 15), 82),
		row("S1F1ATF001", clock("2024-01-15", 14, 45), 121),
		row("S1F1ATF001", clock("2024-01-15", 9, 0), 30),
		row("S1F1ATF001", clock("2024-01-15", 9, 30), 45),
	}
	if err := storage.WriteTransformers(filepath.Join(dir, "2024-01-15.parquet"), day); err != nil {
		t.Fatalf("writing daily partition: %v", err)
	}
	next := []storage.TransformerRow{row("S1F1ATF001", clock("2024-01-16", 0, 0), 10)}
	if err := storage.WriteTransformers(filepath.Join(dir, "2024-01-16.parquet"), next); err != nil {
		t.Fatalf("writing daily partition: %v", err)
	}

	customers := []storage.CustomerRow{
		{Timestamp: storage.Micros(clock("2024-01-15", 14, 0)), CustomerID: "C-1", PowerKW: models.Float(2)},
		{Timestamp: storage.Micros(clock("2024-02-01", 14, 0)), CustomerID: "C-1", PowerKW: models.Float(3)},
	}
	if err := storage.WriteCustomers(filepath.Join(dir, "S1F1ATF001_2024-01.parquet"), customers[:1]); err != nil {
		t.Fatalf("writing customer partition: %v", err)
	}
	if err := storage.WriteCustomers(filepath.Join(dir, "S1F1ATF001_2024-02.parquet"), customers[1:]); err != nil {
		t.Fatalf("writing customer partition: %v", err)
	}

	loc := partition.NewLocator(base, []int{1, 2}, nil)
	return New(loc, aggregate.NewEngine(2, nil), "us"), dir
}

func TestTransformersWholeFeeder(t *testing.T) {
	a, _ := setup(t)

	report, err := a.Transformers(1, "", date("2024-01-15"), date("2024-01-15"))
	if err != nil {
		t.Fatalf("aggregating: %v", err)
	}
	if len(report.Partitions) != 1 {
		t.Fatalf("expected 1 partition, got %d", len(report.Partitions))
	}
	if len(report.Result.Readings) != 6 {
		t.Fatalf("expected 6 readings, got %d", len(report.Result.Readings))
	}
	for i := 1; i < len(report.Result.Readings); i++ {
		if report.Result.Readings[i].Timestamp.Before(report.Result.Readings[i-1].Timestamp) {
			t.Fatalf("readings are not ordered")
		}
	}
}

func TestTransformersSingleTransformer(t *testing.T) {
	a, _ := setup(t)

	report, err := a.Transformers(1, "S1F1ATF001", date("2024-01-15"), date("2024-01-16"))
	if err != nil {
		t.Fatalf("aggregating: %v", err)
	}
	if len(report.Partitions) != 2 {
		t.Fatalf("expected 2 partitions, got %d", len(report.Partitions))
	}
	if len(report.Result.Readings) != 6 {
		t.Fatalf("expected 6 readings for S1F1ATF001, got %d", len(report.Result.Readings))
	}
	for _, r := range report.Result.Readings {
		if r.EntityID != "S1F1ATF001" {
			t.Fatalf("unexpected entity %s", r.EntityID)
		}
	}
}

func TestTransformersWrongFeeder(t *testing.T) {
	a, _ := setup(t)
	if _, err := a.Transformers(2, "S1F1ATF001", date("2024-01-15"), date("2024-01-15")); err == nil {
		t.Fatalf("expected an error for a transformer on another feeder")
	}
}

func TestTransformersMissingFeederDir(t *testing.T) {
	a, _ := setup(t)

	report, err := a.Transformers(2, "", date("2024-01-15"), date("2024-01-15"))
	if err != nil {
		t.Fatalf("aggregating: %v", err)
	}
	if len(report.Result.Readings) != 0 || len(report.Warnings) != 1 {
		t.Fatalf("expected an empty report with a warning, got %+v", report)
	}
}

func TestTransformersCorruptPartitionIsSkipped(t *testing.T) {
	a, dir := setup(t)
	if err := os.WriteFile(filepath.Join(dir, "2024-01-14.parquet"), []byte("garbage"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	report, err := a.Transformers(1, "", date("2024-01-14"), date("2024-01-15"))
	if err != nil {
		t.Fatalf("aggregating: %v", err)
	}
	if len(report.Result.Skipped) != 1 || report.Result.Skipped[0].Source != "2024-01-14.parquet" {
		t.Fatalf("expected the corrupt partition to be skipped, got %+v", report.Result.Skipped)
	}
	if len(report.Result.Readings) != 6 {
		t.Fatalf("expected readings from the good partition, got %d", len(report.Result.Readings))
	}
	if len(report.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", report.Warnings)
	}
}

func TestCustomers(t *testing.T) {
	a, _ := setup(t)

	report, err := a.Customers("S1F1ATF001", date("2024-01-20"), date("2024-02-05"))
	if err != nil {
		t.Fatalf("aggregating: %v", err)
	}
	if len(report.Partitions) != 2 {
		t.Fatalf("expected 2 monthly partitions, got %d", len(report.Partitions))
	}
	// Only the February reading falls inside the window
	if len(report.Result.Readings) != 1 || report.Result.Readings[0].EntityID != "C-1" {
		t.Fatalf("unexpected readings: %+v", report.Result.Readings)
	}
	if report.Result.Readings[0].LoadRange != models.LoadUnknown {
		t.Fatalf("customer rows without size should be Unknown")
	}
}

func TestAlertCritical(t *testing.T) {
	a, _ := setup(t)

	d, _, err := a.Alert("S1F1ATF001", date("2024-01-15"), 14)
	if err != nil {
		t.Fatalf("evaluating: %v", err)
	}
	if d.Status != models.LoadCritical || !d.ShouldNotify {
		t.Fatalf("expected Critical with notify, got %s notify=%v", d.Status, d.ShouldNotify)
	}
	if d.Considered != 3 {
		t.Fatalf("expected 3 readings in hour 14, got %d", d.Considered)
	}
}

func TestAlertNormal(t *testing.T) {
	a, _ := setup(t)

	d, _, err := a.Alert("S1F1ATF001", date("2024-01-15"), 9)
	if err != nil {
		t.Fatalf("evaluating: %v", err)
	}
	if d.Status != models.LoadNormal || d.ShouldNotify {
		t.Fatalf("expected Normal without notify, got %s notify=%v", d.Status, d.ShouldNotify)
	}
}

func TestAlertRejectsBadInput(t *testing.T) {
	a, _ := setup(t)

	if _, _, err := a.Alert("S1F1ATF001", date("2024-01-15"), 24); err == nil {
		t.Fatalf("expected an error for hour 24")
	}
	if _, _, err := a.Alert("bogus", date("2024-01-15"), 1); !errors.Is(err, models.ErrInvalidTransformerID) {
		t.Fatalf("expected ErrInvalidTransformerID, got %v", err)
	}
}

func TestConfigurationErrorPropagates(t *testing.T) {
	a := New(partition.NewLocator(filepath.Join(t.TempDir(), "nope"), nil, nil), aggregate.NewEngine(1, nil), "us")
	if _, err := a.Transformers(1, "", date("2024-01-15"), date("2024-01-15")); !errors.Is(err, partition.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
