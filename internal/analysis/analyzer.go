// Package analysis wires partition lookup, Parquet reading and aggregation together
// for the three questions the CLI asks: a feeder's transformers, a transformer's
// customers and an hour's alert decision.
package analysis

import (
	"fmt"
	"time"

	"github.com/jgoulah/gridload/internal/aggregate"
	"github.com/jgoulah/gridload/internal/alert"
	"github.com/jgoulah/gridload/internal/partition"
	"github.com/jgoulah/gridload/internal/storage"
	"github.com/jgoulah/gridload/pkg/models"
)

// Analyzer answers questions over the partition store
type Analyzer struct {
	Locator     *partition.Locator
	Engine      *aggregate.Engine
	DefaultUnit string
}

// Report is an aggregation together with the partitions it read
type Report struct {
	Partitions []partition.Partition
	Result     *aggregate.Result
	Warnings   []string
}

// New creates an analyzer
func New(locator *partition.Locator, engine *aggregate.Engine, defaultUnit string) *Analyzer {
	return &Analyzer{Locator: locator, Engine: engine, DefaultUnit: defaultUnit}
}

// Transformers aggregates a feeder's daily partitions over [from, to].
// A non-empty transformerID narrows the series to one transformer.
func (a *Analyzer) Transformers(feeder int, transformerID string, from, to time.Time) (*Report, error) {
	if transformerID != "" {
		key, err := models.ParseTransformerID(transformerID)
		if err != nil {
			return nil, err
		}
		if key.Feeder != feeder {
			return nil, fmt.Errorf("transformer %s is on feeder %d, not %d", transformerID, key.Feeder, feeder)
		}
	}

	located, err := a.Locator.LocateFeeder(feeder, from, to)
	if err != nil {
		return nil, fmt.Errorf("locating feeder partitions: %w", err)
	}

	var opts []aggregate.Option
	if transformerID != "" {
		opts = append(opts, aggregate.WithEntity(transformerID))
	}
	return a.run(located, from, to, opts...), nil
}

// Customers aggregates a transformer's monthly customer partitions over [from, to]
func (a *Analyzer) Customers(transformerID string, from, to time.Time) (*Report, error) {
	located, err := a.Locator.LocateCustomers(transformerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("locating customer partitions: %w", err)
	}
	return a.run(located, from, to), nil
}

// Alert evaluates one hour of one transformer's day
func (a *Analyzer) Alert(transformerID string, date time.Time, hour int) (alert.Decision, *Report, error) {
	if hour < 0 || hour > 23 {
		return alert.Decision{}, nil, fmt.Errorf("hour %d out of range 0-23", hour)
	}
	key, err := models.ParseTransformerID(transformerID)
	if err != nil {
		return alert.Decision{}, nil, err
	}

	report, err := a.Transformers(key.Feeder, transformerID, date, date)
	if err != nil {
		return alert.Decision{}, nil, err
	}
	return alert.Evaluate(report.Result.Readings, hour), report, nil
}

func (a *Analyzer) run(located *partition.Result, from, to time.Time, opts ...aggregate.Option) *Report {
	sources := make([]aggregate.Source, 0, len(located.Partitions))
	for _, p := range located.Partitions {
		sources = append(sources, storage.Open(p, a.DefaultUnit))
	}

	res := a.Engine.Aggregate(sources, aggregate.DayWindow(from, to), opts...)

	warnings := append([]string(nil), located.Warnings...)
	warnings = append(warnings, res.Warnings()...)
	return &Report{Partitions: located.Partitions, Result: res, Warnings: warnings}
}
