// Package aggregate turns a set of partition sources into an ordered series of
// classified readings.
package aggregate

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jgoulah/gridload/internal/loading"
	"github.com/jgoulah/gridload/internal/logging"
	"github.com/jgoulah/gridload/pkg/models"
)

// Source is a readable tabular partition
type Source interface {
	Name() string
	ReadRows() ([]models.Reading, error)
}

// Window is the half-open interval [Start, End)
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls in the window
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// DayWindow covers the inclusive calendar dates start..end in UTC
func DayWindow(start, end time.Time) Window {
	sy, sm, sd := start.Date()
	ey, em, ed := end.Date()
	return Window{
		Start: time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC),
		End:   time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1),
	}
}

// SourceError records a partition that could not be read
type SourceError struct {
	Source string
	Err    error
}

func (e SourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e SourceError) Unwrap() error {
	return e.Err
}

// Result is the classified series plus the partitions that were skipped
type Result struct {
	Readings []models.Reading
	Skipped  []SourceError
	Sources  int
}

// Warnings renders skipped partitions as human readable lines
func (r *Result) Warnings() []string {
	out := make([]string, 0, len(r.Skipped))
	for _, s := range r.Skipped {
		out = append(out, "skipped partition "+s.Error())
	}
	return out
}

// Option narrows an aggregation
type Option func(*options)

type options struct {
	entityID string
}

// WithEntity keeps only readings for one transformer or customer
func WithEntity(id string) Option {
	return func(o *options) {
		o.entityID = id
	}
}

// Engine reads sources and derives loading fields. It holds no per-call state
// and is safe for concurrent use.
type Engine struct {
	Workers int
	Logger  *slog.Logger
}

// NewEngine creates an engine reading up to workers partitions at once
func NewEngine(workers int, logger *slog.Logger) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{Workers: workers, Logger: logging.OrDiscard(logger)}
}

// Aggregate reads every source, keeps rows in the window, redistributes
// co-timestamped rows across their minute and classifies each row.
// A source that fails to read is recorded in Result.Skipped and the rest still aggregate.
func (e *Engine) Aggregate(sources []Source, w Window, opts ...Option) *Result {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger := logging.OrDiscard(e.Logger)

	perSource := e.readAll(sources)

	res := &Result{Sources: len(sources)}
	var rows []models.Reading
	for i, sr := range perSource {
		if sr.err != nil {
			logger.Debug("skipping unreadable partition", "source", sources[i].Name(), "err", sr.err)
			res.Skipped = append(res.Skipped, SourceError{Source: sources[i].Name(), Err: sr.err})
			continue
		}
		for _, r := range sr.rows {
			if !w.Contains(r.RawTimestamp) {
				continue
			}
			if o.entityID != "" && r.EntityID != o.entityID {
				continue
			}
			rows = append(rows, r)
		}
	}

	Redistribute(rows)

	for i := range rows {
		rows[i].LoadingPercentage = loading.Percentage(rows[i].PowerKW, rows[i].SizeKVA, rows[i].PowerFactor)
		rows[i].LoadRange = loading.Classify(rows[i].LoadingPercentage)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp.Before(rows[j].Timestamp)
	})

	res.Readings = rows
	logger.Debug("aggregated partitions", "sources", len(sources), "skipped", len(res.Skipped),
		"readings", len(rows), "from", w.Start, "to", w.End)
	return res
}

type sourceRows struct {
	rows []models.Reading
	err  error
}

// readAll reads sources concurrently. Results land in a slot per source so the
// concatenation order never depends on scheduling.
func (e *Engine) readAll(sources []Source) []sourceRows {
	out := make([]sourceRows, len(sources))

	var g errgroup.Group
	g.SetLimit(max(e.Workers, 1))
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			rows, err := src.ReadRows()
			out[i] = sourceRows{rows: rows, err: err}
			return nil
		})
	}
	_ = g.Wait()

	return out
}
