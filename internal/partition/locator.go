// Package partition resolves which Parquet partition files cover a feeder or
// transformer over a date range.
//
// Two naming schemes share each feeder directory:
//
//	<base>/hourly/feeder<N>/YYYY-MM-DD.parquet            daily, all transformers on the feeder
//	<base>/hourly/feeder<N>/<transformer>_YYYY-MM.parquet monthly, one transformer's customers
//
// Files that match neither scheme are ignored.
package partition

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/jgoulah/gridload/internal/logging"
	"github.com/jgoulah/gridload/pkg/models"
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
	extension   = ".parquet"
)

var (
	// ErrConfiguration marks problems with the storage root itself; these are fatal to a request
	ErrConfiguration = errors.New("partition configuration error")
)

// Kind is the partitioning scheme of a file
type Kind string

const (
	Daily   Kind = "daily"
	Monthly Kind = "monthly"
)

// Partition is one file covering the half-open interval [Start, End) in UTC
type Partition struct {
	Path          string
	Name          string
	Kind          Kind
	Feeder        int
	TransformerID string // Monthly partitions only
	Start         time.Time
	End           time.Time
	Size          int64
}

// Overlaps reports whether the partition shares any instant with [from, to)
func (p Partition) Overlaps(from, to time.Time) bool {
	return p.Start.Before(to) && from.Before(p.End)
}

// Result is the ordered set of partitions for a request plus any non-fatal warnings
type Result struct {
	Partitions []Partition
	Warnings   []string
}

// Locator lists partition files under a storage root
type Locator struct {
	BasePath string
	Feeders  []int // Allowed feeder numbers; empty allows any positive feeder
	Logger   *slog.Logger
}

// NewLocator creates a locator rooted at basePath
func NewLocator(basePath string, feeders []int, logger *slog.Logger) *Locator {
	return &Locator{BasePath: basePath, Feeders: feeders, Logger: logging.OrDiscard(logger)}
}

// FeederDir returns the directory holding a feeder's partitions
func (l *Locator) FeederDir(feeder int) string {
	return filepath.Join(l.BasePath, "hourly", fmt.Sprintf("feeder%d", feeder))
}

// LocateFeeder returns the daily partitions for a feeder whose date falls in [start, end]
func (l *Locator) LocateFeeder(feeder int, start, end time.Time) (*Result, error) {
	start, end = civilDate(start), civilDate(end)
	if start.After(end) {
		return reversed(start, end), nil
	}

	entries, res, err := l.list(feeder)
	if err != nil || entries == nil {
		return res, err
	}

	for _, e := range entries {
		day, ok := parseDaily(e.name)
		if !ok {
			continue
		}
		if day.Before(start) || day.After(end) {
			continue
		}
		res.Partitions = append(res.Partitions, Partition{
			Path:   filepath.Join(l.FeederDir(feeder), e.name),
			Name:   e.name,
			Kind:   Daily,
			Feeder: feeder,
			Start:  day,
			End:    day.AddDate(0, 0, 1),
			Size:   e.size,
		})
	}

	sortPartitions(res.Partitions)
	l.Logger.Debug("located daily partitions", "feeder", feeder, "from", start.Format(dateLayout),
		"to", end.Format(dateLayout), "count", len(res.Partitions))
	return res, nil
}

// reversed is the empty result of a range whose start is after its end
func reversed(start, end time.Time) *Result {
	return &Result{Warnings: []string{fmt.Sprintf("start date %s is after end date %s; no partitions selected",
		start.Format(dateLayout), end.Format(dateLayout))}}
}

// LocateCustomers returns the monthly customer partitions of a transformer whose month overlaps [start, end]
func (l *Locator) LocateCustomers(transformerID string, start, end time.Time) (*Result, error) {
	key, err := models.ParseTransformerID(transformerID)
	if err != nil {
		return nil, err
	}

	start, end = civilDate(start), civilDate(end)
	if start.After(end) {
		return reversed(start, end), nil
	}

	entries, res, err := l.list(key.Feeder)
	if err != nil || entries == nil {
		return res, err
	}

	// A month overlaps when its first day is on or before end and its last day on or after start
	rangeEnd := end.AddDate(0, 0, 1)
	for _, e := range entries {
		month, ok := parseMonthly(e.name, transformerID)
		if !ok {
			continue
		}
		p := Partition{
			Path:          filepath.Join(l.FeederDir(key.Feeder), e.name),
			Name:          e.name,
			Kind:          Monthly,
			Feeder:        key.Feeder,
			TransformerID: transformerID,
			Start:         month,
			End:           month.AddDate(0, 1, 0),
			Size:          e.size,
		}
		if !p.Overlaps(start, rangeEnd) {
			continue
		}
		res.Partitions = append(res.Partitions, p)
	}

	sortPartitions(res.Partitions)
	l.Logger.Debug("located monthly partitions", "transformer", transformerID, "feeder", key.Feeder,
		"from", start.Format(dateLayout), "to", end.Format(dateLayout), "count", len(res.Partitions))
	return res, nil
}

// AvailableDates returns the first and last dates that have a daily partition for the feeder
func (l *Locator) AvailableDates(feeder int) (first, last time.Time, ok bool, err error) {
	entries, _, err := l.list(feeder)
	if err != nil || entries == nil {
		return time.Time{}, time.Time{}, false, err
	}

	for _, e := range entries {
		day, valid := parseDaily(e.name)
		if !valid {
			continue
		}
		if !ok || day.Before(first) {
			first = day
		}
		if !ok || day.After(last) {
			last = day
		}
		ok = true
	}
	return first, last, ok, nil
}

type entry struct {
	name string
	size int64
}

// list checks the storage root and returns the regular files in the feeder directory.
// A nil slice with a nil error means the feeder has no directory, which is not a fault.
func (l *Locator) list(feeder int) ([]entry, *Result, error) {
	res := &Result{}

	if err := l.checkFeeder(feeder); err != nil {
		return nil, nil, err
	}

	info, err := os.Stat(l.BasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: base path %s: %v", ErrConfiguration, l.BasePath, err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("%w: base path %s is not a directory", ErrConfiguration, l.BasePath)
	}

	dir := l.FeederDir(feeder)
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			msg := fmt.Sprintf("feeder directory not found: %s", dir)
			l.Logger.Debug("feeder directory not found", "dir", dir)
			res.Warnings = append(res.Warnings, msg)
			return nil, res, nil
		}
		return nil, nil, fmt.Errorf("%w: reading %s: %v", ErrConfiguration, dir, err)
	}

	entries := make([]entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || !strings.EqualFold(filepath.Ext(de.Name()), extension) {
			continue
		}
		fi, err := de.Info()
		if err != nil {
			msg := fmt.Sprintf("skipping %s: %v", de.Name(), err)
			l.Logger.Debug("skipping unreadable partition", "file", de.Name(), "err", err)
			res.Warnings = append(res.Warnings, msg)
			continue
		}
		if !fi.Mode().IsRegular() {
			continue
		}
		entries = append(entries, entry{name: de.Name(), size: fi.Size()})
	}
	return entries, res, nil
}

func (l *Locator) checkFeeder(feeder int) error {
	if feeder < 1 {
		return fmt.Errorf("%w: invalid feeder %d", ErrConfiguration, feeder)
	}
	if len(l.Feeders) > 0 && !slices.Contains(l.Feeders, feeder) {
		return fmt.Errorf("%w: feeder %d is not configured (have %v)", ErrConfiguration, feeder, l.Feeders)
	}
	return nil
}

// parseDaily parses YYYY-MM-DD.parquet
func parseDaily(name string) (time.Time, bool) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if len(stem) != len(dateLayout) {
		return time.Time{}, false
	}
	day, err := time.Parse(dateLayout, stem)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

// parseMonthly parses <transformerID>_YYYY-MM.parquet for the given transformer
func parseMonthly(name, transformerID string) (time.Time, bool) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	prefix := transformerID + "_"
	if !strings.HasPrefix(stem, prefix) {
		return time.Time{}, false
	}
	ym := strings.TrimPrefix(stem, prefix)
	if len(ym) != len(monthLayout) {
		return time.Time{}, false
	}
	month, err := time.Parse(monthLayout, ym)
	if err != nil {
		return time.Time{}, false
	}
	return month, true
}

func sortPartitions(ps []Partition) {
	sort.SliceStable(ps, func(i, j int) bool {
		return ps[i].Start.Before(ps[j].Start)
	})
}

// civilDate drops the clock and location, keeping the calendar date in UTC
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
