// Package storage reads transformer and customer partitions stored as Parquet.
package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/common"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/jgoulah/gridload/internal/partition"
	"github.com/jgoulah/gridload/pkg/models"
)

// ErrMissingColumn is returned when a partition lacks a required column
var ErrMissingColumn = errors.New("missing required column")

// Column names shared by both schemas
const (
	colTimestamp     = "timestamp"
	colTransformerID = "transformer_id"
	colCustomerID    = "customer_id"
	colPowerKW       = "power_kw"
	colCurrentA      = "current_a"
	colVoltageV      = "voltage_v"
	colPowerFactor   = "power_factor"
	colSizeKVA       = "size_kva"
	colX             = "x_coordinate"
	colY             = "y_coordinate"
)

// TransformerRow is the layout of a daily feeder partition
type TransformerRow struct {
	Timestamp     int64    `parquet:"name=timestamp, type=INT64, convertedtype=TIMESTAMP_MICROS"`
	TransformerID string   `parquet:"name=transformer_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	SizeKVA       *float64 `parquet:"name=size_kva, type=DOUBLE, repetitiontype=OPTIONAL"`
	PowerKW       *float64 `parquet:"name=power_kw, type=DOUBLE, repetitiontype=OPTIONAL"`
	CurrentA      *float64 `parquet:"name=current_a, type=DOUBLE, repetitiontype=OPTIONAL"`
	VoltageV      *float64 `parquet:"name=voltage_v, type=DOUBLE, repetitiontype=OPTIONAL"`
	PowerFactor   *float64 `parquet:"name=power_factor, type=DOUBLE, repetitiontype=OPTIONAL"`
	XCoordinate   *float64 `parquet:"name=x_coordinate, type=DOUBLE, repetitiontype=OPTIONAL"`
	YCoordinate   *float64 `parquet:"name=y_coordinate, type=DOUBLE, repetitiontype=OPTIONAL"`
}

// CustomerRow is the layout of a monthly customer partition
type CustomerRow struct {
	Timestamp   int64    `parquet:"name=timestamp, type=INT64, convertedtype=TIMESTAMP_MICROS"`
	CustomerID  string   `parquet:"name=customer_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	PowerKW     *float64 `parquet:"name=power_kw, type=DOUBLE, repetitiontype=OPTIONAL"`
	CurrentA    *float64 `parquet:"name=current_a, type=DOUBLE, repetitiontype=OPTIONAL"`
	VoltageV    *float64 `parquet:"name=voltage_v, type=DOUBLE, repetitiontype=OPTIONAL"`
	PowerFactor *float64 `parquet:"name=power_factor, type=DOUBLE, repetitiontype=OPTIONAL"`
	XCoordinate *float64 `parquet:"name=x_coordinate, type=DOUBLE, repetitiontype=OPTIONAL"`
	YCoordinate *float64 `parquet:"name=y_coordinate, type=DOUBLE, repetitiontype=OPTIONAL"`
}

// ParquetSource reads one partition file into readings
type ParquetSource struct {
	Path          string
	Kind          models.ReadingKind
	TransformerID string // customer partitions carry it in the file name
	DefaultUnit   string // used when the footer does not say how timestamps are encoded
}

// Open maps a located partition onto a source
func Open(p partition.Partition, defaultUnit string) *ParquetSource {
	src := &ParquetSource{Path: p.Path, Kind: models.KindTransformer, DefaultUnit: defaultUnit}
	if p.Kind == partition.Monthly {
		src.Kind = models.KindCustomer
		src.TransformerID = p.TransformerID
	}
	return src
}

// Name returns the file name of the partition
func (s *ParquetSource) Name() string {
	return filepath.Base(s.Path)
}

// ReadRows reads every row of the partition
func (s *ParquetSource) ReadRows() ([]models.Reading, error) {
	t, err := readTable(s.Path, s.DefaultUnit)
	if err != nil {
		return nil, err
	}

	idCol := colTransformerID
	if s.Kind == models.KindCustomer {
		idCol = colCustomerID
	}
	if !t.has(colTimestamp) {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, colTimestamp)
	}
	if !t.has(idCol) {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, idCol)
	}

	rows := make([]models.Reading, 0, t.rows)
	for i := 0; i < t.rows; i++ {
		ts, ok := t.time(colTimestamp, i)
		if !ok {
			continue
		}
		id := t.str(idCol, i)

		r := models.Reading{
			Timestamp:    ts,
			RawTimestamp: ts,
			Kind:         s.Kind,
			EntityID:     id,
			PowerKW:      t.float(colPowerKW, i),
			CurrentA:     t.float(colCurrentA, i),
			VoltageV:     t.float(colVoltageV, i),
			PowerFactor:  t.float(colPowerFactor, i),
			SizeKVA:      t.float(colSizeKVA, i),
			XCoordinate:  t.float(colX, i),
			YCoordinate:  t.float(colY, i),
		}
		if s.Kind == models.KindCustomer {
			r.TransformerID = s.TransformerID
		} else {
			r.TransformerID = id
		}
		rows = append(rows, r)
	}
	return rows, nil
}

// TransformerIDs returns the distinct transformer IDs in a daily partition, sorted
func TransformerIDs(path string) ([]string, error) {
	t, err := readTable(path, "")
	if err != nil {
		return nil, err
	}
	if !t.has(colTransformerID) {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, colTransformerID)
	}

	seen := make(map[string]bool)
	var ids []string
	for i := 0; i < t.rows; i++ {
		id := t.str(colTransformerID, i)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// WriteTransformers writes a daily partition
func WriteTransformers(path string, rows []TransformerRow) error {
	return write(path, new(TransformerRow), func(w *writer.ParquetWriter) error {
		for _, r := range rows {
			if err := w.Write(r); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteCustomers writes a monthly customer partition
func WriteCustomers(path string, rows []CustomerRow) error {
	return write(path, new(CustomerRow), func(w *writer.ParquetWriter) error {
		for _, r := range rows {
			if err := w.Write(r); err != nil {
				return err
			}
		}
		return nil
	})
}

// Micros converts a time to the INT64 encoding used by TransformerRow and CustomerRow
func Micros(t time.Time) int64 {
	return t.UnixMicro()
}

func write(path string, schema interface{}, fill func(*writer.ParquetWriter) error) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, schema, 1)
	if err != nil {
		return fmt.Errorf("creating parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	if err := fill(pw); err != nil {
		return fmt.Errorf("writing rows: %w", err)
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finishing %s: %w", path, err)
	}
	return nil
}

// table holds the columns of one file keyed by column name
type table struct {
	rows    int
	unit    string
	columns map[string][]interface{}
}

func (t *table) has(col string) bool {
	_, ok := t.columns[col]
	return ok
}

func (t *table) value(col string, i int) interface{} {
	vals, ok := t.columns[col]
	if !ok || i >= len(vals) {
		return nil
	}
	return vals[i]
}

func (t *table) float(col string, i int) *float64 {
	switch v := t.value(col, i).(type) {
	case float64:
		return models.Float(v)
	case float32:
		return models.Float(float64(v))
	case int64:
		return models.Float(float64(v))
	case int32:
		return models.Float(float64(v))
	}
	return nil
}

func (t *table) str(col string, i int) string {
	switch v := t.value(col, i).(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return ""
}

func (t *table) time(col string, i int) (time.Time, bool) {
	switch v := t.value(col, i).(type) {
	case int64:
		return fromUnit(v, t.unit), true
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
			if ts, err := time.Parse(layout, v); err == nil {
				return ts.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

func fromUnit(v int64, unit string) time.Time {
	switch unit {
	case "ms":
		return time.UnixMilli(v).UTC()
	case "ns":
		return time.Unix(0, v).UTC()
	default:
		return time.UnixMicro(v).UTC()
	}
}

type column struct {
	name string
	el   *parquet.SchemaElement
}

// readTable loads every known column present in the file
func readTable(path, defaultUnit string) (*table, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, nil, 1)
	if err != nil {
		return nil, fmt.Errorf("reading footer of %s: %w", path, err)
	}
	defer pr.ReadStop()

	t := &table{
		rows:    int(pr.GetNumRows()),
		columns: make(map[string][]interface{}),
	}

	// Leaf columns keyed by their lowercased name as written in the file
	sh := pr.SchemaHandler
	present := make(map[string]column)
	for i := 1; i < len(sh.SchemaElements) && i < len(sh.Infos); i++ {
		el := sh.SchemaElements[i]
		if el.GetNumChildren() > 0 {
			continue
		}
		present[strings.ToLower(sh.Infos[i].ExName)] = column{name: sh.Infos[i].ExName, el: el}
	}

	t.unit = strings.ToLower(defaultUnit)
	if c, ok := present[colTimestamp]; ok {
		if unit := timestampUnit(c.el); unit != "" {
			t.unit = unit
		}
	}

	if t.rows == 0 {
		for col := range present {
			t.columns[col] = nil
		}
		return t, nil
	}

	root := sh.Infos[0].ExName
	for _, col := range []string{
		colTimestamp, colTransformerID, colCustomerID, colPowerKW, colCurrentA,
		colVoltageV, colPowerFactor, colSizeKVA, colX, colY,
	} {
		c, ok := present[col]
		if !ok {
			continue
		}
		vals, _, _, err := pr.ReadColumnByPath(common.ReformPathStr(root+"."+c.name), int64(t.rows))
		if err != nil {
			return nil, fmt.Errorf("reading column %s of %s: %w", col, path, err)
		}
		t.columns[col] = vals
	}
	return t, nil
}

// timestampUnit reads the unit of an INT64 timestamp column from its schema annotations
func timestampUnit(el *parquet.SchemaElement) string {
	if lt := el.GetLogicalType(); lt != nil && lt.IsSetTIMESTAMP() {
		u := lt.GetTIMESTAMP().GetUnit()
		switch {
		case u.IsSetMILLIS():
			return "ms"
		case u.IsSetMICROS():
			return "us"
		case u.IsSetNANOS():
			return "ns"
		}
	}
	if el.IsSetConvertedType() {
		switch el.GetConvertedType() {
		case parquet.ConvertedType_TIMESTAMP_MILLIS:
			return "ms"
		case parquet.ConvertedType_TIMESTAMP_MICROS:
			return "us"
		}
	}
	return ""
}
