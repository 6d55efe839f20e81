package models

import "time"

// ReadingKind distinguishes transformer partitions from customer partitions
type ReadingKind string

const (
	KindTransformer ReadingKind = "transformer"
	KindCustomer    ReadingKind = "customer"
)

// Reading is a single power measurement as read from a partition.
// Measurement fields are nil when the column is absent or null in storage.
type Reading struct {
	Timestamp     time.Time   `json:"timestamp"`     // Redistributed within the minute
	RawTimestamp  time.Time   `json:"raw_timestamp"` // As stored
	Kind          ReadingKind `json:"kind"`
	EntityID      string      `json:"entity_id"` // transformer_id or customer_id
	TransformerID string      `json:"transformer_id"`

	PowerKW     *float64 `json:"power_kw"`
	CurrentA    *float64 `json:"current_a"`
	VoltageV    *float64 `json:"voltage_v"`
	PowerFactor *float64 `json:"power_factor"`
	SizeKVA     *float64 `json:"size_kva,omitempty"`
	XCoordinate *float64 `json:"x_coordinate,omitempty"`
	YCoordinate *float64 `json:"y_coordinate,omitempty"`

	LoadingPercentage *float64  `json:"loading_percentage"`
	LoadRange         LoadRange `json:"load_range"`
}

// Float returns a pointer to v, for building readings in code and tests
func Float(v float64) *float64 {
	return &v
}
