package models

import "time"

// AlertEvent is the payload handed to notification channels when an hour is alert-worthy
type AlertEvent struct {
	ID                string    `json:"id"`
	TransformerID     string    `json:"transformer_id"`
	Feeder            string    `json:"feeder"`
	Status            LoadRange `json:"status"`
	Color             string    `json:"color"`
	LoadingPercentage float64   `json:"loading_percentage"`
	PowerKW           *float64  `json:"power_kw,omitempty"`
	SizeKVA           *float64  `json:"size_kva,omitempty"`
	ReadingTime       time.Time `json:"reading_time"`
	Date              string    `json:"date"` // YYYY-MM-DD
	Hour              int       `json:"hour"`
	Link              string    `json:"link,omitempty"`
	GeneratedAt       time.Time `json:"generated_at"`
}
