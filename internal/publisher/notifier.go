// Package publisher delivers alert events to operators over MQTT and Kafka.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jgoulah/gridload/pkg/models"
)

// Notifier sends alert events somewhere
type Notifier interface {
	Notify(ctx context.Context, event models.AlertEvent) error
	Close() error
}

// Multi fans an event out to several notifiers
type Multi []Notifier

// Notify sends the event to every notifier and joins their errors
func (m Multi) Notify(ctx context.Context, event models.AlertEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every notifier
func (m Multi) Close() error {
	var errs []error
	for _, n := range m {
		if err := n.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func encode(event models.AlertEvent) ([]byte, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encoding alert event: %w", err)
	}
	return body, nil
}
