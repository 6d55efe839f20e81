// Package alert decides whether an hour of classified readings warrants notifying an operator.
package alert

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jgoulah/gridload/pkg/models"
)

// Decision is the outcome of evaluating one hour
type Decision struct {
	Status       models.LoadRange
	Reading      *models.Reading // worst reading in the hour, nil when none had a loading value
	ShouldNotify bool
	Hour         int
	Considered   int // readings that fell in the hour
}

// Evaluate picks the reading with the highest loading in the given hour of day.
// Readings are matched on their redistributed timestamp in UTC. The first reading
// wins a tie. Evaluation keeps no state, so the same input always gives the same decision.
func Evaluate(readings []models.Reading, hour int) Decision {
	d := Decision{Status: models.LoadUnknown, Hour: hour}

	var worst *models.Reading
	for i := range readings {
		r := &readings[i]
		if r.Timestamp.UTC().Hour() != hour {
			continue
		}
		d.Considered++
		if r.LoadingPercentage == nil {
			continue
		}
		if worst == nil || *r.LoadingPercentage > *worst.LoadingPercentage {
			worst = r
		}
	}
	if worst == nil {
		return d
	}

	picked := *worst
	d.Reading = &picked
	d.Status = picked.LoadRange
	d.ShouldNotify = d.Status.Notifies()
	return d
}

// DeepLink builds a dashboard URL that opens the alert view for the decision
func DeepLink(baseURL string, d Decision, transformerID string, date time.Time) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("view", "alert")
	q.Set("transformer", transformerID)
	if key, err := models.ParseTransformerID(transformerID); err == nil {
		q.Set("feeder", models.FeederLabel(key.Feeder))
	}
	q.Set("date", date.Format("2006-01-02"))
	q.Set("hour", strconv.Itoa(d.Hour))
	if d.Reading != nil {
		q.Set("alert_time", d.Reading.Timestamp.UTC().Format(time.RFC3339))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// NewEvent turns a decision into an outbound notification
func NewEvent(d Decision, transformerID string, date time.Time, link string) models.AlertEvent {
	ev := models.AlertEvent{
		ID:            uuid.NewString(),
		TransformerID: transformerID,
		Status:        d.Status,
		Color:         d.Status.Color(),
		Date:          date.Format("2006-01-02"),
		Hour:          d.Hour,
		Link:          link,
		GeneratedAt:   time.Now().UTC(),
	}
	if key, err := models.ParseTransformerID(transformerID); err == nil {
		ev.Feeder = models.FeederLabel(key.Feeder)
	}
	if d.Reading != nil {
		ev.LoadingPercentage = *d.Reading.LoadingPercentage
		ev.PowerKW = d.Reading.PowerKW
		ev.SizeKVA = d.Reading.SizeKVA
		ev.ReadingTime = d.Reading.Timestamp
	}
	return ev
}
