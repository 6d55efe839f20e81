package alert

import (
	"net/url"
	"testing"
	"time"

	"github.com/jgoulah/gridload/internal/loading"
	"github.com/jgoulah/gridload/pkg/models"
)

func reading(at time.Time, pct *float64) models.Reading {
	return models.Reading{
		Timestamp:         at,
		RawTimestamp:      at,
		Kind:              models.KindTransformer,
		EntityID:          "S1F2ATF003",
		TransformerID:     "S1F2ATF003",
		LoadingPercentage: pct,
		LoadRange:         loading.Classify(pct),
	}
}

func at(hour, minute int) time.Time {
	return time.Date(2024, 1, 15, hour, minute, 0, 0, time.UTC)
}

func TestEvaluatePicksWorstReading(t *testing.T) {
	readings := []models.Reading{
		reading(at(14, 10), models.Float(45)),
		reading(at(14, 20), models.Float(82)),
		reading(at(14, 30), models.Float(121)),
		reading(at(15, 0), models.Float(200)), // other hour
	}

	d := Evaluate(readings, 14)
	if d.Status != models.LoadCritical || !d.ShouldNotify {
		t.Fatalf("expected Critical with notify, got %s notify=%v", d.Status, d.ShouldNotify)
	}
	if d.Reading == nil || *d.Reading.LoadingPercentage != 121 {
		t.Fatalf("expected the 121%% reading, got %+v", d.Reading)
	}
	if d.Considered != 3 {
		t.Fatalf("expected 3 readings considered, got %d", d.Considered)
	}
}

func TestEvaluateNormalHourDoesNotNotify(t *testing.T) {
	d := Evaluate([]models.Reading{
		reading(at(9, 0), models.Float(30)),
		reading(at(9, 30), models.Float(45)),
	}, 9)
	if d.Status != models.LoadNormal || d.ShouldNotify {
		t.Fatalf("expected Normal without notify, got %s notify=%v", d.Status, d.ShouldNotify)
	}
}

func TestEvaluatePreWarningDoesNotNotify(t *testing.T) {
	d := Evaluate([]models.Reading{reading(at(9, 0), models.Float(79.9))}, 9)
	if d.Status != models.LoadPreWarning || d.ShouldNotify {
		t.Fatalf("expected Pre-Warning without notify, got %s notify=%v", d.Status, d.ShouldNotify)
	}
}

func TestEvaluateEmptyHour(t *testing.T) {
	d := Evaluate([]models.Reading{reading(at(9, 0), models.Float(130))}, 10)
	if d.Status != models.LoadUnknown || d.ShouldNotify || d.Reading != nil || d.Considered != 0 {
		t.Fatalf("expected Unknown for an empty hour, got %+v", d)
	}

	d = Evaluate(nil, 0)
	if d.Status != models.LoadUnknown || d.ShouldNotify {
		t.Fatalf("expected Unknown for no readings, got %+v", d)
	}
}

func TestEvaluateAllNullLoading(t *testing.T) {
	d := Evaluate([]models.Reading{
		reading(at(9, 0), nil),
		reading(at(9, 30), nil),
	}, 9)
	if d.Status != models.LoadUnknown || d.ShouldNotify || d.Reading != nil {
		t.Fatalf("expected Unknown for all-null loading, got %+v", d)
	}
	if d.Considered != 2 {
		t.Fatalf("expected 2 readings considered, got %d", d.Considered)
	}
}

func TestEvaluateSkipsNullAmongValues(t *testing.T) {
	d := Evaluate([]models.Reading{
		reading(at(9, 0), nil),
		reading(at(9, 30), models.Float(101)),
	}, 9)
	if d.Status != models.LoadOverloaded || !d.ShouldNotify {
		t.Fatalf("expected Overloaded, got %+v", d)
	}
}

func TestEvaluateTieKeepsFirst(t *testing.T) {
	first := reading(at(9, 10), models.Float(90))
	second := reading(at(9, 40), models.Float(90))
	second.EntityID = "S1F2ATF004"

	d := Evaluate([]models.Reading{first, second}, 9)
	if d.Reading == nil || d.Reading.EntityID != "S1F2ATF003" {
		t.Fatalf("expected the first reading to win the tie, got %+v", d.Reading)
	}
}

func TestEvaluateDoesNotAliasInput(t *testing.T) {
	readings := []models.Reading{reading(at(9, 0), models.Float(90))}
	d := Evaluate(readings, 9)
	readings[0].EntityID = "changed"
	if d.Reading.EntityID == "changed" {
		t.Fatalf("decision must not alias the input slice")
	}
}

func TestDeepLink(t *testing.T) {
	d := Evaluate([]models.Reading{reading(at(14, 20), models.Float(121))}, 14)

	link, err := DeepLink("http://localhost:8501/", d, "S1F2ATF003", at(0, 0))
	if err != nil {
		t.Fatalf("building link: %v", err)
	}
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parsing link: %v", err)
	}
	if u.Host != "localhost:8501" {
		t.Fatalf("unexpected host %q", u.Host)
	}

	q := u.Query()
	want := map[string]string{
		"view":        "alert",
		"transformer": "S1F2ATF003",
		"feeder":      "Feeder 2",
		"date":        "2024-01-15",
		"hour":        "14",
		"alert_time":  "2024-01-15T14:20:00Z",
	}
	for k, v := range want {
		if got := q.Get(k); got != v {
			t.Fatalf("param %s: got %q want %q", k, got, v)
		}
	}
}

func TestDeepLinkWithoutReading(t *testing.T) {
	d := Evaluate(nil, 3)
	link, err := DeepLink("http://localhost:8501", d, "S1F2ATF003", at(0, 0))
	if err != nil {
		t.Fatalf("building link: %v", err)
	}
	u, _ := url.Parse(link)
	if u.Query().Has("alert_time") {
		t.Fatalf("alert_time should be omitted without a reading: %s", link)
	}
}

func TestNewEvent(t *testing.T) {
	r := reading(at(14, 20), models.Float(121))
	r.PowerKW = models.Float(72.6)
	r.SizeKVA = models.Float(75)
	d := Evaluate([]models.Reading{r}, 14)

	ev := NewEvent(d, "S1F2ATF003", at(0, 0), "http://example")
	if ev.ID == "" {
		t.Fatalf("event should have an id")
	}
	if ev.Feeder != "Feeder 2" || ev.Status != models.LoadCritical || ev.Color != models.LoadCritical.Color() {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.LoadingPercentage != 121 || *ev.PowerKW != 72.6 || *ev.SizeKVA != 75 {
		t.Fatalf("unexpected measurements: %+v", ev)
	}
	if ev.Date != "2024-01-15" || ev.Hour != 14 || !ev.ReadingTime.Equal(at(14, 20)) {
		t.Fatalf("unexpected timing: %+v", ev)
	}

	other := NewEvent(d, "S1F2ATF003", at(0, 0), "")
	if other.ID == ev.ID {
		t.Fatalf("event ids should be unique")
	}
}
