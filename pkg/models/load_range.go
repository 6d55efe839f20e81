package models

// LoadRange is the status tier derived from a loading percentage
type LoadRange string

const (
	LoadCritical   LoadRange = "Critical"
	LoadOverloaded LoadRange = "Overloaded"
	LoadWarning    LoadRange = "Warning"
	LoadPreWarning LoadRange = "Pre-Warning"
	LoadNormal     LoadRange = "Normal"
	LoadUnknown    LoadRange = "Unknown"
)

// Severity orders tiers from Unknown (0) to Critical (5)
func (l LoadRange) Severity() int {
	switch l {
	case LoadCritical:
		return 5
	case LoadOverloaded:
		return 4
	case LoadWarning:
		return 3
	case LoadPreWarning:
		return 2
	case LoadNormal:
		return 1
	default:
		return 0
	}
}

// Notifies reports whether a reading in this tier is alert-worthy
func (l LoadRange) Notifies() bool {
	switch l {
	case LoadCritical, LoadOverloaded, LoadWarning:
		return true
	}
	return false
}

// Color returns the display colour used by the dashboard for this tier
func (l LoadRange) Color() string {
	switch l {
	case LoadCritical:
		return "#ff0000"
	case LoadOverloaded:
		return "#ffa500"
	case LoadWarning:
		return "#ffd700"
	case LoadPreWarning:
		return "#9370db"
	case LoadNormal:
		return "#32cd32"
	default:
		return "#808080"
	}
}
