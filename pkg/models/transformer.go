package models

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrInvalidTransformerID is returned when an ID does not follow S<sector>F<feeder>ATF<nnn>
var ErrInvalidTransformerID = errors.New("invalid transformer id")

var transformerIDPattern = regexp.MustCompile(`^S(\d+)F(\d+)ATF(\d{3})$`)

// TransformerKey is the parsed form of a transformer ID such as S1F1ATF001
type TransformerKey struct {
	ID     string
	Sector int
	Feeder int
	Unit   int
}

// ParseTransformerID splits a transformer ID into its sector, feeder and unit number
func ParseTransformerID(id string) (TransformerKey, error) {
	m := transformerIDPattern.FindStringSubmatch(id)
	if m == nil {
		return TransformerKey{}, fmt.Errorf("%w: %q", ErrInvalidTransformerID, id)
	}

	sector, _ := strconv.Atoi(m[1])
	feeder, _ := strconv.Atoi(m[2])
	unit, _ := strconv.Atoi(m[3])

	return TransformerKey{ID: id, Sector: sector, Feeder: feeder, Unit: unit}, nil
}

// FeederLabel formats a feeder number the way the dashboard displays it
func FeederLabel(feeder int) string {
	return fmt.Sprintf("Feeder %d", feeder)
}
