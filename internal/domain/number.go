package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number is the result of parsing a KMA measurement. Valid is false when the
// input was blank or not numeric.
type Number struct {
	Value float64
	Valid bool
}

// ParseNumber parses s as a float64.
func ParseNumber(s string) Number {
	s = strings.TrimSpace(s)
	if s == "" {
		return Number{}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return Number{}
	}
	return Number{Value: v, Valid: true}
}

// String formats a valid number in its shortest form and returns "" otherwise.
func (n Number) String() string {
	if !n.Valid {
		return ""
	}
	return strconv.FormatFloat(n.Value, 'f', -1, 64)
}

// MarshalJSON encodes an invalid number as an empty string, matching the
// empty cell written to the sheet.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte(`""`), nil
	}
	return json.Marshal(n.Value)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (n *Number) UnmarshalJSON(data []byte) error {
	var f Field
	if err := f.UnmarshalJSON(data); err != nil {
		return err
	}
	*n = ParseNumber(string(f))
	return nil
}

// roundTo1 rounds half away from zero to one decimal place.
func roundTo1(v float64) float64 {
	return math.Round(v*10) / 10
}
