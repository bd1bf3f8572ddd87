// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"bytes"
	"math"
	"strconv"
	"strings"
)

// OptionalFloat is a numeric field that may be absent. Extraction output is
// messy: a value can arrive as a JSON number, a numeric string, null, an
// empty string, or the literals "nan"/"none". Everything that does not parse
// to a finite number decodes as absent rather than failing the document.
// Per prd007-analysis R1.3.
type OptionalFloat struct {
	Value float64
	Valid bool
}

// Some returns a present OptionalFloat. A non-finite v yields an absent one.
func Some(v float64) OptionalFloat {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return OptionalFloat{}
	}
	return OptionalFloat{Value: v, Valid: true}
}

// Float64 returns the value, or NaN when absent. Arithmetic downstream
// relies on NaN propagation to turn any missing input into a missing result.
func (o OptionalFloat) Float64() float64 {
	if !o.Valid {
		return math.NaN()
	}
	return o.Value
}

// UnmarshalJSON accepts numbers, numeric strings, and null.
func (o *OptionalFloat) UnmarshalJSON(data []byte) error {
	*o = OptionalFloat{}

	s := string(bytes.TrimSpace(data))
	if s == "null" {
		return nil
	}

	if strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) && len(s) >= 2 {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if s == "" {
		return nil
	}
	switch strings.ToLower(s) {
	case "nan", "none":
		return nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}

	o.Value = v
	o.Valid = true
	return nil
}

// MarshalJSON emits the number, or null when absent.
func (o OptionalFloat) MarshalJSON() ([]byte, error) {
	if !o.Valid || math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(o.Value, 'g', -1, 64)), nil
}
