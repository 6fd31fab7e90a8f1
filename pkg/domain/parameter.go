package domain

import (
	"encoding/json"
	"fmt"
)

// ParameterFamily names one stimulation quantity that may be expressed once
// for the whole target set (scalar column) or once per targeted ROI
// (per-ROI column, named "<family>_per_rois"). Required families must have
// exactly one representation; Exclusive families reject both representations
// at once. Frequency and pulse width historically carry neither constraint
// and that asymmetry is preserved.
type ParameterFamily struct {
	Name      string
	Plural    string
	Required  bool
	Exclusive bool
}

// PerROIsColumn returns the per-ROI column name for the family.
func (f ParameterFamily) PerROIsColumn() string { return f.Name + "_per_rois" }

// The parameter families of the stimulus event table.
var (
	FamilyPower      = ParameterFamily{Name: "power", Plural: "powers", Required: true, Exclusive: true}
	FamilyFrequency  = ParameterFamily{Name: "frequency", Plural: "frequencies"}
	FamilyPulseWidth = ParameterFamily{Name: "pulse_width", Plural: "pulse widths"}
)

// Families lists the parameter families in validation order.
var Families = []ParameterFamily{FamilyPower, FamilyFrequency, FamilyPulseWidth}

type parameterKind int

const (
	parameterUnset parameterKind = iota
	parameterScalar
	parameterArray
	parameterInvalid
)

// ParameterValue holds a candidate value for a scalar parameter column.
// Candidates arriving from untyped sources (JSON documents) may carry an
// array or a non-numeric value in a scalar column; the value preserves what
// was supplied so the validator can report the shape error instead of
// failing at decode time.
type ParameterValue struct {
	kind   parameterKind
	scalar float64
	array  []float64
}

// Scalar wraps a numeric value for a scalar parameter column.
func Scalar(v float64) ParameterValue {
	return ParameterValue{kind: parameterScalar, scalar: v}
}

// ArrayValue wraps a numeric sequence mistakenly supplied to a scalar column.
// It exists so ingestion layers can defer the shape error to the validator.
func ArrayValue(v []float64) ParameterValue {
	return ParameterValue{kind: parameterArray, array: append([]float64(nil), v...)}
}

// InvalidValue marks a non-numeric value supplied to a scalar column.
func InvalidValue() ParameterValue {
	return ParameterValue{kind: parameterInvalid}
}

// Defined reports whether any value was supplied.
func (v ParameterValue) Defined() bool { return v.kind != parameterUnset }

// IsScalar reports whether the value is a single number.
func (v ParameterValue) IsScalar() bool { return v.kind == parameterScalar }

// IsArray reports whether an array was supplied where a scalar was expected.
func (v ParameterValue) IsArray() bool { return v.kind == parameterArray }

// IsInvalid reports whether a non-numeric value was supplied.
func (v ParameterValue) IsInvalid() bool { return v.kind == parameterInvalid }

// Float returns the scalar value; ok is false unless IsScalar.
func (v ParameterValue) Float() (float64, bool) {
	if v.kind != parameterScalar {
		return 0, false
	}
	return v.scalar, true
}

// MarshalJSON encodes the supplied value as it arrived.
func (v ParameterValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case parameterScalar:
		return json.Marshal(v.scalar)
	case parameterArray:
		return json.Marshal(v.array)
	case parameterInvalid:
		return nil, fmt.Errorf("cannot marshal invalid parameter value")
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a number or an array of numbers. Any other JSON
// value is recorded as invalid rather than rejected, so the append engine
// can surface a typed shape error.
func (v *ParameterValue) UnmarshalJSON(data []byte) error {
	var scalar float64
	if err := json.Unmarshal(data, &scalar); err == nil {
		*v = Scalar(scalar)
		return nil
	}
	var array []float64
	if err := json.Unmarshal(data, &array); err == nil {
		*v = ParameterValue{kind: parameterArray, array: array}
		return nil
	}
	var null any
	if err := json.Unmarshal(data, &null); err == nil && null == nil {
		*v = ParameterValue{}
		return nil
	}
	*v = InvalidValue()
	return nil
}

// IntervalCandidate is a row candidate submitted to the append engine. The
// scalar columns are ParameterValue so that malformed shapes survive decoding
// and fail validation with the documented messages; the per-ROI columns are
// plain numeric sequences.
type IntervalCandidate struct {
	StartTime         float64        `json:"start_time"`
	StopTime          float64        `json:"stop_time"`
	Power             ParameterValue `json:"power,omitempty"`
	PowerPerROIs      []float64      `json:"power_per_rois,omitempty"`
	Frequency         ParameterValue `json:"frequency,omitempty"`
	FrequencyPerROIs  []float64      `json:"frequency_per_rois,omitempty"`
	PulseWidth        ParameterValue `json:"pulse_width,omitempty"`
	PulseWidthPerROIs []float64      `json:"pulse_width_per_rois,omitempty"`
	TargetsID         string         `json:"targets_id"`
	StimulusPatternID string         `json:"stimulus_pattern_id"`
	StimulusSiteID    string         `json:"stimulus_site_id"`
}

// familyValues returns the supplied scalar and per-ROI values for a family.
func (c IntervalCandidate) familyValues(family ParameterFamily) (ParameterValue, []float64) {
	switch family.Name {
	case FamilyPower.Name:
		return c.Power, c.PowerPerROIs
	case FamilyFrequency.Name:
		return c.Frequency, c.FrequencyPerROIs
	case FamilyPulseWidth.Name:
		return c.PulseWidth, c.PulseWidthPerROIs
	default:
		return ParameterValue{}, nil
	}
}

// Row materializes the committed interval for the candidate. It must only be
// called after validation has passed.
func (c IntervalCandidate) Row(rowID int64) StimulationInterval {
	row := StimulationInterval{
		RowID:             rowID,
		StartTime:         c.StartTime,
		StopTime:          c.StopTime,
		PowerPerROIs:      append([]float64(nil), c.PowerPerROIs...),
		FrequencyPerROIs:  append([]float64(nil), c.FrequencyPerROIs...),
		PulseWidthPerROIs: append([]float64(nil), c.PulseWidthPerROIs...),
		TargetsID:         c.TargetsID,
		StimulusPatternID: c.StimulusPatternID,
		StimulusSiteID:    c.StimulusSiteID,
	}
	if v, ok := c.Power.Float(); ok {
		row.Power = &v
	}
	if v, ok := c.Frequency.Float(); ok {
		row.Frequency = &v
	}
	if v, ok := c.PulseWidth.Float(); ok {
		row.PulseWidth = &v
	}
	return row
}
