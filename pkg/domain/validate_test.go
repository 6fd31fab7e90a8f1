package domain

import (
	"errors"
	"testing"
)

func testTargetSet(n int) TargetSet {
	rois := make([]int, n)
	for i := range rois {
		rois[i] = i
	}
	return TargetSet{
		Base:         Base{ID: "targets-1"},
		Name:         "Hologram",
		ROITableName: "TargetPlaneSegmentation",
		TargetedROIs: rois,
	}
}

func validCandidate() IntervalCandidate {
	return IntervalCandidate{
		StartTime:         0.0,
		StopTime:          1.0,
		Power:             Scalar(70.0),
		Frequency:         Scalar(20.0),
		PulseWidth:        Scalar(0.1),
		TargetsID:         "targets-1",
		StimulusPatternID: "pattern-1",
		StimulusSiteID:    "site-1",
	}
}

func TestValidateScalarParameters(t *testing.T) {
	if err := ValidateIntervalCandidate(validCandidate(), testTargetSet(10)); err != nil {
		t.Fatalf("expected valid candidate, got %v", err)
	}
}

func TestValidatePerROIsMatchingCardinality(t *testing.T) {
	candidate := validCandidate()
	candidate.Power = ParameterValue{}
	candidate.PowerPerROIs = []float64{1, 2, 3, 4, 5}
	if err := ValidateIntervalCandidate(candidate, testTargetSet(5)); err != nil {
		t.Fatalf("expected valid candidate, got %v", err)
	}
}

func TestValidateCardinalityMismatch(t *testing.T) {
	candidate := validCandidate()
	candidate.Power = ParameterValue{}
	candidate.PowerPerROIs = make([]float64, 12)
	err := ValidateIntervalCandidate(candidate, testTargetSet(10))
	var mismatch CardinalityMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected CardinalityMismatchError, got %v", err)
	}
	if mismatch.Elements != 12 || mismatch.Expected != 10 {
		t.Fatalf("unexpected counts: %+v", mismatch)
	}
	want := "'power_per_rois' has 12 elements but it must have 10 elements as 'targeted_roi'."
	if err.Error() != want {
		t.Fatalf("message mismatch:\n got %q\nwant %q", err.Error(), want)
	}
}

func TestValidateConflictingPowerRepresentations(t *testing.T) {
	candidate := validCandidate()
	candidate.Power = Scalar(50e-3)
	candidate.PowerPerROIs = []float64{1, 2, 3, 4, 5}
	err := ValidateIntervalCandidate(candidate, testTargetSet(5))
	var conflict ConflictingParameterRepresentationError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictingParameterRepresentationError, got %v", err)
	}
	want := "Both 'power' and 'power_per_rois' has been defined. Only one of them must be defined"
	if err.Error() != want {
		t.Fatalf("message mismatch:\n got %q\nwant %q", err.Error(), want)
	}
}

func TestValidateMissingPower(t *testing.T) {
	candidate := validCandidate()
	candidate.Power = ParameterValue{}
	err := ValidateIntervalCandidate(candidate, testTargetSet(5))
	var missing MissingRequiredParameterError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingRequiredParameterError, got %v", err)
	}
	want := "Nor 'power' or 'power_per_rois' has been defined. At least one of the two must be defined"
	if err.Error() != want {
		t.Fatalf("message mismatch:\n got %q\nwant %q", err.Error(), want)
	}
}

func TestValidatePowerSuppliedAsArray(t *testing.T) {
	candidate := validCandidate()
	candidate.Power = ArrayValue([]float64{1, 2, 3})
	err := ValidateIntervalCandidate(candidate, testTargetSet(3))
	var shape InvalidShapeError
	if !errors.As(err, &shape) {
		t.Fatalf("expected InvalidShapeError, got %v", err)
	}
	want := "'power' should be defined as scalar. Use 'power_per_rois' to store photostimulation at different powers, for each rois in target."
	if err.Error() != want {
		t.Fatalf("message mismatch:\n got %q\nwant %q", err.Error(), want)
	}
}

func TestValidateShapePrecedesPresence(t *testing.T) {
	// An array in the scalar power column plus a per-ROI array would also be
	// a representation conflict; the shape error must win.
	candidate := validCandidate()
	candidate.Power = ArrayValue([]float64{1, 2, 3})
	candidate.PowerPerROIs = []float64{1, 2, 3}
	err := ValidateIntervalCandidate(candidate, testTargetSet(3))
	var shape InvalidShapeError
	if !errors.As(err, &shape) {
		t.Fatalf("expected InvalidShapeError, got %v", err)
	}
}

func TestValidatePresencePrecedesCardinality(t *testing.T) {
	candidate := validCandidate()
	candidate.PowerPerROIs = make([]float64, 3) // wrong length and conflicting
	err := ValidateIntervalCandidate(candidate, testTargetSet(5))
	var conflict ConflictingParameterRepresentationError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected presence error before cardinality, got %v", err)
	}
}

func TestValidateOptionalFamiliesCarryNoPresenceRule(t *testing.T) {
	// Frequency and pulse width historically allow both representations at
	// once; only cardinality is checked for their array forms.
	candidate := validCandidate()
	candidate.Frequency = Scalar(20.0)
	candidate.FrequencyPerROIs = []float64{1, 2, 3, 4, 5}
	candidate.PulseWidth = ParameterValue{}
	if err := ValidateIntervalCandidate(candidate, testTargetSet(5)); err != nil {
		t.Fatalf("expected optional family duplication to pass, got %v", err)
	}

	candidate.FrequencyPerROIs = []float64{1, 2}
	err := ValidateIntervalCandidate(candidate, testTargetSet(5))
	var mismatch CardinalityMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected cardinality error for frequency_per_rois, got %v", err)
	}
	if mismatch.Family.Name != "frequency" {
		t.Fatalf("expected frequency family, got %s", mismatch.Family.Name)
	}
	want := "'frequency_per_rois' has 2 elements but it must have 5 elements as 'targeted_roi'."
	if err.Error() != want {
		t.Fatalf("message mismatch:\n got %q\nwant %q", err.Error(), want)
	}
}

func TestValidateTimeBounds(t *testing.T) {
	candidate := validCandidate()
	candidate.StartTime = 2.0
	candidate.StopTime = 1.0
	err := ValidateIntervalCandidate(candidate, testTargetSet(5))
	var shape InvalidShapeError
	if !errors.As(err, &shape) {
		t.Fatalf("expected InvalidShapeError, got %v", err)
	}
	if shape.Column != "stop_time" {
		t.Fatalf("expected stop_time column, got %s", shape.Column)
	}
}

func TestValidateRequiredReferences(t *testing.T) {
	for _, tc := range []struct {
		column string
		mutate func(*IntervalCandidate)
	}{
		{"targets", func(c *IntervalCandidate) { c.TargetsID = "" }},
		{"stimulus_pattern", func(c *IntervalCandidate) { c.StimulusPatternID = "" }},
		{"stimulus_site", func(c *IntervalCandidate) { c.StimulusSiteID = "" }},
	} {
		candidate := validCandidate()
		tc.mutate(&candidate)
		err := ValidateIntervalCandidate(candidate, testTargetSet(5))
		var shape InvalidShapeError
		if !errors.As(err, &shape) {
			t.Fatalf("%s: expected InvalidShapeError, got %v", tc.column, err)
		}
		if shape.Column != tc.column {
			t.Fatalf("expected column %s, got %s", tc.column, shape.Column)
		}
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	candidate := validCandidate()
	candidate.Power = ParameterValue{}
	candidate.PowerPerROIs = make([]float64, 12)
	targets := testTargetSet(10)
	first := ValidateIntervalCandidate(candidate, targets)
	second := ValidateIntervalCandidate(candidate, targets)
	if first == nil || second == nil {
		t.Fatalf("expected both runs to fail")
	}
	if first.Error() != second.Error() {
		t.Fatalf("validation not idempotent: %q vs %q", first.Error(), second.Error())
	}
}
