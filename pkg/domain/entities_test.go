package domain

import (
	"encoding/json"
	"testing"
)

func TestStimulusPatternValidate(t *testing.T) {
	spiral := StimulusPattern{
		Name:           "SpiralScanning",
		Kind:           PatternSpiralScanning,
		SpiralScanning: &SpiralScanningPattern{Diameter: 15e-6, Height: 10e-6, NumberOfRevolutions: 5},
	}
	if err := spiral.Validate(); err != nil {
		t.Fatalf("expected valid spiral pattern, got %v", err)
	}

	none := StimulusPattern{Name: "empty", Kind: PatternGeneric2D}
	if err := none.Validate(); err == nil {
		t.Fatalf("expected error for pattern with no variant")
	}

	mismatched := StimulusPattern{
		Name:             "mismatch",
		Kind:             PatternGeneric2D,
		TemporalFocusing: &TemporalFocusingPattern{LateralPSF: "9e-6 m ± 0.7e-6 m"},
	}
	if err := mismatched.Validate(); err == nil {
		t.Fatalf("expected error for variant not matching kind")
	}

	both := StimulusPattern{
		Name:      "double",
		Kind:      PatternGeneric2D,
		Generic2D: &SweepPattern{SweepSize: []float64{5}},
		Generic3D: &SweepPattern{SweepSize: []float64{5, 5, 2}},
	}
	if err := both.Validate(); err == nil {
		t.Fatalf("expected error for two populated variants")
	}
}

func TestStimulusPatternSweep(t *testing.T) {
	p := StimulusPattern{Kind: PatternGeneric3D, Generic3D: &SweepPattern{SweepSize: []float64{5, 5, 2}}}
	if p.Sweep() == nil {
		t.Fatalf("expected sweep variant for generic 3D pattern")
	}
	spiral := StimulusPattern{Kind: PatternSpiralScanning, SpiralScanning: &SpiralScanningPattern{}}
	if spiral.Sweep() != nil {
		t.Fatalf("expected nil sweep for spiral pattern")
	}
}

func TestTargetSetCardinality(t *testing.T) {
	set := TargetSet{TargetedROIs: []int{0, 1, 2, 3}}
	if set.Cardinality() != 4 {
		t.Fatalf("expected cardinality 4, got %d", set.Cardinality())
	}
	if (TargetSet{}).Cardinality() != 0 {
		t.Fatalf("expected empty set cardinality 0")
	}
}

func TestStimulationIntervalJSONRoundtrip(t *testing.T) {
	power := 70.0
	row := StimulationInterval{
		RowID:            3,
		StartTime:        0.0,
		StopTime:         1.0,
		Power:            &power,
		FrequencyPerROIs: []float64{7, 8, 9},
		TargetsID:        "targets-1",
	}
	data, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded StimulationInterval
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.RowID != 3 || decoded.Power == nil || *decoded.Power != 70.0 {
		t.Fatalf("roundtrip mismatch: %+v", decoded)
	}
	if len(decoded.FrequencyPerROIs) != 3 {
		t.Fatalf("per-ROI frequency lost: %+v", decoded)
	}
}
