// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by ogencore.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityLightSource identifies a light source device record.
	EntityLightSource EntityType = "light_source"
	// EntitySpatialLightModulator identifies a spatial light modulator device record.
	EntitySpatialLightModulator EntityType = "spatial_light_modulator"
	// EntityStimulusSite identifies a patterned stimulus site record.
	EntityStimulusSite EntityType = "stimulus_site"
	// EntityTargetSet identifies a stimulus target set record.
	EntityTargetSet EntityType = "target_set"
	// EntityStimulusPattern identifies a stimulus pattern record.
	EntityStimulusPattern EntityType = "stimulus_pattern"
	// EntityStimulationInterval identifies a row of the stimulus event table.
	EntityStimulationInterval EntityType = "stimulation_interval"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all named domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LightSource describes the device used to apply photostimulation.
// Optional physical characteristics are pointers so that "not measured" is
// distinguishable from zero.
type LightSource struct {
	Base
	Name                  string   `json:"name"`
	Description           string   `json:"description"`
	Manufacturer          string   `json:"manufacturer"`
	Model                 string   `json:"model"`
	StimulationWavelength *float64 `json:"stimulation_wavelength"` // nanometers
	PeakPower             *float64 `json:"peak_power"`             // Watts
	PeakPulseEnergy       *float64 `json:"peak_pulse_energy"`      // Joules
	Intensity             *float64 `json:"intensity"`              // W/mm^2
	PulseRate             *float64 `json:"pulse_rate"`             // Hz
	ExposureTime          *float64 `json:"exposure_time"`          // seconds
	FilterDescription     string   `json:"filter_description"`
}

// SpatialLightModulator describes the modulator generating the holographic
// pattern. SpatialResolution is [width, height] or [width, height, depth]
// in pixels.
type SpatialLightModulator struct {
	Base
	Name              string `json:"name"`
	Description       string `json:"description"`
	Manufacturer      string `json:"manufacturer"`
	Model             string `json:"model"`
	SpatialResolution []int  `json:"spatial_resolution"`
}

// StimulusSite describes where and how patterned light is delivered.
// The device references are set once; attaching a second light source or
// modulator is an error (enforced by the transaction layer).
type StimulusSite struct {
	Base
	Name                    string  `json:"name"`
	Description             string  `json:"description"`
	Location                string  `json:"location"`
	ExcitationLambda        float64 `json:"excitation_lambda"` // nanometers
	Effector                string  `json:"effector"`          // e.g. ChR2
	LightSourceID           *string `json:"light_source_id"`
	SpatialLightModulatorID *string `json:"spatial_light_modulator_id"`
}

// TargetSet is the ordered collection of targeted ROIs addressed by one or
// more stimulation events. TargetedROIs holds row indices into an externally
// owned ROI table identified by ROITableName. SegmentedROIs optionally
// records the subset observed to respond after stimulation.
type TargetSet struct {
	Base
	Name          string `json:"name"`
	ROITableName  string `json:"roi_table_name"`
	TargetedROIs  []int  `json:"targeted_rois"`
	SegmentedROIs []int  `json:"segmented_rois,omitempty"`
}

// Cardinality returns the number of addressable targets in the set.
func (t TargetSet) Cardinality() int { return len(t.TargetedROIs) }

// PatternKind discriminates the stimulus pattern variants.
type PatternKind string

// Stimulus pattern variants supported by the event table.
const (
	// PatternGeneric2D is a generic two-dimensional sweep pattern.
	PatternGeneric2D PatternKind = "generic_2d"
	// PatternGeneric3D is a generic three-dimensional sweep pattern.
	PatternGeneric3D PatternKind = "generic_3d"
	// PatternTemporalFocusing is a temporal-focusing beam shaping pattern.
	PatternTemporalFocusing PatternKind = "temporal_focusing"
	// PatternSpiralScanning is a spiral scanning pattern.
	PatternSpiralScanning PatternKind = "spiral_scanning"
)

// SweepPattern holds the spatial parameters of a generic 2D or 3D sweep.
// SweepSize is a diameter when it has a single element, otherwise
// [width, height] or [width, height, depth] in micrometers. The sweep mask,
// when present, is stored out of band and referenced by SweepMaskKey.
type SweepPattern struct {
	SweepSize    []float64 `json:"sweep_size,omitempty"`
	SweepMaskKey string    `json:"sweep_mask_key,omitempty"`
}

// TemporalFocusingPattern holds the beam-shaping point spread functions,
// expressed as "mean [um] ± s.d [um]".
type TemporalFocusingPattern struct {
	LateralPSF string `json:"lateral_point_spread_function,omitempty"`
	AxialPSF   string `json:"axial_point_spread_function,omitempty"`
}

// SpiralScanningPattern holds the parameters of a spiral sweep.
type SpiralScanningPattern struct {
	Diameter            float64 `json:"diameter"` // micrometers
	Height              float64 `json:"height"`   // micrometers
	NumberOfRevolutions int     `json:"number_of_revolutions"`
}

// StimulusPattern is the tagged union over the supported pattern shapes.
// Exactly one variant matching Kind must be populated; Validate enforces it.
type StimulusPattern struct {
	Base
	Name             string                   `json:"name"`
	Description      string                   `json:"description"`
	Kind             PatternKind              `json:"kind"`
	Generic2D        *SweepPattern            `json:"generic_2d,omitempty"`
	Generic3D        *SweepPattern            `json:"generic_3d,omitempty"`
	TemporalFocusing *TemporalFocusingPattern `json:"temporal_focusing,omitempty"`
	SpiralScanning   *SpiralScanningPattern   `json:"spiral_scanning,omitempty"`
}

// Validate checks that the populated variant agrees with the declared kind.
func (p StimulusPattern) Validate() error {
	variants := 0
	if p.Generic2D != nil {
		variants++
	}
	if p.Generic3D != nil {
		variants++
	}
	if p.TemporalFocusing != nil {
		variants++
	}
	if p.SpiralScanning != nil {
		variants++
	}
	if variants != 1 {
		return ErrPatternVariant{Kind: p.Kind, Variants: variants}
	}
	var matches bool
	switch p.Kind {
	case PatternGeneric2D:
		matches = p.Generic2D != nil
	case PatternGeneric3D:
		matches = p.Generic3D != nil
	case PatternTemporalFocusing:
		matches = p.TemporalFocusing != nil
	case PatternSpiralScanning:
		matches = p.SpiralScanning != nil
	default:
		return ErrPatternVariant{Kind: p.Kind, Variants: variants}
	}
	if !matches {
		return ErrPatternVariant{Kind: p.Kind, Variants: variants}
	}
	return nil
}

// Sweep returns the sweep variant for generic patterns, nil otherwise.
func (p StimulusPattern) Sweep() *SweepPattern {
	switch p.Kind {
	case PatternGeneric2D:
		return p.Generic2D
	case PatternGeneric3D:
		return p.Generic3D
	default:
		return nil
	}
}

// StimulationInterval is one committed row of the stimulus event table:
// a time-bounded stimulation event with its parameters and references.
// Rows are created only through the append engine and never mutated.
type StimulationInterval struct {
	RowID             int64     `json:"row_id"`
	StartTime         float64   `json:"start_time"` // seconds
	StopTime          float64   `json:"stop_time"`  // seconds
	Power             *float64  `json:"power,omitempty"`
	PowerPerROIs      []float64 `json:"power_per_rois,omitempty"`
	Frequency         *float64  `json:"frequency,omitempty"`
	FrequencyPerROIs  []float64 `json:"frequency_per_rois,omitempty"`
	PulseWidth        *float64  `json:"pulse_width,omitempty"`
	PulseWidthPerROIs []float64 `json:"pulse_width_per_rois,omitempty"`
	TargetsID         string    `json:"targets_id"`
	StimulusPatternID string    `json:"stimulus_pattern_id"`
	StimulusSiteID    string    `json:"stimulus_site_id"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported operations captured in the audit trail.
// The event table is append-only, so intervals only ever record ActionAppend.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	// ActionAppend indicates a row was appended to the event table.
	ActionAppend Action = "append"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
