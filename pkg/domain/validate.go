package domain

import "fmt"

// ValidateIntervalShape runs the structural checks on a row candidate:
// time bounds ordered, required references present, and every scalar column
// holding a single numeric value. It reports the first failure.
func ValidateIntervalShape(candidate IntervalCandidate) error {
	if candidate.StopTime < candidate.StartTime {
		return InvalidShapeError{
			Column: "stop_time",
			Message: fmt.Sprintf("'stop_time' (%v) must not precede 'start_time' (%v).",
				candidate.StopTime, candidate.StartTime),
		}
	}
	for _, family := range Families {
		scalar, _ := candidate.familyValues(family)
		if scalar.IsArray() {
			return scalarShapeError(family)
		}
		if scalar.IsInvalid() {
			return numericShapeError(family)
		}
	}
	if candidate.TargetsID == "" {
		return InvalidShapeError{Column: "targets", Message: "'targets' is required and must reference a target set."}
	}
	if candidate.StimulusPatternID == "" {
		return InvalidShapeError{Column: "stimulus_pattern", Message: "'stimulus_pattern' is required and must reference a stimulus pattern."}
	}
	if candidate.StimulusSiteID == "" {
		return InvalidShapeError{Column: "stimulus_site", Message: "'stimulus_site' is required and must reference a stimulus site."}
	}
	return nil
}

// ValidateIntervalPresence enforces the per-family representation rules.
// Power must be supplied in exactly one representation. Frequency and pulse
// width carry no presence constraint: both representations may coexist and
// neither is required, matching the historical table contract.
func ValidateIntervalPresence(candidate IntervalCandidate) error {
	for _, family := range Families {
		scalar, perROIs := candidate.familyValues(family)
		if family.Exclusive && scalar.Defined() && perROIs != nil {
			return ConflictingParameterRepresentationError{Family: family}
		}
		if family.Required && !scalar.Defined() && perROIs == nil {
			return MissingRequiredParameterError{Family: family}
		}
	}
	return nil
}

// ValidateIntervalCardinality checks every supplied per-ROI array against
// the cardinality of the referenced target set. Each family is checked
// independently, in declaration order.
func ValidateIntervalCardinality(candidate IntervalCandidate, targets TargetSet) error {
	expected := targets.Cardinality()
	for _, family := range Families {
		_, perROIs := candidate.familyValues(family)
		if perROIs == nil {
			continue
		}
		if len(perROIs) != expected {
			return CardinalityMismatchError{Family: family, Elements: len(perROIs), Expected: expected}
		}
	}
	return nil
}

// ValidateIntervalCandidate runs the full append-time validation pipeline in
// order: structural shape, column presence, cardinality. The first failing
// check wins; presence errors are reported in preference to cardinality
// errors on the same family. Validation is pure: it never mutates the
// candidate or the target set, so repeated runs return the same verdict.
func ValidateIntervalCandidate(candidate IntervalCandidate, targets TargetSet) error {
	if err := ValidateIntervalShape(candidate); err != nil {
		return err
	}
	if err := ValidateIntervalPresence(candidate); err != nil {
		return err
	}
	return ValidateIntervalCardinality(candidate, targets)
}
