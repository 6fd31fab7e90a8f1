package domain

import "fmt"

// MissingRequiredParameterError reports a required family supplied in
// neither representation.
type MissingRequiredParameterError struct {
	Family ParameterFamily
}

func (e MissingRequiredParameterError) Error() string {
	return fmt.Sprintf("Nor '%s' or '%s' has been defined. At least one of the two must be defined",
		e.Family.Name, e.Family.PerROIsColumn())
}

// ConflictingParameterRepresentationError reports both the scalar and the
// per-ROI representation supplied for the same family.
type ConflictingParameterRepresentationError struct {
	Family ParameterFamily
}

func (e ConflictingParameterRepresentationError) Error() string {
	return fmt.Sprintf("Both '%s' and '%s' has been defined. Only one of them must be defined",
		e.Family.Name, e.Family.PerROIsColumn())
}

// CardinalityMismatchError reports a per-ROI array whose length disagrees
// with the cardinality of the referenced target set.
type CardinalityMismatchError struct {
	Family   ParameterFamily
	Elements int // supplied array length
	Expected int // target set cardinality
}

func (e CardinalityMismatchError) Error() string {
	return fmt.Sprintf("'%s' has %d elements but it must have %d elements as 'targeted_roi'.",
		e.Family.PerROIsColumn(), e.Elements, e.Expected)
}

// InvalidShapeError reports a structurally malformed candidate field.
type InvalidShapeError struct {
	Column  string
	Message string
}

func (e InvalidShapeError) Error() string { return e.Message }

func scalarShapeError(family ParameterFamily) InvalidShapeError {
	return InvalidShapeError{
		Column: family.Name,
		Message: fmt.Sprintf("'%s' should be defined as scalar. Use '%s' to store photostimulation at different %s, for each rois in target.",
			family.Name, family.PerROIsColumn(), family.Plural),
	}
}

func numericShapeError(family ParameterFamily) InvalidShapeError {
	return InvalidShapeError{
		Column:  family.Name,
		Message: fmt.Sprintf("'%s' must be a numeric value or a homogeneous numeric sequence.", family.Name),
	}
}

// ErrPatternVariant reports a stimulus pattern whose populated variant does
// not agree with its declared kind.
type ErrPatternVariant struct {
	Kind     PatternKind
	Variants int
}

func (e ErrPatternVariant) Error() string {
	if e.Variants != 1 {
		return fmt.Sprintf("stimulus pattern must populate exactly one variant, got %d", e.Variants)
	}
	return fmt.Sprintf("stimulus pattern variant does not match kind %q", e.Kind)
}

// ErrNotFound is returned when reference resolution fails within
// transactional helpers.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ErrDeviceAlreadySet is returned when a set-once device reference on a
// stimulus site is assigned a second time.
type ErrDeviceAlreadySet struct {
	SiteID string
	Device EntityType
}

func (e ErrDeviceAlreadySet) Error() string {
	return fmt.Sprintf("%s already attached to stimulus site %s", e.Device, e.SiteID)
}
