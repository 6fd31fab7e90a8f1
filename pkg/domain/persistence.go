package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope. The event table is append-only:
// intervals can be appended but never updated or deleted.
type Transaction interface {
	Snapshot() TransactionView
	CreateLightSource(LightSource) (LightSource, error)
	CreateSpatialLightModulator(SpatialLightModulator) (SpatialLightModulator, error)
	CreateStimulusSite(StimulusSite) (StimulusSite, error)
	AttachLightSource(siteID, lightSourceID string) (StimulusSite, error)
	AttachSpatialLightModulator(siteID, modulatorID string) (StimulusSite, error)
	CreateTargetSet(TargetSet) (TargetSet, error)
	CreateStimulusPattern(StimulusPattern) (StimulusPattern, error)
	SetSweepMaskKey(patternID, key string) (StimulusPattern, error)
	AppendStimulationInterval(IntervalCandidate) (StimulationInterval, error)
	FindTargetSet(id string) (TargetSet, bool)
	FindStimulusPattern(id string) (StimulusPattern, bool)
	FindStimulusSite(id string) (StimulusSite, bool)
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView = RuleView

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetTargetSet(id string) (TargetSet, bool)
	GetStimulusPattern(id string) (StimulusPattern, bool)
	GetStimulusSite(id string) (StimulusSite, bool)
	ListTargetSets() []TargetSet
	ListStimulusPatterns() []StimulusPattern
	ListStimulusSites() []StimulusSite
	ListLightSources() []LightSource
	ListSpatialLightModulators() []SpatialLightModulator
	ListStimulationIntervals() []StimulationInterval
}
