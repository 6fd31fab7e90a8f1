// Package core wires the domain model, persistence, rules, and observability
// into the service surface consumed by commands and adapters.
package core

import (
	"ogencore/pkg/domain"
)

type (
	// LightSource aliases the domain light source device.
	LightSource = domain.LightSource
	// SpatialLightModulator aliases the domain modulator device.
	SpatialLightModulator = domain.SpatialLightModulator
	// StimulusSite aliases the domain patterned stimulus site.
	StimulusSite = domain.StimulusSite
	// TargetSet aliases the domain stimulus target collection.
	TargetSet = domain.TargetSet
	// StimulusPattern aliases the domain pattern union.
	StimulusPattern = domain.StimulusPattern
	// StimulationInterval aliases a committed stimulus table row.
	StimulationInterval = domain.StimulationInterval
	// IntervalCandidate aliases a row candidate submitted for append.
	IntervalCandidate = domain.IntervalCandidate
	// Change aliases the transactional change record.
	Change = domain.Change
	// Result aliases the rule evaluation result.
	Result = domain.Result
	// Violation aliases a single rule violation.
	Violation = domain.Violation
	// Rule aliases the rules-engine rule contract.
	Rule = domain.Rule
	// RulesEngine aliases the domain rules engine.
	RulesEngine = domain.RulesEngine
	// Transaction aliases the persistence transaction contract.
	Transaction = domain.Transaction
	// TransactionView aliases the read-only state view.
	TransactionView = domain.TransactionView
	// PersistentStore aliases the persistence contract.
	PersistentStore = domain.PersistentStore
	// EntityType aliases the domain entity discriminator.
	EntityType = domain.EntityType
	// ErrNotFound aliases the domain reference-resolution error.
	ErrNotFound = domain.ErrNotFound
)

// NewRulesEngine constructs an empty rules engine.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }
