// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"ogencore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// LightSource aliases domain.LightSource for in-memory persistence operations.
	LightSource = domain.LightSource
	// SpatialLightModulator aliases domain.SpatialLightModulator.
	SpatialLightModulator = domain.SpatialLightModulator
	// StimulusSite aliases domain.StimulusSite.
	StimulusSite = domain.StimulusSite
	// TargetSet aliases domain.TargetSet.
	TargetSet = domain.TargetSet
	// StimulusPattern aliases domain.StimulusPattern.
	StimulusPattern = domain.StimulusPattern
	// StimulationInterval aliases domain.StimulationInterval rows of the event table.
	StimulationInterval = domain.StimulationInterval
	// IntervalCandidate aliases domain.IntervalCandidate submitted for append.
	IntervalCandidate = domain.IntervalCandidate
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore abstraction.
	PersistentStore = domain.PersistentStore
)

type memoryState struct {
	lightSources map[string]LightSource
	modulators   map[string]SpatialLightModulator
	sites        map[string]StimulusSite
	targets      map[string]TargetSet
	patterns     map[string]StimulusPattern
	intervals    []StimulationInterval
	nextRowID    int64
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	LightSources map[string]LightSource           `json:"light_sources"`
	Modulators   map[string]SpatialLightModulator `json:"modulators"`
	Sites        map[string]StimulusSite          `json:"sites"`
	Targets      map[string]TargetSet             `json:"targets"`
	Patterns     map[string]StimulusPattern       `json:"patterns"`
	Intervals    []StimulationInterval            `json:"intervals"`
	NextRowID    int64                            `json:"next_row_id"`
}

func newMemoryState() memoryState {
	return memoryState{
		lightSources: make(map[string]LightSource),
		modulators:   make(map[string]SpatialLightModulator),
		sites:        make(map[string]StimulusSite),
		targets:      make(map[string]TargetSet),
		patterns:     make(map[string]StimulusPattern),
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.lightSources {
		cloned.lightSources[k] = cloneLightSource(v)
	}
	for k, v := range s.modulators {
		cloned.modulators[k] = cloneModulator(v)
	}
	for k, v := range s.sites {
		cloned.sites[k] = cloneSite(v)
	}
	for k, v := range s.targets {
		cloned.targets[k] = cloneTargetSet(v)
	}
	for k, v := range s.patterns {
		cloned.patterns[k] = clonePattern(v)
	}
	cloned.intervals = make([]StimulationInterval, len(s.intervals))
	for i, interval := range s.intervals {
		cloned.intervals[i] = cloneInterval(interval)
	}
	cloned.nextRowID = s.nextRowID
	return cloned
}

func cloneFloatPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

func cloneStringPtr(v *string) *string {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

func cloneLightSource(l LightSource) LightSource {
	cp := l
	cp.StimulationWavelength = cloneFloatPtr(l.StimulationWavelength)
	cp.PeakPower = cloneFloatPtr(l.PeakPower)
	cp.PeakPulseEnergy = cloneFloatPtr(l.PeakPulseEnergy)
	cp.Intensity = cloneFloatPtr(l.Intensity)
	cp.PulseRate = cloneFloatPtr(l.PulseRate)
	cp.ExposureTime = cloneFloatPtr(l.ExposureTime)
	return cp
}

func cloneModulator(m SpatialLightModulator) SpatialLightModulator {
	cp := m
	cp.SpatialResolution = append([]int(nil), m.SpatialResolution...)
	return cp
}

func cloneSite(s StimulusSite) StimulusSite {
	cp := s
	cp.LightSourceID = cloneStringPtr(s.LightSourceID)
	cp.SpatialLightModulatorID = cloneStringPtr(s.SpatialLightModulatorID)
	return cp
}

func cloneTargetSet(t TargetSet) TargetSet {
	cp := t
	cp.TargetedROIs = append([]int(nil), t.TargetedROIs...)
	cp.SegmentedROIs = append([]int(nil), t.SegmentedROIs...)
	return cp
}

func clonePattern(p StimulusPattern) StimulusPattern {
	cp := p
	if p.Generic2D != nil {
		sweep := *p.Generic2D
		sweep.SweepSize = append([]float64(nil), p.Generic2D.SweepSize...)
		cp.Generic2D = &sweep
	}
	if p.Generic3D != nil {
		sweep := *p.Generic3D
		sweep.SweepSize = append([]float64(nil), p.Generic3D.SweepSize...)
		cp.Generic3D = &sweep
	}
	if p.TemporalFocusing != nil {
		tf := *p.TemporalFocusing
		cp.TemporalFocusing = &tf
	}
	if p.SpiralScanning != nil {
		spiral := *p.SpiralScanning
		cp.SpiralScanning = &spiral
	}
	return cp
}

func cloneInterval(i StimulationInterval) StimulationInterval {
	cp := i
	cp.Power = cloneFloatPtr(i.Power)
	cp.Frequency = cloneFloatPtr(i.Frequency)
	cp.PulseWidth = cloneFloatPtr(i.PulseWidth)
	cp.PowerPerROIs = append([]float64(nil), i.PowerPerROIs...)
	cp.FrequencyPerROIs = append([]float64(nil), i.FrequencyPerROIs...)
	cp.PulseWidthPerROIs = append([]float64(nil), i.PulseWidthPerROIs...)
	return cp
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		LightSources: make(map[string]LightSource, len(state.lightSources)),
		Modulators:   make(map[string]SpatialLightModulator, len(state.modulators)),
		Sites:        make(map[string]StimulusSite, len(state.sites)),
		Targets:      make(map[string]TargetSet, len(state.targets)),
		Patterns:     make(map[string]StimulusPattern, len(state.patterns)),
		Intervals:    make([]StimulationInterval, len(state.intervals)),
		NextRowID:    state.nextRowID,
	}
	for k, v := range state.lightSources {
		s.LightSources[k] = cloneLightSource(v)
	}
	for k, v := range state.modulators {
		s.Modulators[k] = cloneModulator(v)
	}
	for k, v := range state.sites {
		s.Sites[k] = cloneSite(v)
	}
	for k, v := range state.targets {
		s.Targets[k] = cloneTargetSet(v)
	}
	for k, v := range state.patterns {
		s.Patterns[k] = clonePattern(v)
	}
	for i, interval := range state.intervals {
		s.Intervals[i] = cloneInterval(interval)
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.LightSources {
		state.lightSources[k] = cloneLightSource(v)
	}
	for k, v := range s.Modulators {
		state.modulators[k] = cloneModulator(v)
	}
	for k, v := range s.Sites {
		state.sites[k] = cloneSite(v)
	}
	for k, v := range s.Targets {
		state.targets[k] = cloneTargetSet(v)
	}
	for k, v := range s.Patterns {
		state.patterns[k] = clonePattern(v)
	}
	state.intervals = make([]StimulationInterval, len(s.Intervals))
	for i, interval := range s.Intervals {
		state.intervals[i] = cloneInterval(interval)
	}
	state.nextRowID = s.NextRowID
	return state
}

// migrateSnapshot repairs snapshots written by older deployments: dangling
// device references on sites are cleared, rows referencing missing
// collaborators are dropped, and the row-id watermark is re-derived when a
// snapshot predates its introduction.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.LightSources == nil {
		snapshot.LightSources = map[string]LightSource{}
	}
	if snapshot.Modulators == nil {
		snapshot.Modulators = map[string]SpatialLightModulator{}
	}
	if snapshot.Sites == nil {
		snapshot.Sites = map[string]StimulusSite{}
	}
	if snapshot.Targets == nil {
		snapshot.Targets = map[string]TargetSet{}
	}
	if snapshot.Patterns == nil {
		snapshot.Patterns = map[string]StimulusPattern{}
	}

	for id, site := range snapshot.Sites {
		if site.LightSourceID != nil {
			if _, ok := snapshot.LightSources[*site.LightSourceID]; !ok {
				site.LightSourceID = nil
			}
		}
		if site.SpatialLightModulatorID != nil {
			if _, ok := snapshot.Modulators[*site.SpatialLightModulatorID]; !ok {
				site.SpatialLightModulatorID = nil
			}
		}
		snapshot.Sites[id] = site
	}

	kept := snapshot.Intervals[:0]
	var maxRowID int64 = -1
	for _, interval := range snapshot.Intervals {
		if _, ok := snapshot.Targets[interval.TargetsID]; !ok {
			continue
		}
		if _, ok := snapshot.Patterns[interval.StimulusPatternID]; !ok {
			continue
		}
		if _, ok := snapshot.Sites[interval.StimulusSiteID]; !ok {
			continue
		}
		if interval.RowID > maxRowID {
			maxRowID = interval.RowID
		}
		kept = append(kept, interval)
	}
	snapshot.Intervals = kept
	if snapshot.NextRowID <= maxRowID {
		snapshot.NextRowID = maxRowID + 1
	}
	return snapshot
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine for integration points like extensions.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// SetNowFunc overrides the time provider, primarily for tests.
func (s *Store) SetNowFunc(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now != nil {
		s.nowFn = now
	}
}

// RunInTransaction executes fn within a transactional copy of the store state.
// Only one append can be in flight per store, preserving row-identifier
// monotonicity and submission order.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

// GetTargetSet returns a target set by ID.
func (s *Store) GetTargetSet(id string) (TargetSet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.state.targets[id]
	if !ok {
		return TargetSet{}, false
	}
	return cloneTargetSet(t), true
}

// GetStimulusPattern returns a stimulus pattern by ID.
func (s *Store) GetStimulusPattern(id string) (StimulusPattern, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.patterns[id]
	if !ok {
		return StimulusPattern{}, false
	}
	return clonePattern(p), true
}

// GetStimulusSite returns a stimulus site by ID.
func (s *Store) GetStimulusSite(id string) (StimulusSite, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	site, ok := s.state.sites[id]
	if !ok {
		return StimulusSite{}, false
	}
	return cloneSite(site), true
}

// ListTargetSets returns all target sets sorted by ID.
func (s *Store) ListTargetSets() []TargetSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	view := newTransactionView(&s.state)
	return view.ListTargetSets()
}

// ListStimulusPatterns returns all stimulus patterns sorted by ID.
func (s *Store) ListStimulusPatterns() []StimulusPattern {
	s.mu.RLock()
	defer s.mu.RUnlock()
	view := newTransactionView(&s.state)
	return view.ListStimulusPatterns()
}

// ListStimulusSites returns all stimulus sites sorted by ID.
func (s *Store) ListStimulusSites() []StimulusSite {
	s.mu.RLock()
	defer s.mu.RUnlock()
	view := newTransactionView(&s.state)
	return view.ListStimulusSites()
}

// ListLightSources returns all light sources sorted by ID.
func (s *Store) ListLightSources() []LightSource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	view := newTransactionView(&s.state)
	return view.ListLightSources()
}

// ListSpatialLightModulators returns all modulators sorted by ID.
func (s *Store) ListSpatialLightModulators() []SpatialLightModulator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	view := newTransactionView(&s.state)
	return view.ListSpatialLightModulators()
}

// ListStimulationIntervals returns the event table rows in append order.
func (s *Store) ListStimulationIntervals() []StimulationInterval {
	s.mu.RLock()
	defer s.mu.RUnlock()
	view := newTransactionView(&s.state)
	return view.ListStimulationIntervals()
}

// transaction represents a mutation set applied to the store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

// transactionView exposes a read-only snapshot of the transactional state to rules.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

func sortedIDs[T any](m map[string]T) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ListTargetSets returns all target sets within the transaction snapshot.
func (v transactionView) ListTargetSets() []TargetSet {
	out := make([]TargetSet, 0, len(v.state.targets))
	for _, id := range sortedIDs(v.state.targets) {
		out = append(out, cloneTargetSet(v.state.targets[id]))
	}
	return out
}

// ListStimulusPatterns returns all patterns in the snapshot.
func (v transactionView) ListStimulusPatterns() []StimulusPattern {
	out := make([]StimulusPattern, 0, len(v.state.patterns))
	for _, id := range sortedIDs(v.state.patterns) {
		out = append(out, clonePattern(v.state.patterns[id]))
	}
	return out
}

// ListStimulusSites returns all sites in the snapshot.
func (v transactionView) ListStimulusSites() []StimulusSite {
	out := make([]StimulusSite, 0, len(v.state.sites))
	for _, id := range sortedIDs(v.state.sites) {
		out = append(out, cloneSite(v.state.sites[id]))
	}
	return out
}

// ListLightSources returns all light sources in the snapshot.
func (v transactionView) ListLightSources() []LightSource {
	out := make([]LightSource, 0, len(v.state.lightSources))
	for _, id := range sortedIDs(v.state.lightSources) {
		out = append(out, cloneLightSource(v.state.lightSources[id]))
	}
	return out
}

// ListSpatialLightModulators returns all modulators in the snapshot.
func (v transactionView) ListSpatialLightModulators() []SpatialLightModulator {
	out := make([]SpatialLightModulator, 0, len(v.state.modulators))
	for _, id := range sortedIDs(v.state.modulators) {
		out = append(out, cloneModulator(v.state.modulators[id]))
	}
	return out
}

// ListStimulationIntervals returns event table rows in append order.
func (v transactionView) ListStimulationIntervals() []StimulationInterval {
	out := make([]StimulationInterval, len(v.state.intervals))
	for i, interval := range v.state.intervals {
		out[i] = cloneInterval(interval)
	}
	return out
}

// FindTargetSet retrieves a target set by ID from the snapshot.
func (v transactionView) FindTargetSet(id string) (TargetSet, bool) {
	t, ok := v.state.targets[id]
	if !ok {
		return TargetSet{}, false
	}
	return cloneTargetSet(t), true
}

// FindStimulusPattern retrieves a pattern by ID from the snapshot.
func (v transactionView) FindStimulusPattern(id string) (StimulusPattern, bool) {
	p, ok := v.state.patterns[id]
	if !ok {
		return StimulusPattern{}, false
	}
	return clonePattern(p), true
}

// FindStimulusSite retrieves a site by ID from the snapshot.
func (v transactionView) FindStimulusSite(id string) (StimulusSite, bool) {
	s, ok := v.state.sites[id]
	if !ok {
		return StimulusSite{}, false
	}
	return cloneSite(s), true
}

// FindLightSource retrieves a light source by ID from the snapshot.
func (v transactionView) FindLightSource(id string) (LightSource, bool) {
	l, ok := v.state.lightSources[id]
	if !ok {
		return LightSource{}, false
	}
	return cloneLightSource(l), true
}

// FindSpatialLightModulator retrieves a modulator by ID from the snapshot.
func (v transactionView) FindSpatialLightModulator(id string) (SpatialLightModulator, bool) {
	m, ok := v.state.modulators[id]
	if !ok {
		return SpatialLightModulator{}, false
	}
	return cloneModulator(m), true
}

// helper to record and append change entries.
func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view of the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}
