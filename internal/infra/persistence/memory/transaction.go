package memory

import (
	"fmt"

	"ogencore/pkg/domain"
)

// FindTargetSet exposes target set lookup within the transaction scope.
func (tx *transaction) FindTargetSet(id string) (TargetSet, bool) {
	t, ok := tx.state.targets[id]
	if !ok {
		return TargetSet{}, false
	}
	return cloneTargetSet(t), true
}

// FindStimulusPattern exposes pattern lookup within the transaction scope.
func (tx *transaction) FindStimulusPattern(id string) (StimulusPattern, bool) {
	p, ok := tx.state.patterns[id]
	if !ok {
		return StimulusPattern{}, false
	}
	return clonePattern(p), true
}

// FindStimulusSite exposes site lookup within the transaction scope.
func (tx *transaction) FindStimulusSite(id string) (StimulusSite, bool) {
	s, ok := tx.state.sites[id]
	if !ok {
		return StimulusSite{}, false
	}
	return cloneSite(s), true
}

// CreateLightSource stores a new light source within the transaction.
func (tx *transaction) CreateLightSource(l LightSource) (LightSource, error) {
	if l.ID == "" {
		l.ID = tx.store.newID()
	}
	if _, exists := tx.state.lightSources[l.ID]; exists {
		return LightSource{}, fmt.Errorf("light source %q already exists", l.ID)
	}
	if l.Name == "" {
		return LightSource{}, fmt.Errorf("light source name is required")
	}
	l.CreatedAt = tx.now
	l.UpdatedAt = tx.now
	tx.state.lightSources[l.ID] = cloneLightSource(l)
	tx.recordChange(Change{Entity: domain.EntityLightSource, Action: domain.ActionCreate, After: cloneLightSource(l)})
	return cloneLightSource(l), nil
}

// CreateSpatialLightModulator stores a new modulator within the transaction.
func (tx *transaction) CreateSpatialLightModulator(m SpatialLightModulator) (SpatialLightModulator, error) {
	if m.ID == "" {
		m.ID = tx.store.newID()
	}
	if _, exists := tx.state.modulators[m.ID]; exists {
		return SpatialLightModulator{}, fmt.Errorf("spatial light modulator %q already exists", m.ID)
	}
	if m.Name == "" {
		return SpatialLightModulator{}, fmt.Errorf("spatial light modulator name is required")
	}
	if n := len(m.SpatialResolution); n != 0 && n != 2 && n != 3 {
		return SpatialLightModulator{}, fmt.Errorf("spatial resolution must be [width, height] or [width, height, depth], got %d elements", n)
	}
	m.CreatedAt = tx.now
	m.UpdatedAt = tx.now
	tx.state.modulators[m.ID] = cloneModulator(m)
	tx.recordChange(Change{Entity: domain.EntitySpatialLightModulator, Action: domain.ActionCreate, After: cloneModulator(m)})
	return cloneModulator(m), nil
}

// CreateStimulusSite stores a new stimulus site within the transaction. Device
// references supplied at creation time must resolve.
func (tx *transaction) CreateStimulusSite(s StimulusSite) (StimulusSite, error) {
	if s.ID == "" {
		s.ID = tx.store.newID()
	}
	if _, exists := tx.state.sites[s.ID]; exists {
		return StimulusSite{}, fmt.Errorf("stimulus site %q already exists", s.ID)
	}
	if s.Name == "" {
		return StimulusSite{}, fmt.Errorf("stimulus site name is required")
	}
	if s.LightSourceID != nil {
		if _, ok := tx.state.lightSources[*s.LightSourceID]; !ok {
			return StimulusSite{}, domain.ErrNotFound{Entity: domain.EntityLightSource, ID: *s.LightSourceID}
		}
	}
	if s.SpatialLightModulatorID != nil {
		if _, ok := tx.state.modulators[*s.SpatialLightModulatorID]; !ok {
			return StimulusSite{}, domain.ErrNotFound{Entity: domain.EntitySpatialLightModulator, ID: *s.SpatialLightModulatorID}
		}
	}
	s.CreatedAt = tx.now
	s.UpdatedAt = tx.now
	tx.state.sites[s.ID] = cloneSite(s)
	tx.recordChange(Change{Entity: domain.EntityStimulusSite, Action: domain.ActionCreate, After: cloneSite(s)})
	return cloneSite(s), nil
}

// AttachLightSource sets the site's light source reference. The reference is
// set-once: attaching to a site that already has one fails.
func (tx *transaction) AttachLightSource(siteID, lightSourceID string) (StimulusSite, error) {
	site, ok := tx.state.sites[siteID]
	if !ok {
		return StimulusSite{}, domain.ErrNotFound{Entity: domain.EntityStimulusSite, ID: siteID}
	}
	if site.LightSourceID != nil {
		return StimulusSite{}, domain.ErrDeviceAlreadySet{SiteID: siteID, Device: domain.EntityLightSource}
	}
	if _, ok := tx.state.lightSources[lightSourceID]; !ok {
		return StimulusSite{}, domain.ErrNotFound{Entity: domain.EntityLightSource, ID: lightSourceID}
	}
	before := cloneSite(site)
	site.LightSourceID = &lightSourceID
	site.UpdatedAt = tx.now
	tx.state.sites[siteID] = cloneSite(site)
	tx.recordChange(Change{Entity: domain.EntityStimulusSite, Action: domain.ActionUpdate, Before: before, After: cloneSite(site)})
	return cloneSite(site), nil
}

// AttachSpatialLightModulator sets the site's modulator reference, set-once.
func (tx *transaction) AttachSpatialLightModulator(siteID, modulatorID string) (StimulusSite, error) {
	site, ok := tx.state.sites[siteID]
	if !ok {
		return StimulusSite{}, domain.ErrNotFound{Entity: domain.EntityStimulusSite, ID: siteID}
	}
	if site.SpatialLightModulatorID != nil {
		return StimulusSite{}, domain.ErrDeviceAlreadySet{SiteID: siteID, Device: domain.EntitySpatialLightModulator}
	}
	if _, ok := tx.state.modulators[modulatorID]; !ok {
		return StimulusSite{}, domain.ErrNotFound{Entity: domain.EntitySpatialLightModulator, ID: modulatorID}
	}
	before := cloneSite(site)
	site.SpatialLightModulatorID = &modulatorID
	site.UpdatedAt = tx.now
	tx.state.sites[siteID] = cloneSite(site)
	tx.recordChange(Change{Entity: domain.EntityStimulusSite, Action: domain.ActionUpdate, Before: before, After: cloneSite(site)})
	return cloneSite(site), nil
}

// CreateTargetSet stores a new target set within the transaction. Target sets
// are immutable once created.
func (tx *transaction) CreateTargetSet(t TargetSet) (TargetSet, error) {
	if t.ID == "" {
		t.ID = tx.store.newID()
	}
	if _, exists := tx.state.targets[t.ID]; exists {
		return TargetSet{}, fmt.Errorf("target set %q already exists", t.ID)
	}
	if t.Name == "" {
		return TargetSet{}, fmt.Errorf("target set name is required")
	}
	if len(t.TargetedROIs) == 0 {
		return TargetSet{}, fmt.Errorf("target set %q must address at least one targeted ROI", t.Name)
	}
	t.CreatedAt = tx.now
	t.UpdatedAt = tx.now
	tx.state.targets[t.ID] = cloneTargetSet(t)
	tx.recordChange(Change{Entity: domain.EntityTargetSet, Action: domain.ActionCreate, After: cloneTargetSet(t)})
	return cloneTargetSet(t), nil
}

// CreateStimulusPattern stores a new pattern within the transaction after
// checking the variant/kind agreement.
func (tx *transaction) CreateStimulusPattern(p StimulusPattern) (StimulusPattern, error) {
	if p.ID == "" {
		p.ID = tx.store.newID()
	}
	if _, exists := tx.state.patterns[p.ID]; exists {
		return StimulusPattern{}, fmt.Errorf("stimulus pattern %q already exists", p.ID)
	}
	if p.Name == "" {
		return StimulusPattern{}, fmt.Errorf("stimulus pattern name is required")
	}
	if err := p.Validate(); err != nil {
		return StimulusPattern{}, err
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.patterns[p.ID] = clonePattern(p)
	tx.recordChange(Change{Entity: domain.EntityStimulusPattern, Action: domain.ActionCreate, After: clonePattern(p)})
	return clonePattern(p), nil
}

// SetSweepMaskKey records the out-of-band sweep mask location on a generic
// sweep pattern. The key is set-once.
func (tx *transaction) SetSweepMaskKey(patternID, key string) (StimulusPattern, error) {
	pattern, ok := tx.state.patterns[patternID]
	if !ok {
		return StimulusPattern{}, domain.ErrNotFound{Entity: domain.EntityStimulusPattern, ID: patternID}
	}
	pattern = clonePattern(pattern)
	sweep := pattern.Sweep()
	if sweep == nil {
		return StimulusPattern{}, fmt.Errorf("stimulus pattern %q (%s) does not carry a sweep mask", patternID, pattern.Kind)
	}
	if sweep.SweepMaskKey != "" {
		return StimulusPattern{}, fmt.Errorf("stimulus pattern %q already has a sweep mask", patternID)
	}
	before := clonePattern(tx.state.patterns[patternID])
	sweep.SweepMaskKey = key
	pattern.UpdatedAt = tx.now
	tx.state.patterns[patternID] = clonePattern(pattern)
	tx.recordChange(Change{Entity: domain.EntityStimulusPattern, Action: domain.ActionUpdate, Before: before, After: clonePattern(pattern)})
	return clonePattern(pattern), nil
}

// AppendStimulationInterval validates a row candidate and appends it to the
// event table. The append is all-or-nothing: on any validation failure the
// table is untouched and no row identifier is consumed.
func (tx *transaction) AppendStimulationInterval(candidate IntervalCandidate) (StimulationInterval, error) {
	if err := domain.ValidateIntervalShape(candidate); err != nil {
		return StimulationInterval{}, err
	}
	targets, ok := tx.state.targets[candidate.TargetsID]
	if !ok {
		return StimulationInterval{}, domain.ErrNotFound{Entity: domain.EntityTargetSet, ID: candidate.TargetsID}
	}
	if _, ok := tx.state.patterns[candidate.StimulusPatternID]; !ok {
		return StimulationInterval{}, domain.ErrNotFound{Entity: domain.EntityStimulusPattern, ID: candidate.StimulusPatternID}
	}
	if _, ok := tx.state.sites[candidate.StimulusSiteID]; !ok {
		return StimulationInterval{}, domain.ErrNotFound{Entity: domain.EntityStimulusSite, ID: candidate.StimulusSiteID}
	}
	if err := domain.ValidateIntervalPresence(candidate); err != nil {
		return StimulationInterval{}, err
	}
	if err := domain.ValidateIntervalCardinality(candidate, targets); err != nil {
		return StimulationInterval{}, err
	}

	row := candidate.Row(tx.state.nextRowID)
	tx.state.nextRowID++
	tx.state.intervals = append(tx.state.intervals, cloneInterval(row))
	tx.recordChange(Change{Entity: domain.EntityStimulationInterval, Action: domain.ActionAppend, After: cloneInterval(row)})
	return cloneInterval(row), nil
}
