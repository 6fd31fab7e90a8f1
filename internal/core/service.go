package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	blobcore "ogencore/internal/blob/core"
	"ogencore/pkg/domain"
)

// Service exposes the transactional operations of the stimulus event table:
// device and site registration, target sets, patterns, and the append-only
// interval table. Every operation is instrumented through the configured
// audit recorder, metrics recorder, and tracer.
type Service struct {
	store      PersistentStore
	blobs      blobcore.Store
	extensions map[string]ExtensionMetadata
	audit      AuditRecorder
	metrics    MetricsRecorder
	tracer     Tracer
	now        func() time.Time
}

// ServiceOption customizes service construction.
type ServiceOption func(*Service)

// WithAuditRecorder wires an audit recorder receiving one entry per operation.
func WithAuditRecorder(rec AuditRecorder) ServiceOption {
	return func(s *Service) {
		if rec != nil {
			s.audit = rec
		}
	}
}

// WithMetricsRecorder wires a metrics recorder observing operation outcomes.
func WithMetricsRecorder(rec MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithTracer wires a tracer producing one span per operation.
func WithTracer(tracer Tracer) ServiceOption {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithBlobStore wires the blob backend holding sweep masks and export artifacts.
func WithBlobStore(store blobcore.Store) ServiceOption {
	return func(s *Service) {
		if store != nil {
			s.blobs = store
		}
	}
}

// WithNow overrides the clock used for audit timestamps.
func WithNow(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:      store,
		extensions: make(map[string]ExtensionMetadata),
		audit:      noopAuditRecorder{},
		metrics:    noopMetricsRecorder{},
		tracer:     noopTracer{},
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// instrument runs op inside a trace span and emits one audit entry and one
// metrics observation. run returns the ID of the entity the entry refers to.
func (s *Service) instrument(ctx context.Context, op string, entity EntityType, run func(context.Context) (string, Result, error)) (Result, error) {
	ctx, span := s.tracer.Start(ctx, op)
	started := s.now()

	entityID, res, err := run(ctx)

	duration := s.now().Sub(started)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)

	entry := AuditEntry{
		Operation:  op,
		Status:     AuditStatusSuccess,
		Entity:     entity,
		EntityID:   entityID,
		Violations: res.Violations,
		At:         s.now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
	return res, err
}

// CreateLightSource registers a photostimulation light source device.
func (s *Service) CreateLightSource(ctx context.Context, source LightSource) (LightSource, Result, error) {
	var created LightSource
	res, err := s.instrument(ctx, "create_light_source", domain.EntityLightSource, func(ctx context.Context) (string, Result, error) {
		res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateLightSource(source)
			return err
		})
		return created.ID, res, err
	})
	return created, res, err
}

// CreateSpatialLightModulator registers a spatial light modulator device.
func (s *Service) CreateSpatialLightModulator(ctx context.Context, modulator SpatialLightModulator) (SpatialLightModulator, Result, error) {
	var created SpatialLightModulator
	res, err := s.instrument(ctx, "create_spatial_light_modulator", domain.EntitySpatialLightModulator, func(ctx context.Context) (string, Result, error) {
		res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateSpatialLightModulator(modulator)
			return err
		})
		return created.ID, res, err
	})
	return created, res, err
}

// CreateStimulusSite registers a patterned stimulus site.
func (s *Service) CreateStimulusSite(ctx context.Context, site StimulusSite) (StimulusSite, Result, error) {
	var created StimulusSite
	res, err := s.instrument(ctx, "create_stimulus_site", domain.EntityStimulusSite, func(ctx context.Context) (string, Result, error) {
		res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateStimulusSite(site)
			return err
		})
		return created.ID, res, err
	})
	return created, res, err
}

// AttachLightSource links a light source to a site. The link is set once.
func (s *Service) AttachLightSource(ctx context.Context, siteID, lightSourceID string) (StimulusSite, Result, error) {
	var updated StimulusSite
	res, err := s.instrument(ctx, "attach_light_source", domain.EntityStimulusSite, func(ctx context.Context) (string, Result, error) {
		res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.AttachLightSource(siteID, lightSourceID)
			return err
		})
		return siteID, res, err
	})
	return updated, res, err
}

// AttachSpatialLightModulator links a modulator to a site. The link is set once.
func (s *Service) AttachSpatialLightModulator(ctx context.Context, siteID, modulatorID string) (StimulusSite, Result, error) {
	var updated StimulusSite
	res, err := s.instrument(ctx, "attach_spatial_light_modulator", domain.EntityStimulusSite, func(ctx context.Context) (string, Result, error) {
		res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.AttachSpatialLightModulator(siteID, modulatorID)
			return err
		})
		return siteID, res, err
	})
	return updated, res, err
}

// CreateTargetSet registers an ordered collection of targeted ROIs.
func (s *Service) CreateTargetSet(ctx context.Context, targets TargetSet) (TargetSet, Result, error) {
	var created TargetSet
	res, err := s.instrument(ctx, "create_target_set", domain.EntityTargetSet, func(ctx context.Context) (string, Result, error) {
		res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateTargetSet(targets)
			return err
		})
		return created.ID, res, err
	})
	return created, res, err
}

// CreateStimulusPattern registers a stimulus pattern variant.
func (s *Service) CreateStimulusPattern(ctx context.Context, pattern StimulusPattern) (StimulusPattern, Result, error) {
	var created StimulusPattern
	res, err := s.instrument(ctx, "create_stimulus_pattern", domain.EntityStimulusPattern, func(ctx context.Context) (string, Result, error) {
		res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateStimulusPattern(pattern)
			return err
		})
		return created.ID, res, err
	})
	return created, res, err
}

// AppendStimulationInterval validates the candidate and appends one row to
// the event table. Validation failures reject the whole row and leave the
// table and its row counter untouched.
func (s *Service) AppendStimulationInterval(ctx context.Context, candidate IntervalCandidate) (StimulationInterval, Result, error) {
	var row StimulationInterval
	res, err := s.instrument(ctx, "append_stimulation_interval", domain.EntityStimulationInterval, func(ctx context.Context) (string, Result, error) {
		res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			row, err = tx.AppendStimulationInterval(candidate)
			return err
		})
		if err != nil {
			return "", res, err
		}
		return strconv.FormatInt(row.RowID, 10), res, err
	})
	return row, res, err
}

// SweepMask is the pixel mask of a generic sweep pattern, stored out of band.
// Values is row-major over Dimensions ([width, height] or [width, height, depth]).
type SweepMask struct {
	Dimensions []int     `json:"dimensions"`
	Values     []float64 `json:"values"`
}

// Validate checks that the value count matches the declared dimensions.
func (m SweepMask) Validate() error {
	if len(m.Dimensions) != 2 && len(m.Dimensions) != 3 {
		return fmt.Errorf("sweep mask dimensions must have 2 or 3 elements, got %d", len(m.Dimensions))
	}
	expected := 1
	for _, d := range m.Dimensions {
		if d <= 0 {
			return fmt.Errorf("sweep mask dimensions must be positive, got %v", m.Dimensions)
		}
		expected *= d
	}
	if len(m.Values) != expected {
		return fmt.Errorf("sweep mask has %d values but dimensions %v require %d", len(m.Values), m.Dimensions, expected)
	}
	return nil
}

// SweepMaskKey returns the blob key holding the mask for a pattern.
func SweepMaskKey(patternID string) string {
	return fmt.Sprintf("patterns/%s/sweep_mask.json", patternID)
}

// AttachSweepMask serializes the mask into the blob store and records its key
// on the pattern. The pattern must be a generic sweep and must not already
// carry a mask. The blob write is compensated when recording the key fails.
func (s *Service) AttachSweepMask(ctx context.Context, patternID string, mask SweepMask) (StimulusPattern, Result, error) {
	var updated StimulusPattern
	res, err := s.instrument(ctx, "attach_sweep_mask", domain.EntityStimulusPattern, func(ctx context.Context) (string, Result, error) {
		if s.blobs == nil {
			return patternID, Result{}, fmt.Errorf("no blob store configured")
		}
		if err := mask.Validate(); err != nil {
			return patternID, Result{}, err
		}
		pattern, ok := s.store.GetStimulusPattern(patternID)
		if !ok {
			return patternID, Result{}, ErrNotFound{Entity: domain.EntityStimulusPattern, ID: patternID}
		}
		if pattern.Sweep() == nil {
			return patternID, Result{}, fmt.Errorf("pattern %s (%s) does not take a sweep mask", patternID, pattern.Kind)
		}

		payload, err := json.Marshal(mask)
		if err != nil {
			return patternID, Result{}, err
		}
		key := SweepMaskKey(patternID)
		if _, err := s.blobs.Put(ctx, key, bytes.NewReader(payload), blobcore.PutOptions{ContentType: "application/json"}); err != nil {
			return patternID, Result{}, fmt.Errorf("store sweep mask: %w", err)
		}

		res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			updated, txErr = tx.SetSweepMaskKey(patternID, key)
			return txErr
		})
		if err != nil {
			_, _ = s.blobs.Delete(ctx, key)
			return patternID, res, err
		}
		return patternID, res, nil
	})
	return updated, res, err
}

// SweepMask fetches the mask recorded for a pattern from the blob store.
func (s *Service) SweepMask(ctx context.Context, patternID string) (SweepMask, error) {
	if s.blobs == nil {
		return SweepMask{}, fmt.Errorf("no blob store configured")
	}
	pattern, ok := s.store.GetStimulusPattern(patternID)
	if !ok {
		return SweepMask{}, ErrNotFound{Entity: domain.EntityStimulusPattern, ID: patternID}
	}
	sweep := pattern.Sweep()
	if sweep == nil || sweep.SweepMaskKey == "" {
		return SweepMask{}, fmt.Errorf("pattern %s has no sweep mask", patternID)
	}
	_, rc, err := s.blobs.Get(ctx, sweep.SweepMaskKey)
	if err != nil {
		return SweepMask{}, err
	}
	defer rc.Close()
	var mask SweepMask
	if err := json.NewDecoder(rc).Decode(&mask); err != nil {
		return SweepMask{}, fmt.Errorf("decode sweep mask: %w", err)
	}
	return mask, nil
}

// ListLightSources returns all registered light sources.
func (s *Service) ListLightSources() []LightSource { return s.store.ListLightSources() }

// ListSpatialLightModulators returns all registered modulators.
func (s *Service) ListSpatialLightModulators() []SpatialLightModulator {
	return s.store.ListSpatialLightModulators()
}

// ListStimulusSites returns all registered sites.
func (s *Service) ListStimulusSites() []StimulusSite { return s.store.ListStimulusSites() }

// ListTargetSets returns all registered target sets.
func (s *Service) ListTargetSets() []TargetSet { return s.store.ListTargetSets() }

// ListStimulusPatterns returns all registered patterns.
func (s *Service) ListStimulusPatterns() []StimulusPattern { return s.store.ListStimulusPatterns() }

// ListStimulationIntervals returns the committed event table in row order.
func (s *Service) ListStimulationIntervals() []StimulationInterval {
	return s.store.ListStimulationIntervals()
}

// GetTargetSet fetches a target set by ID.
func (s *Service) GetTargetSet(id string) (TargetSet, bool) { return s.store.GetTargetSet(id) }

// GetStimulusPattern fetches a pattern by ID.
func (s *Service) GetStimulusPattern(id string) (StimulusPattern, bool) {
	return s.store.GetStimulusPattern(id)
}

// GetStimulusSite fetches a site by ID.
func (s *Service) GetStimulusSite(id string) (StimulusSite, bool) {
	return s.store.GetStimulusSite(id)
}

type ruleEngineProvider interface {
	RulesEngine() *domain.RulesEngine
}

// InstallExtension registers an extension, wiring its rules into the active engine.
func (s *Service) InstallExtension(ext Extension) (ExtensionMetadata, error) {
	if ext == nil {
		return ExtensionMetadata{}, fmt.Errorf("extension cannot be nil")
	}
	if s.extensions == nil {
		s.extensions = make(map[string]ExtensionMetadata)
	}
	if _, ok := s.extensions[ext.Name()]; ok {
		return ExtensionMetadata{}, fmt.Errorf("extension %s already registered", ext.Name())
	}

	registry := NewExtensionRegistry()
	if err := ext.Register(registry); err != nil {
		return ExtensionMetadata{}, err
	}

	if rules := registry.Rules(); len(rules) > 0 {
		provider, ok := s.store.(ruleEngineProvider)
		if !ok {
			return ExtensionMetadata{}, fmt.Errorf("store does not accept extension rules")
		}
		for _, rule := range rules {
			provider.RulesEngine().Register(rule)
		}
	}

	meta := ExtensionMetadata{
		Name:    ext.Name(),
		Version: ext.Version(),
		Schemas: registry.Schemas(),
	}
	s.extensions[ext.Name()] = meta
	return meta, nil
}

// RegisteredExtensions returns metadata describing installed extensions in
// name order.
func (s *Service) RegisteredExtensions() []ExtensionMetadata {
	out := make([]ExtensionMetadata, 0, len(s.extensions))
	for _, name := range sortedExtensionNames(s.extensions) {
		out = append(out, s.extensions[name])
	}
	return out
}
