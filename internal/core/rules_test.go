package core

import (
	"context"
	"strings"
	"testing"

	"ogencore/pkg/domain"
)

type stubRuleView struct {
	sources   []domain.LightSource
	sites     []domain.StimulusSite
	intervals []domain.StimulationInterval
}

func (v stubRuleView) ListTargetSets() []domain.TargetSet             { return nil }
func (v stubRuleView) ListStimulusPatterns() []domain.StimulusPattern { return nil }
func (v stubRuleView) ListStimulusSites() []domain.StimulusSite       { return v.sites }
func (v stubRuleView) ListLightSources() []domain.LightSource         { return v.sources }
func (v stubRuleView) ListSpatialLightModulators() []domain.SpatialLightModulator {
	return nil
}
func (v stubRuleView) ListStimulationIntervals() []domain.StimulationInterval {
	return v.intervals
}
func (v stubRuleView) FindTargetSet(string) (domain.TargetSet, bool) {
	return domain.TargetSet{}, false
}
func (v stubRuleView) FindStimulusPattern(string) (domain.StimulusPattern, bool) {
	return domain.StimulusPattern{}, false
}
func (v stubRuleView) FindStimulusSite(id string) (domain.StimulusSite, bool) {
	for _, s := range v.sites {
		if s.ID == id {
			return s, true
		}
	}
	return domain.StimulusSite{}, false
}
func (v stubRuleView) FindLightSource(id string) (domain.LightSource, bool) {
	for _, s := range v.sources {
		if s.ID == id {
			return s, true
		}
	}
	return domain.LightSource{}, false
}
func (v stubRuleView) FindSpatialLightModulator(string) (domain.SpatialLightModulator, bool) {
	return domain.SpatialLightModulator{}, false
}

func floatPtr(f float64) *float64 { return &f }

func TestIntervalOverlapRule(t *testing.T) {
	rule := NewIntervalOverlapRule()
	if rule.Name() != "interval_overlap" {
		t.Fatalf("unexpected rule name %q", rule.Name())
	}

	cases := []struct {
		name      string
		intervals []domain.StimulationInterval
		wantWarns int
	}{
		{
			name: "disjoint windows",
			intervals: []domain.StimulationInterval{
				{RowID: 0, StartTime: 0, StopTime: 1, TargetsID: "t1"},
				{RowID: 1, StartTime: 1, StopTime: 2, TargetsID: "t1"},
			},
			wantWarns: 0,
		},
		{
			name: "overlapping same target",
			intervals: []domain.StimulationInterval{
				{RowID: 0, StartTime: 0, StopTime: 2, TargetsID: "t1"},
				{RowID: 1, StartTime: 1, StopTime: 3, TargetsID: "t1"},
			},
			wantWarns: 1,
		},
		{
			name: "overlapping different targets",
			intervals: []domain.StimulationInterval{
				{RowID: 0, StartTime: 0, StopTime: 2, TargetsID: "t1"},
				{RowID: 1, StartTime: 1, StopTime: 3, TargetsID: "t2"},
			},
			wantWarns: 0,
		},
		{
			name: "touching endpoints are not overlap",
			intervals: []domain.StimulationInterval{
				{RowID: 0, StartTime: 0, StopTime: 1.5, TargetsID: "t1"},
				{RowID: 1, StartTime: 1.5, StopTime: 3, TargetsID: "t1"},
			},
			wantWarns: 0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := rule.Evaluate(context.Background(), stubRuleView{intervals: tc.intervals}, nil)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if len(res.Violations) != tc.wantWarns {
				t.Fatalf("expected %d violations, got %+v", tc.wantWarns, res.Violations)
			}
			for _, v := range res.Violations {
				if v.Severity != domain.SeverityWarn {
					t.Fatalf("expected warn severity, got %s", v.Severity)
				}
			}
		})
	}
}

func TestPowerBudgetRule(t *testing.T) {
	rule := NewPowerBudgetRule()
	if rule.Name() != "power_budget" {
		t.Fatalf("unexpected rule name %q", rule.Name())
	}

	laserID := "laser-1"
	view := stubRuleView{
		sources: []domain.LightSource{{
			Base:      domain.Base{ID: laserID},
			Name:      "laser",
			PeakPower: floatPtr(70),
		}},
		sites: []domain.StimulusSite{{
			Base:          domain.Base{ID: "site-1"},
			LightSourceID: &laserID,
		}},
	}

	cases := []struct {
		name     string
		interval domain.StimulationInterval
		want     bool
	}{
		{
			name:     "scalar within budget",
			interval: domain.StimulationInterval{RowID: 0, Power: floatPtr(70), StimulusSiteID: "site-1"},
			want:     false,
		},
		{
			name:     "scalar over budget",
			interval: domain.StimulationInterval{RowID: 1, Power: floatPtr(85), StimulusSiteID: "site-1"},
			want:     true,
		},
		{
			name:     "per-roi max over budget",
			interval: domain.StimulationInterval{RowID: 2, PowerPerROIs: []float64{10, 90, 30}, StimulusSiteID: "site-1"},
			want:     true,
		},
		{
			name:     "unknown site skipped",
			interval: domain.StimulationInterval{RowID: 3, Power: floatPtr(500), StimulusSiteID: "nope"},
			want:     false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			view.intervals = []domain.StimulationInterval{tc.interval}
			res, err := rule.Evaluate(context.Background(), view, nil)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if got := len(res.Violations) > 0; got != tc.want {
				t.Fatalf("violation = %v, want %v (%+v)", got, tc.want, res.Violations)
			}
			if tc.want && !strings.Contains(res.Violations[0].Message, "peaks at 70") {
				t.Fatalf("unexpected message %q", res.Violations[0].Message)
			}
		})
	}
}

func TestDefaultRulesEngineRegistersBuiltins(t *testing.T) {
	engine := NewDefaultRulesEngine()
	view := stubRuleView{
		intervals: []domain.StimulationInterval{
			{RowID: 0, StartTime: 0, StopTime: 2, TargetsID: "t1"},
			{RowID: 1, StartTime: 1, StopTime: 3, TargetsID: "t1"},
		},
	}
	res, err := engine.Evaluate(context.Background(), view, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 1 {
		t.Fatalf("expected one overlap warning, got %+v", res.Violations)
	}
	if res.HasBlocking() {
		t.Fatal("warnings must not block")
	}
}
