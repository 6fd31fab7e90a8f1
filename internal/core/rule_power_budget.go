package core

import (
	"context"
	"fmt"

	"ogencore/pkg/domain"
)

// NewPowerBudgetRule returns the rule comparing the power requested by each
// stimulation interval against the peak power of the light source attached to
// its site. Exceeding the peak rating is flagged as a warning; the device may
// clip or the rating may be stale, so the commit is not blocked.
func NewPowerBudgetRule() domain.Rule {
	return powerBudgetRule{}
}

type powerBudgetRule struct{}

func (powerBudgetRule) Name() string { return "power_budget" }

func (powerBudgetRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, interval := range view.ListStimulationIntervals() {
		site, ok := view.FindStimulusSite(interval.StimulusSiteID)
		if !ok || site.LightSourceID == nil {
			continue
		}
		source, ok := view.FindLightSource(*site.LightSourceID)
		if !ok || source.PeakPower == nil {
			continue
		}
		requested := requestedPower(interval)
		if requested <= *source.PeakPower {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "power_budget",
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("row %d requests %g W but light source %s peaks at %g W", interval.RowID, requested, source.ID, *source.PeakPower),
			Entity:   domain.EntityStimulationInterval,
			EntityID: fmt.Sprintf("%d", interval.RowID),
		})
	}
	return res, nil
}

// requestedPower is the scalar power, or the largest per-ROI power when the
// interval stimulates targets at different levels.
func requestedPower(interval domain.StimulationInterval) float64 {
	if interval.Power != nil {
		return *interval.Power
	}
	max := 0.0
	for _, p := range interval.PowerPerROIs {
		if p > max {
			max = p
		}
	}
	return max
}
