package core

import (
	"context"
	"fmt"

	"ogencore/pkg/domain"
)

// NewIntervalOverlapRule returns the rule flagging stimulation intervals over
// the same target set whose time ranges overlap. Overlaps are legal (a target
// can be re-stimulated) but usually indicate an acquisition mistake, so the
// rule warns without blocking the commit.
func NewIntervalOverlapRule() domain.Rule {
	return intervalOverlapRule{}
}

type intervalOverlapRule struct{}

func (intervalOverlapRule) Name() string { return "interval_overlap" }

func (intervalOverlapRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	byTarget := make(map[string][]domain.StimulationInterval)
	for _, interval := range view.ListStimulationIntervals() {
		byTarget[interval.TargetsID] = append(byTarget[interval.TargetsID], interval)
	}

	res := domain.Result{}
	for targetsID, intervals := range byTarget {
		for i := 0; i < len(intervals); i++ {
			for j := i + 1; j < len(intervals); j++ {
				a, b := intervals[i], intervals[j]
				if a.StartTime < b.StopTime && b.StartTime < a.StopTime {
					res.Violations = append(res.Violations, domain.Violation{
						Rule:     "interval_overlap",
						Severity: domain.SeverityWarn,
						Message:  fmt.Sprintf("rows %d and %d stimulate target set %s in overlapping windows [%g,%g) and [%g,%g)", a.RowID, b.RowID, targetsID, a.StartTime, a.StopTime, b.StartTime, b.StopTime),
						Entity:   domain.EntityStimulationInterval,
						EntityID: fmt.Sprintf("%d", b.RowID),
					})
				}
			}
		}
	}
	return res, nil
}
