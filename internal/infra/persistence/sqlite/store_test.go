package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"ogencore/pkg/domain"
)

func TestSQLiteStorePersistAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	var targetsID, patternID, siteID string
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		site, err := tx.CreateStimulusSite(domain.StimulusSite{Name: "Site", Location: "V1", ExcitationLambda: 1035, Effector: "ChR2"})
		if err != nil {
			return err
		}
		targets, err := tx.CreateTargetSet(domain.TargetSet{Name: "Hologram", TargetedROIs: []int{0, 1, 2}})
		if err != nil {
			return err
		}
		pattern, err := tx.CreateStimulusPattern(domain.StimulusPattern{
			Name:      "Sweep",
			Kind:      domain.PatternGeneric2D,
			Generic2D: &domain.SweepPattern{SweepSize: []float64{5}},
		})
		if err != nil {
			return err
		}
		targetsID, patternID, siteID = targets.ID, pattern.ID, site.ID
		_, err = tx.AppendStimulationInterval(domain.IntervalCandidate{
			StartTime:         0.0,
			StopTime:          1.0,
			Power:             domain.Scalar(70.0),
			TargetsID:         targetsID,
			StimulusPatternID: patternID,
			StimulusSiteID:    siteID,
		})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	reloaded, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	rows := reloaded.ListStimulationIntervals()
	if len(rows) != 1 {
		t.Fatalf("expected 1 interval after reload, got %d", len(rows))
	}
	if rows[0].RowID != 0 {
		t.Fatalf("expected row id 0 after reload, got %d", rows[0].RowID)
	}

	// The row-id watermark must survive the round-trip.
	if _, err := reloaded.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		row, err := tx.AppendStimulationInterval(domain.IntervalCandidate{
			StartTime:         2.0,
			StopTime:          3.0,
			Power:             domain.Scalar(1.0),
			TargetsID:         targetsID,
			StimulusPatternID: patternID,
			StimulusSiteID:    siteID,
		})
		if err != nil {
			return err
		}
		if row.RowID != 1 {
			t.Fatalf("expected row id 1 after reload, got %d", row.RowID)
		}
		return nil
	}); err != nil {
		t.Fatalf("append after reload: %v", err)
	}
}

func TestSQLiteStoreRejectedAppendNotPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		targets, err := tx.CreateTargetSet(domain.TargetSet{Name: "Hologram", TargetedROIs: []int{0, 1}})
		if err != nil {
			return err
		}
		_, err = tx.AppendStimulationInterval(domain.IntervalCandidate{
			StartTime: 0.0,
			StopTime:  1.0,
			TargetsID: targets.ID,
		})
		return err
	})
	if err == nil {
		t.Fatalf("expected append rejection")
	}
	reloaded, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := len(reloaded.ListTargetSets()); got != 0 {
		t.Fatalf("rejected transaction must not persist, got %d target sets", got)
	}
}

func TestSQLiteStoreCreatesStateTable(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "state.db"), domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.DB().Close() })
	var tableName string
	if err := store.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='state'").Scan(&tableName); err != nil {
		t.Fatalf("lookup state table: %v", err)
	}
	if tableName != "state" {
		t.Fatalf("expected state table, got %s", tableName)
	}
}
