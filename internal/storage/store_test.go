package storage

import (
	"context"
	"testing"

	"github.com/mode89/go-trainer/internal/model"
)

func testSnapshot(runID string, generation int, fitness float64) model.Snapshot {
	return model.Snapshot{
		VersionedRecord: CurrentVersion(),
		RunID:           runID,
		Generation:      generation,
		Fitness:         fitness,
		Network: model.NetworkRecord{
			Inputs: 1,
			Layers: [][]model.NeuronRecord{{{Threshold: 0.25, Weights: []float64{-0.5}}}},
		},
	}
}

// exerciseStore checks the behavior every Store implementation shares.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := store.GetSnapshot(ctx, "missing"); err != nil || ok {
		t.Fatalf("missing snapshot: ok=%v err=%v", ok, err)
	}

	if err := store.SaveSnapshot(ctx, testSnapshot("run-1", 3, 0.5)); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	if err := store.SaveSnapshot(ctx, testSnapshot("run-1", 7, 0.25)); err != nil {
		t.Fatalf("overwrite snapshot: %v", err)
	}
	snapshot, ok, err := store.GetSnapshot(ctx, "run-1")
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted snapshot")
	}
	if snapshot.Generation != 7 || snapshot.Fitness != 0.25 || snapshot.Network.Layers[0][0].Weights[0] != -0.5 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}

	history := []float64{3, 2, 1}
	if err := store.SaveFitnessHistory(ctx, "run-1", history); err != nil {
		t.Fatalf("save history: %v", err)
	}
	history[0] = 99
	gotHistory, ok, err := store.GetFitnessHistory(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get history: ok=%v err=%v", ok, err)
	}
	if len(gotHistory) != 3 || gotHistory[0] != 3 || gotHistory[2] != 1 {
		t.Fatalf("unexpected history: %v", gotHistory)
	}

	diagnostics := []model.GenerationDiagnostics{
		{Generation: 1, BestFitness: 3, MeanFitness: 4, WorstFitness: 5, Episodes: 10},
		{Generation: 2, BestFitness: 2, MeanFitness: 3, WorstFitness: 4, Episodes: 10, Failures: 1},
	}
	if err := store.SaveGenerationDiagnostics(ctx, "run-1", diagnostics); err != nil {
		t.Fatalf("save diagnostics: %v", err)
	}
	gotDiagnostics, ok, err := store.GetGenerationDiagnostics(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get diagnostics: ok=%v err=%v", ok, err)
	}
	if len(gotDiagnostics) != 2 || gotDiagnostics[1].Failures != 1 {
		t.Fatalf("unexpected diagnostics: %+v", gotDiagnostics)
	}
	if _, ok, err := store.GetGenerationDiagnostics(ctx, "run-2"); err != nil || ok {
		t.Fatalf("missing diagnostics: ok=%v err=%v", ok, err)
	}

	summaries := []model.RunSummary{
		{VersionedRecord: CurrentVersion(), RunID: "run-b", StartedAt: "2026-01-02T00:00:00Z", Scape: "go9"},
		{VersionedRecord: CurrentVersion(), RunID: "run-a", StartedAt: "2026-01-01T00:00:00Z", Scape: "xor"},
		{VersionedRecord: CurrentVersion(), RunID: "run-c", StartedAt: "2026-01-02T00:00:00Z", Scape: "go9"},
	}
	for _, summary := range summaries {
		if err := store.SaveRunSummary(ctx, summary); err != nil {
			t.Fatalf("save run %s: %v", summary.RunID, err)
		}
	}
	summaries[1].Generations = 40
	if err := store.SaveRunSummary(ctx, summaries[1]); err != nil {
		t.Fatalf("update run: %v", err)
	}
	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 3 || runs[0].RunID != "run-a" || runs[1].RunID != "run-b" || runs[2].RunID != "run-c" {
		t.Fatalf("unexpected run order: %+v", runs)
	}
	summary, ok, err := store.GetRunSummary(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get run: ok=%v err=%v", ok, err)
	}
	if summary.Generations != 40 {
		t.Fatalf("run summary not updated: %+v", summary)
	}
}
