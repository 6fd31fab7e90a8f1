package core

import (
	"bytes"
	"context"
	"expvar"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestExpvarMetricsRecorder(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	if !strings.HasPrefix(rec.Name(), "stimtable_service_metrics_") {
		t.Fatalf("unexpected generated name %q", rec.Name())
	}
	if expvar.Get(rec.Name()) == nil {
		t.Fatalf("recorder %q not published", rec.Name())
	}

	ctx := context.Background()
	rec.Observe(ctx, "append_stimulation_interval", true, 20*time.Millisecond)
	rec.Observe(ctx, "append_stimulation_interval", true, 30*time.Millisecond)
	rec.Observe(ctx, "append_stimulation_interval", false, 5*time.Millisecond)
	rec.Observe(ctx, "", true, time.Millisecond) // ignored

	snap := rec.Snapshot()
	if got := snap.DurationsMS["append_stimulation_interval"]; got != 55 {
		t.Fatalf("expected 55ms total, got %v", got)
	}
	if got := snap.Results["append_stimulation_interval"]["success"]; got != 2 {
		t.Fatalf("expected 2 successes, got %d", got)
	}
	if got := snap.Results["append_stimulation_interval"]["error"]; got != 1 {
		t.Fatalf("expected 1 error, got %d", got)
	}
	if _, ok := snap.Results[""]; ok {
		t.Fatal("empty operation must be ignored")
	}
}

func TestExpvarMetricsRecorderNamed(t *testing.T) {
	name := fmt.Sprintf("custom_metrics_%d", time.Now().UnixNano())
	rec := NewExpvarMetricsRecorder(name)
	if rec.Name() != name {
		t.Fatalf("expected name %q, got %q", name, rec.Name())
	}
}

func TestJSONTracer(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)

	_, span := tracer.Start(context.Background(), "create_target_set")
	span.End(nil)
	_, span = tracer.Start(context.Background(), "append_stimulation_interval")
	span.End(fmt.Errorf("rejected"))

	entries := tracer.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Operation != "create_target_set" || entries[0].Status != "success" {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	if entries[1].Status != "error" || entries[1].Error != "rejected" {
		t.Fatalf("unexpected second entry %+v", entries[1])
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 JSON lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], `"status":"error"`) {
		t.Fatalf("unexpected encoded span %q", lines[1])
	}
}

func TestJSONTracerNilWriter(t *testing.T) {
	tracer := NewJSONTracer(nil)
	_, span := tracer.Start(context.Background(), "op")
	span.End(nil)
	if len(tracer.Entries()) != 1 {
		t.Fatal("entries must be retained without a writer")
	}
}
