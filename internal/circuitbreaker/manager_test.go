package circuitbreaker

import (
	"context"
	"testing"
	"time"
)

func TestManagerGetOrCreate(t *testing.T) {
	m := NewManager(testLogger())

	first := m.GetOrCreate("distance-matrix", Config{MaxFailures: 2, OpenTimeout: time.Minute})
	second := m.GetOrCreate("distance-matrix", Config{MaxFailures: 9})

	if first != second {
		t.Error("GetOrCreate returned a different breaker for the same name")
	}
	if first.config.MaxFailures != 2 {
		t.Errorf("MaxFailures = %d, want 2", first.config.MaxFailures)
	}
}

func TestManagerSnapshotAndReset(t *testing.T) {
	m := NewManager(testLogger())
	smtp := m.GetOrCreate("smtp", Config{MaxFailures: 1, OpenTimeout: time.Minute})
	m.GetOrCreate("distance-matrix", Config{MaxFailures: 1, OpenTimeout: time.Minute})

	smtp.Execute(context.Background(), fail)

	snapshot := m.Snapshot()
	if len(snapshot) != 2 || snapshot[0].Name != "distance-matrix" || snapshot[1].Name != "smtp" {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
	if snapshot[1].State != "open" {
		t.Errorf("smtp state = %s, want open", snapshot[1].State)
	}

	if !m.Reset("smtp") {
		t.Fatal("Reset(smtp) = false")
	}
	if smtp.State() != StateClosed {
		t.Errorf("state after reset = %s, want closed", smtp.State())
	}
	if m.Reset("missing") {
		t.Error("Reset(missing) = true")
	}
}
