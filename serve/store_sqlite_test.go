package serve

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "runs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	if err := store.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	started := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	want := RunRecord{
		ID:           "a1b2c3d4",
		Script:       "/work/echo.py",
		Provider:     "openai",
		Model:        "gpt-4o-mini",
		Succeeded:    true,
		Validated:    true,
		Artifact:     "FROM python:3.12-slim",
		Turns:        3,
		ToolCalls:    []string{"test_dockerfile", "test_dockerfile"},
		InputTokens:  1200,
		OutputTokens: 300,
		CostUSD:      0.0012,
		StartedAt:    started,
		CompletedAt:  started.Add(42 * time.Second),
	}
	if err := store.InsertRun(want); err != nil {
		t.Fatalf("InsertRun() error = %v", err)
	}

	got, err := store.GetRun("a1b2c3d4")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if !got.StartedAt.Equal(want.StartedAt) || !got.CompletedAt.Equal(want.CompletedAt) {
		t.Errorf("times = %v / %v", got.StartedAt, got.CompletedAt)
	}
	got.StartedAt, got.CompletedAt = want.StartedAt, want.CompletedAt
	if !reflect.DeepEqual(*got, want) {
		t.Errorf("GetRun() = %+v\nwant %+v", *got, want)
	}
}

func TestSQLiteStoreGetRunNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.GetRun("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun() error = %v, want ErrRunNotFound", err)
	}
}

func TestSQLiteStoreListRuns(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"first", "second", "third"} {
		err := store.InsertRun(RunRecord{
			ID:          id,
			Script:      "s.py",
			ToolCalls:   []string{},
			StartedAt:   base.Add(time.Duration(i) * time.Minute),
			CompletedAt: base.Add(time.Duration(i)*time.Minute + time.Second),
		})
		if err != nil {
			t.Fatalf("InsertRun(%s) error = %v", id, err)
		}
	}

	runs, err := store.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "third" || runs[1].ID != "second" {
		t.Errorf("ListRuns(2) = %+v", runs)
	}

	if err := store.InsertRun(RunRecord{ID: "first", StartedAt: base, CompletedAt: base}); err == nil {
		t.Error("duplicate run ID should fail")
	}
}

func TestSQLiteStoreListRunsEmpty(t *testing.T) {
	store := newTestStore(t)
	runs, err := store.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if runs == nil || len(runs) != 0 {
		t.Errorf("ListRuns() = %#v, want empty slice", runs)
	}
}
