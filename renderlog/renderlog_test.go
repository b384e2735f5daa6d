package renderlog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/carrousel/batch"
	"github.com/hazyhaar/carrousel/dbopen"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(dbopen.OpenMemory(t))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func sample(id string, started time.Time) *batch.Result {
	return &batch.Result{
		BatchID:   id,
		StartedAt: started,
		Results: []batch.JobResult{
			{Index: 0, Success: true, SlideNumber: 1, Filename: "a.png", URL: "/output/a.png", DurationMs: 12},
			{Index: 1, Success: false, SlideNumber: 2, Filename: "b.png", Error: "render: timeout", DurationMs: 30},
		},
		Summary: batch.Summary{Total: 2, Successful: 1, Failed: 1, DurationMs: 42},
	}
}

func TestRecordAndGet(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := s.Record(ctx, sample("bat_1", started)); err != nil {
		t.Fatal(err)
	}
	got, err := s.Batch(ctx, "bat_1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.StartedAt.Equal(started) || got.Summary.Failed != 1 || len(got.Results) != 2 {
		t.Fatalf("got %+v", got)
	}
	if got.Results[1].Success || got.Results[1].Error != "render: timeout" || got.Results[0].URL != "/output/a.png" {
		t.Fatalf("results %+v", got.Results)
	}
}

func TestRecord_ReplacesSameBatch(t *testing.T) {
	// WHAT: Recording a batch twice keeps only the latest version.
	// WHY: A retried batch reuses its id; results must not duplicate.
	s := newStore(t)
	ctx := context.Background()
	r := sample("bat_2", time.Now())
	if err := s.Record(ctx, r); err != nil {
		t.Fatal(err)
	}
	r.Results = r.Results[:1]
	r.Summary = batch.Summary{Total: 1, Successful: 1}
	if err := s.Record(ctx, r); err != nil {
		t.Fatal(err)
	}
	got, err := s.Batch(ctx, "bat_2")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Results) != 1 || got.Summary.Total != 1 {
		t.Fatalf("got %+v", got)
	}
}

func TestBatch_NotFound(t *testing.T) {
	s := newStore(t)
	if _, err := s.Batch(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v", err)
	}
}

func TestRecent_NewestFirst(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"bat_a", "bat_b", "bat_c"} {
		if err := s.Record(ctx, sample(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].BatchID != "bat_c" || got[1].BatchID != "bat_b" {
		t.Fatalf("got %+v", got)
	}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "renderlog.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.Record(context.Background(), sample("bat_f", time.Now())); err != nil {
		t.Fatal(err)
	}
}

func TestNew_NilDB(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error")
	}
}
