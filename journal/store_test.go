package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	store, err := Open(dbPath, "file://migrations")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testJob() JobRecord {
	return JobRecord{
		ID:         "job-1",
		ImagePath:  "in.png",
		OutputPath: "out.png",
		OutWidth:   1920,
		OutHeight:  1080,
		Square:     512,
		Step:       256,
		Prompt:     "a coastal town",
		Fallback:   "coastal scenery, no humans",
	}
}

func TestCreateAndFindResumable(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.CreateJob(ctx, testJob()); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	got, err := store.FindResumable(ctx, "out.png", 1920, 1080, 512, 256)
	if err != nil {
		t.Fatalf("FindResumable() error = %v", err)
	}
	if got.ID != "job-1" || got.Prompt != "a coastal town" {
		t.Errorf("FindResumable() = %+v", got)
	}

	// Different geometry is a different job.
	if _, err := store.FindResumable(ctx, "out.png", 1920, 1080, 1024, 512); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("FindResumable() with other geometry error = %v, want ErrJobNotFound", err)
	}
}

func TestFinishedJobsAreNotResumable(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.CreateJob(ctx, testJob()); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if err := store.SetJobStatus(ctx, "job-1", JobDone); err != nil {
		t.Fatalf("SetJobStatus() error = %v", err)
	}

	if _, err := store.FindResumable(ctx, "out.png", 1920, 1080, 512, 256); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("FindResumable() after completion error = %v, want ErrJobNotFound", err)
	}
}

func TestRegionLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.CreateJob(ctx, testJob()); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	regions := []RegionRecord{
		{JobID: "job-1", Index: 0, Direction: "init", X: 704, Y: 284, Size: 512},
		{JobID: "job-1", Index: 1, Direction: "left", X: 448, Y: 284, Size: 512},
		{JobID: "job-1", Index: 2, Direction: "right", X: 960, Y: 284, Size: 512},
	}
	if err := store.InsertRegions(ctx, regions); err != nil {
		t.Fatalf("InsertRegions() error = %v", err)
	}

	if err := store.MarkRegion(ctx, "job-1", 0, RegionDone, 1, ""); err != nil {
		t.Fatalf("MarkRegion() error = %v", err)
	}
	if err := store.MarkRegion(ctx, "job-1", 1, RegionFailed, 4, "rate limited"); err != nil {
		t.Fatalf("MarkRegion() error = %v", err)
	}

	done, err := store.DoneRegions(ctx, "job-1")
	if err != nil {
		t.Fatalf("DoneRegions() error = %v", err)
	}
	if !done[0] || done[1] || done[2] {
		t.Errorf("DoneRegions() = %v, want only index 0", done)
	}

	recs, err := store.Regions(ctx, "job-1")
	if err != nil {
		t.Fatalf("Regions() error = %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("Regions() returned %d rows, want 3", len(recs))
	}
	if recs[1].Status != RegionFailed || recs[1].Attempts != 4 || recs[1].LastError != "rate limited" {
		t.Errorf("failed region row = %+v", recs[1])
	}
}

func TestInsertRegionsPreservesProgress(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.CreateJob(ctx, testJob()); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	regions := []RegionRecord{
		{JobID: "job-1", Index: 0, Direction: "init", X: 704, Y: 284, Size: 512},
	}
	if err := store.InsertRegions(ctx, regions); err != nil {
		t.Fatalf("InsertRegions() error = %v", err)
	}
	if err := store.MarkRegion(ctx, "job-1", 0, RegionDone, 1, ""); err != nil {
		t.Fatalf("MarkRegion() error = %v", err)
	}

	// Re-inserting the same plan (a resumed job) must not reset progress.
	if err := store.InsertRegions(ctx, regions); err != nil {
		t.Fatalf("InsertRegions() second call error = %v", err)
	}
	done, err := store.DoneRegions(ctx, "job-1")
	if err != nil {
		t.Fatalf("DoneRegions() error = %v", err)
	}
	if !done[0] {
		t.Error("resumed insert reset a completed region")
	}
}

func TestNilStoreIsNoOp(t *testing.T) {
	var store *Store
	ctx := context.Background()

	if err := store.CreateJob(ctx, testJob()); err != nil {
		t.Errorf("nil store CreateJob() error = %v", err)
	}
	if err := store.MarkRegion(ctx, "x", 0, RegionDone, 1, ""); err != nil {
		t.Errorf("nil store MarkRegion() error = %v", err)
	}
	done, err := store.DoneRegions(ctx, "x")
	if err != nil || len(done) != 0 {
		t.Errorf("nil store DoneRegions() = (%v, %v)", done, err)
	}
	if _, err := store.FindResumable(ctx, "out.png", 1, 1, 512, 256); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("nil store FindResumable() error = %v, want ErrJobNotFound", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("nil store Close() error = %v", err)
	}
}
