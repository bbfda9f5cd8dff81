package jobs

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	id := uuid.NewString()

	if _, err := store.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown job, got %v", err)
	}
	if err := store.UpdateStatus(ctx, id, StatusFailed, "", "boom"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound when updating unknown job, got %v", err)
	}

	job := Job{ID: id, Kind: KindCompress, Status: StatusPending, InputPath: id + "/original_a.txt"}
	if err := store.Create(ctx, job); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Kind != KindCompress || got.Status != StatusPending || got.InputPath != job.InputPath {
		t.Errorf("unexpected job after create: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	if err := store.UpdateStatus(ctx, id, StatusCompleted, id+"/compressed.hfc", ""); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	got, err = store.Get(ctx, id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != StatusCompleted || got.OutputPath != id+"/compressed.hfc" {
		t.Errorf("unexpected job after update: %+v", got)
	}
	if got.UpdatedAt.Before(got.CreatedAt) {
		t.Errorf("UpdatedAt %v before CreatedAt %v", got.UpdatedAt, got.CreatedAt)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_DuplicateID(t *testing.T) {
	store := NewMemoryStore()
	job := Job{ID: "same", Kind: KindDecompress, Status: StatusPending}
	if err := store.Create(context.Background(), job); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := store.Create(context.Background(), job); err == nil {
		t.Error("expected duplicate create to fail")
	}
}

func TestMemoryStore_Timestamps(t *testing.T) {
	store := NewMemoryStore()
	base := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	tick := base
	store.now = func() time.Time { return tick }

	ctx := context.Background()
	if err := store.Create(ctx, Job{ID: "j", Status: StatusPending}); err != nil {
		t.Fatal(err)
	}
	tick = base.Add(time.Minute)
	if err := store.UpdateStatus(ctx, "j", StatusFailed, "", "bad container"); err != nil {
		t.Fatal(err)
	}
	got, _ := store.Get(ctx, "j")
	if !got.CreatedAt.Equal(base) || !got.UpdatedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("unexpected timestamps: %+v", got)
	}
	if got.Detail != "bad container" {
		t.Errorf("expected detail to be recorded, got %q", got.Detail)
	}
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	store, closeStore, err := OpenStore(ctx, dsn)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer closeStore()
	exerciseStore(t, store)
}

func TestOpenStore_Memory(t *testing.T) {
	store, closeStore, err := OpenStore(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	defer closeStore()
	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("expected a MemoryStore, got %T", store)
	}
}
