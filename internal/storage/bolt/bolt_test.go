package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/goodtune/refocus/internal/storage"
)

func TestCounterStoreOverwrite(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	counters := store.Counters()

	if err := counters.Set(ctx, storage.KeyScrollCount, 25); err != nil {
		t.Fatalf("set scroll count: %v", err)
	}
	if err := counters.Set(ctx, storage.KeyScrollCount, 105); err != nil {
		t.Fatalf("overwrite scroll count: %v", err)
	}
	if err := counters.Set(ctx, storage.KeyTabSwitchCount, 3); err != nil {
		t.Fatalf("set tab switch count: %v", err)
	}

	snapshot, err := counters.Get(ctx, storage.AllKeys...)
	if err != nil {
		t.Fatalf("get counters: %v", err)
	}
	if snapshot.Value(storage.KeyScrollCount) != 105 {
		t.Errorf("expected scroll count 105, got %d", snapshot.Value(storage.KeyScrollCount))
	}
	if snapshot.Value(storage.KeyTabSwitchCount) != 3 {
		t.Errorf("expected tab switch count 3, got %d", snapshot.Value(storage.KeyTabSwitchCount))
	}
	if _, ok := snapshot[storage.KeyTimeOnSite]; ok {
		t.Error("expected unwritten key to be absent from snapshot")
	}
}

func TestCounterStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refocus.bolt")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Counters().Set(context.Background(), storage.KeyTimeOnSite, 901); err != nil {
		t.Fatalf("set time on site: %v", err)
	}
	_ = store.Close()

	store, err = Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer func() { _ = store.Close() }()

	snapshot, err := store.Counters().Get(context.Background(), storage.KeyTimeOnSite)
	if err != nil {
		t.Fatalf("get counters: %v", err)
	}
	if snapshot.Value(storage.KeyTimeOnSite) != 901 {
		t.Errorf("expected 901, got %d", snapshot.Value(storage.KeyTimeOnSite))
	}
}

func TestWarningStoreListNewestFirst(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	warnings := store.Warnings()
	base := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

	records := []storage.WarningRecord{
		{Timestamp: base, TabID: 1, Kind: "scroll", Message: "first"},
		{Timestamp: base.Add(time.Minute), TabID: 2, Kind: "tab_switch", Message: "second"},
		{Timestamp: base.Add(2 * time.Minute), TabID: 1, Kind: "time", Message: "third"},
	}
	for _, r := range records {
		if err := warnings.Add(ctx, r); err != nil {
			t.Fatalf("add warning: %v", err)
		}
	}

	all, err := warnings.List(ctx, storage.WarningFilter{})
	if err != nil {
		t.Fatalf("list warnings: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 warnings, got %d", len(all))
	}
	if all[0].Message != "third" || all[2].Message != "first" {
		t.Errorf("expected newest first, got %q..%q", all[0].Message, all[2].Message)
	}
	if all[0].ID == "" {
		t.Error("expected generated ID")
	}

	tabID := 1
	tab1, err := warnings.List(ctx, storage.WarningFilter{TabID: &tabID, Limit: 1})
	if err != nil {
		t.Fatalf("list tab warnings: %v", err)
	}
	if len(tab1) != 1 || tab1[0].Message != "third" {
		t.Errorf("unexpected filtered result %+v", tab1)
	}

	scroll, err := warnings.List(ctx, storage.WarningFilter{Kind: "scroll"})
	if err != nil {
		t.Fatalf("list scroll warnings: %v", err)
	}
	if len(scroll) != 1 || scroll[0].Message != "first" {
		t.Errorf("unexpected kind filter result %+v", scroll)
	}
}

func TestWarningStoreFilterTabZero(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	warnings := store.Warnings()
	base := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

	for i, tab := range []int{0, 3, 0} {
		r := storage.WarningRecord{Timestamp: base.Add(time.Duration(i) * time.Minute), TabID: tab, Kind: "scroll"}
		if err := warnings.Add(ctx, r); err != nil {
			t.Fatalf("add warning: %v", err)
		}
	}

	zero := 0
	got, err := warnings.List(ctx, storage.WarningFilter{TabID: &zero})
	if err != nil {
		t.Fatalf("list tab 0 warnings: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 warnings for tab 0, got %d", len(got))
	}
	for _, r := range got {
		if r.TabID != 0 {
			t.Errorf("unexpected tab %d in tab 0 result", r.TabID)
		}
	}
}

func TestWarningStoreGet(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	warnings := store.Warnings()
	base := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

	if err := warnings.Add(ctx, storage.WarningRecord{Timestamp: base, Kind: "scroll", Message: "generated"}); err != nil {
		t.Fatalf("add warning: %v", err)
	}
	if err := warnings.Add(ctx, storage.WarningRecord{ID: "w-1", Timestamp: base.Add(time.Minute), Kind: "time", Message: "explicit"}); err != nil {
		t.Fatalf("add warning: %v", err)
	}

	all, err := warnings.List(ctx, storage.WarningFilter{Kind: "scroll"})
	if err != nil || len(all) != 1 {
		t.Fatalf("list warnings: %v (%d records)", err, len(all))
	}

	got, err := warnings.Get(ctx, all[0].ID)
	if err != nil {
		t.Fatalf("get generated id: %v", err)
	}
	if got.Message != "generated" {
		t.Errorf("expected generated record, got %+v", got)
	}

	got, err = warnings.Get(ctx, "w-1")
	if err != nil {
		t.Fatalf("get explicit id: %v", err)
	}
	if got.Message != "explicit" {
		t.Errorf("expected explicit record, got %+v", got)
	}

	if _, err := warnings.Get(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestWarningStoreDeleteBefore(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	warnings := store.Warnings()
	now := time.Now().UTC()

	for _, ts := range []time.Time{now.Add(-72 * time.Hour), now.Add(-48 * time.Hour), now} {
		if err := warnings.Add(ctx, storage.WarningRecord{Timestamp: ts, Kind: "scroll"}); err != nil {
			t.Fatalf("add warning: %v", err)
		}
	}

	deleted, err := warnings.DeleteBefore(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("delete warnings: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted warnings, got %d", deleted)
	}

	remaining, err := warnings.List(ctx, storage.WarningFilter{})
	if err != nil {
		t.Fatalf("list warnings: %v", err)
	}
	if len(remaining) != 1 {
		t.Errorf("expected 1 remaining warning, got %d", len(remaining))
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "refocus.bolt")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}
