package records

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/HerbHall/chronicle/internal/testutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db := testutil.NewStore(t)
	if err := db.Migrate(context.Background(), "records", migrations()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewStore(db.DB(), 50, 500)
}

func TestStore_InsertThenGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, map[string]any{"text": "hello"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if id != 1 {
		t.Errorf("first id = %d, want 1", id)
	}

	rec, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.ID != id {
		t.Errorf("ID = %d, want %d", rec.ID, id)
	}
	if got := rec.Fields["text"]; got != "hello" {
		t.Errorf("Fields[text] = %v, want %q", got, "hello")
	}
	if rec.CreatedAt.IsZero() || rec.UpdatedAt.IsZero() {
		t.Error("timestamps must be set on insert")
	}
}

func TestStore_Get_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), 42)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(42) error = %v, want ErrNotFound", err)
	}
}

func TestStore_Update_MergesFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, map[string]any{"text": "hello", "status": "pending"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	rec, err := s.Update(ctx, id, map[string]any{"status": "done", "notes": "ok"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := rec.Fields["text"]; got != "hello" {
		t.Errorf("text = %v, want untouched %q", got, "hello")
	}
	if got := rec.Fields["status"]; got != "done" {
		t.Errorf("status = %v, want %q", got, "done")
	}
	if got := rec.Fields["notes"]; got != "ok" {
		t.Errorf("notes = %v, want %q", got, "ok")
	}

	// Persisted, not just returned.
	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Fields["status"] != "done" {
		t.Errorf("persisted status = %v, want %q", got.Fields["status"], "done")
	}
}

func TestStore_Update_NilRemovesKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.Insert(ctx, map[string]any{"text": "hello", "stale": "x"})

	rec, err := s.Update(ctx, id, map[string]any{"stale": nil})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, ok := rec.Fields["stale"]; ok {
		t.Error("nil value should remove the key")
	}
	if rec.Fields["text"] != "hello" {
		t.Error("other keys must survive removal")
	}
}

func TestStore_Update_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Update(context.Background(), 99, map[string]any{"a": 1})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(99) error = %v, want ErrNotFound", err)
	}
}

func TestStore_Delete_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.Insert(ctx, map[string]any{"text": "bye"})

	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	// Second delete of the same id, and delete of a never-existing id,
	// both succeed.
	if err := s.Delete(ctx, id); err != nil {
		t.Errorf("repeat Delete: %v", err)
	}
	if err := s.Delete(ctx, 12345); err != nil {
		t.Errorf("Delete of absent id: %v", err)
	}

	if _, err := s.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestStore_IDsNeverReused(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id1, _ := s.Insert(ctx, map[string]any{"n": 1})
	if err := s.Delete(ctx, id1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	id2, err := s.Insert(ctx, map[string]any{"n": 2})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if id2 <= id1 {
		t.Errorf("id after delete = %d, want > %d (AUTOINCREMENT must not reuse)", id2, id1)
	}
}

func TestStore_List_AllNonDeleted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 5; i++ {
		id, err := s.Insert(ctx, map[string]any{"n": i})
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
		ids = append(ids, id)
	}
	if err := s.Delete(ctx, ids[2]); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	recs, total, err := s.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 4 || len(recs) != 4 {
		t.Fatalf("List returned %d/%d records, want 4", len(recs), total)
	}
	for _, r := range recs {
		if r.ID == ids[2] {
			t.Error("deleted record must not appear in List")
		}
	}
}

func TestStore_List_FieldFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Insert(ctx, map[string]any{"status": "pending"})
	s.Insert(ctx, map[string]any{"status": "done"})
	s.Insert(ctx, map[string]any{"status": "pending"})

	recs, total, err := s.List(ctx, Filter{Field: "status", Equals: "pending"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 || len(recs) != 2 {
		t.Fatalf("filtered List = %d/%d, want 2", len(recs), total)
	}
	for _, r := range recs {
		if r.Fields["status"] != "pending" {
			t.Errorf("record %d status = %v, want pending", r.ID, r.Fields["status"])
		}
	}
}

func TestStore_List_Pagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		s.Insert(ctx, map[string]any{"n": i})
	}

	page1, total, err := s.List(ctx, Filter{Page: 1, PerPage: 3})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 7 || len(page1) != 3 {
		t.Fatalf("page 1 = %d/%d, want 3/7", len(page1), total)
	}
	page3, _, err := s.List(ctx, Filter{Page: 3, PerPage: 3})
	if err != nil {
		t.Fatalf("List page 3: %v", err)
	}
	if len(page3) != 1 {
		t.Errorf("page 3 len = %d, want 1", len(page3))
	}
	// Newest first: page 1 starts at the highest id.
	if page1[0].ID != 7 {
		t.Errorf("page1[0].ID = %d, want 7", page1[0].ID)
	}
}

func TestStore_List_CreatedWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Insert(ctx, map[string]any{"n": 1})

	future := time.Now().UTC().Add(time.Hour)
	recs, total, err := s.List(ctx, Filter{CreatedSince: future})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 0 || len(recs) != 0 {
		t.Errorf("future-window List = %d/%d, want 0", len(recs), total)
	}

	recs, total, err = s.List(ctx, Filter{CreatedUntil: future})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 {
		t.Errorf("until-future List total = %d, want 1", total)
	}
	_ = recs
}

func TestStore_Stats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 0 || stats.Oldest != nil || stats.Newest != nil {
		t.Errorf("empty Stats = %+v, want zeroes", stats)
	}

	s.Insert(ctx, map[string]any{"n": 1})
	s.Insert(ctx, map[string]any{"n": 2})

	stats, err = s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 2 {
		t.Errorf("Total = %d, want 2", stats.Total)
	}
	if stats.Oldest == nil || stats.Newest == nil {
		t.Fatal("Oldest/Newest must be set")
	}
	if stats.Newest.Before(*stats.Oldest) {
		t.Error("Newest must not precede Oldest")
	}
}
