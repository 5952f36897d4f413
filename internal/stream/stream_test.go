package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperengineering/nutrisync/internal/events"
	"github.com/hyperengineering/nutrisync/internal/store"
	"github.com/hyperengineering/nutrisync/internal/types"
)

type item struct {
	Name string `json:"name"`
	Date string `json:"date"`
	N    int    `json:"n"`
}

// fakeRemote behaves like a backend that keeps what it accepts.
type fakeRemote struct {
	mu      sync.Mutex
	offline bool
	// failNames makes Create fail for matching names even when online.
	failNames map[string]bool
	fixedID   string
	nextID    int
	items     []types.Entry[item]
	creates   int
}

func (f *fakeRemote) setOffline(v bool) {
	f.mu.Lock()
	f.offline = v
	f.mu.Unlock()
}

func (f *fakeRemote) Create(_ context.Context, data item) (types.Entry[item], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.offline || f.failNames[data.Name] {
		return types.Entry[item]{}, errors.New("connection refused")
	}
	id := f.fixedID
	if id == "" {
		f.nextID++
		id = fmt.Sprintf("srv-%d", f.nextID)
	}
	e := types.Confirmed(id, data)
	for i, existing := range f.items {
		if existing.ID == id {
			f.items[i] = e
			return e, nil
		}
	}
	f.items = append(f.items, e)
	return e, nil
}

func (f *fakeRemote) Update(_ context.Context, id string, data item) (types.Entry[item], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return types.Entry[item]{}, errors.New("connection refused")
	}
	for i, existing := range f.items {
		if existing.ID == id {
			f.items[i] = types.Confirmed(id, data)
			return f.items[i], nil
		}
	}
	return types.Entry[item]{}, errors.New("404")
}

func (f *fakeRemote) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return errors.New("connection refused")
	}
	for i, existing := range f.items {
		if existing.ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return errors.New("404")
}

func (f *fakeRemote) ListToday(context.Context) ([]types.Entry[item], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return nil, errors.New("connection refused")
	}
	var out []types.Entry[item]
	for _, e := range f.items {
		if e.Data.Date == "" || e.Data.Date == today {
			out = append(out, e)
		}
	}
	return out, nil
}

type recorder struct {
	mu     sync.Mutex
	events []types.DashboardEvent
}

func (r *recorder) Emit(e types.DashboardEvent) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) count(t types.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

var _ events.Emitter = (*recorder)(nil)

const today = "2025-01-01"

func newTestStream(t *testing.T, remote *fakeRemote) (*Stream[item], *store.SQLiteStore, *recorder) {
	t.Helper()
	q, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	s := New(Config[item]{
		Name:       "items",
		Kind:       store.KindMeal,
		Remote:     remote,
		Queue:      q,
		Bus:        rec,
		DateOf:     func(i item) string { return i.Date },
		ContentKey: func(i item) string { return fmt.Sprintf("%s|%s|%d", i.Name, i.Date, i.N) },
		Now:        func() time.Time { return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC) },
	})
	t.Cleanup(func() {
		s.Close()
		q.Close()
	})
	return s, q, rec
}

func TestStream_CreateOnline(t *testing.T) {
	remote := &fakeRemote{}
	s, q, _ := newTestStream(t, remote)
	ctx := context.Background()

	e, err := s.Create(ctx, item{Name: "Oatmeal", Date: today, N: 300})
	if err != nil {
		t.Fatal(err)
	}
	s.Wait()

	if e.State != types.StateConfirmed || e.ID != "srv-1" {
		t.Errorf("entry = %+v", e)
	}
	all := s.All()
	if len(all) != 1 || all[0].ID != "srv-1" {
		t.Errorf("All = %+v", all)
	}
	if pending, _ := q.Pending(ctx, store.KindMeal); len(pending) != 0 {
		t.Errorf("queue = %d entries, want 0", len(pending))
	}
}

func TestStream_CreateSameServerIDTwice(t *testing.T) {
	s, _, _ := newTestStream(t, &fakeRemote{fixedID: "m1"})
	ctx := context.Background()

	s.Create(ctx, item{Name: "Oatmeal", Date: today, N: 300})
	s.Create(ctx, item{Name: "Oatmeal v2", Date: today, N: 320})
	s.Wait()

	all := s.All()
	if len(all) != 1 {
		t.Fatalf("All len = %d, want 1", len(all))
	}
	if all[0].Data.Name != "Oatmeal v2" {
		t.Errorf("entry = %+v, want latest", all[0])
	}
}

func TestStream_CreateOfflineIsPending(t *testing.T) {
	s, q, _ := newTestStream(t, &fakeRemote{offline: true})
	ctx := context.Background()

	e, err := s.Create(ctx, item{Name: "Oatmeal", Date: today, N: 300})
	if err != nil {
		t.Fatal(err)
	}

	if !e.IsPending() || !IsTempID(e.TempID) {
		t.Errorf("entry = %+v, want pending with temp id", e)
	}
	all := s.All()
	if len(all) != 1 || !all[0].IsPending() {
		t.Errorf("All = %+v", all)
	}
	pending, err := q.Pending(ctx, store.KindMeal)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].TempID != e.TempID {
		t.Errorf("queue = %+v", pending)
	}
}

func TestStream_PendingContentDuplicate(t *testing.T) {
	s, q, _ := newTestStream(t, &fakeRemote{offline: true})
	ctx := context.Background()

	first, _ := s.Create(ctx, item{Name: "Oatmeal", Date: today, N: 300})
	second, _ := s.Create(ctx, item{Name: "Oatmeal", Date: today, N: 300})

	if first.TempID == second.TempID {
		t.Errorf("repeat create reused temp id %s", first.TempID)
	}
	all := s.All()
	if len(all) != 1 || all[0].TempID != second.TempID {
		t.Errorf("All = %+v, want only the latest pending entry", all)
	}
	if pending, _ := q.Pending(ctx, store.KindMeal); len(pending) != 2 {
		t.Errorf("queue len = %d, want 2", len(pending))
	}
}

func TestStream_SyncPartialFailure(t *testing.T) {
	remote := &fakeRemote{offline: true, failNames: map[string]bool{"Soup": true}}
	s, q, rec := newTestStream(t, remote)
	ctx := context.Background()

	oat, _ := s.Create(ctx, item{Name: "Oatmeal", Date: today, N: 300})
	soup, _ := s.Create(ctx, item{Name: "Soup", Date: today, N: 100})

	remote.setOffline(false)
	synced, err := s.SyncLocalToRemote(ctx)
	s.Wait()

	if !errors.Is(err, ErrSyncIncomplete) {
		t.Fatalf("err = %v, want ErrSyncIncomplete", err)
	}
	if len(synced) != 1 || synced[0].Data.Name != "Oatmeal" {
		t.Errorf("synced = %+v", synced)
	}

	pending, _ := q.Pending(ctx, store.KindMeal)
	if len(pending) != 1 || pending[0].TempID != soup.TempID {
		t.Fatalf("queue = %+v, want only soup", pending)
	}
	if pending[0].Attempts != 1 || pending[0].LastError == "" {
		t.Errorf("soup attempts=%d last_error=%q", pending[0].Attempts, pending[0].LastError)
	}

	var confirmed, stillPending int
	for _, e := range s.All() {
		switch {
		case e.IsPending() && e.TempID == soup.TempID:
			stillPending++
		case !e.IsPending() && e.Data.Name == "Oatmeal":
			confirmed++
		case e.IsPending() && e.TempID == oat.TempID:
			t.Error("synced entry still pending")
		}
	}
	if confirmed != 1 || stillPending != 1 {
		t.Errorf("All = %+v", s.All())
	}
	if rec.count(types.EventRefreshData) == 0 {
		t.Error("no REFRESH_DATA after sync")
	}
}

func TestStream_SyncOtherDayLeavesToday(t *testing.T) {
	remote := &fakeRemote{offline: true}
	s, q, _ := newTestStream(t, remote)
	ctx := context.Background()

	s.Create(ctx, item{Name: "Late snack", Date: "2024-12-31", N: 200})
	s.Create(ctx, item{Name: "Oatmeal", Date: today, N: 300})

	remote.setOffline(false)
	synced, err := s.SyncLocalToRemote(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(synced) != 2 {
		t.Fatalf("synced = %d, want 2", len(synced))
	}
	for _, e := range s.All() {
		if e.Data.Date != today {
			t.Errorf("entry for %s in today's list: %+v", e.Data.Date, e)
		}
	}
	s.Wait()

	all := s.All()
	if len(all) != 1 || all[0].Data.Name != "Oatmeal" || all[0].IsPending() {
		t.Errorf("All = %+v", all)
	}
	if pending, _ := q.Pending(ctx, store.KindMeal); len(pending) != 0 {
		t.Errorf("queue = %+v, want empty", pending)
	}
}

func TestStream_SyncEmptyQueue(t *testing.T) {
	s, _, rec := newTestStream(t, &fakeRemote{})

	synced, err := s.SyncLocalToRemote(context.Background())
	if err != nil || len(synced) != 0 {
		t.Errorf("synced=%v err=%v", synced, err)
	}
	if rec.count(types.EventRefreshData) != 0 {
		t.Error("REFRESH_DATA emitted with nothing synced")
	}
}

func TestStream_SyncResult(t *testing.T) {
	remote := &fakeRemote{offline: true}
	s, _, _ := newTestStream(t, remote)
	ctx := context.Background()

	s.Create(ctx, item{Name: "A", Date: today})
	s.Create(ctx, item{Name: "B", Date: today})
	remote.setOffline(false)

	res, err := s.Sync(ctx)
	s.Wait()
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != "items" || res.Pushed != 2 || res.Failed != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestStream_RefreshTodayFallsBackToQueue(t *testing.T) {
	remote := &fakeRemote{offline: true}
	s, _, _ := newTestStream(t, remote)
	ctx := context.Background()

	s.Create(ctx, item{Name: "Today", Date: today})
	s.Create(ctx, item{Name: "Yesterday", Date: "2024-12-31"})

	err := s.RefreshToday(ctx)
	if err == nil {
		t.Fatal("expected backend error")
	}
	all := s.All()
	if len(all) != 1 || all[0].Data.Name != "Today" {
		t.Errorf("All = %+v, want only today's pending entry", all)
	}
}

func TestStream_RefreshTodayMergesPending(t *testing.T) {
	remote := &fakeRemote{}
	s, _, _ := newTestStream(t, remote)
	ctx := context.Background()

	s.Create(ctx, item{Name: "Confirmed", Date: today})
	s.Wait()
	remote.setOffline(true)
	s.Create(ctx, item{Name: "Queued", Date: today})
	remote.setOffline(false)

	if err := s.RefreshToday(ctx); err != nil {
		t.Fatal(err)
	}
	all := s.All()
	if len(all) != 2 || all[0].IsPending() || !all[1].IsPending() {
		t.Errorf("All = %+v", all)
	}
}

func TestStream_UpdateAndDelete(t *testing.T) {
	remote := &fakeRemote{}
	s, _, rec := newTestStream(t, remote)
	ctx := context.Background()

	e, _ := s.Create(ctx, item{Name: "Soup", Date: today, N: 100})
	s.Wait()

	if _, err := s.Update(ctx, e.ID, item{Name: "Soup", Date: today, N: 150}); err != nil {
		t.Fatal(err)
	}
	s.Wait()
	if all := s.All(); len(all) != 1 || all[0].Data.N != 150 {
		t.Errorf("after update All = %+v", all)
	}

	if err := s.Delete(ctx, e.ID); err != nil {
		t.Fatal(err)
	}
	s.Wait()
	if all := s.All(); len(all) != 0 {
		t.Errorf("after delete All = %+v", all)
	}
	if rec.count(types.EventRefreshData) != 2 {
		t.Errorf("REFRESH_DATA count = %d, want 2", rec.count(types.EventRefreshData))
	}
}

func TestStream_UpdateRemoteFailure(t *testing.T) {
	remote := &fakeRemote{}
	s, _, rec := newTestStream(t, remote)
	ctx := context.Background()

	e, _ := s.Create(ctx, item{Name: "Soup", Date: today})
	s.Wait()
	remote.setOffline(true)

	if _, err := s.Update(ctx, e.ID, item{Name: "Stew", Date: today}); err == nil {
		t.Error("expected error")
	}
	s.Wait()
	if rec.count(types.EventRefreshData) != 1 {
		t.Error("REFRESH_DATA not emitted on failed update")
	}
}

func TestStream_PendingUpdateAndDelete(t *testing.T) {
	s, q, _ := newTestStream(t, &fakeRemote{offline: true})
	ctx := context.Background()

	e, _ := s.Create(ctx, item{Name: "Soup", Date: today, N: 100})

	if _, err := s.Update(ctx, e.TempID, item{Name: "Soup", Date: today, N: 120}); err != nil {
		t.Fatal(err)
	}
	pending, _ := q.Pending(ctx, store.KindMeal)
	if len(pending) != 1 || !strings.Contains(string(pending[0].Payload), `"n":120`) {
		t.Errorf("queue = %+v", pending)
	}

	if err := s.Delete(ctx, e.TempID); err != nil {
		t.Fatal(err)
	}
	if pending, _ := q.Pending(ctx, store.KindMeal); len(pending) != 0 {
		t.Errorf("queue len = %d after delete", len(pending))
	}
	if len(s.All()) != 0 {
		t.Errorf("All = %+v", s.All())
	}

	if err := s.Delete(ctx, e.TempID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestStream_SubscribeIndependent(t *testing.T) {
	s, _, _ := newTestStream(t, &fakeRemote{offline: true})
	ctx := context.Background()

	var a, b int
	offA := s.Subscribe(func([]types.Entry[item]) { a++ })
	offB := s.Subscribe(func([]types.Entry[item]) { b++ })
	defer offB()

	s.Create(ctx, item{Name: "One", Date: today})
	offA()
	s.Create(ctx, item{Name: "Two", Date: today})

	// One replay each, then one or two changes.
	if a != 2 {
		t.Errorf("a = %d, want 2", a)
	}
	if b != 3 {
		t.Errorf("b = %d, want 3", b)
	}
}

func TestStreamUpsert(t *testing.T) {
	s := New(Config[item]{
		Name:       "items",
		ContentKey: func(i item) string { return i.Name },
	})
	defer s.Close()

	tests := []struct {
		name     string
		list     []types.Entry[item]
		incoming types.Entry[item]
		wantLen  int
		check    func(t *testing.T, out []types.Entry[item])
	}{
		{
			name:     "empty appends",
			incoming: types.Confirmed("1", item{Name: "a"}),
			wantLen:  1,
		},
		{
			name:     "same confirmed id replaces",
			list:     []types.Entry[item]{types.Confirmed("1", item{Name: "a"})},
			incoming: types.Confirmed("1", item{Name: "b"}),
			wantLen:  1,
			check: func(t *testing.T, out []types.Entry[item]) {
				if out[0].Data.Name != "b" {
					t.Errorf("out[0] = %+v", out[0])
				}
			},
		},
		{
			name:     "confirmed replaces pending with same content",
			list:     []types.Entry[item]{types.PendingLocal("local-1", item{Name: "a"})},
			incoming: types.Confirmed("9", item{Name: "a"}),
			wantLen:  1,
			check: func(t *testing.T, out []types.Entry[item]) {
				if out[0].IsPending() {
					t.Error("pending entry not replaced")
				}
			},
		},
		{
			name:     "confirmed does not replace confirmed by content",
			list:     []types.Entry[item]{types.Confirmed("1", item{Name: "a"})},
			incoming: types.Confirmed("2", item{Name: "a"}),
			wantLen:  2,
		},
		{
			name:     "pending same temp id replaces",
			list:     []types.Entry[item]{types.PendingLocal("local-1", item{Name: "a"})},
			incoming: types.PendingLocal("local-1", item{Name: "z"}),
			wantLen:  1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := s.upsert(tt.list, tt.incoming)
			if len(out) != tt.wantLen {
				t.Fatalf("len = %d, want %d: %+v", len(out), tt.wantLen, out)
			}
			if tt.check != nil {
				tt.check(t, out)
			}
		})
	}
}

func TestIsTempID(t *testing.T) {
	id := NewTempID()
	if !IsTempID(id) {
		t.Errorf("IsTempID(%q) = false", id)
	}
	if IsTempID("42") {
		t.Error("IsTempID(42) = true")
	}
}
