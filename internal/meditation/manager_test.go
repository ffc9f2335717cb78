package meditation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/meditationbot/internal/snapshot"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeScheduler struct {
	mu   sync.Mutex
	jobs map[int64]Reminder
	err  error
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{jobs: make(map[int64]Reminder)}
}

func (s *fakeScheduler) Schedule(userID int64, hour, minute int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.jobs[userID] = Reminder{Hour: hour, Minute: minute}
	return nil
}

func (s *fakeScheduler) Cancel(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, userID)
}

func (s *fakeScheduler) job(userID int64) (Reminder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.jobs[userID]
	return r, ok
}

type fixture struct {
	mgr   *Manager
	store *snapshot.MemoryStore
	sched *fakeScheduler
	clock *testClock
}

func newFixture(t *testing.T, categories ...string) *fixture {
	t.Helper()
	f := &fixture{
		store: snapshot.NewMemoryStore(),
		sched: newFakeScheduler(),
		clock: &testClock{now: time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)},
	}
	mgr, err := NewManager(Options{
		Store:      f.store,
		Scheduler:  f.sched,
		Categories: categories,
		Now:        f.clock.Now,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	f.mgr = mgr
	return f
}

// upload runs a full upload flow and returns the committed index.
func (f *fixture) upload(t *testing.T, userID int64, fileName, title, category string) int {
	t.Helper()
	ctx := context.Background()
	f.mgr.BeginUpload(ctx, userID)
	if _, err := f.mgr.HandleUpload(ctx, userID, MediaEvent(Media{Ref: "file-" + fileName, FileName: fileName})); err != nil {
		t.Fatalf("media event: %v", err)
	}
	res, err := f.mgr.HandleUpload(ctx, userID, TextEvent(title))
	if err != nil {
		t.Fatalf("title event: %v", err)
	}
	if category != "" {
		res, err = f.mgr.HandleUpload(ctx, userID, CategoryEvent(category))
		if err != nil {
			t.Fatalf("category event: %v", err)
		}
	}
	if res.Step != StepCommitted {
		t.Fatalf("upload ended in step %s", res.Step)
	}
	return res.Index
}

func TestNewManagerRequiresStore(t *testing.T) {
	if _, err := NewManager(Options{}); err == nil {
		t.Fatal("expected error without store")
	}
}

func TestNewManagerNormalizesCategories(t *testing.T) {
	f := newFixture(t, " sleep ", "focus", "sleep", "")
	got := f.mgr.Categories()
	if len(got) != 2 || got[0] != "sleep" || got[1] != "focus" {
		t.Fatalf("Categories = %v", got)
	}
}

func TestRainSoundsScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const uid = 100

	idx := f.upload(t, uid, "rain.mp3", "Rain Sounds", "")
	if idx != 0 {
		t.Fatalf("index = %d, want 0", idx)
	}
	list := f.mgr.Meditations(uid)
	if len(list) != 1 || list[0].Item.Title != "Rain Sounds" || list[0].Item.Kind != MediaAudio {
		t.Fatalf("library = %+v", list)
	}

	if _, err := f.mgr.Start(ctx, uid, 0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.clock.Advance(90 * time.Second)
	done, err := f.mgr.End(ctx, uid)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if done.Minutes != 1 || done.Title != "Rain Sounds" {
		t.Fatalf("completion = %+v", done)
	}

	stats := f.mgr.Stats(uid)
	if stats["Rain Sounds"] != 1 || stats[OverallLabel] != 1 {
		t.Fatalf("stats = %v", stats)
	}
}

func TestDeleteShiftsIndices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const uid = 7

	f.upload(t, uid, "first.mp3", "First", "")
	f.upload(t, uid, "second.mp4", "Second", "")

	removed, err := f.mgr.Delete(ctx, uid, 0)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if removed.Title != "First" {
		t.Fatalf("removed %q, want First", removed.Title)
	}

	list := f.mgr.Meditations(uid)
	if len(list) != 1 || list[0].Index != 0 || list[0].Item.Title != "Second" {
		t.Fatalf("library after delete = %+v", list)
	}

	// Index 0 captured before the delete now addresses the formerly second item.
	item, err := f.mgr.Start(ctx, uid, 0)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if item.Title != "Second" || item.Kind != MediaVideo {
		t.Fatalf("Start(0) = %+v", item)
	}

	if _, err := f.mgr.Delete(ctx, uid, 1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("Delete(1) = %v, want ErrIndexOutOfRange", err)
	}
}

func TestDeletePersistsLibrary(t *testing.T) {
	f := newFixture(t)
	const uid = 7
	f.upload(t, uid, "a.mp3", "A", "")
	f.upload(t, uid, "b.mp3", "B", "")
	if _, err := f.mgr.Delete(context.Background(), uid, 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	data, err := f.store.Load(context.Background(), DocMeditations)
	if err != nil {
		t.Fatalf("load doc: %v", err)
	}
	var doc map[string][]Item
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode doc: %v", err)
	}
	if len(doc["7"]) != 1 || doc["7"][0].Title != "A" {
		t.Fatalf("persisted doc = %s", data)
	}
}

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	f := newFixture(t)
	f.store.SaveErr = errors.New("disk full")
	const uid = 3

	f.upload(t, uid, "waves.ogg", "Waves", "")
	if got := len(f.mgr.Meditations(uid)); got != 1 {
		t.Fatalf("library len = %d, want 1 despite save failure", got)
	}
	if _, err := f.store.Load(context.Background(), DocMeditations); !errors.Is(err, snapshot.ErrNotFound) {
		t.Fatalf("store should be untouched, got %v", err)
	}
}

func TestLoadRestoresDocuments(t *testing.T) {
	store := snapshot.NewMemoryStore()
	store.Put(DocMeditations, []byte(`{"5":[{"title":"Sleep","file_id":"f1","type":"audio","category":"sleep"}]}`))
	store.Put(DocStats, []byte(`{"5":{"Sleep":12,"Общее время":12}}`))
	store.Put(DocReminders, []byte(`{"5":{"hour":21,"minute":30},"6":{"hour":25,"minute":0}}`))

	sched := newFakeScheduler()
	mgr, err := NewManager(Options{Store: store, Scheduler: sched})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := mgr.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	list := mgr.Meditations(5)
	if len(list) != 1 || list[0].Item.FileID != "f1" || list[0].Item.Category != "sleep" {
		t.Fatalf("library = %+v", list)
	}
	if got := mgr.Stats(5).Total(); got != 12 {
		t.Fatalf("total = %d, want 12", got)
	}
	if r, ok := sched.job(5); !ok || r.Hour != 21 || r.Minute != 30 {
		t.Fatalf("reminder for 5 not re-armed: %+v, %v", r, ok)
	}
	if _, ok := mgr.Reminder(6); ok {
		t.Fatal("invalid reminder should be dropped on restore")
	}
}

func TestLoadResetsCorruptDocuments(t *testing.T) {
	store := snapshot.NewMemoryStore()
	store.Put(DocMeditations, []byte(`{not json`))
	store.Put(DocStats, []byte(`{"5":{"Sleep":3,"Общее время":3}}`))

	mgr, err := NewManager(Options{Store: store})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := mgr.Load(context.Background()); err != nil {
		t.Fatalf("Load should tolerate corrupt documents: %v", err)
	}
	if got := len(mgr.Meditations(5)); got != 0 {
		t.Fatalf("corrupt library should load empty, got %d", got)
	}
	if got := mgr.Stats(5).Total(); got != 3 {
		t.Fatalf("healthy document should still load, total = %d", got)
	}
}

func TestLoadPropagatesStoreErrors(t *testing.T) {
	mgr, err := NewManager(Options{Store: failingStore{}})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := mgr.Load(context.Background()); err == nil {
		t.Fatal("expected store error")
	}
}

type failingStore struct{}

func (failingStore) Load(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}
func (failingStore) Save(context.Context, string, []byte) error { return nil }

func (failingStore) Close() error { return nil }

func TestSummaryCountsStores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.upload(t, 1, "a.mp3", "A", "")
	f.upload(t, 2, "b.mp3", "B", "")
	f.upload(t, 2, "c.mp3", "C", "")
	f.mgr.BeginUpload(ctx, 3)
	_ = f.mgr.SetReminder(ctx, 1, 8, 0)
	_, _ = f.mgr.Start(ctx, 2, 1)

	got := f.mgr.Summary()
	want := Summary{Users: 2, Meditations: 3, Reminders: 1, Uploads: 1, Practicing: 1}
	if got != want {
		t.Fatalf("Summary = %+v, want %+v", got, want)
	}
}

func TestConcurrentUsersDoNotInterfere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for uid := int64(1); uid <= 8; uid++ {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				f.mgr.BeginUpload(ctx, uid)
				_, _ = f.mgr.HandleUpload(ctx, uid, MediaEvent(Media{Ref: "ref", FileName: "x.mp3"}))
				_, _ = f.mgr.HandleUpload(ctx, uid, TextEvent(KeepDefaultToken))
				_, _ = f.mgr.Start(ctx, uid, 0)
				_, _ = f.mgr.End(ctx, uid)
			}
		}(uid)
	}
	wg.Wait()

	for uid := int64(1); uid <= 8; uid++ {
		if got := len(f.mgr.Meditations(uid)); got != 10 {
			t.Fatalf("user %d has %d items, want 10", uid, got)
		}
		if got := f.mgr.Stats(uid).Total(); got != 10 {
			t.Fatalf("user %d total = %d, want 10", uid, got)
		}
	}
	if n := len(f.mgr.locks.locks); n != 0 {
		t.Fatalf("user locks leaked: %d", n)
	}
}

func TestPersistIgnoresCancelledContext(t *testing.T) {
	store, err := snapshot.OpenFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	mgr, err := NewManager(Options{Store: store, Scheduler: newFakeScheduler()})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := mgr.SetReminder(ctx, 9, 6, 30); err != nil {
		t.Fatalf("SetReminder: %v", err)
	}
	data, err := store.Load(context.Background(), DocReminders)
	if err != nil {
		t.Fatalf("reminders not saved: %v", err)
	}
	var doc map[string]Reminder
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if doc["9"] != (Reminder{Hour: 6, Minute: 30}) {
		t.Fatalf("reminders = %s", data)
	}
}
