package diagservice

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/starford/triage/internal/apperr"
	"github.com/starford/triage/internal/build"
	"github.com/starford/triage/internal/index"
	"github.com/starford/triage/internal/models"
	"github.com/starford/triage/internal/storage"
	"github.com/starford/triage/internal/testutil"
)

func testService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	_, store := testutil.TestStore(t, storage.FormatJSON)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(store, append([]Option{WithLogger(logger)}, opts...)...)
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestParse_NoCapture(t *testing.T) {
	svc := testService(t)
	if _, err := svc.Parse(context.Background()); !errors.Is(err, apperr.ErrNoCapture) {
		t.Errorf("error = %v, want ErrNoCapture", err)
	}
}

func TestEngine_NoSnapshot(t *testing.T) {
	svc := testService(t)
	if _, err := svc.Engine(); !errors.Is(err, apperr.ErrNoSnapshot) {
		t.Errorf("error = %v, want ErrNoSnapshot", err)
	}
}

func TestIngest_PersistsSnapshot(t *testing.T) {
	svc := testService(t)
	res, err := svc.Ingest(context.Background(), []byte(testutil.CargoOutput))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Entries != 7 || res.Errors != 4 || res.Warnings != 3 {
		t.Errorf("result = %+v", res)
	}
	if len(res.Checksum) != 64 {
		t.Errorf("checksum = %q", res.Checksum)
	}

	eng, err := svc.Engine()
	if err != nil {
		t.Fatalf("Engine: %v", err)
	}
	if eng.Len() != 7 {
		t.Errorf("engine len = %d, want 7", eng.Len())
	}
	r, err := eng.ByIndex(2)
	if err != nil || r.Code != "E0425" {
		t.Errorf("record 2 = %+v, %v", r, err)
	}
}

func TestParse_Reparse(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()
	if _, err := svc.Ingest(ctx, []byte(testutil.CargoOutput)); err != nil {
		t.Fatal(err)
	}
	res, err := svc.Ingest(ctx, []byte("warning: unused\n --> a.rs:1:1\n"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Entries != 1 {
		t.Errorf("entries = %d, want 1", res.Entries)
	}
	eng, _ := svc.Engine()
	if eng.Len() != 1 {
		t.Errorf("snapshot should be replaced wholesale, len = %d", eng.Len())
	}
}

func TestParse_MalformedLocationFails(t *testing.T) {
	svc := testService(t)
	_, err := svc.Ingest(context.Background(), []byte("error[E1]: bad\n --> a.rs:x:1\n"))
	if !errors.Is(err, apperr.ErrMalformedInput) {
		t.Errorf("error = %v, want ErrMalformedInput", err)
	}
	if _, err := svc.Engine(); !errors.Is(err, apperr.ErrNoSnapshot) {
		t.Errorf("failed parse must not write a snapshot: %v", err)
	}
}

func TestSearch_Disabled(t *testing.T) {
	svc := testService(t)
	if _, err := svc.Search("mismatched", 5); !errors.Is(err, apperr.ErrIndexDisabled) {
		t.Errorf("error = %v, want ErrIndexDisabled", err)
	}
}

func TestSearch_WithIndex(t *testing.T) {
	db := testutil.TestDB(t)
	svc := testService(t, WithIndex(db))
	if _, err := svc.Ingest(context.Background(), []byte(testutil.CargoOutput)); err != nil {
		t.Fatal(err)
	}
	results, err := svc.Search("height", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Index != 2 {
		t.Errorf("results = %+v", results)
	}
	none, err := svc.Search("nothing-like-this", 10)
	if err != nil || none == nil || len(none) != 0 {
		t.Errorf("no-match search = %v, %v; want empty slice", none, err)
	}
}

// brokenIndex fails Replace while broken is set.
type brokenIndex struct {
	index.SearchIndex
	broken bool
}

func (b *brokenIndex) Replace(records []models.Record, checksum string) error {
	if b.broken {
		return errors.New("disk full")
	}
	return b.SearchIndex.Replace(records, checksum)
}

func TestParse_IndexFailureKeepsSnapshot(t *testing.T) {
	idx := &brokenIndex{SearchIndex: testutil.TestDB(t), broken: true}
	svc := testService(t, WithIndex(idx))

	res, err := svc.Ingest(context.Background(), []byte(testutil.CargoOutput))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !res.IndexStale || res.Entries != 7 {
		t.Errorf("result = %+v, want 7 entries with a stale index", res)
	}
	eng, err := svc.Engine()
	if err != nil {
		t.Fatalf("Engine: %v", err)
	}
	if eng.Len() != 7 {
		t.Errorf("snapshot has %d records, want 7", eng.Len())
	}

	idx.broken = false
	res, err = svc.Parse(context.Background())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.IndexStale {
		t.Error("index should be rebuilt on the next parse")
	}
	results, err := svc.Search("height", 10)
	if err != nil || len(results) != 1 {
		t.Errorf("search after rebuild = %+v, %v", results, err)
	}
}

func TestSearch_AdoptsExistingSnapshot(t *testing.T) {
	dir, store := testutil.TestStore(t, storage.FormatJSON)
	plain := New(store)
	if _, err := plain.Ingest(context.Background(), []byte(testutil.CargoOutput)); err != nil {
		t.Fatal(err)
	}

	reopened, err := storage.NewStore(storage.Options{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	db := testutil.TestDB(t)
	svc := New(reopened, WithIndex(db))
	results, err := svc.Search("mismatched", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("len(results) = %d, want 3", len(results))
	}

	if _, err := svc.Parse(context.Background()); err != nil {
		t.Fatal(err)
	}
	if cs, _ := db.Checksum(); cs == adoptedChecksum {
		t.Error("a real parse should replace the adopted index")
	}
}

func TestBuild_SavesCaptureAndParses(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	svc := testService(t, WithBuild(build.Options{
		Command: "sh",
		Args:    []string{"-c", `printf 'error[E0308]: mismatched types\n --> src/lib.rs:1:1\n' 1>&2; exit 101`},
		Timeout: 10 * time.Second,
	}))
	res, err := svc.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res.ExitCode != 101 || res.Parse.Errors != 1 {
		t.Errorf("result = %+v, parse = %+v", res, res.Parse)
	}
	raw, err := svc.Store().LoadCapture()
	if err != nil || len(raw) == 0 {
		t.Errorf("capture = %q, %v", raw, err)
	}
}

func TestWatch_ReparsesOnCaptureChange(t *testing.T) {
	svc := testService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var results []*ParseResult
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Watch(ctx, func(res *ParseResult) {
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		})
	}()

	time.Sleep(100 * time.Millisecond)
	if err := svc.Store().SaveCapture([]byte(testutil.CargoOutput)); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(results) == 1 && results[0].Entries == 7
	}, "capture change did not trigger a re-parse")

	eng, err := svc.Engine()
	if err != nil || eng.Len() != 7 {
		t.Errorf("snapshot after watch: %v", err)
	}

	// Rewriting identical content must not re-parse.
	_ = svc.Store().SaveCapture([]byte(testutil.CargoOutput))
	time.Sleep(500 * time.Millisecond)
	mu.Lock()
	if len(results) != 1 {
		t.Errorf("callbacks = %d, want 1 for unchanged content", len(results))
	}
	mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("watcher did not stop after cancel")
	}
}
