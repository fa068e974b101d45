package storage

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/starford/triage/internal/apperr"
	"github.com/starford/triage/internal/models"
)

func sampleSnapshot() *models.Snapshot {
	return &models.Snapshot{
		Records: []models.Record{
			{
				Index:       0,
				Kind:        models.KindError,
				Code:        "E0308",
				Description: "mismatched types",
				Location:    &models.Location{File: "src/lib.rs", Line: 10, Column: 5},
				Notes:       []string{"expected type `u32`"},
				Helps:       []string{},
				CodeContext: []string{`"wide"`, "^^^^^^ expected `u32`"},
				RawBlock:    "error[E0308]: mismatched types\n --> src/lib.rs:10:5",
			},
			{
				Index:       1,
				Kind:        models.KindWarning,
				Description: "`demo` (lib) generated 1 warning",
				Notes:       []string{},
				Helps:       []string{},
				CodeContext: []string{},
				RawBlock:    "warning: `demo` (lib) generated 1 warning",
			},
		},
		Summary: models.Summary{
			TotalEntries:  2,
			TotalErrors:   1,
			TotalWarnings: 1,
			FilesByCount:  []models.FileCount{{File: "src/lib.rs", Total: 1, Errors: 1}},
			CodesByCount: []models.CodeCount{
				{Code: "error[E0308]", Count: 1, AffectedFiles: []string{"src/lib.rs"}},
				{Code: "warning", Count: 1, AffectedFiles: []string{}},
			},
		},
	}
}

func newStore(t *testing.T, format string) *Store {
	t.Helper()
	s, err := NewStore(Options{Dir: t.TempDir(), Format: format})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestStore_JSONRoundTrip(t *testing.T) {
	s := newStore(t, FormatJSON)
	want := sampleSnapshot()
	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, want)
	}
}

func TestStore_MsgpackRoundTrip(t *testing.T) {
	s := newStore(t, FormatMsgpack)
	want := sampleSnapshot()
	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(got.Records))
	}
	if !reflect.DeepEqual(got.Records[0].Location, want.Records[0].Location) {
		t.Errorf("location = %+v", got.Records[0].Location)
	}
	if got.Records[1].Location != nil {
		t.Errorf("absent location came back as %+v", got.Records[1].Location)
	}
	if !reflect.DeepEqual(got.Records[0].CodeContext, want.Records[0].CodeContext) || got.Records[0].RawBlock != want.Records[0].RawBlock {
		t.Errorf("detail fields = %+v", got.Records[0])
	}
	if !reflect.DeepEqual(got.Summary.FilesByCount, want.Summary.FilesByCount) {
		t.Errorf("files = %+v", got.Summary.FilesByCount)
	}
	if got.Summary.CodesByCount[0].Code != "error[E0308]" || got.Summary.CodesByCount[1].Code != "warning" {
		t.Errorf("code order = %+v", got.Summary.CodesByCount)
	}
	for _, name := range s.Artifacts() {
		if !strings.HasSuffix(name, ".msgpack") {
			t.Errorf("artifact %q should use the msgpack extension", name)
		}
	}
}

func TestStore_SimpleArtifactShape(t *testing.T) {
	s := newStore(t, FormatJSON)
	if err := s.Save(sampleSnapshot()); err != nil {
		t.Fatal(err)
	}
	data, err := s.fs.Read("errors_simple.json")
	if err != nil {
		t.Fatal(err)
	}
	var entries []map[string]any
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[0]["type"] != "error" || entries[0]["code"] != "E0308" {
		t.Errorf("entry = %v", entries[0])
	}
	for _, key := range []string{"notes", "helps", "code_context", "raw_block"} {
		if _, ok := entries[0][key]; ok {
			t.Errorf("simple entry should not carry %q", key)
		}
	}
	if _, ok := entries[1]["location"]; ok {
		t.Errorf("absent location should be omitted: %v", entries[1])
	}

	simple, err := s.LoadSimple()
	if err != nil {
		t.Fatalf("LoadSimple: %v", err)
	}
	if simple[0].Index != 0 || simple[1].Index != 1 {
		t.Errorf("simple indexes = %d, %d", simple[0].Index, simple[1].Index)
	}
}

func TestStore_MissingSnapshot(t *testing.T) {
	s := newStore(t, FormatJSON)
	_, err := s.Load()
	if !errors.Is(err, apperr.ErrNoSnapshot) {
		t.Errorf("error = %v, want ErrNoSnapshot", err)
	}
	if ok, _ := s.Exists(); ok {
		t.Error("Exists should be false before the first save")
	}
}

func TestStore_MissingSummaryOnly(t *testing.T) {
	s := newStore(t, FormatJSON)
	_ = s.Save(sampleSnapshot())
	_ = s.fs.Delete("errors_summary.json")
	if _, err := s.Load(); !errors.Is(err, apperr.ErrNoSnapshot) {
		t.Errorf("error = %v, want ErrNoSnapshot", err)
	}
}

func TestStore_MisalignedArtifacts(t *testing.T) {
	s := newStore(t, FormatJSON)
	_ = s.Save(sampleSnapshot())
	_ = s.fs.Write("errors_simple.json", []byte(`[{"index":0,"type":"error","code":"E0308","description":"mismatched types"}]`))
	_, err := s.Load()
	if err == nil || errors.Is(err, apperr.ErrNoSnapshot) {
		t.Errorf("error = %v, want alignment failure", err)
	}
}

func TestStore_Capture(t *testing.T) {
	s := newStore(t, FormatJSON)
	if _, err := s.LoadCapture(); !errors.Is(err, apperr.ErrNoCapture) {
		t.Errorf("error = %v, want ErrNoCapture", err)
	}
	if err := s.SaveCapture([]byte("warning: x\n")); err != nil {
		t.Fatalf("SaveCapture: %v", err)
	}
	got, err := s.LoadCapture()
	if err != nil || string(got) != "warning: x\n" {
		t.Errorf("capture = %q, %v", got, err)
	}
	if !strings.HasSuffix(s.CapturePath(), DefaultCapture) {
		t.Errorf("capture path = %q", s.CapturePath())
	}
}

func TestNewStore_Isolated(t *testing.T) {
	a := newStore(t, FormatJSON)
	b := newStore(t, FormatJSON)
	_ = a.Save(sampleSnapshot())
	if _, err := b.Load(); !errors.Is(err, apperr.ErrNoSnapshot) {
		t.Errorf("second store should be empty, got %v", err)
	}
}

func TestNewStore_RejectsBadOptions(t *testing.T) {
	if _, err := NewStore(Options{Dir: t.TempDir(), Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, err := NewStore(Options{Dir: t.TempDir(), Capture: "../escape.txt"}); err == nil {
		t.Error("expected error for capture outside the snapshot dir")
	}
}

func TestStore_FormatSwitchRemovesOldArtifacts(t *testing.T) {
	dir := t.TempDir()
	js, err := NewStore(Options{Dir: dir, Format: FormatJSON})
	if err != nil {
		t.Fatal(err)
	}
	if err := js.Save(sampleSnapshot()); err != nil {
		t.Fatal(err)
	}

	mp, err := NewStore(Options{Dir: dir, Format: FormatMsgpack})
	if err != nil {
		t.Fatal(err)
	}
	if err := mp.Save(sampleSnapshot()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	for _, name := range js.Artifacts() {
		if ok, _ := mp.fs.Exists(name); ok {
			t.Errorf("%s should be removed after switching to msgpack", name)
		}
	}
	if ok, _ := mp.Exists(); !ok {
		t.Error("msgpack snapshot should exist")
	}
	if _, err := js.Load(); !errors.Is(err, apperr.ErrNoSnapshot) {
		t.Errorf("json load = %v, want ErrNoSnapshot", err)
	}
}
