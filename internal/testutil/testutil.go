// Package testutil provides shared fixtures for snapshot, store, and index tests.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/triage/internal/index"
	"github.com/starford/triage/internal/models"
	"github.com/starford/triage/internal/parser"
	"github.com/starford/triage/internal/storage"
	"github.com/starford/triage/internal/summary"
)

// CargoOutput is a captured build log: 4 errors and 3 warnings across three
// files, one uncoded warning without a location, and a trailing summary line.
const CargoOutput = `   Compiling demo v0.1.0 (/work/demo)
warning: unused import: ` + "`std::fmt`" + `
 --> src/render.rs:1:5
  |
1 | use std::fmt;
  |     ^^^^^^^^
  |
  = note: ` + "`#[warn(unused_imports)]`" + ` on by default

error[E0308]: mismatched types
  --> src/lib.rs:10:5
   |
9  | fn width() -> u32 {
   |               --- expected ` + "`u32`" + ` because of return type
10 |     "wide"
   |     ^^^^^^ expected ` + "`u32`" + `, found ` + "`&str`" + `

error[E0425]: cannot find value ` + "`height`" + ` in this scope
  --> src/lib.rs:14:9
   |
14 |         height
   |         ^^^^^^ not found in this scope
   |
   = help: a local variable with a similar name exists: ` + "`weight`" + `

warning: unused variable: ` + "`x`" + `
 --> src/render.rs:7:9
  |
7 |     let x = 5;
  |         ^ help: if this is intentional, prefix it with an underscore: ` + "`_x`" + `

error[E0308]: mismatched types
 --> src/main.rs:3:20
  |
3 |     let n: usize = "3";
  |            -----   ^^^ expected ` + "`usize`" + `, found ` + "`&str`" + `
  |            |
  |            expected due to this

warning: ` + "`demo`" + ` (lib) generated 2 warnings

error[E0308]: mismatched types
  --> src/lib.rs:20:12
   |
20 |     return 1.0;
   |            ^^^ expected ` + "`u32`" + `, found floating-point number
`

// Snapshot parses raw and builds its summary, failing the test on error.
func Snapshot(t *testing.T, raw string) *models.Snapshot {
	t.Helper()
	res, err := parser.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return &models.Snapshot{Records: res.Records, Summary: summary.Build(res.Records)}
}

// TestStore creates a snapshot store in a temporary directory.
func TestStore(t *testing.T, format string) (string, *storage.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewStore(storage.Options{Dir: dir, Format: format})
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// TestDB creates a temporary SQLite search index that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "triage-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
