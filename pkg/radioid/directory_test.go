package radioid

import (
	"os"
	"testing"

	"github.com/kb9vcn/dmr-relay/pkg/logger"
)

func testLog() *logger.Logger { return logger.New(logger.Config{Level: "error"}) }

func newTestDirectory(t *testing.T, path string) (*Directory, func()) {
	t.Helper()
	dir, err := Open(Config{Path: path}, testLog())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return dir, func() {
		dir.Close()
		os.Remove(path)
	}
}

func TestOpen(t *testing.T) {
	dir, cleanup := newTestDirectory(t, "/tmp/test_radioid_open.db")
	defer cleanup()

	if dir.conn == nil {
		t.Error("expected non-nil connection")
	}
}

func TestOpen_DefaultPath(t *testing.T) {
	defer os.Remove("radioid.db")

	dir, err := Open(Config{}, testLog())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer dir.Close()
}

func TestDirectory_RefreshThenLookup(t *testing.T) {
	dir, cleanup := newTestDirectory(t, "/tmp/test_radioid_refresh.db")
	defer cleanup()

	users := []User{
		{RadioID: 3138617, Callsign: "K7ABC", FirstName: "John", City: "Seattle"},
		{RadioID: 3200449, Callsign: "W7XYZ"},
	}
	if err := dir.Refresh(users, 10); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	got, ok := dir.Lookup(3138617)
	if !ok {
		t.Fatal("expected a hit after refresh")
	}
	if got.Callsign != "K7ABC" {
		t.Errorf("Callsign = %q, want K7ABC", got.Callsign)
	}

	if count, _ := dir.Count(); count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestDirectory_LookupMiss(t *testing.T) {
	dir, cleanup := newTestDirectory(t, "/tmp/test_radioid_miss.db")
	defer cleanup()

	if _, ok := dir.Lookup(9999999); ok {
		t.Error("expected a miss for an unknown radio id")
	}
}

func TestDirectory_LookupServesFromCacheWithoutANewQuery(t *testing.T) {
	dir, cleanup := newTestDirectory(t, "/tmp/test_radioid_cache.db")
	defer cleanup()

	if err := dir.Refresh([]User{{RadioID: 42, Callsign: "N0CALL"}}, 10); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if _, ok := dir.Lookup(42); !ok {
		t.Fatal("expected a hit to populate the cache")
	}

	// Drop the row from disk directly; a cached lookup must still hit.
	if err := dir.conn.Exec("DELETE FROM radioid_users WHERE radio_id = ?", 42).Error; err != nil {
		t.Fatalf("manual delete failed: %v", err)
	}

	got, ok := dir.Lookup(42)
	if !ok {
		t.Fatal("expected the cached entry to still be served")
	}
	if got.Callsign != "N0CALL" {
		t.Errorf("Callsign = %q, want N0CALL", got.Callsign)
	}
}

func TestDirectory_RefreshReplacesPriorContents(t *testing.T) {
	dir, cleanup := newTestDirectory(t, "/tmp/test_radioid_replace.db")
	defer cleanup()

	if err := dir.Refresh([]User{{RadioID: 1, Callsign: "OLD"}}, 10); err != nil {
		t.Fatalf("first Refresh failed: %v", err)
	}
	if err := dir.Refresh([]User{{RadioID: 2, Callsign: "NEW"}}, 10); err != nil {
		t.Fatalf("second Refresh failed: %v", err)
	}

	if _, ok := dir.Lookup(1); ok {
		t.Error("expected radio id 1 to be gone after the second Refresh")
	}
	if _, ok := dir.Lookup(2); !ok {
		t.Error("expected radio id 2 to be present after the second Refresh")
	}
	if count, _ := dir.Count(); count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestDirectory_RefreshEmptyIsNoop(t *testing.T) {
	dir, cleanup := newTestDirectory(t, "/tmp/test_radioid_empty.db")
	defer cleanup()

	if err := dir.Refresh([]User{{RadioID: 1, Callsign: "KEEP"}}, 10); err != nil {
		t.Fatalf("seed Refresh failed: %v", err)
	}
	if err := dir.Refresh(nil, 10); err != nil {
		t.Fatalf("empty Refresh failed: %v", err)
	}
	if _, ok := dir.Lookup(1); !ok {
		t.Error("an empty Refresh must leave the existing directory untouched")
	}
}
