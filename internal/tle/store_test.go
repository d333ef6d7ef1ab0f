package tle

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const issName = "ISS (ZARYA)"
const issLine1 = "1 25544U 98067A   25045.18032407  .00016717  00000+0  30099-3 0  9996"
const issLine2 = "2 25544  51.6412 193.5765 0003457 126.2851 233.8519 15.49874301495057"

var issGroup = issName + "\n" + issLine1 + "\n" + issLine2 + "\n"

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestParseSingleGroup(t *testing.T) {
	entries := Parse(strings.NewReader(issGroup), testLogger())
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.CatalogID != 25544 {
		t.Errorf("CatalogID = %d, want 25544", e.CatalogID)
	}
	if e.Name != issName {
		t.Errorf("Name = %q, want %q", e.Name, issName)
	}
	if e.Line1 != issLine1 || e.Line2 != issLine2 {
		t.Error("element lines not preserved verbatim")
	}
}

func TestParseSkipsMalformedGroups(t *testing.T) {
	input := "GARBAGE SAT\nnot a line one\nnot a line two\n" + issGroup
	entries := Parse(strings.NewReader(input), testLogger())
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1 (malformed group skipped)", len(entries))
	}
	if entries[0].CatalogID != 25544 {
		t.Errorf("CatalogID = %d, want 25544", entries[0].CatalogID)
	}
}

func TestParseDeduplicatesLastWins(t *testing.T) {
	// Same satellite twice under different display names; the second
	// occurrence must win.
	input := issGroup + "ISS RENAMED\n" + issLine1 + "\n" + issLine2 + "\n"
	entries := Parse(strings.NewReader(input), testLogger())
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1 after dedupe", len(entries))
	}
	if entries[0].Name != "ISS RENAMED" {
		t.Errorf("Name = %q, want last-seen name", entries[0].Name)
	}
}

func TestParseEmptyInput(t *testing.T) {
	if entries := Parse(strings.NewReader(""), testLogger()); len(entries) != 0 {
		t.Fatalf("got %d entries from empty input, want 0", len(entries))
	}
}

func TestStoreFetchesAndCaches(t *testing.T) {
	// Body must be >100 bytes to pass the sanity check; the ISS group is.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(issGroup))
	}))
	defer srv.Close()

	root := t.TempDir()
	s := NewStore([]string{srv.URL}, root, 24, testLogger())

	entries, err := s.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 1 || entries[0].CatalogID != 25544 {
		t.Fatalf("unexpected catalog: %+v", entries)
	}

	// The merged catalog must now exist on disk.
	b, err := os.ReadFile(filepath.Join(root, cacheFile))
	if err != nil {
		t.Fatalf("cache not written: %v", err)
	}
	if !strings.Contains(string(b), issLine1) {
		t.Error("cache does not contain fetched element data")
	}
	if s.CacheAge().IsZero() {
		t.Error("CacheAge should be non-zero after a fetch")
	}
}

func TestStoreUsesFreshCacheWithoutNetwork(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, cacheFile), []byte(issGroup), 0o644); err != nil {
		t.Fatal(err)
	}

	// Source URL points at a closed server: any network attempt fails.
	s := NewStore([]string{"http://127.0.0.1:0"}, root, 24, testLogger())
	entries, err := s.Entries()
	if err != nil {
		t.Fatalf("Entries with fresh cache: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
}

func TestStoreFallsBackToStaleCache(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, cacheFile)
	if err := os.WriteFile(path, []byte(issGroup), 0o644); err != nil {
		t.Fatal(err)
	}
	// Age the cache beyond maxAge.
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}

	s := NewStore([]string{"http://127.0.0.1:0"}, root, 24, testLogger())
	entries, err := s.Entries()
	if err != nil {
		t.Fatalf("Entries with stale cache: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1 from stale cache", len(entries))
	}
}

func TestStoreFallsBackToBaseline(t *testing.T) {
	s := NewStore([]string{"http://127.0.0.1:0"}, t.TempDir(), 24, testLogger())
	entries, err := s.Entries()
	if err != nil {
		t.Fatalf("Entries with baseline fallback: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("baseline catalog is empty")
	}
}
