// Package tle maintains the station's catalog of orbital element sets.
// It downloads two-line element data from one or more HTTP sources, merges
// the 3-line groups into a deduplicated catalog keyed by NORAD number, and
// caches the merged text on disk. Loading uses a tiered fallback strategy:
// fresh disk cache, network fetch, stale disk cache, and finally baseline
// data baked into the binary.
package tle

import (
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/akhenakh/sgp4"
)

//go:embed baseline_tle.txt
var baselineTLE string

const cacheFile = "catalog.tle"

// Entry is one satellite's element set. The lines are opaque to the rest of
// the system beyond being handed to the pass predictor.
type Entry struct {
	CatalogID int    // NORAD catalog number, unique key
	Name      string // display name from the catalog
	Line1     string
	Line2     string
}

// Store fetches, merges, and caches element sets for the configured sources.
type Store struct {
	sources  []string
	dataRoot string
	maxAge   time.Duration
	log      *slog.Logger
	client   *http.Client
}

// NewStore returns a store that fetches element data from the given URLs and
// caches the merged catalog under dataRoot.
func NewStore(sources []string, dataRoot string, refreshHours int, logger *slog.Logger) *Store {
	return &Store{
		sources:  sources,
		dataRoot: dataRoot,
		maxAge:   time.Duration(refreshHours) * time.Hour,
		log:      logger,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Entries returns the deduplicated catalog, sorted by catalog number.
// It walks the fallback tiers and never returns an empty catalog without
// an error.
func (s *Store) Entries() ([]Entry, error) {
	raw, err := s.loadOrFetch()
	if err != nil {
		return nil, err
	}

	entries := Parse(strings.NewReader(raw), s.log)
	if len(entries) == 0 {
		return nil, fmt.Errorf("no parseable element sets in catalog input")
	}
	return entries, nil
}

// ForceRefresh fetches from the network regardless of cache age and returns
// the refreshed catalog.
func (s *Store) ForceRefresh() ([]Entry, error) {
	raw, err := s.fetchAll()
	if err != nil {
		return nil, err
	}
	// Cache write failure is non-fatal; the data is already in memory.
	if err := s.writeCache(raw); err != nil {
		s.log.Warn("element cache write failed", "error", err)
	}

	entries := Parse(strings.NewReader(raw), s.log)
	if len(entries) == 0 {
		return nil, fmt.Errorf("refreshed catalog contained no parseable element sets")
	}
	return entries, nil
}

// CacheAge reports when the on-disk catalog was last written. A zero time
// means no cache exists yet.
func (s *Store) CacheAge() time.Time {
	info, err := os.Stat(s.cachePath())
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

func (s *Store) cachePath() string {
	return filepath.Join(s.dataRoot, cacheFile)
}

// loadOrFetch walks the four-tier fallback chain to get raw catalog text:
// fresh cache -> network -> stale cache -> embedded baseline.
func (s *Store) loadOrFetch() (string, error) {
	path := s.cachePath()

	// Tier 1: fresh disk cache
	info, err := os.Stat(path)
	if err == nil && time.Since(info.ModTime()) < s.maxAge {
		if b, readErr := os.ReadFile(path); readErr == nil && len(b) > 0 {
			return string(b), nil
		}
	}

	// Tier 2: network fetch
	body, fetchErr := s.fetchAll()
	if fetchErr == nil {
		if err := s.writeCache(body); err != nil {
			s.log.Warn("element cache write failed", "error", err)
		}
		return body, nil
	}
	s.log.Warn("element fetch failed, trying stale cache", "error", fetchErr)

	// Tier 3: stale disk cache
	if b, readErr := os.ReadFile(path); readErr == nil && len(b) > 0 {
		return string(b), nil
	}

	// Tier 4: baseline baked into the binary
	if baselineTLE != "" {
		s.log.Warn("using embedded baseline element data")
		return baselineTLE, nil
	}

	return "", fmt.Errorf("all element sources exhausted: %w", fetchErr)
}

// fetchAll downloads every configured source and concatenates the bodies.
// Individual source failures are logged and skipped; it fails only when no
// source delivered anything.
func (s *Store) fetchAll() (string, error) {
	var (
		parts   []string
		lastErr error
	)
	for _, url := range s.sources {
		body, err := s.fetchOne(url)
		if err != nil {
			s.log.Warn("element source failed", "url", url, "error", err)
			lastErr = err
			continue
		}
		parts = append(parts, body)
	}

	if len(parts) == 0 {
		if lastErr == nil {
			lastErr = fmt.Errorf("no sources configured")
		}
		return "", fmt.Errorf("every element source failed: %w", lastErr)
	}
	return strings.Join(parts, "\n"), nil
}

func (s *Store) fetchOne(url string) (string, error) {
	resp, err := s.client.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("element fetch returned HTTP %d", resp.StatusCode)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if len(b) < 100 {
		return "", fmt.Errorf("element source returned implausibly small body (%d bytes)", len(b))
	}
	return string(b), nil
}

// writeCache atomically writes the merged catalog via a temp file and rename
// so readers never see a half-written file.
func (s *Store) writeCache(data string) error {
	if err := os.MkdirAll(s.dataRoot, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dataRoot, "catalog-*.tmp")
	if err != nil {
		return err
	}

	if _, err := tmp.WriteString(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), s.cachePath())
}

// Parse reads 3-line element groups (name, line 1, line 2) from r and
// returns the deduplicated catalog sorted by catalog number. Groups that
// fail to parse are skipped with a warning; when the same satellite appears
// more than once the last-seen element set wins.
func Parse(r io.Reader, logger *slog.Logger) []Entry {
	raw, err := io.ReadAll(r)
	if err != nil {
		logger.Warn("reading element data failed", "error", err)
		return nil
	}

	var lines []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimRight(line, "\r ")
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	byID := make(map[int]Entry)
	for i := 0; i+2 < len(lines); {
		name := strings.TrimSpace(lines[i])
		line1 := strings.TrimSpace(lines[i+1])
		line2 := strings.TrimSpace(lines[i+2])

		// A group must be name, "1 ...", "2 ...". On mismatch, slide one
		// line forward and retry so a single bad line doesn't desync the
		// rest of the file.
		if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
			i++
			continue
		}

		group := name + "\n" + line1 + "\n" + line2
		parsed, err := sgp4.ParseTLE(group)
		if err != nil {
			logger.Warn("skipping malformed element group", "name", name, "error", err)
			i += 3
			continue
		}

		byID[parsed.SatelliteNumber] = Entry{
			CatalogID: parsed.SatelliteNumber,
			Name:      name,
			Line1:     line1,
			Line2:     line2,
		}
		i += 3
	}

	entries := make([]Entry, 0, len(byID))
	for _, e := range byID {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CatalogID < entries[j].CatalogID
	})
	return entries
}
