// Package predict computes upcoming satellite passes over a fixed ground
// station using SGP4 orbital propagation. Prediction is stateless and
// deterministic: the same observer, element sets, and window always produce
// the same pass list, which lets the scheduler re-poll it freely.
package predict

import (
	"log/slog"
	"sort"
	"time"

	"github.com/satwatch/satwatch/internal/tle"
)

// Pass describes a single visibility window: the satellite rises through the
// minimum-elevation threshold, peaks, and sets back through it.
type Pass struct {
	CatalogID     int       `json:"catalog_id"`
	Name          string    `json:"name"`
	Rise          time.Time `json:"rise"`
	Peak          time.Time `json:"peak"`
	Set           time.Time `json:"set"`
	PeakElevation float64   `json:"peak_elevation"` // degrees
	PeakAzimuth   float64   `json:"peak_azimuth"`   // degrees, 0 = North
	PeakRangeKm   float64   `json:"peak_range_km"`
}

// Duration returns the length of the visibility window.
func (p Pass) Duration() time.Duration {
	return p.Set.Sub(p.Rise)
}

const (
	coarseStep = 30 * time.Second // horizon-crossing search granularity
	fineStep   = 1 * time.Second  // threshold-crossing refinement granularity
	minPassDur = 10 * time.Second
)

// Predict finds every pass within [start, end) whose peak elevation reaches
// minElev degrees, across all element sets, ordered by rise time ascending.
// Element sets that fail SGP4 initialization or propagation are skipped and
// logged; a satellite that never reaches the threshold simply contributes no
// passes.
func Predict(obs Observer, entries []tle.Entry, start, end time.Time, minElev float64, logger *slog.Logger) []Pass {
	var all []Pass
	for _, e := range entries {
		passes, err := predictOne(obs, e, start.UTC(), end.UTC(), minElev)
		if err != nil {
			logger.Warn("skipping satellite in pass prediction",
				"catalog_id", e.CatalogID, "name", e.Name, "reason", err)
			continue
		}
		all = append(all, passes...)
	}

	sort.Slice(all, func(i, j int) bool {
		if !all[i].Rise.Equal(all[j].Rise) {
			return all[i].Rise.Before(all[j].Rise)
		}
		return all[i].CatalogID < all[j].CatalogID
	})
	return all
}

// predictOne scans the window for one satellite. The coarse scan looks for
// any time the satellite is above the horizon; each hit is refined at
// one-second resolution against the actual elevation threshold.
func predictOne(obs Observer, e tle.Entry, start, end time.Time, minElev float64) ([]Pass, error) {
	prop, err := newPropagator(e.Line1, e.Line2, e.CatalogID)
	if err != nil {
		return nil, err
	}

	var passes []Pass
	t := start
	for t.Before(end) {
		la, err := anglesAt(prop, obs, t)
		if err != nil {
			return passes, err
		}

		if la.ElevationDeg > 0 {
			pass, windowEnd := refinePass(prop, obs, e, t, start, end, minElev)
			if pass != nil && pass.Duration() >= minPassDur {
				passes = append(passes, *pass)
			}
			t = windowEnd.Add(coarseStep)
		} else {
			t = t.Add(coarseStep)
		}
	}

	return passes, nil
}

// refinePass walks second-by-second around a coarse above-horizon hit,
// locating the rise and set crossings of minElev and the peak in between.
// It returns the pass (nil when the threshold is never reached) and the time
// at which the scan stopped, so the coarse scan can jump past this window.
func refinePass(prop *propagator, obs Observer, e tle.Entry, coarseHit, windowStart, windowEnd time.Time, minElev float64) (*Pass, time.Time) {
	t := coarseHit.Add(-coarseStep)
	if t.Before(windowStart) {
		t = windowStart
	}

	var (
		rise, set, peak time.Time
		peakLA          LookAngles
		wasAbove        bool
		foundRise       bool
	)

	for t.Before(windowEnd) {
		la, err := anglesAt(prop, obs, t)
		if err != nil {
			t = t.Add(fineStep)
			continue
		}

		above := la.ElevationDeg >= minElev

		if above && !wasAbove {
			rise = t
			foundRise = true
			peak = t
			peakLA = la
		}

		if above && foundRise && la.ElevationDeg > peakLA.ElevationDeg {
			peak = t
			peakLA = la
		}

		if !above && wasAbove && foundRise {
			set = t
			break
		}

		// Well below the horizon and past any rise we found: this window
		// is over, hand control back to the coarse scan.
		if !foundRise && la.ElevationDeg < -5 {
			return nil, t
		}

		wasAbove = above
		t = t.Add(fineStep)
	}

	// Still above threshold at the window edge: close the pass there so the
	// truncated window still reports rise <= peak < set.
	if foundRise && set.IsZero() && wasAbove {
		set = t
	}

	// peak may equal rise: a pass already descending at the window start has
	// its brightest sample on the first step.
	if !foundRise || set.IsZero() || peak.Before(rise) || !peak.Before(set) {
		return nil, t
	}

	return &Pass{
		CatalogID:     e.CatalogID,
		Name:          e.Name,
		Rise:          rise,
		Peak:          peak,
		Set:           set,
		PeakElevation: peakLA.ElevationDeg,
		PeakAzimuth:   peakLA.AzimuthDeg,
		PeakRangeKm:   peakLA.RangeKm,
	}, set
}

func anglesAt(prop *propagator, obs Observer, t time.Time) (LookAngles, error) {
	x, y, z, err := prop.positionECEF(t)
	if err != nil {
		return LookAngles{}, err
	}
	return obs.lookAngles(x, y, z), nil
}
