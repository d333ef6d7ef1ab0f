package predict

import (
	"log/slog"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/satwatch/satwatch/internal/tle"
)

// Real ISS element set (epoch Feb 2025); the prediction window below starts
// near the epoch so propagation stays accurate.
var issEntry = tle.Entry{
	CatalogID: 25544,
	Name:      "ISS (ZARYA)",
	Line1:     "1 25544U 98067A   25045.18032407  .00016717  00000+0  30099-3 0  9993",
	Line2:     "2 25544  51.6412 193.5765 0003457 126.2851 233.8519 15.49874301495058",
}

var (
	nyc         = NewObserver(40.7128, -74.006, 10)
	windowStart = time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC)
	windowEnd   = windowStart.Add(24 * time.Hour)
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestPredictISSOverNYC(t *testing.T) {
	const minElev = 10.0
	passes := Predict(nyc, []tle.Entry{issEntry}, windowStart, windowEnd, minElev, testLogger())

	if len(passes) == 0 {
		t.Fatal("expected at least one ISS pass above 10 degrees in 24h")
	}

	for i, p := range passes {
		if p.CatalogID != 25544 {
			t.Errorf("pass %d: CatalogID = %d, want 25544", i, p.CatalogID)
		}
		// peak == rise is legal for a pass truncated at the window start.
		if p.Peak.Before(p.Rise) || !p.Peak.Before(p.Set) {
			t.Errorf("pass %d: time ordering violated: rise=%v peak=%v set=%v", i, p.Rise, p.Peak, p.Set)
		}
		if p.PeakElevation < minElev {
			t.Errorf("pass %d: peak elevation %.2f below threshold %.1f", i, p.PeakElevation, minElev)
		}
		if p.PeakElevation > 90 {
			t.Errorf("pass %d: peak elevation %.2f exceeds 90", i, p.PeakElevation)
		}
		if p.PeakAzimuth < 0 || p.PeakAzimuth >= 360 {
			t.Errorf("pass %d: peak azimuth %.2f out of range", i, p.PeakAzimuth)
		}
		// ISS orbits at ~420 km; slant range at 10+ degrees elevation stays
		// well under 2000 km.
		if p.PeakRangeKm < 350 || p.PeakRangeKm > 2500 {
			t.Errorf("pass %d: peak range %.1f km implausible", i, p.PeakRangeKm)
		}
		// An ISS pass above 10 degrees lasts a few minutes, never an hour.
		if d := p.Duration(); d < 30*time.Second || d > 15*time.Minute {
			t.Errorf("pass %d: duration %v implausible", i, d)
		}
		if i > 0 && passes[i].Rise.Before(passes[i-1].Rise) {
			t.Errorf("pass %d rises before pass %d: output not ordered", i, i-1)
		}
	}
}

func TestPredictWindowStartsMidPass(t *testing.T) {
	const minElev = 10.0
	passes := Predict(nyc, []tle.Entry{issEntry}, windowStart, windowEnd, minElev, testLogger())
	if len(passes) == 0 {
		t.Fatal("expected at least one ISS pass above 10 degrees in 24h")
	}

	// Re-predict from just after a known peak: the satellite is above the
	// threshold and descending, so the truncated pass opens at the window
	// start with peak == rise. It must still be reported. Pick a pass with a
	// comfortable descent leg so the truncated window clears the minimum
	// pass duration.
	ref := passes[0]
	for _, p := range passes {
		if p.Set.Sub(p.Peak) >= time.Minute {
			ref = p
			break
		}
	}
	start := ref.Peak.Add(10 * time.Second)
	got := Predict(nyc, []tle.Entry{issEntry}, start, ref.Set.Add(30*time.Minute), minElev, testLogger())

	if len(got) == 0 {
		t.Fatal("pass in progress at window start was not reported")
	}
	p := got[0]
	if p.Rise.Sub(start) > 2*time.Second {
		t.Errorf("truncated pass rise = %v, want window start %v", p.Rise, start)
	}
	if p.Peak.Before(p.Rise) || !p.Peak.Before(p.Set) {
		t.Errorf("truncated pass ordering violated: rise=%v peak=%v set=%v", p.Rise, p.Peak, p.Set)
	}
	if diff := absDur(p.Set.Sub(ref.Set)); diff > 5*time.Second {
		t.Errorf("truncated pass set = %v, want ~%v", p.Set, ref.Set)
	}
}

func absDur(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func TestPredictIsDeterministic(t *testing.T) {
	a := Predict(nyc, []tle.Entry{issEntry}, windowStart, windowEnd, 10, testLogger())
	b := Predict(nyc, []tle.Entry{issEntry}, windowStart, windowEnd, 10, testLogger())
	if !reflect.DeepEqual(a, b) {
		t.Fatal("repeated Predict calls with identical input differ")
	}
}

func TestPredictThresholdNeverReached(t *testing.T) {
	// No ISS pass reaches 89 degrees from a mid-latitude site in one day;
	// degenerate geometry must yield zero passes, not an error.
	passes := Predict(nyc, []tle.Entry{issEntry}, windowStart, windowEnd, 89, testLogger())
	if len(passes) != 0 {
		t.Fatalf("got %d passes at 89 degree threshold, want 0", len(passes))
	}
}

func TestPredictSkipsBadElements(t *testing.T) {
	bad := tle.Entry{CatalogID: 99999, Name: "BROKEN", Line1: "1 garbage", Line2: "2 garbage"}
	passes := Predict(nyc, []tle.Entry{bad, issEntry}, windowStart, windowEnd, 10, testLogger())

	if len(passes) == 0 {
		t.Fatal("valid satellite should still produce passes when another entry is bad")
	}
	for _, p := range passes {
		if p.CatalogID == 99999 {
			t.Error("broken element set produced a pass")
		}
	}
}

func TestObserverLookAnglesZenith(t *testing.T) {
	obs := NewObserver(0, 0, 0)
	// A point directly above the equatorial observer on the x axis.
	la := obs.lookAngles(wgs84A+500e3, 0, 0)

	if math.Abs(la.ElevationDeg-90) > 0.1 {
		t.Errorf("elevation = %.3f, want ~90 for zenith target", la.ElevationDeg)
	}
	if math.Abs(la.RangeKm-500) > 1 {
		t.Errorf("range = %.2f km, want ~500", la.RangeKm)
	}
}

func TestObserverLookAnglesHorizonNorth(t *testing.T) {
	obs := NewObserver(0, 0, 0)
	// A point far along +Z (true north from an equatorial observer) sits
	// near the horizon at azimuth ~0.
	la := obs.lookAngles(wgs84A, 0, 2000e3)

	if la.ElevationDeg > 20 {
		t.Errorf("elevation = %.2f, expected near-horizon target", la.ElevationDeg)
	}
	if la.AzimuthDeg > 1 && la.AzimuthDeg < 359 {
		t.Errorf("azimuth = %.2f, want ~0 (north)", la.AzimuthDeg)
	}
}
