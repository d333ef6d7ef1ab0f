package predict

import (
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// propagator wraps the go-satellite SGP4 model for one element set.
//
// go-satellite calls log.Fatal on malformed TLE input, so the lines are
// pre-validated before the library ever sees them. Propagation failures are
// detected by checking the output for NaN/Inf and implausible magnitudes,
// because the library's Propagate does not surface SGP4 error codes.
type propagator struct {
	sat       satellite.Satellite
	catalogID int
}

func newPropagator(line1, line2 string, catalogID int) (*propagator, error) {
	if err := checkLines(line1, line2); err != nil {
		return nil, fmt.Errorf("invalid element set for catalog %d: %w", catalogID, err)
	}

	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed for catalog %d: code=%d %s", catalogID, sat.Error, sat.ErrorStr)
	}
	return &propagator{sat: sat, catalogID: catalogID}, nil
}

func checkLines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("line 1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line 2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line 1 must start with '1', got %q", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line 2 must start with '2', got %q", line2[0])
	}
	return nil
}

// positionECEF propagates the satellite to t (UTC) and returns its ECEF
// position in meters.
func (p *propagator) positionECEF(t time.Time) (x, y, z float64, err error) {
	t = t.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	posECI, _ := satellite.Propagate(p.sat, year, int(month), day, hour, min, sec)

	if math.IsNaN(posECI.X) || math.IsNaN(posECI.Y) || math.IsNaN(posECI.Z) ||
		math.IsInf(posECI.X, 0) || math.IsInf(posECI.Y, 0) || math.IsInf(posECI.Z, 0) {
		return 0, 0, 0, fmt.Errorf("sgp4 propagation failed for catalog %d: output is NaN/Inf", p.catalogID)
	}

	// Position magnitude sanity check: below ~6200 km the orbit has decayed,
	// above ~50000 km the element set is not a useful Earth orbit.
	mag := math.Sqrt(posECI.X*posECI.X + posECI.Y*posECI.Y + posECI.Z*posECI.Z)
	if mag < 6200 || mag > 50000 {
		return 0, 0, 0, fmt.Errorf("sgp4 propagation failed for catalog %d: position magnitude %.1f km", p.catalogID, mag)
	}

	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)
	posECEF := satellite.ECIToECEF(posECI, gmst)

	const kmToM = 1000.0
	return posECEF.X * kmToM, posECEF.Y * kmToM, posECEF.Z * kmToM, nil
}
