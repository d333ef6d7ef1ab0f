package predict

import "math"

// WGS-84 ellipsoid parameters.
const (
	wgs84A  = 6378137.0             // semi-major axis (meters)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// Observer is the fixed ground station position in both geodetic and ECEF
// frames. The ECEF coordinates are computed once at construction and reused
// for every look-angle evaluation during pass search.
type Observer struct {
	LatDeg, LonDeg, AltM float64

	latRad, lonRad      float64
	ecefX, ecefY, ecefZ float64 // meters
}

// LookAngles holds azimuth, elevation, and range from observer to satellite.
// Azimuth is measured clockwise from North; elevation 0 is the horizon.
type LookAngles struct {
	AzimuthDeg   float64
	ElevationDeg float64
	RangeKm      float64
}

// NewObserver creates an Observer from geodetic coordinates. Latitude and
// longitude are in degrees, altitude in meters above the WGS-84 ellipsoid.
func NewObserver(latDeg, lonDeg, altM float64) Observer {
	lat := latDeg * math.Pi / 180
	lon := lonDeg * math.Pi / 180

	sinLat := math.Sin(lat)

	// Radius of curvature in the prime vertical.
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return Observer{
		LatDeg: latDeg,
		LonDeg: lonDeg,
		AltM:   altM,
		latRad: lat,
		lonRad: lon,
		ecefX:  (n + altM) * math.Cos(lat) * math.Cos(lon),
		ecefY:  (n + altM) * math.Cos(lat) * math.Sin(lon),
		ecefZ:  (n*(1-wgs84E2) + altM) * sinLat,
	}
}

// lookAngles computes azimuth, elevation, and range to a satellite given in
// ECEF meters, via the SEZ (South-East-Zenith) topocentric rotation
// (Vallado, "Fundamentals of Astrodynamics", section 4.4).
func (o Observer) lookAngles(satX, satY, satZ float64) LookAngles {
	rx := satX - o.ecefX
	ry := satY - o.ecefY
	rz := satZ - o.ecefZ

	sinLat := math.Sin(o.latRad)
	cosLat := math.Cos(o.latRad)
	sinLon := math.Sin(o.lonRad)
	cosLon := math.Cos(o.lonRad)

	south := sinLat*cosLon*rx + sinLat*sinLon*ry - cosLat*rz
	east := -sinLon*rx + cosLon*ry
	zenith := cosLat*cosLon*rx + cosLat*sinLon*ry + sinLat*rz

	rng := math.Sqrt(south*south + east*east + zenith*zenith)

	// North = -South in SEZ, so azimuth = atan2(east, -south).
	az := math.Atan2(east, -south)
	if az < 0 {
		az += 2 * math.Pi
	}

	return LookAngles{
		AzimuthDeg:   az * 180 / math.Pi,
		ElevationDeg: math.Asin(zenith/rng) * 180 / math.Pi,
		RangeKm:      rng / 1000,
	}
}
