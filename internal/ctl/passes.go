package ctl

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// PassesOptions controls the passes command output.
type PassesOptions struct {
	Hours     int
	Count     int
	Satellite string
	JSON      bool
}

// passJSON mirrors one pass object as returned by /api/passes.
type passJSON struct {
	CatalogID     int       `json:"catalog_id"`
	Name          string    `json:"name"`
	Rise          time.Time `json:"rise"`
	Peak          time.Time `json:"peak"`
	Set           time.Time `json:"set"`
	PeakElevation float64   `json:"peak_elevation"`
	PeakAzimuth   float64   `json:"peak_azimuth"`
	PeakRangeKm   float64   `json:"peak_range_km"`
}

type stationJSON struct {
	Name         string  `json:"name"`
	MinElevation float64 `json:"min_elevation"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	Alt          float64 `json:"alt"`
}

// Passes lists upcoming satellite passes from the daemon.
func Passes(baseURL string, opts PassesOptions) error {
	params := url.Values{}
	if opts.Hours > 0 {
		params.Set("hours", strconv.Itoa(opts.Hours))
	}
	if opts.Count > 0 {
		params.Set("count", strconv.Itoa(opts.Count))
	}
	if opts.Satellite != "" {
		params.Set("satellite", opts.Satellite)
	}
	path := "/api/passes"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var resp struct {
		Passes  []passJSON  `json:"passes"`
		Station stationJSON `json:"station"`
	}

	// Pass prediction may involve element set network fetches and SGP4
	// propagation, so use a longer timeout than the default 5s client.
	saved := httpClient.Timeout
	httpClient.Timeout = 60 * time.Second
	err := getJSON(baseURL, path, &resp)
	httpClient.Timeout = saved
	if err != nil {
		return err
	}

	if opts.JSON {
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  UPCOMING PASSES"))
	fmt.Printf("  %s %s (%.4f, %.4f, %.0fm)\n",
		colorize(dim, "Station:"),
		resp.Station.Name,
		resp.Station.Lat, resp.Station.Lon, resp.Station.Alt,
	)
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 76)))

	if len(resp.Passes) == 0 {
		fmt.Println(colorize(dim, "  No upcoming passes found."))
		fmt.Println()
		return nil
	}

	fmt.Printf("  %-4s %-16s %-21s %-21s %6s  %s\n",
		colorize(dim, "#"),
		colorize(dim, "Satellite"),
		colorize(dim, "Rise"),
		colorize(dim, "Set"),
		colorize(dim, "Elev"),
		colorize(dim, "Duration"),
	)
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 76)))

	for i, p := range resp.Passes {
		fmt.Printf("  %-4d %-16s %-21s %-21s %5.1f°  %s\n",
			i+1,
			colorize(bold, p.Name),
			p.Rise.Local().Format("2006-01-02 15:04:05"),
			p.Set.Local().Format("2006-01-02 15:04:05"),
			p.PeakElevation,
			formatDuration(p.Set.Sub(p.Rise)),
		)
	}
	fmt.Println()

	return nil
}
