package ctl

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// NextPassOptions configures the next-pass command.
type NextPassOptions struct {
	Satellite string
	JSON      bool
}

// NextPass shows the next upcoming satellite pass.
func NextPass(baseURL string, opts NextPassOptions) error {
	path := "/api/passes/next"
	if opts.Satellite != "" {
		path += "?satellite=" + url.QueryEscape(opts.Satellite)
	}

	var resp struct {
		Pass       *passJSON   `json:"pass"`
		CountdownS int         `json:"countdown_s"`
		Station    stationJSON `json:"station"`
	}

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
	fmt.Println(header("  NEXT PASS"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 42)))

	if resp.Pass == nil {
		fmt.Println("  No upcoming passes found.")
		fmt.Println()
		return nil
	}

	p := resp.Pass
	countdown := time.Duration(resp.CountdownS) * time.Second

	fmt.Printf("  Satellite:  %s (catalog %d)\n", colorize(bold, p.Name), p.CatalogID)
	fmt.Printf("  Rise:       %s\n", p.Rise.Local().Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("  Set:        %s\n", p.Set.Local().Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("  Max elev:   %.1f° at azimuth %.0f°\n", p.PeakElevation, p.PeakAzimuth)
	fmt.Printf("  Range:      %.0f km at peak\n", p.PeakRangeKm)
	fmt.Printf("  Duration:   %s\n", formatDuration(p.Set.Sub(p.Rise)))

	if countdown > 0 {
		fmt.Printf("  Countdown:  %s\n", formatDuration(countdown))
	} else {
		fmt.Printf("  Status:     %s\n", colorize(green, "NOW"))
	}

	fmt.Println()
	return nil
}
