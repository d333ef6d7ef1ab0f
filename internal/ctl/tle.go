package ctl

import (
	"fmt"
	"strings"
	"time"
)

// TLEInfo shows orbital element cache status and freshness.
func TLEInfo(baseURL string, jsonOutput bool) error {
	var resp struct {
		Satellites int      `json:"satellites"`
		Sources    []string `json:"sources"`
		CachedAt   string   `json:"cached_at"`
		AgeS       int      `json:"age_s"`
	}
	if err := getJSON(baseURL, "/api/tle/info", &resp); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  ELEMENT CACHE"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 50)))
	fmt.Printf("  Satellites: %d\n", resp.Satellites)

	if resp.CachedAt == "" {
		fmt.Printf("  Status:     %s\n", colorize(red, "NO CACHE"))
	} else {
		fmt.Printf("  Fetched:    %s\n", formatTime(resp.CachedAt))
		fmt.Printf("  Age:        %s\n", formatDuration(time.Duration(resp.AgeS)*time.Second))
	}
	for i, src := range resp.Sources {
		label := "Sources:"
		if i > 0 {
			label = ""
		}
		fmt.Printf("  %-11s %s\n", label, colorize(dim, src))
	}
	fmt.Println()
	return nil
}

// TLERefresh forces an element set update from the configured sources.
func TLERefresh(baseURL string, jsonOutput bool) error {
	var result struct {
		OK                bool   `json:"ok"`
		Message           string `json:"message"`
		Error             string `json:"error"`
		SatellitesUpdated int    `json:"satellites_updated"`
	}
	if err := postJSON(baseURL, "/api/tle/refresh", nil, &result); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(result)
	}

	fmt.Println()
	if result.OK {
		fmt.Printf("  %s  %s (%d satellites)\n",
			colorize(green, "REFRESHED"), result.Message, result.SatellitesUpdated)
	} else {
		fmt.Printf("  %s  %s\n", colorize(red, "FAILED"), result.Error)
	}
	fmt.Println()
	return nil
}
