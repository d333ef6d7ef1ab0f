package ctl

import (
	"fmt"
	"strings"
)

// Satellites lists the tracked satellite catalog from the daemon.
func Satellites(baseURL string, jsonOutput bool) error {
	var resp struct {
		Satellites []struct {
			CatalogID int    `json:"catalog_id"`
			Name      string `json:"name"`
		} `json:"satellites"`
	}
	if err := getJSON(baseURL, "/api/satellites", &resp); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  SATELLITE CATALOG"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 38)))

	if len(resp.Satellites) == 0 {
		fmt.Println(colorize(dim, "  No satellites in catalog."))
		fmt.Println()
		return nil
	}

	fmt.Printf("  %-9s %s\n", colorize(dim, "Catalog"), colorize(dim, "Name"))
	for _, s := range resp.Satellites {
		fmt.Printf("  %-9d %s\n", s.CatalogID, colorize(bold, s.Name))
	}
	fmt.Println()
	return nil
}
