package ctl

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Health queries the daemon's component health checks and prints them.
func Health(baseURL string, jsonOutput bool) error {
	url := strings.TrimRight(baseURL, "/") + "/healthz"
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result struct {
		Healthy bool                      `json:"healthy"`
		Checks  map[string]map[string]any `json:"checks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(result)
	}

	fmt.Println()
	if result.Healthy {
		fmt.Printf("  %s\n", colorize(green, "HEALTHY"))
	} else {
		fmt.Printf("  %s\n", colorize(red, "UNHEALTHY"))
	}
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 44)))

	names := make([]string, 0, len(result.Checks))
	for name := range result.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		check := result.Checks[name]
		ok, _ := check["ok"].(bool)
		mark := colorize(green, "ok")
		if !ok {
			mark = colorize(red, "FAIL")
		}
		detail := ""
		if errMsg, _ := check["error"].(string); errMsg != "" {
			detail = colorize(dim, errMsg)
		} else if path, _ := check["path"].(string); path != "" {
			detail = colorize(dim, path)
		}
		fmt.Printf("  %-14s %-5s %s\n", name, mark, detail)
	}
	fmt.Println()
	return nil
}
