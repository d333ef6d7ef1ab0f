package ctl

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// StatusResponse mirrors the JSON returned by GET /api/status.
type StatusResponse struct {
	Name             string `json:"name"`
	State            string `json:"state"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
	Paused           bool   `json:"paused"`
	ProcessingActive int    `json:"processing_active"`
	DataRoot         string `json:"data_root"`
	Simulate         bool   `json:"simulate"`
	WSClients        int    `json:"ws_clients"`
	Station          struct {
		Name         string  `json:"name"`
		MinElevation float64 `json:"min_elevation"`
		Lat          float64 `json:"lat"`
		Lon          float64 `json:"lon"`
		Alt          float64 `json:"alt"`
	} `json:"station"`
	CurrentPass *struct {
		Satellite string  `json:"satellite"`
		CatalogID int     `json:"catalog_id"`
		Rise      string  `json:"rise"`
		Set       string  `json:"set"`
		MaxElev   float64 `json:"max_elev"`
		Stage     string  `json:"stage"`
	} `json:"current_pass"`
	Disk *struct {
		TotalBytes     uint64 `json:"total_bytes"`
		UsedBytes      uint64 `json:"used_bytes"`
		AvailableBytes uint64 `json:"available_bytes"`
	} `json:"disk"`
}

// Status fetches the daemon status and prints a formatted summary.
func Status(baseURL string, jsonOutput bool) error {
	var s StatusResponse
	if err := getJSON(baseURL, "/api/status", &s); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(s)
	}

	uptime := formatDuration(time.Duration(s.UptimeSeconds) * time.Second)
	stateStr := colorize(stateColor(s.State), s.State)
	if s.Paused {
		stateStr += "  " + colorize(yellow, "(paused)")
	}

	fmt.Println()
	fmt.Println(header("  SATWATCH STATUS"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 44)))
	fmt.Printf("  %-14s %s\n", colorize(dim, "Daemon:"), s.Name)
	fmt.Printf("  %-14s %s\n", colorize(dim, "State:"), stateStr)
	fmt.Printf("  %-14s %s\n", colorize(dim, "Uptime:"), uptime)
	fmt.Printf("  %-14s %s\n", colorize(dim, "Station:"), s.Station.Name)
	fmt.Printf("  %-14s %s\n", colorize(dim, "Data:"), s.DataRoot)
	if s.Simulate {
		fmt.Printf("  %-14s %s\n", colorize(dim, "SDR:"), colorize(yellow, "simulated"))
	}
	if s.ProcessingActive > 0 {
		fmt.Printf("  %-14s %d recording(s)\n", colorize(dim, "Processing:"), s.ProcessingActive)
	}
	if s.WSClients > 0 {
		fmt.Printf("  %-14s %d\n", colorize(dim, "Clients:"), s.WSClients)
	}
	if s.Disk != nil {
		fmt.Printf("  %-14s %s free of %s\n",
			colorize(dim, "Disk:"),
			humanize.Bytes(s.Disk.AvailableBytes),
			humanize.Bytes(s.Disk.TotalBytes),
		)
	}
	if p := s.CurrentPass; p != nil {
		fmt.Println()
		fmt.Printf("  %s %s (%d)  %s  max %.1f°\n",
			colorize(dim, "Next pass:"),
			colorize(bold, p.Satellite), p.CatalogID,
			formatTime(p.Rise),
			p.MaxElev,
		)
	}
	fmt.Printf("  %-14s %s\n", colorize(dim, "Host:"), strings.TrimRight(baseURL, "/"))
	fmt.Println()

	return nil
}
