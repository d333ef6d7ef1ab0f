package ctl

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// RecordingsOptions configures the recordings command.
type RecordingsOptions struct {
	Limit int
	JSON  bool
}

// Recordings lists recent recordings from the daemon's database.
func Recordings(baseURL string, opts RecordingsOptions) error {
	path := "/api/recordings"
	if opts.Limit > 0 {
		path += "?limit=" + strconv.Itoa(opts.Limit)
	}

	var resp struct {
		Recordings []struct {
			ID         int64      `json:"id"`
			StartedAt  time.Time  `json:"started_at"`
			EndedAt    *time.Time `json:"ended_at"`
			CatalogID  int        `json:"catalog_id"`
			Name       string     `json:"name"`
			CenterFreq int        `json:"center_freq_hz"`
			Status     string     `json:"status"`
			SizeBytes  *int64     `json:"size_bytes"`
		} `json:"recordings"`
	}
	if err := getJSON(baseURL, path, &resp); err != nil {
		return err
	}

	if opts.JSON {
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  RECORDINGS"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 76)))

	if len(resp.Recordings) == 0 {
		fmt.Println(colorize(dim, "  No recordings found."))
		fmt.Println()
		return nil
	}

	fmt.Printf("  %-5s %-16s %-20s %-10s %-9s %s\n",
		colorize(dim, "ID"),
		colorize(dim, "Satellite"),
		colorize(dim, "Started"),
		colorize(dim, "Status"),
		colorize(dim, "Size"),
		colorize(dim, "Freq"),
	)
	for _, rec := range resp.Recordings {
		size := "-"
		if rec.SizeBytes != nil {
			size = humanize.Bytes(uint64(*rec.SizeBytes))
		}
		fmt.Printf("  %-5d %-16s %-20s %-10s %-9s %.3f MHz\n",
			rec.ID,
			colorize(bold, rec.Name),
			rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
			recordingStatus(rec.Status),
			size,
			float64(rec.CenterFreq)/1e6,
		)
	}
	fmt.Println()
	return nil
}

// recordingStatus colors a recording status label.
func recordingStatus(status string) string {
	switch status {
	case "complete":
		return colorize(green, padRight(status, 10))
	case "failed":
		return colorize(red, padRight(status, 10))
	case "recording":
		return colorize(blue, padRight(status, 10))
	default:
		return padRight(status, 10)
	}
}
