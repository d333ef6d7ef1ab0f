package ctl

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// CandidatesOptions configures the candidates command.
type CandidatesOptions struct {
	RecordingID int64
	Limit       int
	JSON        bool
}

// Candidates lists detection candidates, newest first, optionally scoped to
// a single recording.
func Candidates(baseURL string, opts CandidatesOptions) error {
	params := url.Values{}
	if opts.RecordingID > 0 {
		params.Set("recording_id", strconv.FormatInt(opts.RecordingID, 10))
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	path := "/api/candidates"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var resp struct {
		Candidates []struct {
			ID           int64     `json:"id"`
			RecordingID  int64     `json:"recording_id"`
			CreatedAt    time.Time `json:"created_at"`
			CatalogID    int       `json:"catalog_id"`
			FreqOffsetHz float64   `json:"freq_offset_hz"`
			PeakTimeSec  float64   `json:"peak_time_sec"`
			SNRdB        float64   `json:"snr_db"`
			Confidence   float64   `json:"confidence"`
			Scorer       string    `json:"scorer"`
		} `json:"candidates"`
	}
	if err := getJSON(baseURL, path, &resp); err != nil {
		return err
	}

	if opts.JSON {
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  DETECTION CANDIDATES"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 76)))

	if len(resp.Candidates) == 0 {
		fmt.Println(colorize(dim, "  No candidates found."))
		fmt.Println()
		return nil
	}

	fmt.Printf("  %-5s %-5s %-9s %10s %8s %7s %6s  %s\n",
		colorize(dim, "ID"),
		colorize(dim, "Rec"),
		colorize(dim, "Catalog"),
		colorize(dim, "Offset"),
		colorize(dim, "At"),
		colorize(dim, "SNR"),
		colorize(dim, "Conf"),
		colorize(dim, "Scorer"),
	)
	for _, c := range resp.Candidates {
		fmt.Printf("  %-5d %-5d %-9d %+9.1fk %7.1fs %6.1fdB %6.2f  %s\n",
			c.ID,
			c.RecordingID,
			c.CatalogID,
			c.FreqOffsetHz/1e3,
			c.PeakTimeSec,
			c.SNRdB,
			c.Confidence,
			c.Scorer,
		)
	}
	fmt.Println()
	return nil
}
