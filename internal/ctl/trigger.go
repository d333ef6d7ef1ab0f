package ctl

import "fmt"

// TriggerOptions controls the trigger command.
type TriggerOptions struct {
	CatalogID       int
	DurationSeconds int
	JSON            bool
}

// Trigger requests an immediate capture of the given satellite.
func Trigger(baseURL string, opts TriggerOptions) error {
	if opts.CatalogID == 0 {
		return fmt.Errorf("catalog ID required")
	}

	body := map[string]any{"catalog_id": opts.CatalogID}
	if opts.DurationSeconds > 0 {
		body["duration_seconds"] = opts.DurationSeconds
	}

	var resp struct {
		OK      bool   `json:"ok"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := postJSON(baseURL, "/api/trigger", body, &resp); err != nil {
		return err
	}

	if opts.JSON {
		return printJSON(resp)
	}

	fmt.Println()
	if resp.OK {
		fmt.Printf("  %s  %s\n", colorize(green, "TRIGGERED"), resp.Message)
	} else {
		fmt.Printf("  %s  %s\n", colorize(red, "FAILED"), resp.Error)
	}
	fmt.Println()

	return nil
}
