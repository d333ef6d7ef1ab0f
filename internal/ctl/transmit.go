package ctl

import "fmt"

// TransmitOptions controls the transmit command.
type TransmitOptions struct {
	FreqHz  int
	Payload string
	JSON    bool
}

// Transmit submits an uplink request to the daemon's transmit gate. The
// daemon refuses unless transmission is enabled and the frequency is on its
// authorized list.
func Transmit(baseURL string, opts TransmitOptions) error {
	if opts.FreqHz == 0 {
		return fmt.Errorf("--freq required")
	}

	body := map[string]any{
		"freq_hz": opts.FreqHz,
		"payload": opts.Payload,
	}

	var resp struct {
		OK      bool   `json:"ok"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := postJSON(baseURL, "/api/transmit", body, &resp); err != nil {
		return err
	}

	if opts.JSON {
		return printJSON(resp)
	}

	fmt.Println()
	if resp.OK {
		fmt.Printf("  %s  %s\n", colorize(green, "AUTHORIZED"), resp.Message)
	} else {
		fmt.Printf("  %s  %s\n", colorize(red, "DENIED"), resp.Error)
	}
	fmt.Println()

	return nil
}
