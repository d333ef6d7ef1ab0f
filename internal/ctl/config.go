package ctl

// Config shows the daemon's running configuration. Location fields may be
// zeroed when the daemon has location redaction enabled.
func Config(baseURL string, _ bool) error {
	var cfg map[string]any
	if err := getJSON(baseURL, "/api/config", &cfg); err != nil {
		return err
	}
	return printJSON(cfg)
}
