// Satctl is the command-line client for monitoring and controlling a running
// satwatchd instance. It connects over HTTP and WebSocket to query status
// and stream live events from the daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/satwatch/satwatch/internal/ctl"
)

func main() {
	var (
		host    = pflag.StringP("host", "H", "http://127.0.0.1:8080", "Satwatch daemon URL (e.g. http://192.168.8.1:8080)")
		jsonOut = pflag.Bool("json", false, "Output raw JSON instead of formatted text")
		filter  = pflag.StringSlice("filter", nil, "Event types to show in watch (e.g. --filter state,log)")
	)

	// Stop parsing global flags at the first non-flag argument (the command
	// name), so subcommand-specific flags like --duration are not rejected.
	pflag.CommandLine.SetInterspersed(false)
	pflag.Parse()

	if pflag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cmd := pflag.Arg(0)
	subArgs := pflag.Args()[1:]

	var err error
	switch cmd {
	// ── Query commands ────────────────────────────────────────────
	case "status":
		err = ctl.Status(*host, *jsonOut)

	case "health":
		err = ctl.Health(*host, *jsonOut)

	case "version":
		err = ctl.VersionInfo(*host, *jsonOut)

	case "satellites":
		err = ctl.Satellites(*host, *jsonOut)

	case "config":
		err = ctl.Config(*host, *jsonOut)

	case "passes":
		opts := ctl.PassesOptions{JSON: *jsonOut}
		passFlags := pflag.NewFlagSet("passes", pflag.ContinueOnError)
		passFlags.IntVar(&opts.Hours, "hours", 0, "Prediction window in hours")
		passFlags.IntVar(&opts.Count, "count", 0, "Limit number of passes shown")
		passFlags.StringVar(&opts.Satellite, "satellite", "", "Filter by satellite name")
		_ = passFlags.Parse(subArgs)
		err = ctl.Passes(*host, opts)

	case "next-pass":
		opts := ctl.NextPassOptions{JSON: *jsonOut}
		npFlags := pflag.NewFlagSet("next-pass", pflag.ContinueOnError)
		npFlags.StringVar(&opts.Satellite, "satellite", "", "Filter by satellite name")
		_ = npFlags.Parse(subArgs)
		err = ctl.NextPass(*host, opts)

	case "recordings":
		opts := ctl.RecordingsOptions{JSON: *jsonOut}
		recFlags := pflag.NewFlagSet("recordings", pflag.ContinueOnError)
		recFlags.IntVar(&opts.Limit, "limit", 0, "Limit number of recordings shown")
		_ = recFlags.Parse(subArgs)
		err = ctl.Recordings(*host, opts)

	case "candidates":
		opts := ctl.CandidatesOptions{JSON: *jsonOut}
		candFlags := pflag.NewFlagSet("candidates", pflag.ContinueOnError)
		candFlags.Int64Var(&opts.RecordingID, "recording", 0, "Show candidates for one recording ID")
		candFlags.IntVar(&opts.Limit, "limit", 0, "Limit number of candidates shown")
		_ = candFlags.Parse(subArgs)
		err = ctl.Candidates(*host, opts)

	case "tle-info":
		err = ctl.TLEInfo(*host, *jsonOut)

	// ── Control commands ──────────────────────────────────────────
	case "trigger":
		opts := ctl.TriggerOptions{JSON: *jsonOut}
		triggerFlags := pflag.NewFlagSet("trigger", pflag.ContinueOnError)
		triggerFlags.IntVar(&opts.CatalogID, "catalog-id", 0, "Satellite catalog ID")
		triggerFlags.IntVar(&opts.DurationSeconds, "duration", 600, "Capture duration in seconds")
		_ = triggerFlags.Parse(subArgs)
		err = ctl.Trigger(*host, opts)

	case "tle-refresh":
		err = ctl.TLERefresh(*host, *jsonOut)

	case "pause":
		err = ctl.Pause(*host, *jsonOut)

	case "resume":
		err = ctl.Resume(*host, *jsonOut)

	case "skip":
		err = ctl.Skip(*host, *jsonOut)

	case "cancel":
		err = ctl.Cancel(*host, *jsonOut)

	case "transmit":
		opts := ctl.TransmitOptions{JSON: *jsonOut}
		txFlags := pflag.NewFlagSet("transmit", pflag.ContinueOnError)
		txFlags.IntVar(&opts.FreqHz, "freq", 0, "Uplink frequency in Hz")
		txFlags.StringVar(&opts.Payload, "payload", "", "Payload text")
		_ = txFlags.Parse(subArgs)
		err = ctl.Transmit(*host, opts)

	// ── Live streaming ────────────────────────────────────────────
	case "watch":
		err = ctl.Watch(*host, ctl.WatchOptions{
			Filter: *filter,
			JSON:   *jsonOut,
		})

	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Print(`
  satctl — Satwatch ground station control CLI

  USAGE
    satctl [flags] <command> [command-flags]

  COMMANDS (query)
    status          Show daemon state, uptime, and current activity
    health          Check daemon and component health
    version         Show CLI and daemon version information
    satellites      List the tracked satellite catalog
    config          Show the daemon's running configuration
    passes          List upcoming satellite passes
    next-pass       Show the next upcoming pass
    recordings      List recorded pass captures
    candidates      List detection candidates
    tle-info        Show element cache status and freshness

  COMMANDS (control)
    trigger         Force an immediate satellite capture
    tle-refresh     Force an element set update from the network
    pause           Pause automatic pass scheduling
    resume          Resume pass scheduling
    skip            Skip the current/next scheduled pass
    cancel          Abort an in-progress capture
    transmit        Submit an uplink request to the transmit gate

  COMMANDS (live)
    watch           Stream live events from the daemon (Ctrl-C to stop)

  GLOBAL FLAGS
    -H, --host URL      Daemon base URL (default: http://127.0.0.1:8080)
        --json          Output raw JSON instead of formatted text
        --filter TYPE   Event types to show in watch (comma-separated)

  COMMAND FLAGS
    passes:
        --hours N           Prediction window in hours
        --count N           Limit number of passes shown
        --satellite NAME    Filter by satellite name

    next-pass:
        --satellite NAME    Filter by satellite name

    recordings:
        --limit N           Limit number of recordings shown

    candidates:
        --recording ID      Show candidates for one recording
        --limit N           Limit number of candidates shown

    trigger:
        --catalog-id ID     Satellite catalog ID (required)
        --duration SECS     Capture duration in seconds (default: 600)

    transmit:
        --freq HZ           Uplink frequency in Hz (required)
        --payload TEXT      Payload text

  EXAMPLES
    satctl status
    satctl --json status
    satctl --host http://192.168.8.1:8080 watch
    satctl passes --satellite NOAA --count 5
    satctl next-pass
    satctl recordings --limit 10
    satctl candidates --recording 3
    satctl trigger --catalog-id 25544 --duration 600
    satctl tle-refresh
    satctl pause
    satctl resume
    satctl watch --filter state,pass,candidate

`)
}
