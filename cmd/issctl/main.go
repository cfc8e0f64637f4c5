// Issctl is the command-line client for monitoring and controlling a running
// isstrackd instance. It connects over HTTP and WebSocket to query the
// tracker and stream live events from the daemon.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/large-farva/iss-tracker/internal/ctl"
)

func main() {
	var (
		host    = pflag.StringP("host", "H", "http://127.0.0.1:8080", "Tracker daemon URL (e.g. http://192.168.8.1:8080)")
		jsonOut = pflag.Bool("json", false, "Output raw JSON instead of formatted text")
		filter  = pflag.StringSlice("filter", nil, "Event types to show in watch (e.g. --filter cycle,log)")
	)

	// Stop parsing global flags at the first non-flag argument (the command
	// name), so subcommand-specific flags like --limit are not rejected.
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

	case "config":
		err = ctl.Config(*host, *jsonOut)

	case "position":
		err = ctl.Position(*host, *jsonOut)

	case "history":
		opts := ctl.HistoryOptions{JSON: *jsonOut}
		histFlags := pflag.NewFlagSet("history", pflag.ContinueOnError)
		histFlags.BoolVar(&opts.Chronological, "chronological", false, "List oldest fix first")
		histFlags.IntVar(&opts.Limit, "limit", 0, "Limit number of fixes shown")
		_ = histFlags.Parse(subArgs)
		err = ctl.History(*host, opts)

	case "map":
		err = ctl.Map(*host, *jsonOut)

	case "next-pass":
		err = ctl.NextPass(*host, *jsonOut)

	case "logs":
		opts := ctl.LogsOptions{JSON: *jsonOut}
		logFlags := pflag.NewFlagSet("logs", pflag.ContinueOnError)
		logFlags.StringVar(&opts.Level, "level", "", "Filter by log level (debug, info, warn, error)")
		logFlags.IntVar(&opts.Limit, "limit", 0, "Limit number of log entries shown")
		logFlags.BoolVar(&opts.Tail, "tail", false, "Stream live log events (like watch --filter log)")
		_ = logFlags.Parse(subArgs)
		err = ctl.Logs(*host, opts)

	// ── Control commands ──────────────────────────────────────────
	case "refresh":
		err = ctl.Refresh(*host, *jsonOut)

	case "pause":
		err = ctl.Pause(*host, *jsonOut)

	case "resume":
		err = ctl.Resume(*host, *jsonOut)

	case "interval":
		if len(subArgs) != 1 {
			fmt.Fprintln(os.Stderr, "usage: issctl interval SECONDS")
			os.Exit(2)
		}
		seconds, convErr := strconv.Atoi(subArgs[0])
		if convErr != nil {
			fmt.Fprintln(os.Stderr, "error: interval must be a whole number of seconds")
			os.Exit(2)
		}
		err = ctl.SetInterval(*host, seconds, *jsonOut)

	case "reset":
		err = ctl.Reset(*host, *jsonOut)

	case "reload":
		err = ctl.Reload(*host, *jsonOut)

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
  issctl - ISS tracker control CLI

  USAGE
    issctl [flags] <command> [command-flags]

  COMMANDS (query)
    status          Show daemon state, refresh loop and latest fix
    health          Check daemon and component health
    version         Show CLI and daemon version information
    config          Show the daemon's running configuration
    position        Show the most recent position fix
    history         List the buffered position history
    map             Summarize the map layer (--json for raw GeoJSON)
    next-pass       Show the next visible pass over the observer
    logs            Show recent daemon log messages

  COMMANDS (control)
    refresh         Run one refresh cycle now
    pause           Stop automatic refreshes
    resume          Restart automatic refreshes
    interval SECS   Change the auto-refresh period
    reset           Clear the position history
    reload          Reload configuration from disk

  COMMANDS (live)
    watch           Stream live events from the daemon (Ctrl-C to stop)

  GLOBAL FLAGS
    -H, --host URL      Daemon base URL (default: http://127.0.0.1:8080)
        --json          Output raw JSON instead of formatted text
        --filter TYPE   Event types to show in watch (comma-separated)

  COMMAND FLAGS
    history:
        --chronological     List oldest fix first
        --limit N           Limit number of fixes shown

    logs:
        --level LEVEL       Filter by log level (debug, info, warn, error)
        --limit N           Limit number of log entries shown
        --tail              Stream live log events

  EXAMPLES
    issctl status
    issctl --json position
    issctl --host http://192.168.8.1:8080 watch
    issctl history --limit 5
    issctl --json map > track.geojson
    issctl refresh
    issctl interval 60
    issctl pause
    issctl resume
    issctl reset
    issctl logs --level warn --limit 20
    issctl logs --tail
    issctl watch --filter cycle,telemetry,state

`)
}
