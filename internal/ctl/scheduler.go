package ctl

import (
	"fmt"
	"strings"
	"time"
)

// Refresh asks the daemon to run one refresh cycle now.
func Refresh(baseURL string, jsonOutput bool) error {
	return loopControl(baseURL, "/api/refresh", nil, "REFRESHING", jsonOutput)
}

// Pause stops automatic refreshes. A cycle already running completes.
func Pause(baseURL string, jsonOutput bool) error {
	return loopControl(baseURL, "/api/pause", nil, "PAUSED", jsonOutput)
}

// Resume restarts automatic refreshes.
func Resume(baseURL string, jsonOutput bool) error {
	return loopControl(baseURL, "/api/resume", nil, "RESUMED", jsonOutput)
}

// Reset clears the position history.
func Reset(baseURL string, jsonOutput bool) error {
	return loopControl(baseURL, "/api/reset", nil, "RESET", jsonOutput)
}

// SetInterval changes the auto-refresh period.
func SetInterval(baseURL string, seconds int, jsonOutput bool) error {
	body := map[string]int{"seconds": seconds}
	label := "INTERVAL " + formatDuration(time.Duration(seconds)*time.Second)
	return loopControl(baseURL, "/api/interval", body, label, jsonOutput)
}

func loopControl(baseURL, path string, body any, label string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	result, err := postCommand(baseURL, path, body)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(result)
	}

	switch {
	case result.OK:
		fmt.Fprintf(stdout, "\n  %s  %s\n\n", colorize(green, label), result.Message)
	case result.InFlight:
		fmt.Fprintf(stdout, "\n  %s  %s\n\n", colorize(yellow, "BUSY"), result.Error)
	default:
		fmt.Fprintf(stdout, "\n  %s  %s\n\n", colorize(red, "ERROR"), result.Error)
	}
	return nil
}
