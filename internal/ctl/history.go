package ctl

import (
	"fmt"
	"strings"
)

// HistoryOptions configures the history command.
type HistoryOptions struct {
	Chronological bool
	Limit         int
	JSON          bool
}

// History lists the buffered fixes as a table, newest first unless
// Chronological is set.
func History(baseURL string, opts HistoryOptions) error {
	baseURL = strings.TrimRight(baseURL, "/")

	order := "newest"
	if opts.Chronological {
		order = "chronological"
	}

	var resp struct {
		Seq      uint64 `json:"seq"`
		Capacity int    `json:"capacity"`
		Order    string `json:"order"`
		Fixes    []Fix  `json:"fixes"`
	}
	if err := getJSON(baseURL, "/api/history?order="+order, &resp); err != nil {
		return err
	}
	if opts.Limit > 0 && opts.Limit < len(resp.Fixes) {
		resp.Fixes = resp.Fixes[:opts.Limit]
	}

	if opts.JSON {
		return printJSON(resp)
	}

	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "%s  %s\n", header("  POSITION HISTORY"),
		colorize(dim, fmt.Sprintf("(%d of %d, %s)", len(resp.Fixes), resp.Capacity, resp.Order)))
	fmt.Fprintln(stdout, rule(64))

	if len(resp.Fixes) == 0 {
		fmt.Fprintln(stdout, "  No fixes recorded yet.")
		fmt.Fprintln(stdout)
		return nil
	}

	fmt.Fprintf(stdout, "  %s %s %s %s\n",
		colorize(dim, padRight("Timestamp", 22)),
		colorize(dim, padRight("Latitude", 12)),
		colorize(dim, padRight("Longitude", 12)),
		colorize(dim, "Altitude (km)"),
	)
	for _, f := range resp.Fixes {
		fmt.Fprintf(stdout, "  %s %s %s %.1f\n",
			padRight(formatTime(f.Timestamp), 22),
			padRight(fmt.Sprintf("%.4f", f.Latitude), 12),
			padRight(fmt.Sprintf("%.4f", f.Longitude), 12),
			f.AltitudeKm,
		)
	}
	fmt.Fprintln(stdout)
	return nil
}
