package ctl

import (
	"fmt"
	"strings"
)

// Reload tells the daemon to re-read its config file from disk and prints
// what the daemon changed.
func Reload(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var result struct {
		OK      bool     `json:"ok"`
		Message string   `json:"message"`
		Error   string   `json:"error,omitempty"`
		Changes []string `json:"changes"`
	}
	if err := postJSON(baseURL, "/api/reload", nil, &result); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(result)
	}

	fmt.Fprintf(stdout, "\n  %s  %s\n", colorize(green, "RELOADED"), result.Message)
	for _, c := range result.Changes {
		fmt.Fprintf(stdout, "    %s %s\n", colorize(dim, "-"), c)
	}
	fmt.Fprintln(stdout)
	return nil
}
