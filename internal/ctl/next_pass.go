package ctl

import (
	"fmt"
	"strings"
	"time"
)

// NextPass shows the next time the tracked object rises above the
// observer's minimum elevation.
func NextPass(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var resp struct {
		Object string `json:"object"`
		Pass   *struct {
			AOS         string  `json:"aos"`
			LOS         string  `json:"los"`
			MaxElev     float64 `json:"max_elev"`
			MaxElevTime string  `json:"max_elev_time"`
			AOSAzimuth  float64 `json:"aos_azimuth"`
			LOSAzimuth  float64 `json:"los_azimuth"`
			DurationS   int     `json:"duration_s"`
		} `json:"pass"`
		CountdownS int `json:"countdown_s"`
		Observer   struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
			Alt float64 `json:"alt"`
		} `json:"observer"`
		MinElevation   float64 `json:"min_elevation"`
		LookaheadHours int     `json:"lookahead_hours"`
	}
	if err := getJSONWith(slowClient, baseURL, "/api/next-pass", &resp); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(resp)
	}

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, header("  NEXT PASS"))
	fmt.Fprintln(stdout, rule(42))
	fmt.Fprintf(stdout, "  Object:     %s\n", resp.Object)
	fmt.Fprintf(stdout, "  Observer:   %.4f°, %.4f°, %.0f m\n", resp.Observer.Lat, resp.Observer.Lon, resp.Observer.Alt)

	if resp.Pass == nil {
		fmt.Fprintf(stdout, "  No pass above %.0f° in the next %dh.\n", resp.MinElevation, resp.LookaheadHours)
		fmt.Fprintln(stdout)
		return nil
	}

	p := resp.Pass
	countdown := time.Duration(resp.CountdownS) * time.Second

	fmt.Fprintf(stdout, "  AOS:        %s (az %.0f°)\n", formatTime(p.AOS), p.AOSAzimuth)
	fmt.Fprintf(stdout, "  Max elev:   %.1f° at %s\n", p.MaxElev, formatTime(p.MaxElevTime))
	fmt.Fprintf(stdout, "  LOS:        %s (az %.0f°)\n", formatTime(p.LOS), p.LOSAzimuth)
	fmt.Fprintf(stdout, "  Duration:   %s\n", formatDuration(time.Duration(p.DurationS)*time.Second))

	if countdown > 0 {
		fmt.Fprintf(stdout, "  Countdown:  %s\n", formatDuration(countdown))
	} else {
		fmt.Fprintf(stdout, "  Status:     %s\n", colorize(green, "NOW"))
	}

	fmt.Fprintln(stdout)
	return nil
}
