// Package demo serves a built-in station feed so the daemon, CLI and
// dashboard can run without reaching CelesTrak. Element set epochs are
// moved to the current day on every request so propagation stays close to
// epoch no matter how old the bundled elements are.
package demo

import (
	_ "embed"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// Path is where the feed is mounted on the daemon's mux.
const Path = "/demo/stations.txt"

//go:embed stations.txt
var stations string

// Feed returns the bundled feed with every epoch set to now.
func Feed(now time.Time) string {
	lines := strings.Split(stations, "\n")
	for i, l := range lines {
		if strings.HasPrefix(l, "1 ") && len(l) == 69 {
			lines[i] = restamp(l, now)
		}
	}
	return strings.Join(lines, "\n")
}

// restamp rewrites the epoch field (columns 19-32) of line 1 and fixes up
// the checksum.
func restamp(line string, now time.Time) string {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	frac := now.Sub(midnight).Seconds() / 86400
	epoch := fmt.Sprintf("%02d%03d.%08d", now.Year()%100, now.YearDay(), int(frac*1e8))

	b := []byte(line)
	copy(b[18:32], epoch)
	b[68] = checksum(b[:68])
	return string(b)
}

func checksum(b []byte) byte {
	sum := 0
	for _, c := range b {
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return byte('0' + sum%10)
}

// Handler serves the feed as plain text.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(Feed(time.Now())))
	})
}

// URL returns the feed address for a daemon bound to bind. Wildcard hosts
// are replaced with loopback.
func URL(bind string) string {
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return "http://" + bind + Path
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + Path
}
