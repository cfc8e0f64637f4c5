package demo

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/large-farva/iss-tracker/internal/predict"
	"github.com/large-farva/iss-tracker/internal/tle"
)

func TestFeedRestampsEpoch(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	set, err := tle.ExtractElements(Feed(now), "ISS (ZARYA)")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got := set.Line1[18:32]; got != "26291.50000000" {
		t.Errorf("epoch = %q, want 26291.50000000", got)
	}

	fix, err := predict.Position(set, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("restamped elements should propagate: %v", err)
	}
	if fix.AltKm < 350 || fix.AltKm > 460 {
		t.Errorf("altitude %.1f km implausible", fix.AltKm)
	}
}

func TestFeedKeepsOtherObjects(t *testing.T) {
	feed := Feed(time.Now())
	if _, err := tle.ExtractElements(feed, "css (tianhe)"); err != nil {
		t.Errorf("CSS entry missing: %v", err)
	}
	if strings.Count(feed, "\n1 ") != 2 {
		t.Errorf("expected two element sets in feed")
	}
}

func TestHandlerServesFeed(t *testing.T) {
	srv := httptest.NewServer(Handler())
	defer srv.Close()

	set, err := tle.FetchElements(context.Background(), srv.URL+Path, "ISS (ZARYA)")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !strings.HasPrefix(set.Line1, "1 25544U") {
		t.Errorf("line1 = %q", set.Line1)
	}

	resp, err := http.Post(srv.URL+Path, "text/plain", nil)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d", resp.StatusCode)
	}
}

func TestURL(t *testing.T) {
	tests := map[string]string{
		"0.0.0.0:8080":  "http://127.0.0.1:8080/demo/stations.txt",
		":9000":         "http://127.0.0.1:9000/demo/stations.txt",
		"10.0.0.5:8080": "http://10.0.0.5:8080/demo/stations.txt",
		"[::]:8080":     "http://127.0.0.1:8080/demo/stations.txt",
	}
	for in, want := range tests {
		if got := URL(in); got != want {
			t.Errorf("URL(%q) = %q, want %q", in, got, want)
		}
	}
}
