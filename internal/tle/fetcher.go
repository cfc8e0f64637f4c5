package tle

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultTimeout bounds a single fetch when the caller does not set one.
	DefaultTimeout = 10 * time.Second

	// maxBodyBytes caps how much of the feed is read. stations.txt is a few
	// kilobytes; anything near this size is not a TLE feed.
	maxBodyBytes = 4 << 20
)

// Fetcher retrieves element sets for one object from a remote feed.
type Fetcher struct {
	url        string
	objectName string
	httpClient *http.Client
}

// NewFetcher returns a fetcher for objectName at url. A zero timeout means
// DefaultTimeout.
func NewFetcher(url, objectName string, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{
		url:        url,
		objectName: objectName,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// URL returns the configured feed URL.
func (f *Fetcher) URL() string { return f.url }

// ObjectName returns the configured object match.
func (f *Fetcher) ObjectName() string { return f.objectName }

// FetchElements performs one GET against the feed and extracts the element
// set for the configured object.
func (f *Fetcher) FetchElements(ctx context.Context) (ElementSet, error) {
	return fetchElements(ctx, f.httpClient, f.url, f.objectName)
}

// FetchElements issues a single bounded-timeout request to source and
// extracts the element pair following the line matching objectName.
func FetchElements(ctx context.Context, source, objectName string) (ElementSet, error) {
	client := &http.Client{Timeout: DefaultTimeout}
	return fetchElements(ctx, client, source, objectName)
}

func fetchElements(ctx context.Context, client *http.Client, source, objectName string) (ElementSet, error) {
	body, err := fetchBody(ctx, client, source)
	if err != nil {
		return ElementSet{}, &FetchError{Kind: Transport, Cause: err}
	}
	return ExtractElements(body, objectName)
}

func fetchBody(ctx context.Context, client *http.Client, source string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("TLE fetch returned HTTP %d", resp.StatusCode)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}
	if len(b) > maxBodyBytes {
		return "", fmt.Errorf("response exceeds %d byte limit", maxBodyBytes)
	}
	return string(b), nil
}
