// Package tle retrieves two-line element sets from a plain-text feed such as
// CelesTrak's stations.txt and picks out the pair belonging to a named
// object. Network I/O and text scanning are kept apart so the scanning half
// can be tested against fixture text.
package tle

import (
	"errors"
	"fmt"
	"strings"
)

// ElementSet is the two data lines describing one object at its epoch.
type ElementSet struct {
	Name  string
	Line1 string
	Line2 string
}

// String renders the set in the usual three-line layout.
func (e ElementSet) String() string {
	return e.Name + "\n" + e.Line1 + "\n" + e.Line2
}

// Kind classifies a FetchError.
type Kind int

const (
	// Transport covers network failures, timeouts and non-200 responses.
	Transport Kind = iota + 1
	// NotFound means the feed was read but held no usable element pair.
	NotFound
)

func (k Kind) String() string {
	switch k {
	case Transport:
		return "transport"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is against a *FetchError.
var (
	ErrTransport = errors.New("tle: transport failure")
	ErrNotFound  = errors.New("tle: element set not found")
)

// FetchError is returned by FetchElements and ExtractElements.
type FetchError struct {
	Kind  Kind
	Cause error
}

func (e *FetchError) Error() string {
	if e.Cause == nil {
		return "fetch " + e.Kind.String()
	}
	return fmt.Sprintf("fetch %s: %v", e.Kind, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// Is matches the package sentinels by kind.
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == Transport
	case ErrNotFound:
		return e.Kind == NotFound
	}
	return false
}

// ExtractElements scans text for the first line containing match
// (case-insensitive) and returns the two lines that follow it. Trailing
// whitespace and carriage returns are ignored.
func ExtractElements(text, match string) (ElementSet, error) {
	needle := strings.ToUpper(strings.TrimSpace(match))
	if needle == "" {
		return ElementSet{}, &FetchError{Kind: NotFound, Cause: errors.New("empty object name")}
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		header := strings.TrimSpace(line)
		if !strings.Contains(strings.ToUpper(header), needle) {
			continue
		}
		if i+2 >= len(lines) {
			return ElementSet{}, &FetchError{
				Kind:  NotFound,
				Cause: fmt.Errorf("%q matched on line %d but fewer than two lines follow", match, i+1),
			}
		}
		return ElementSet{
			Name:  header,
			Line1: strings.TrimRight(lines[i+1], " \t\r"),
			Line2: strings.TrimRight(lines[i+2], " \t\r"),
		}, nil
	}

	return ElementSet{}, &FetchError{
		Kind:  NotFound,
		Cause: fmt.Errorf("no line matching %q in %d lines of input", match, len(lines)),
	}
}
