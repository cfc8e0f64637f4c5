package predict

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/akhenakh/sgp4"
	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/large-farva/iss-tracker/internal/tle"
	"github.com/large-farva/iss-tracker/internal/track"
)

// ErrInvalid matches any *PropagationError via errors.Is.
var ErrInvalid = errors.New("predict: invalid element set")

// PropagationError reports malformed elements or a propagation result that
// is not a plausible position.
type PropagationError struct {
	Cause error
}

func (e *PropagationError) Error() string {
	return "propagation invalid: " + e.Cause.Error()
}

func (e *PropagationError) Unwrap() error { return e.Cause }

func (e *PropagationError) Is(target error) bool { return target == ErrInvalid }

func invalid(format string, args ...any) error {
	return &PropagationError{Cause: fmt.Errorf(format, args...)}
}

// Position propagates set to at and returns the sub-satellite point. The
// instant is truncated to whole seconds, which is the resolution the SGP4
// propagator accepts.
//
// Both lines are checked before they reach go-satellite because that
// library calls log.Fatal on unparseable input.
func Position(set tle.ElementSet, at time.Time) (track.Fix, error) {
	if _, err := parse(set); err != nil {
		return track.Fix{}, &PropagationError{Cause: err}
	}
	if err := validateLines(set.Line1, set.Line2); err != nil {
		return track.Fix{}, &PropagationError{Cause: err}
	}

	sat := satellite.TLEToSat(set.Line1, set.Line2, satellite.GravityWGS72)
	if sat.Error != 0 {
		return track.Fix{}, invalid("sgp4 init failed: code=%d %s", sat.Error, sat.ErrorStr)
	}

	t := at.UTC().Truncate(time.Second)
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	pos, _ := satellite.Propagate(sat, year, int(month), day, hour, minute, sec)
	if !finite(pos.X, pos.Y, pos.Z) {
		return track.Fix{}, invalid("propagation diverged at %s", t.Format(time.RFC3339))
	}

	gmst := satellite.GSTimeFromDate(year, int(month), day, hour, minute, sec)
	altKm, _, ll := satellite.ECIToLLA(pos, gmst)

	lat := ll.Latitude * 180 / math.Pi
	lon := NormalizeLongitude(ll.Longitude * 180 / math.Pi)
	if !finite(lat, lon, altKm) {
		return track.Fix{}, invalid("geodetic conversion produced non-finite values")
	}
	if lat < -90 || lat > 90 {
		return track.Fix{}, invalid("latitude %.4f out of range", lat)
	}
	if altKm < 0 {
		return track.Fix{}, invalid("altitude %.1f km below surface", altKm)
	}

	return track.Fix{
		Time:  t,
		Lat:   lat,
		Lon:   lon,
		AltKm: altKm,
	}, nil
}

// NormalizeLongitude maps any longitude in degrees onto [-180, 180).
func NormalizeLongitude(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

// parse runs the element set through akhenakh/sgp4, which checks line
// length and the modulo-10 checksums.
func parse(set tle.ElementSet) (*sgp4.TLE, error) {
	name := set.Name
	if name == "" {
		name = "UNNAMED"
	}
	return sgp4.ParseTLE(name + "\n" + set.Line1 + "\n" + set.Line2)
}

// validateLines checks what ParseTLE leaves alone: line order and a
// matching catalog number on both lines.
func validateLines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) < 7 || len(line2) < 7 {
		return fmt.Errorf("element lines too short")
	}
	if !strings.HasPrefix(line1, "1 ") {
		return fmt.Errorf("line1 must start with \"1 \", got %q", line1[:2])
	}
	if !strings.HasPrefix(line2, "2 ") {
		return fmt.Errorf("line2 must start with \"2 \", got %q", line2[:2])
	}
	if a, b := strings.TrimSpace(line1[2:7]), strings.TrimSpace(line2[2:7]); a != b {
		return fmt.Errorf("catalog numbers differ: %s vs %s", a, b)
	}
	return nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
