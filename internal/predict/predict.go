// Package predict turns two-line element sets into positions. Position
// computes the sub-satellite point used by the refresh loop; Predictor finds
// upcoming visible passes over an observer, whose location comes from the
// config file or from gpsd.
package predict

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/large-farva/iss-tracker/internal/config"
	"github.com/large-farva/iss-tracker/internal/tle"
)

// passStepSeconds is the propagation step used when searching for passes.
const passStepSeconds = 5

// Pass describes a single predicted overhead pass, from acquisition of
// signal (AOS) through loss of signal (LOS).
type Pass struct {
	AOS         time.Time     `json:"aos"`
	LOS         time.Time     `json:"los"`
	MaxElev     float64       `json:"max_elev"`
	MaxElevTime time.Time     `json:"max_elev_time"`
	AOSAzimuth  float64       `json:"aos_azimuth"`
	LOSAzimuth  float64       `json:"los_azimuth"`
	Duration    time.Duration `json:"duration_ns"`
}

// ElementSource yields a fresh element set on each call.
type ElementSource interface {
	FetchElements(ctx context.Context) (tle.ElementSet, error)
}

// Predictor resolves the observer location, fetches current elements and
// runs SGP4 propagation to find upcoming passes.
type Predictor struct {
	cfg    config.ObserverConfig
	log    *log.Logger
	source ElementSource
}

// NewPredictor creates a predictor for the observer in cfg.
func NewPredictor(cfg config.ObserverConfig, source ElementSource, logger *log.Logger) *Predictor {
	return &Predictor{
		cfg:    cfg,
		log:    logger,
		source: source,
	}
}

// ResolveLocation determines the observer position. If use_gpsd is true, it
// tries gpsd first and falls back to the configured values.
func (p *Predictor) ResolveLocation(ctx context.Context) Location {
	if p.cfg.UseGPSD {
		loc, err := LocationFromGPSD(ctx, p.cfg.GPSDHost, 10*time.Second)
		if err != nil {
			p.logf("warn", "gpsd failed (%v), falling back to config", err)
		} else {
			p.logf("info", "location from gpsd: %.4f, %.4f, %.0fm", loc.Lat, loc.Lon, loc.Alt)
			return loc
		}
	}

	return Location{
		Lat: p.cfg.Latitude,
		Lon: p.cfg.Longitude,
		Alt: p.cfg.Altitude,
	}
}

// UpcomingPasses fetches elements, resolves the observer location, and
// returns every pass starting after now within the lookahead window whose
// peak reaches min_elevation, sorted by AOS.
func (p *Predictor) UpcomingPasses(ctx context.Context, now time.Time) ([]Pass, Location, error) {
	loc := p.ResolveLocation(ctx)

	set, err := p.source.FetchElements(ctx)
	if err != nil {
		return nil, loc, fmt.Errorf("fetch elements: %w", err)
	}
	if err := validateLines(set.Line1, set.Line2); err != nil {
		return nil, loc, &PropagationError{Cause: err}
	}
	parsed, err := parse(set)
	if err != nil {
		return nil, loc, &PropagationError{Cause: err}
	}

	now = now.UTC()
	end := now.Add(time.Duration(p.cfg.LookaheadHours) * time.Hour)

	raw, err := parsed.GeneratePasses(loc.Lat, loc.Lon, loc.Alt, now, end, passStepSeconds)
	if err != nil {
		return nil, loc, &PropagationError{Cause: fmt.Errorf("generate passes: %w", err)}
	}

	var passes []Pass
	for _, rp := range raw {
		if rp.MaxElevation < p.cfg.MinElevation || !rp.AOS.After(now) {
			continue
		}
		passes = append(passes, Pass{
			AOS:         rp.AOS,
			LOS:         rp.LOS,
			MaxElev:     rp.MaxElevation,
			MaxElevTime: rp.MaxElevationTime,
			AOSAzimuth:  rp.AOSAzimuth,
			LOSAzimuth:  rp.LOSAzimuth,
			Duration:    rp.Duration,
		})
	}

	sort.Slice(passes, func(i, j int) bool {
		return passes[i].AOS.Before(passes[j].AOS)
	})

	p.logf("debug", "found %d passes of %s in next %dh", len(passes), set.Name, p.cfg.LookaheadHours)

	return passes, loc, nil
}

// NextPass returns the first upcoming pass, or nil if none falls inside the
// lookahead window.
func (p *Predictor) NextPass(ctx context.Context, now time.Time) (*Pass, Location, error) {
	passes, loc, err := p.UpcomingPasses(ctx, now)
	if err != nil || len(passes) == 0 {
		return nil, loc, err
	}
	return &passes[0], loc, nil
}

func (p *Predictor) logf(level, format string, args ...any) {
	if p.log != nil {
		p.log.Printf("[%s] predict: %s", level, fmt.Sprintf(format, args...))
	}
}
