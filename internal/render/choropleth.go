package render

import (
	"fmt"
	"strconv"
	"strings"
)

// Stop is one color stop of a Ramp.
type Stop struct {
	Score float64
	Color string
}

// Ramp interpolates fill colors between score stops, like a linear
// "interpolate" expression in a map style.
type Ramp struct {
	stops []rgbStop
}

type rgbStop struct {
	score   float64
	r, g, b float64
}

// NewRamp parses stops sorted by ascending score. Colors are #rgb or #rrggbb.
func NewRamp(stops []Stop) (*Ramp, error) {
	if len(stops) == 0 {
		return nil, fmt.Errorf("ramp needs at least one stop")
	}
	r := &Ramp{stops: make([]rgbStop, len(stops))}
	for i, s := range stops {
		if i > 0 && s.Score < stops[i-1].Score {
			return nil, fmt.Errorf("ramp stop %d: score %v is below the previous stop", i, s.Score)
		}
		red, green, blue, err := parseHex(s.Color)
		if err != nil {
			return nil, fmt.Errorf("ramp stop %d: %w", i, err)
		}
		r.stops[i] = rgbStop{score: s.Score, r: red, g: green, b: blue}
	}
	return r, nil
}

// Color returns the #rrggbb fill for a score. Scores outside the stops take
// the nearest end color.
func (r *Ramp) Color(score float64) string {
	first, last := r.stops[0], r.stops[len(r.stops)-1]
	if score <= first.score {
		return first.hex()
	}
	if score >= last.score {
		return last.hex()
	}
	for i := 1; i < len(r.stops); i++ {
		hi := r.stops[i]
		if score > hi.score {
			continue
		}
		lo := r.stops[i-1]
		span := hi.score - lo.score
		if span == 0 {
			return hi.hex()
		}
		t := (score - lo.score) / span
		return rgbStop{
			r: lo.r + (hi.r-lo.r)*t,
			g: lo.g + (hi.g-lo.g)*t,
			b: lo.b + (hi.b-lo.b)*t,
		}.hex()
	}
	return last.hex()
}

func (s rgbStop) hex() string {
	return fmt.Sprintf("#%02x%02x%02x", channel(s.r), channel(s.g), channel(s.b))
}

func channel(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v + 0.5)
}

func parseHex(c string) (r, g, b float64, err error) {
	h := strings.TrimPrefix(strings.TrimSpace(c), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return 0, 0, 0, fmt.Errorf("invalid color %q", c)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid color %q", c)
	}
	return float64(v >> 16 & 0xff), float64(v >> 8 & 0xff), float64(v & 0xff), nil
}
