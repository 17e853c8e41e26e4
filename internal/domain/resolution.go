package domain

import "time"

// Resolution is a provider-agnostic candle granularity token.
type Resolution string

const (
	Resolution1Min  Resolution = "1"
	Resolution5Min  Resolution = "5"
	Resolution15Min Resolution = "15"
	Resolution30Min Resolution = "30"
	Resolution60Min Resolution = "60"
	ResolutionDay   Resolution = "D"
)

// Resolutions lists every accepted token, finest first.
var Resolutions = []Resolution{
	Resolution1Min, Resolution5Min, Resolution15Min,
	Resolution30Min, Resolution60Min, ResolutionDay,
}

// ParseResolution accepts exactly one of 1, 5, 15, 30, 60, D (case-sensitive).
func ParseResolution(s string) (Resolution, error) {
	for _, r := range Resolutions {
		if string(r) == s {
			return r, nil
		}
	}
	return "", ErrInvalidResolution
}

// Minutes returns the bar width in minutes; a day counts as 1440.
func (r Resolution) Minutes() int {
	switch r {
	case Resolution1Min:
		return 1
	case Resolution5Min:
		return 5
	case Resolution15Min:
		return 15
	case Resolution30Min:
		return 30
	case Resolution60Min:
		return 60
	case ResolutionDay:
		return 24 * 60
	default:
		return 0
	}
}

// Duration returns the bar width.
func (r Resolution) Duration() time.Duration {
	return time.Duration(r.Minutes()) * time.Minute
}

// IsIntraday reports whether r is finer than a day.
func (r Resolution) IsIntraday() bool {
	return r != ResolutionDay
}

// NearestSupported maps r onto the closest granularity in supported.
// Ties go to the coarser granularity. An empty supported set returns r.
func NearestSupported(r Resolution, supported []Resolution) Resolution {
	best := r
	bestDist := -1
	for _, s := range supported {
		if s == r {
			return r
		}
		dist := s.Minutes() - r.Minutes()
		if dist < 0 {
			dist = -dist
		}
		if bestDist < 0 || dist < bestDist || (dist == bestDist && s.Minutes() > best.Minutes()) {
			best = s
			bestDist = dist
		}
	}
	return best
}

// ResolutionMapper is implemented by providers that serve some granularities
// at a substitute one.
type ResolutionMapper interface {
	EffectiveResolution(res Resolution) Resolution
}

// EffectiveResolution reports the granularity p actually serves for res.
// Candles are stored under this value, never under the requested one.
func EffectiveResolution(p MarketDataProvider, res Resolution) Resolution {
	if m, ok := p.(ResolutionMapper); ok {
		return m.EffectiveResolution(res)
	}
	return res
}
