package domain

import (
	"errors"
	"testing"
)

func TestParseResolution(t *testing.T) {
	for _, tok := range []string{"1", "5", "15", "30", "60", "D"} {
		if _, err := ParseResolution(tok); err != nil {
			t.Errorf("ParseResolution(%q) unexpected error: %v", tok, err)
		}
	}

	for _, tok := range []string{"d", "W", "2", "", " 5"} {
		if _, err := ParseResolution(tok); !errors.Is(err, ErrInvalidResolution) {
			t.Errorf("ParseResolution(%q) = %v, want ErrInvalidResolution", tok, err)
		}
	}
}

func TestNearestSupported(t *testing.T) {
	upstoxLike := []Resolution{Resolution1Min, Resolution30Min, ResolutionDay}

	cases := []struct {
		in        Resolution
		supported []Resolution
		want      Resolution
	}{
		{Resolution1Min, upstoxLike, Resolution1Min},
		{Resolution5Min, upstoxLike, Resolution1Min},
		{Resolution15Min, upstoxLike, Resolution1Min},
		{Resolution60Min, upstoxLike, Resolution30Min},
		{ResolutionDay, upstoxLike, ResolutionDay},
		{Resolution5Min, []Resolution{ResolutionDay}, ResolutionDay},
		{Resolution15Min, nil, Resolution15Min},
		{Resolution30Min, []Resolution{Resolution15Min, Resolution60Min}, Resolution15Min},
	}

	for _, tc := range cases {
		if got := NearestSupported(tc.in, tc.supported); got != tc.want {
			t.Errorf("NearestSupported(%s, %v) = %s, want %s", tc.in, tc.supported, got, tc.want)
		}
	}
}
