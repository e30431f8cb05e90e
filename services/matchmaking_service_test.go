package services

import "testing"

func TestWithinPowerBand(t *testing.T) {
	cases := []struct {
		name      string
		requester int64
		candidate int64
		want      bool
	}{
		{"equal power", 100, 100, true},
		{"25 percent above", 100, 125, true},
		{"exactly 30 percent above", 100, 130, true},
		{"just over the band", 100, 131, false},
		{"exactly 30 percent below", 100, 70, true},
		{"just under the band", 100, 69, false},
		{"double the power", 100, 200, false},
		{"large values", 10_000, 12_900, true},
		{"zero requester never matches", 0, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := withinPowerBand(tc.requester, tc.candidate); got != tc.want {
				t.Fatalf("withinPowerBand(%d, %d) = %v, want %v", tc.requester, tc.candidate, got, tc.want)
			}
		})
	}
}
