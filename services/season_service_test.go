package services

import "testing"

func TestRewardForPlacement(t *testing.T) {
	tests := []struct {
		placement int
		coins     int64
		fragments int64
	}{
		{1, 5000, 50},
		{2, 3000, 30},
		{3, 2000, 20},
		{4, 1000, 10},
		{10, 1000, 10},
		{11, 250, 0},
		{100, 250, 0},
		{101, 0, 0},
		{5000, 0, 0},
	}
	for _, tt := range tests {
		coins, fragments := rewardForPlacement(tt.placement)
		if coins != tt.coins || fragments != tt.fragments {
			t.Errorf("rewardForPlacement(%d) = (%d, %d), want (%d, %d)",
				tt.placement, coins, fragments, tt.coins, tt.fragments)
		}
	}
}

func TestTitleForPlacement(t *testing.T) {
	tests := []struct {
		placement int
		want      string
	}{
		{1, "Season 3 Champion"},
		{2, "Season 3 Runner-up"},
		{3, "Season 3 Third Place"},
		{4, "Season 3 Top 10"},
		{10, "Season 3 Top 10"},
	}
	for _, tt := range tests {
		if got := titleForPlacement(tt.placement, "Season 3"); got != tt.want {
			t.Errorf("titleForPlacement(%d) = %q, want %q", tt.placement, got, tt.want)
		}
	}
}
