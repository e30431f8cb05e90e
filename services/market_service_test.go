package services

import "testing"

func TestSellerProceeds(t *testing.T) {
	tests := []struct {
		price int64
		want  int64
	}{
		{100, 95},
		{1000, 950},
		{1, 1},   // fee rounds down to zero
		{19, 19}, // 19*5/100 == 0
		{20, 19},
		{0, 0},
	}
	for _, tt := range tests {
		if got := sellerProceeds(tt.price); got != tt.want {
			t.Errorf("sellerProceeds(%d) = %d, want %d", tt.price, got, tt.want)
		}
	}
}
