package cache

import "testing"

func TestClampStoragePrecision(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{"zero floors to minimum", 0, 8},
		{"below finest bucket floors to minimum", 5, 8},
		{"minimum passes through", 8, 8},
		{"mid-range passes through", 10, 10},
		{"above geohash maximum clips", 15, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clampStoragePrecision(tt.in); got != tt.want {
				t.Errorf("clampStoragePrecision(%d) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}
