package bitint

import "testing"

func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct {
		input, want int
	}{
		{-1, 1},
		{0, 1},
		{1, 1},
		{2, 2},
		{3, 4},
		{4, 4},
		{5, 8},
		{255, 256},
		{256, 256},
		{257, 512},
		{1000, 1024},
		{1 << 20, 1 << 20},
	}
	for _, tt := range tests {
		if got := NextPowerOfTwo(tt.input); got != tt.want {
			t.Errorf("NextPowerOfTwo(%d) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	tests := []struct {
		input int
		want  bool
	}{
		{-8, false},
		{0, false},
		{1, true},
		{2, true},
		{3, false},
		{512, true},
		{1000, false},
		{1024, true},
		{1 << 30, true},
	}
	for _, tt := range tests {
		if got := IsPowerOfTwo(tt.input); got != tt.want {
			t.Errorf("IsPowerOfTwo(%d) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestHelpersZeroAlloc(t *testing.T) {
	allocs := testing.AllocsPerRun(100, func() {
		_ = NextPowerOfTwo(1000)
		_ = IsPowerOfTwo(1024)
	})
	if allocs > 0 {
		t.Errorf("expected zero allocations, got %.1f", allocs)
	}
}
