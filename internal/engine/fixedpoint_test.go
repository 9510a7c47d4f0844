package engine

import "testing"

func TestMulDiv(t *testing.T) {
	tests := []struct {
		a, b, d int64
		want    int64
	}{
		{500_000_000, 500_000_000, 598_000_000, 418_060_200},
		{100 * UnitScale, 200, FeeDenominator, 2 * UnitScale},
		{1, 1, 2, 0},
		// Intermediate product overflows int64, result does not.
		{9_000_000_000_000, 9_000_000_000_000, 9_000_000_000_000, 9_000_000_000_000},
		{-10, 3, 4, -7}, // truncates toward zero
	}
	for _, tt := range tests {
		if got := MulDiv(tt.a, tt.b, tt.d); got != tt.want {
			t.Errorf("MulDiv(%d, %d, %d) = %d, want %d", tt.a, tt.b, tt.d, got, tt.want)
		}
	}
}

func TestUnitConversions(t *testing.T) {
	if got := Units(81_939_800); got != 81.9398 {
		t.Errorf("Units(81939800) = %v, want 81.9398", got)
	}
	if got := ToRaw(100); got != 100*UnitScale {
		t.Errorf("ToRaw(100) = %d, want %d", got, 100*UnitScale)
	}
	if got := Percent(500000); got != 50 {
		t.Errorf("Percent(500000) = %v, want 50", got)
	}
	if got := Percent(588547); got != 58.8547 {
		t.Errorf("Percent(588547) = %v, want 58.8547", got)
	}
}
