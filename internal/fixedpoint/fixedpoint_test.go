package fixedpoint

import (
	"testing"

	"github.com/holiman/uint256"
)

// xRaw builds a uint256.Int register for i*One without risking the
// uint64 overflow that a literal "i * One" would hit once i exceeds ~18.
func xRaw(i uint64) *uint256.Int {
	return new(uint256.Int).Mul(new(uint256.Int).SetUint64(i), oneU256)
}

func TestPow2NegExactTable(t *testing.T) {
	cases := []struct {
		i    uint64
		want uint64
	}{
		{0, One},
		{1, 500000000000000000},
		{2, 250000000000000000},
		{60, 1},
	}
	for _, c := range cases {
		got := Pow2Neg(xRaw(c.i))
		if got != c.want {
			t.Errorf("Pow2Neg(%d*One) = %d, want %d", c.i, got, c.want)
		}
	}
}

func TestPow2NegSaturatesAtSixtyOne(t *testing.T) {
	if got := Pow2Neg(xRaw(61)); got != 0 {
		t.Errorf("Pow2Neg(61*One) = %d, want 0", got)
	}
	if got := Pow2Neg(xRaw(1000)); got != 0 {
		t.Errorf("Pow2Neg(1000*One) = %d, want 0", got)
	}
}

func TestPow2NegInterpolation(t *testing.T) {
	// halfway between T[0]=1e18 and T[1]=0.5e18 should be the midpoint.
	half := new(uint256.Int).Div(oneU256, uint256.NewInt(2))
	got := Pow2Neg(half)
	want := (One + 500000000000000000) / 2
	diff := int64(got) - int64(want)
	if diff < 0 {
		diff = -diff
	}
	if diff > 1 {
		t.Errorf("Pow2Neg(0.5*One) = %d, want ~%d", got, want)
	}
}

func TestPow2NegExpScenarioCheckpoints(t *testing.T) {
	// spec §8 scenario 6: decay_factor=20000, duration=100s.
	cases := []struct {
		elapsed uint64
		want    uint64 // 1e18-scaled, ~1% tolerance
	}{
		{0, 1_000_000_000_000_000_000},
		{10, 250_000_000_000_000_000},
		{20, 62_500_000_000_000_000},
		{30, 15_625_000_000_000_000},
	}
	for _, c := range cases {
		x := XRawFromDecay(c.elapsed, 20000)
		got := Pow2Neg(x)
		tolerance := c.want / 100
		if tolerance == 0 {
			tolerance = 1
		}
		diff := int64(got) - int64(c.want)
		if diff < 0 {
			diff = -diff
		}
		if uint64(diff) > tolerance {
			t.Errorf("Pow2Neg at elapsed=%d = %d, want ~%d (tolerance %d)", c.elapsed, got, c.want, tolerance)
		}
	}
}

func TestSatAddOverflow(t *testing.T) {
	max := ^uint64(0)
	if got := SatAdd(max, 1); got != max {
		t.Errorf("SatAdd overflow = %d, want %d", got, max)
	}
	if got := SatAdd(2, 3); got != 5 {
		t.Errorf("SatAdd(2,3) = %d, want 5", got)
	}
}

func TestSatSubUnderflow(t *testing.T) {
	if got := SatSub(1, 5); got != 0 {
		t.Errorf("SatSub(1,5) = %d, want 0", got)
	}
	if got := SatSub(5, 1); got != 4 {
		t.Errorf("SatSub(5,1) = %d, want 4", got)
	}
}

func TestMulDivNoOverflow(t *testing.T) {
	// 2e18 * 3e18 / 1e18 = 6e18, which overflows uint64 multiplication
	// (2e18*3e18 ~ 6e36) if done without a wider intermediate.
	got := MulDiv(2*One, 3*One, One)
	want := 6 * One
	if got != want {
		t.Errorf("MulDiv = %d, want %d", got, want)
	}
}
