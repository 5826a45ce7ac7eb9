package sunspec

import (
	"math"
	"testing"
)

// Invariant 4: apply_scale(sentinel_for_T, k) = None for every T and k.
func TestApplyScale_SentinelsAreAbsent(t *testing.T) {
	cases := []PointValue{
		{Kind: KindI16, I16: math.MinInt16},
		{Kind: KindU16, U16: math.MaxUint16},
		{Kind: KindI32, I32: math.MinInt32},
		{Kind: KindU32, U32: math.MaxUint32},
		{Kind: KindF32, F32: float32(math.NaN())},
	}

	for _, sf := range []int16{-3, 0, 2, 5} {
		for _, pv := range cases {
			if _, ok := ApplyScale(pv, sf); ok {
				t.Errorf("expected sentinel %+v with sf=%d to be absent", pv, sf)
			}
		}
	}
}

func TestApplyScale_NormalValues(t *testing.T) {
	v, ok := ApplyScale(PointValue{Kind: KindI16, I16: 1234}, -1)
	if !ok {
		t.Fatal("expected a present value")
	}
	if math.Abs(v-123.4) > 1e-9 {
		t.Errorf("expected 123.4, got %v", v)
	}

	v, ok = ApplyScale(PointValue{Kind: KindU16, U16: 50}, 2)
	if !ok {
		t.Fatal("expected a present value")
	}
	if v != 5000 {
		t.Errorf("expected 5000, got %v", v)
	}

	v, ok = ApplyScale(PointValue{Kind: KindF32, F32: 3.5}, 0)
	if !ok || v != 3.5 {
		t.Errorf("expected 3.5, got %v (ok=%v)", v, ok)
	}
}
