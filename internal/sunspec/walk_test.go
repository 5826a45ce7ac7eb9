package sunspec

import (
	"errors"
	"testing"
)

// S1: strict register parse.
func TestWalk_S1StrictParse(t *testing.T) {
	regs := []uint16{
		SentinelHigh, SentinelLow,
		1, 2, 0, 0,
		103, 4, 0, 0, 0, 0,
		EndMarker, 0,
	}

	models, err := Walk(40000, regs, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}

	want := []ModelDefinition{
		{ID: 1, Name: "common", Start: 40002, Length: 4},
		{ID: 103, Name: "three_phase_inverter", Start: 40006, Length: 6},
	}
	for i, m := range want {
		if models[i] != m {
			t.Errorf("model %d: got %+v, want %+v", i, models[i], m)
		}
	}
}

// S2: lenient truncation.
func TestWalk_S2LenientTruncation(t *testing.T) {
	regs := []uint16{
		SentinelHigh, SentinelLow,
		1, 2, 0, 0,
	}

	if _, err := Walk(40000, regs, true); !errors.Is(err, ErrUnexpectedEnd) {
		t.Fatalf("strict mode: expected ErrUnexpectedEnd, got %v", err)
	}

	models, err := Walk(40000, regs, false)
	if err != nil {
		t.Fatalf("lenient mode: unexpected error: %v", err)
	}
	want := []ModelDefinition{{ID: 1, Name: "common", Start: 40002, Length: 4}}
	if len(models) != 1 || models[0] != want[0] {
		t.Fatalf("lenient mode: got %+v, want %+v", models, want)
	}
}

func TestWalk_InvalidSentinel(t *testing.T) {
	regs := []uint16{0, 0, 1, 2}
	if _, err := Walk(40000, regs, true); !errors.Is(err, ErrInvalidSentinel) {
		t.Fatalf("expected ErrInvalidSentinel, got %v", err)
	}
}

func TestWalk_TooShort(t *testing.T) {
	if _, err := Walk(40000, []uint16{SentinelHigh}, true); !errors.Is(err, ErrInvalidSentinel) {
		t.Fatalf("expected ErrInvalidSentinel for short input, got %v", err)
	}
}

func TestWalk_EmptyDirectory(t *testing.T) {
	regs := []uint16{SentinelHigh, SentinelLow, EndMarker, 0}
	models, err := Walk(40000, regs, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(models) != 0 {
		t.Fatalf("expected 0 models, got %d", len(models))
	}
}

// Invariant 1: emitted starts strictly increasing, contiguous between
// consecutive models.
func TestWalk_StartsStrictlyIncreasingAndContiguous(t *testing.T) {
	regs := []uint16{
		SentinelHigh, SentinelLow,
		1, 2, 0, 0,
		160, 6, 0, 0, 0, 0, 0, 0,
		EndMarker, 0,
	}

	models, err := Walk(40000, regs, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i < len(models); i++ {
		if models[i].Start <= models[i-1].Start {
			t.Fatalf("starts not strictly increasing: %+v", models)
		}
		if models[i-1].Start+models[i-1].Length != models[i].Start {
			t.Fatalf("models not contiguous: %+v", models)
		}
	}
}

// Round-trip law: a directory built from models of lengths [L1, L2, ...]
// parses back to the same model count and starts.
func TestWalk_RoundTrip(t *testing.T) {
	lengths := []uint16{4, 6, 30}
	ids := []uint16{1, 103, 160}

	regs := []uint16{SentinelHigh, SentinelLow}
	for i, l := range lengths {
		regs = append(regs, ids[i], l-2)
		for j := uint16(0); j < l-2; j++ {
			regs = append(regs, 0)
		}
	}
	regs = append(regs, EndMarker, 0)

	models, err := Walk(40000, regs, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(models) != len(lengths) {
		t.Fatalf("expected %d models, got %d", len(lengths), len(models))
	}

	start := uint16(40002)
	for i, m := range models {
		if m.Start != start {
			t.Errorf("model %d: expected start %d, got %d", i, start, m.Start)
		}
		start += lengths[i]
	}
}

func TestModelName_KnownAndUnknown(t *testing.T) {
	cases := map[uint16]string{
		1:   "common",
		101: "inverter",
		103: "three_phase_inverter",
		160: "mppt",
		201: "meter",
		999: "model_999",
	}
	for id, want := range cases {
		if got := ModelName(id); got != want {
			t.Errorf("ModelName(%d) = %q, want %q", id, got, want)
		}
	}
}
