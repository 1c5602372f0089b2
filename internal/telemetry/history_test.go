package telemetry

import (
	"reflect"
	"testing"
	"time"
)

func at(sec int64) Sample {
	return Sample{Time: time.Unix(sec, 0), Altitude: float64(sec)}
}

func altitudes(samples []Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Altitude
	}
	return out
}

func TestHistoryEvictsOldest(t *testing.T) {
	h := NewHistory(3)
	for sec := int64(1); sec <= 5; sec++ {
		h.Push(at(sec))
	}
	if h.Len() != 3 || h.Cap() != 3 {
		t.Fatalf("Len = %d Cap = %d", h.Len(), h.Cap())
	}
	if got := altitudes(h.Samples()); !reflect.DeepEqual(got, []float64{3, 4, 5}) {
		t.Errorf("Samples = %v, want [3 4 5]", got)
	}
	if got := altitudes(h.Recent()); !reflect.DeepEqual(got, []float64{5, 4, 3}) {
		t.Errorf("Recent = %v, want [5 4 3]", got)
	}
	if newest, ok := h.Newest(); !ok || newest.Altitude != 5 {
		t.Errorf("Newest = %v, %v", newest, ok)
	}
}

func TestHistoryBackfill(t *testing.T) {
	h := NewHistory(3)
	h.Push(at(99))
	h.Backfill([]Sample{at(40), at(30), at(20), at(10)})

	// Backfill input is most recent first; overflow drops the oldest.
	if got := altitudes(h.Samples()); !reflect.DeepEqual(got, []float64{20, 30, 40}) {
		t.Errorf("Samples = %v, want [20 30 40]", got)
	}
}

func TestHistoryReset(t *testing.T) {
	h := NewHistory(2)
	h.Push(at(1))
	h.Reset()
	if h.Len() != 0 {
		t.Errorf("Len = %d after Reset", h.Len())
	}
	if _, ok := h.Newest(); ok {
		t.Error("Newest reported a sample after Reset")
	}
	h.Push(at(2))
	if got := altitudes(h.Samples()); !reflect.DeepEqual(got, []float64{2}) {
		t.Errorf("Samples = %v", got)
	}
}

func TestHistoryZeroCapacity(t *testing.T) {
	h := NewHistory(0)
	h.Push(at(1))
	if h.Len() != 0 || len(h.Recent()) != 0 {
		t.Error("zero-capacity history stored a sample")
	}
}
