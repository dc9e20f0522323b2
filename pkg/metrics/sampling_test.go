package metrics

import "testing"

func recordTen(s *SamplingObserver) {
	for i := 0; i < 10; i++ {
		s.RecordEvent(MetricsEvent{Name: "tick"})
	}
}

func TestSamplingObserverForwardsEverythingAtOne(t *testing.T) {
	mem := NewMemoryObserver()
	recordTen(NewSamplingObserver(mem, 1))
	if got := len(mem.Snapshot()); got != 10 {
		t.Fatalf("expected 10 events at rate 1, got %d", got)
	}
}

func TestSamplingObserverDropsEverythingAtZero(t *testing.T) {
	mem := NewMemoryObserver()
	recordTen(NewSamplingObserver(mem, 0))
	if got := len(mem.Snapshot()); got != 0 {
		t.Fatalf("expected no events at rate 0, got %d", got)
	}
}

func TestSamplingObserverHalvesTheStream(t *testing.T) {
	mem := NewMemoryObserver()
	recordTen(NewSamplingObserver(mem, 0.5))
	if got := len(mem.Snapshot()); got != 5 {
		t.Fatalf("expected 5 of 10 events at rate 0.5, got %d", got)
	}
}

func TestSamplingObserverClampsRate(t *testing.T) {
	mem := NewMemoryObserver()
	recordTen(NewSamplingObserver(mem, 3.5))
	if got := len(mem.Snapshot()); got != 10 {
		t.Fatalf("expected rate above 1 to forward everything, got %d", got)
	}
	mem = NewMemoryObserver()
	recordTen(NewSamplingObserver(mem, -0.2))
	if got := len(mem.Snapshot()); got != 0 {
		t.Fatalf("expected negative rate to drop everything, got %d", got)
	}
}
