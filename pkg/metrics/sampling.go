package metrics

import (
	"math"
	"sync/atomic"
)

// SamplingObserver forwards roughly rate*N of every N events to the inner
// observer. It samples deterministically on a shared counter rather than
// rolling dice, so a steady event stream yields a steady sample stream.
type SamplingObserver struct {
	inner Observer
	every uint64
	n     atomic.Uint64
}

// NewSamplingObserver clamps rate to [0, 1]. Rate 0 drops everything and
// rate 1 forwards everything.
func NewSamplingObserver(inner Observer, rate float64) *SamplingObserver {
	var every uint64
	switch {
	case rate <= 0:
		every = 0
	case rate >= 1:
		every = 1
	default:
		every = uint64(math.Round(1 / rate))
		if every < 1 {
			every = 1
		}
	}
	return &SamplingObserver{inner: inner, every: every}
}

func (s *SamplingObserver) RecordEvent(ev MetricsEvent) {
	switch s.every {
	case 0:
	case 1:
		s.inner.RecordEvent(ev)
	default:
		if s.n.Add(1)%s.every == 0 {
			s.inner.RecordEvent(ev)
		}
	}
}
