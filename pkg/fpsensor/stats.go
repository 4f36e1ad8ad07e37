package fpsensor

import (
	"time"

	"github.com/go-ctap/fpmcu/pkg/fptypes"
)

type stats struct {
	captureTime       time.Duration
	matchingTime      time.Duration
	overallTime       time.Duration
	overallT0         time.Time
	timestampsInvalid uint8
	templateMatched   int8
}

func (st *stats) reset() {
	*st = stats{templateMatched: -1}
}

func micros(d time.Duration) uint32 {
	return uint32(d.Microseconds())
}

// Stats returns the timings of the last capture cycle.
func (s *Sensor) Stats() fptypes.FPStatsResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	t0 := uint64(s.stats.overallT0.Sub(s.boot).Microseconds())
	if s.stats.overallT0.IsZero() {
		t0 = 0
	}

	return fptypes.FPStatsResponse{
		CaptureTimeUs:     micros(s.stats.captureTime),
		MatchingTimeUs:    micros(s.stats.matchingTime),
		OverallTimeUs:     micros(s.stats.overallTime),
		OverallT0Lo:       uint32(t0),
		OverallT0Hi:       uint32(t0 >> 32),
		TimestampsInvalid: s.stats.timestampsInvalid,
		TemplateMatched:   s.stats.templateMatched,
	}
}
