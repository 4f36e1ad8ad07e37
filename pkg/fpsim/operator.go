package fpsim

import (
	"context"
	"time"

	"github.com/go-ctap/fpmcu/pkg/fptypes"
)

// Operate plays a user touching the sensor: finger() is placed whenever
// mode() asks for a capture and lifted once the capture is done. It
// returns when ctx is done.
func (s *Sensor) Operate(ctx context.Context, mode func() fptypes.Mode, finger func() byte, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	placed := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		capturing := mode()&fptypes.ModeAnyCapture != 0
		switch {
		case !placed && capturing:
			s.PlaceFinger(finger())
			placed = true
		case placed && !capturing:
			s.LiftFinger()
			placed = false
		}
	}
}
