package fpsensor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-ctap/fpmcu/pkg/fptypes"
)

var ErrActionTimeout = errors.New("fpsensor: timed out waiting for finger")

var enrollResultNames = [...]string{"OK", "Low Quality", "Immobile", "Low Coverage"}

// Console runs the debug actions of the sensor, printing progress to out.
type Console struct {
	sensor *Sensor
	out    io.Writer

	// PollInterval is the period used to check for action completion.
	PollInterval time.Duration
	// Tries bounds the number of polls before an action times out.
	Tries int
}

func NewConsole(s *Sensor, out io.Writer) *Console {
	return &Console{
		sensor:       s,
		out:          out,
		PollInterval: 100 * time.Millisecond,
		Tries:        200,
	}
}

func (c *Console) poll(ctx context.Context, interval time.Duration, tries int, done func() bool) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range tries {
		if done() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	return ErrActionTimeout
}

func (c *Console) setMode(mode fptypes.Mode) error {
	_, err := c.sensor.SetMode(mode)
	return err
}

// action starts mode and waits until no capture is pending.
func (c *Console) action(ctx context.Context, mode fptypes.Mode) error {
	_, _ = fmt.Fprintln(c.out, "Waiting for finger ...")
	if err := c.setMode(mode); err != nil {
		return err
	}

	// The task clears the capture bits just before posting its event.
	err := c.poll(ctx, c.PollInterval, c.Tries, func() bool {
		return c.sensor.Mode()&fptypes.ModeAnyCapture == 0 && c.sensor.events.Load() != 0
	})
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(c.out, "done (events:%x)\n", c.sensor.events.Load())
	return nil
}

// Capture acquires an image of the given type and writes it as a PGM picture.
func (c *Console) Capture(ctx context.Context, captureType fptypes.CaptureType) error {
	if c.sensor.locked() {
		return ErrAccessDenied
	}
	if captureType >= fptypes.CaptureTypeMax {
		return newErrorMessage(ErrInvalidParam, "unknown capture type")
	}

	if err := c.action(ctx, fptypes.ModeCapture.WithCaptureType(captureType)); err != nil {
		return err
	}

	c.sensor.mu.Lock()
	defer c.sensor.mu.Unlock()

	g := c.sensor.geometry
	return WritePGM(c.out, c.sensor.frame[g.ImageOffset:], int(g.Width), int(g.Height))
}

// Enroll runs a whole enrollment session, asking for a finger release
// between captures.
func (c *Console) Enroll(ctx context.Context) error {
	if c.sensor.locked() {
		return ErrAccessDenied
	}
	defer func() {
		_ = c.setMode(0)
	}()

	for percent := 0; percent < 100; {
		if err := c.action(ctx, fptypes.ModeEnrollSession|fptypes.ModeEnrollImage); err != nil {
			return err
		}

		evt := c.sensor.NextEvent()
		percent = evt.EnrollProgress()
		_, _ = fmt.Fprintf(c.out, "Enroll capture: %s (%d%%)\n", enrollResultNames[evt.Errcode()&3], percent)

		if err := c.setMode(fptypes.ModeEnrollSession | fptypes.ModeFingerUp); err != nil {
			return err
		}
		err := c.poll(ctx, c.PollInterval/5, c.Tries*5, func() bool {
			return c.sensor.Mode()&fptypes.ModeFingerUp == 0
		})
		if err != nil && !errors.Is(err, ErrActionTimeout) {
			return err
		}
	}

	return nil
}

// Match captures a finger, matches it and returns the resulting event.
func (c *Console) Match(ctx context.Context) (fptypes.Event, error) {
	err := c.action(ctx, fptypes.ModeMatch)
	evt := c.sensor.NextEvent()
	if err != nil {
		return evt, err
	}

	if evt&fptypes.EventMatch != 0 {
		result := "NO"
		if evt.IsMatch() {
			result = "YES"
		}
		_, _ = fmt.Fprintf(c.out, "Match: %s (%d)\n", result, evt.Errcode())
	}

	return evt, nil
}

// Clear drops the user context and every template.
func (c *Console) Clear() {
	c.sensor.mu.Lock()
	defer c.sensor.mu.Unlock()

	c.sensor.clearContext()
}

// WritePGM writes an 8-bpp image as an ASCII PGM picture.
func WritePGM(w io.Writer, image []byte, width, height int) error {
	if width*height > len(image) {
		return newErrorMessage(ErrInvalidParam, "image smaller than its geometry")
	}

	bw := bufio.NewWriter(w)
	_, _ = fmt.Fprintf(bw, "P2\n%d %d\n255\n", width, height)
	for y := range height {
		for _, px := range image[y*width : (y+1)*width] {
			_, _ = fmt.Fprintf(bw, "%d ", px)
		}
		_ = bw.WriteByte('\n')
	}

	return bw.Flush()
}
