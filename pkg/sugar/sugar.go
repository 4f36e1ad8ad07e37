package sugar

import (
	"context"
	"errors"
	"sync"

	"github.com/go-ctap/fpmcu/pkg/device"
	"github.com/go-ctap/fpmcu/pkg/options"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

var ErrNoDevices = errors.New("sugar: no fingerprint sensors found")

// DialAll connects to every address, skipping those without a fingerprint
// sensor. Any other failure closes the devices opened so far.
func DialAll(ctx context.Context, network string, addresses []string, opts ...options.Option) ([]*device.Device, error) {
	devices := make([]*device.Device, 0, len(addresses))
	for _, address := range addresses {
		dev, err := device.Dial(ctx, network, address, opts...)
		if errors.Is(err, device.ErrNotSupported) {
			continue
		}
		if err != nil {
			closeAll(devices)
			return nil, err
		}
		devices = append(devices, dev)
	}

	return devices, nil
}

func closeAll(devices []*device.Device) {
	for _, dev := range devices {
		_ = dev.Close()
	}
}

// SelectDevice allows selecting a sensor by touching it;
// useful while several fingerprint MCUs are reachable.
func SelectDevice(ctx context.Context, network string, addresses []string, opts ...options.Option) (*device.Device, error) {
	addresses = lo.Uniq(addresses)

	devices, err := DialAll(ctx, network, addresses, opts...)
	if err != nil {
		return nil, err
	}
	switch len(devices) {
	case 0:
		return nil, ErrNoDevices
	case 1:
		return devices[0], nil
	}

	// Here we will receive either a device or an error from the first finished WaitFinger() call.
	selection := make(chan mo.Either[*device.Device, error], 1)

	var wg sync.WaitGroup
	var once sync.Once

	// It will allow us to cancel all other active WaitFinger() calls.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, dev := range devices {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := dev.WaitFinger(ctx)
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return
			}

			once.Do(func() {
				cancel()
				if err != nil {
					selection <- mo.Right[*device.Device, error](err)
					return
				}
				selection <- mo.Left[*device.Device, error](dev)
			})
		}()
	}

	wg.Wait()

	var sel mo.Either[*device.Device, error]
	select {
	case sel = <-selection:
	default:
		closeAll(devices)
		return nil, ctx.Err()
	}

	if err, ok := sel.Right(); ok {
		closeAll(devices)
		return nil, err
	}
	selected := sel.MustLeft()

	closeAll(lo.Without(devices, selected))

	return selected, nil
}
