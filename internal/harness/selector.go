package harness

import (
	"log/slog"

	"github.com/cwbudde/clbench/internal/accel"
)

// DeviceHandle is a resolved (platform, device) pair.
type DeviceHandle struct {
	PlatformIndex int
	DeviceIndex   int
	Platform      accel.PlatformInfo
	Device        accel.DeviceInfo

	device accel.Device
}

// ID identifies the device for program binary reuse.
func (h *DeviceHandle) ID() string { return h.device.ID() }

// Select enumerates every platform and device of rt and resolves sel.
// Out-of-range indices fail with *InvalidSelectionError before any context
// is created.
func Select(rt accel.Runtime, sel Selection) (*DeviceHandle, error) {
	platforms, err := rt.Platforms()
	if err != nil {
		return nil, labelled("enumerate platforms", err)
	}
	slog.Debug("Discovered platforms", "backend", rt.Name(), "count", len(platforms))

	devicesByPlatform := make([][]accel.Device, len(platforms))
	for i, p := range platforms {
		devices, err := p.Devices()
		if err != nil {
			return nil, labelled("enumerate devices", err)
		}
		devicesByPlatform[i] = devices
		slog.Debug("Discovered devices", "platform", i, "name", p.Info().Name, "devices", len(devices))
	}

	if sel.Platform < 0 || sel.Platform >= len(platforms) {
		return nil, &InvalidSelectionError{What: "platform", Index: sel.Platform, Last: len(platforms) - 1}
	}
	devices := devicesByPlatform[sel.Platform]
	if sel.Device < 0 || sel.Device >= len(devices) {
		return nil, &InvalidSelectionError{What: "device", Index: sel.Device, Last: len(devices) - 1}
	}

	dev := devices[sel.Device]
	return &DeviceHandle{
		PlatformIndex: sel.Platform,
		DeviceIndex:   sel.Device,
		Platform:      platforms[sel.Platform].Info(),
		Device:        dev.Info(),
		device:        dev,
	}, nil
}

// Enumerate lists every platform with its devices.
func Enumerate(rt accel.Runtime) ([]accel.PlatformInfo, error) {
	platforms, err := rt.Platforms()
	if err != nil {
		return nil, labelled("enumerate platforms", err)
	}
	out := make([]accel.PlatformInfo, len(platforms))
	for i, p := range platforms {
		out[i] = p.Info()
	}
	return out, nil
}

// Session is the context and queue owned by a single task.
type Session struct {
	Handle  *DeviceHandle
	Context accel.Context
	Queue   accel.Queue
}

// Open creates a context and queue bound to the handle's device.
func Open(h *DeviceHandle) (*Session, error) {
	ctx, err := h.device.NewContext()
	if err != nil {
		return nil, labelled("create context", err)
	}
	queue, err := ctx.NewQueue()
	if err != nil {
		ctx.Release()
		return nil, labelled("create queue", err)
	}
	return &Session{Handle: h, Context: ctx, Queue: queue}, nil
}

// Close releases the queue, then the context.
func (s *Session) Close() {
	if s == nil {
		return
	}
	if s.Queue != nil {
		s.Queue.Release()
		s.Queue = nil
	}
	if s.Context != nil {
		s.Context.Release()
		s.Context = nil
	}
}
