//go:build linux

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	evdev "github.com/holoplot/go-evdev"
	"golang.org/x/sys/unix"
)

// evdevReader is the part of *evdev.InputDevice the event source uses.
type evdevReader interface {
	ReadOne() (*evdev.InputEvent, error)
	Close() error
}

// evdevSource reads struct input_event records from an evdev node.
type evdevSource struct {
	dev  evdevReader
	path string
}

// evdevOpenFlags opens the node read-only; the source never writes to it.
const evdevOpenFlags = os.O_RDONLY

// openEventDevice opens an evdev node for reading. The device is not grabbed,
// so other consumers keep receiving its events.
func openEventDevice(path string, logger *slog.Logger) (EventSource, error) {
	dev, err := evdev.OpenWithFlags(path, evdevOpenFlags)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrDeviceOpenFailed, path, err)
	}

	describeDevice(dev, path, logger)

	return &evdevSource{dev: dev, path: path}, nil
}

// describeDevice logs the device name and warns when it does not advertise
// the volume keys. Neither condition is fatal.
func describeDevice(dev *evdev.InputDevice, path string, logger *slog.Logger) {
	name, err := dev.Name()
	if err != nil {
		logger.Debug("cannot query input device name", "device", path, "error", err)
	}

	var hasUp, hasDown bool
	for _, c := range dev.CapableEvents(evdev.EV_KEY) {
		switch c {
		case evdev.KEY_VOLUMEUP:
			hasUp = true
		case evdev.KEY_VOLUMEDOWN:
			hasDown = true
		}
	}
	if !hasUp || !hasDown {
		logger.Warn("input device does not report volume keys", "device", path, "name", name,
			"volume_up", hasUp, "volume_down", hasDown)
	}

	logger.Info("input device opened", "device", path, "name", name)
}

// Next blocks for the next event. Interrupted reads are retried; any other
// failure, including a short record, ends the stream.
func (s *evdevSource) Next() (KeyEvent, error) {
	for {
		ev, err := s.dev.ReadOne()
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return KeyEvent{}, fmt.Errorf("read %s: %w", s.path, err)
		}
		if ev == nil {
			return KeyEvent{}, fmt.Errorf("read %s: empty event", s.path)
		}
		return classifyEvent(uint16(ev.Type), uint16(ev.Code), ev.Value), nil
	}
}

func (s *evdevSource) Close() error {
	return s.dev.Close()
}
