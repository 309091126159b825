//go:build !linux

package main

import (
	"fmt"
	"log/slog"
)

func openEventDevice(path string, _ *slog.Logger) (EventSource, error) {
	return nil, fmt.Errorf("%w %q: evdev requires linux", ErrDeviceOpenFailed, path)
}
