package main

import (
	"errors"
	"fmt"
)

// Resolution and write errors reported by the mixer control resolver.
// Callers match them with errors.Is; the wrapped message carries the names.
var (
	ErrDeviceNotFound      = errors.New("mixer device not found")
	ErrControlNotFound     = errors.New("mixer control not found")
	ErrUnsupportedType     = errors.New("mixer control is not an integer control")
	ErrSetFailed           = errors.New("error setting volume")
	ErrUnsupportedPlatform = errors.New("ALSA control access is not supported on this platform")
)

// VolumeRange is the inclusive range accepted by a control.
type VolumeRange struct {
	Min int
	Max int
}

// Contains reports whether v lies within the range.
func (r VolumeRange) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

func (r VolumeRange) String() string {
	return fmt.Sprintf("[%d, %d]", r.Min, r.Max)
}

// Control is a named integer mixer control with one value per channel.
//
// Implementations are not safe for concurrent use; the volume loop owns the
// control for the lifetime of the process.
type Control interface {
	Range() VolumeRange
	Channels() int
	Value(channel int) (int, error)
	SetValue(channel int, value int) error
	Close() error
}

// openControl resolves a control by card name and control name.
// Tests replace it with a fake.
var openControl = openMixerControl

// cString returns the Go string stored in a NUL-terminated C char array.
func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
