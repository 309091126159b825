package main

import (
	"errors"
	"fmt"
)

// ErrDeviceOpenFailed wraps the OS error returned when the input node cannot be opened.
var ErrDeviceOpenFailed = errors.New("cannot open input device")

// KeyCode identifies the keys the volume loop cares about.
type KeyCode int

const (
	KeyOther KeyCode = iota
	KeyVolumeUp
	KeyVolumeDown
)

func (k KeyCode) String() string {
	switch k {
	case KeyVolumeUp:
		return "VOLUME_UP"
	case KeyVolumeDown:
		return "VOLUME_DOWN"
	default:
		return "OTHER"
	}
}

// Transition is the key state carried in an EV_KEY event value.
type Transition int32

const (
	Released Transition = evValueRelease
	Pressed  Transition = evValuePress
	Repeat   Transition = evValueRepeat
)

func (t Transition) String() string {
	switch t {
	case Released:
		return "RELEASED"
	case Pressed:
		return "PRESSED"
	case Repeat:
		return "REPEAT"
	default:
		return fmt.Sprintf("Transition(%d)", int32(t))
	}
}

// KeyEvent is one classified input event.
type KeyEvent struct {
	Code       KeyCode
	Transition Transition
}

func (e KeyEvent) String() string {
	return e.Code.String() + "/" + e.Transition.String()
}

// EventSource yields key events from an input device. Next blocks until an
// event is available; any error it returns is final.
type EventSource interface {
	Next() (KeyEvent, error)
	Close() error
}

// openEvents opens the input device node. Tests replace it with a fake.
var openEvents = openEventDevice

// classifyEvent maps a raw struct input_event onto a KeyEvent.
// Anything that is not a volume key with a known value has code KeyOther.
func classifyEvent(typ uint16, code uint16, value int32) KeyEvent {
	t := Transition(value)
	if typ != EV_KEY {
		return KeyEvent{Code: KeyOther, Transition: t}
	}
	if t != Released && t != Pressed && t != Repeat {
		return KeyEvent{Code: KeyOther, Transition: t}
	}

	switch code {
	case KEY_VOLUMEUP:
		return KeyEvent{Code: KeyVolumeUp, Transition: t}
	case KEY_VOLUMEDOWN:
		return KeyEvent{Code: KeyVolumeDown, Transition: t}
	default:
		return KeyEvent{Code: KeyOther, Transition: t}
	}
}
