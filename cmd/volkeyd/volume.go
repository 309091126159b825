package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"
)

// ============================================================================
// Volume loop
// ============================================================================
//
// The loop owns a single integer volume. It is seeded from channel 0 of the
// control, pushed once to normalize every channel, and then moved by one step
// per released volume key:
//
//   Idle --relevant event--> Applying --push complete--> Idle
//   Idle --irrelevant event--> Idle
//
// nextVolume computes the next value without side effects. Push is the only
// place that prints or touches the control.
//
// ============================================================================

// VolumeChange describes one push. It is handed to the optional observer
// after all channels have been written.
type VolumeChange struct {
	Value int
	Range VolumeRange
	At    time.Time
}

// Volume is the volume state machine. It is not safe for concurrent use.
type Volume struct {
	ctl      Control
	rng      VolumeRange
	step     int
	value    int
	channels int

	out    io.Writer
	logger *slog.Logger
	notify func(VolumeChange)
}

// NewVolume reads the range, channel count and channel 0 value from ctl.
// Channel 0 is authoritative for the whole control even if the other channels
// have drifted; the first Push brings them back in line.
func NewVolume(ctl Control, step int, out io.Writer, logger *slog.Logger) (*Volume, error) {
	if step < 1 {
		return nil, fmt.Errorf("volume step must be >= 1, got %d", step)
	}

	rng := ctl.Range()
	if rng.Min > rng.Max {
		return nil, fmt.Errorf("control range %s is empty", rng)
	}

	channels := ctl.Channels()
	if channels < 1 {
		return nil, fmt.Errorf("control has %d channels", channels)
	}

	value, err := ctl.Value(0)
	if err != nil {
		return nil, fmt.Errorf("read channel 0: %w", err)
	}
	if !rng.Contains(value) {
		logger.Warn("control value outside its range, clamping", "value", value, "range", rng.String())
		value = min(max(value, rng.Min), rng.Max)
	}

	logger.Debug("volume initialized", "value", value, "min", rng.Min, "max", rng.Max, "channels", channels, "step", step)

	return &Volume{
		ctl:      ctl,
		rng:      rng,
		step:     step,
		value:    value,
		channels: channels,
		out:      out,
		logger:   logger,
	}, nil
}

// OnPush registers fn to be called after every successful push.
// fn runs on the loop goroutine and must not block.
func (v *Volume) OnPush(fn func(VolumeChange)) {
	v.notify = fn
}

// Value returns the current logical volume.
func (v *Volume) Value() int { return v.value }

// Range returns the clamp domain.
func (v *Volume) Range() VolumeRange { return v.rng }

// isRelevant reports whether ev moves the volume. Only key releases count,
// so a press/release pair and any auto-repeat produce a single step.
func isRelevant(ev KeyEvent) bool {
	if ev.Transition != Released {
		return false
	}
	return ev.Code == KeyVolumeUp || ev.Code == KeyVolumeDown
}

// nextVolume applies one saturating step. value must already lie within r
// and step must be positive. ALSA ranges are C longs and may span the whole
// int range, so distances to the bounds are taken as unsigned values.
func nextVolume(value int, step int, code KeyCode, r VolumeRange) int {
	switch code {
	case KeyVolumeDown:
		if value > r.Min {
			if distance(r.Min, value) >= uint64(step) {
				return value - step
			}
			return r.Min
		}
	case KeyVolumeUp:
		if value < r.Max {
			if distance(value, r.Max) >= uint64(step) {
				return value + step
			}
			return r.Max
		}
	}
	return value
}

// distance returns hi-lo for lo <= hi without overflow.
func distance(lo, hi int) uint64 {
	return uint64(hi) - uint64(lo)
}

// formatVolume renders the report line for a push.
func formatVolume(value int, r VolumeRange) string {
	s := strconv.Itoa(value)
	if value == r.Min {
		s += " (min)"
	}
	if value == r.Max {
		s += " (max)"
	}
	return s
}

// Apply handles one event and reports whether it caused a push.
// A relevant event pushes even when the value is already saturated.
func (v *Volume) Apply(ev KeyEvent) (bool, error) {
	if !isRelevant(ev) {
		return false, nil
	}
	v.value = nextVolume(v.value, v.step, ev.Code, v.rng)
	return true, v.Push()
}

// Push reports the current value and writes it to every channel in index
// order. The first failed write aborts the push; channels already written
// keep the new value.
func (v *Volume) Push() error {
	fmt.Fprintln(v.out, formatVolume(v.value, v.rng))

	for ch := 0; ch < v.channels; ch++ {
		if err := v.ctl.SetValue(ch, v.value); err != nil {
			return fmt.Errorf("%w: channel %d value %d: %w", ErrSetFailed, ch, v.value, err)
		}
	}

	v.logger.Debug("volume pushed", "value", v.value, "channels", v.channels)

	if v.notify != nil {
		v.notify(VolumeChange{Value: v.value, Range: v.rng, At: time.Now()})
	}
	return nil
}

// Run normalizes all channels to the current value and then consumes events
// from src until it fails or ctx is canceled.
//
// Cancellation closes src to unblock the pending read and makes Run return
// nil. Every other way out of the loop is an error.
func (v *Volume) Run(ctx context.Context, src EventSource) error {
	if err := v.Push(); err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() {
		_ = src.Close()
	})
	defer stop()

	for {
		ev, err := src.Next()
		if err != nil {
			if ctx.Err() != nil {
				v.logger.Info("volume loop stopping (context canceled)")
				return nil
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("input stream ended: %w", err)
			}
			return fmt.Errorf("read input event: %w", err)
		}

		v.logger.Debug("input event", "code", ev.Code.String(), "transition", ev.Transition.String())

		if _, err := v.Apply(ev); err != nil {
			return err
		}
	}
}
