package main

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// stubOpeners swaps the control and input openers for the duration of a test.
func stubOpeners(t *testing.T, ctl func(string, string) (Control, error), ev func(string, *slog.Logger) (EventSource, error)) {
	t.Helper()
	origCtl, origEv := openControl, openEvents
	openControl, openEvents = ctl, ev
	t.Cleanup(func() {
		openControl, openEvents = origCtl, origEv
	})
}

func failOpeners(t *testing.T) {
	stubOpeners(t,
		func(string, string) (Control, error) {
			t.Fatalf("control opened unexpectedly")
			return nil, nil
		},
		func(string, *slog.Logger) (EventSource, error) {
			t.Fatalf("input device opened unexpectedly")
			return nil, nil
		})
}

func TestParseArgs_NoArguments(t *testing.T) {
	opts, err := parseArgs(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := DefaultConfig()
	opts.overrides.Apply(&cfg)
	if cfg.Input.Device != defaultInputDevice || cfg.Mixer.Name != defaultMixerName || cfg.Mixer.Control != defaultMixerControl {
		t.Fatalf("defaults not preserved: %+v", cfg)
	}
	if cfg.Volume.Step != defaultStep {
		t.Fatalf("step = %d, want %d", cfg.Volume.Step, defaultStep)
	}
}

func TestParseArgs_ThreePositionals(t *testing.T) {
	opts, err := parseArgs([]string{"/dev/input/event4", "USB Audio", "Speaker Playback Volume"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := DefaultConfig()
	opts.overrides.Apply(&cfg)
	if cfg.Input.Device != "/dev/input/event4" {
		t.Errorf("device = %q", cfg.Input.Device)
	}
	if cfg.Mixer.Name != "USB Audio" {
		t.Errorf("mixer = %q", cfg.Mixer.Name)
	}
	if cfg.Mixer.Control != "Speaker Playback Volume" {
		t.Errorf("control = %q", cfg.Mixer.Control)
	}
}

func TestParseArgs_WrongPositionalCount(t *testing.T) {
	for _, args := range [][]string{
		{"a"},
		{"a", "b"},
		{"a", "b", "c", "d"},
		{"-step", "2", "a", "b"},
	} {
		if _, err := parseArgs(args); !errors.Is(err, errUsage) {
			t.Errorf("parseArgs(%q): expected errUsage, got %v", args, err)
		}
	}
}

func TestParseArgs_FlagsOnlyOverrideWhenSet(t *testing.T) {
	opts, err := parseArgs([]string{"-step", "4", "-log-level", "debug"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.overrides.Step == nil || *opts.overrides.Step != 4 {
		t.Fatalf("step override missing: %+v", opts.overrides)
	}
	if opts.overrides.LogLevel == nil || *opts.overrides.LogLevel != "debug" {
		t.Fatalf("log level override missing")
	}
	if opts.overrides.StateWSListen != nil {
		t.Fatalf("state-ws-listen should not be overridden when not given")
	}
}

func TestRun_UsageErrorOpensNothing(t *testing.T) {
	failOpeners(t)

	var stdout, stderr bytes.Buffer
	code := run([]string{"/dev/input/event4", "USB Audio", "Master", "extra"}, &stdout, &stderr)

	if code == 0 {
		t.Fatalf("expected non-zero exit status")
	}
	if !strings.Contains(stderr.String(), "usage:") {
		t.Fatalf("expected usage on stderr, got %q", stderr.String())
	}
	for _, def := range []string{defaultInputDevice, defaultMixerName, defaultMixerControl} {
		if !strings.Contains(stderr.String(), def) {
			t.Errorf("usage does not list default %q", def)
		}
	}
	if stdout.Len() != 0 {
		t.Fatalf("expected nothing on stdout, got %q", stdout.String())
	}
}

func TestRun_HelpAndVersion(t *testing.T) {
	failOpeners(t)

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-help"}, &stdout, &stderr); code != 0 {
		t.Fatalf("-help exit status = %d", code)
	}
	if !strings.Contains(stdout.String(), "usage:") {
		t.Fatalf("expected usage on stdout")
	}

	stdout.Reset()
	if code := run([]string{"-version"}, &stdout, &stderr); code != 0 {
		t.Fatalf("-version exit status = %d", code)
	}
	if !strings.Contains(stdout.String(), version) {
		t.Fatalf("expected version in output, got %q", stdout.String())
	}
}

func TestRun_PushesUntilReadFailure(t *testing.T) {
	ctl := newFakeControl(0, 100, 87, 70)
	var gotDevice, gotMixer, gotControl string

	stubOpeners(t,
		func(mixer, control string) (Control, error) {
			gotMixer, gotControl = mixer, control
			return ctl, nil
		},
		func(path string, _ *slog.Logger) (EventSource, error) {
			gotDevice = path
			src := newFakeSource(up(Pressed), up(Released), KeyEvent{Code: KeyOther, Transition: Released})
			src.endErr = errors.New("read /dev/input/event4: no such device")
			return src, nil
		})

	var stdout, stderr bytes.Buffer
	code := run([]string{"/dev/input/event4", "USB Audio", "Master"}, &stdout, &stderr)

	if code != 1 {
		t.Fatalf("exit status = %d, want 1", code)
	}
	if gotDevice != "/dev/input/event4" || gotMixer != "USB Audio" || gotControl != "Master" {
		t.Fatalf("opened %q %q %q", gotDevice, gotMixer, gotControl)
	}
	if stdout.String() != "87\n88\n" {
		t.Fatalf("stdout = %q, want %q", stdout.String(), "87\n88\n")
	}
	assertChannels(t, ctl, 88)
	if !ctl.closed {
		t.Fatalf("control not closed on exit")
	}
	if !strings.Contains(stderr.String(), "volume loop failed") {
		t.Fatalf("expected fatal message on stderr, got %q", stderr.String())
	}
}

func TestRun_ResolutionErrors(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: %q", ErrDeviceNotFound, "Xonar U7"), "failed to open mixer"},
		{fmt.Errorf("%w: %q", ErrControlNotFound, "PCM Playback Volume"), "invalid mixer control"},
		{fmt.Errorf("%w: %q", ErrUnsupportedType, "PCM Playback Switch"), "invalid mixer control type"},
	}

	for _, tt := range tests {
		stubOpeners(t,
			func(string, string) (Control, error) { return nil, tt.err },
			func(string, *slog.Logger) (EventSource, error) {
				t.Fatalf("input device opened after resolution failure")
				return nil, nil
			})

		var stdout, stderr bytes.Buffer
		if code := run(nil, &stdout, &stderr); code != 1 {
			t.Fatalf("%v: exit status = %d, want 1", tt.err, code)
		}
		if !strings.Contains(stderr.String(), tt.want) {
			t.Errorf("%v: stderr %q does not contain %q", tt.err, stderr.String(), tt.want)
		}
		if stdout.Len() != 0 {
			t.Errorf("%v: unexpected stdout %q", tt.err, stdout.String())
		}
	}
}

func TestRun_InputOpenFailure(t *testing.T) {
	ctl := newFakeControl(0, 100, 50)
	stubOpeners(t,
		func(string, string) (Control, error) { return ctl, nil },
		func(path string, _ *slog.Logger) (EventSource, error) {
			return nil, fmt.Errorf("%w %q: %w", ErrDeviceOpenFailed, path, os.ErrPermission)
		})

	var stdout, stderr bytes.Buffer
	if code := run(nil, &stdout, &stderr); code != 1 {
		t.Fatalf("exit status = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "cannot open input device") {
		t.Fatalf("stderr = %q", stderr.String())
	}
	if ctl.setCalls != 0 {
		t.Fatalf("control written before input device was opened")
	}
	if !ctl.closed {
		t.Fatalf("control not closed on exit")
	}
}

func TestRun_ConfigFileAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "volkeyd.yaml")
	data := "input:\n  device: /dev/input/event9\nmixer:\n  name: Loopback\nvolume:\n  step: 5\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	ctl := newFakeControl(0, 100, 50)
	var gotDevice, gotMixer, gotControl string
	stubOpeners(t,
		func(mixer, control string) (Control, error) {
			gotMixer, gotControl = mixer, control
			return ctl, nil
		},
		func(p string, _ *slog.Logger) (EventSource, error) {
			gotDevice = p
			return newFakeSource(up(Released)), nil
		})

	var stdout, stderr bytes.Buffer
	run([]string{"-config", path, "-step", "10"}, &stdout, &stderr)

	if gotDevice != "/dev/input/event9" || gotMixer != "Loopback" || gotControl != defaultMixerControl {
		t.Fatalf("opened %q %q %q", gotDevice, gotMixer, gotControl)
	}
	if stdout.String() != "50\n60\n" {
		t.Fatalf("stdout = %q, want step of 10 from flag", stdout.String())
	}
}

func TestRun_InvalidConfigRejected(t *testing.T) {
	failOpeners(t)

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-step", "0"}, &stdout, &stderr); code != 1 {
		t.Fatalf("exit status = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "volume.step") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestFatalMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("x: %w", ErrSetFailed), "error setting volume"},
		{fmt.Errorf("x: %w", ErrDeviceOpenFailed), "cannot open input device"},
		{fmt.Errorf("x: %w", ErrUnsupportedPlatform), "mixer control unavailable"},
		{errors.New("read: EIO"), "volume loop failed"},
	}
	for _, tt := range tests {
		if got := fatalMessage(tt.err); got != tt.want {
			t.Errorf("fatalMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
