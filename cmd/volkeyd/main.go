package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

// errUsage reports a command line that does not match either accepted form.
var errUsage = errors.New("wrong number of arguments")

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "volkeyd v%s\n", version)
	fmt.Fprintln(w, "ALSA volume control driven by Linux input volume keys")
}

func printUsage(w io.Writer, prog string) {
	fmt.Fprintf(w, "usage: %s [OPTIONS] [<input_device_path> <mixer_name> <mixer_control_name>]\n", prog)
	fmt.Fprintln(w, "where:")
	fmt.Fprintln(w, " <input_device_path> is kernel input device path,")
	fmt.Fprintf(w, "   defaults to %q\n", defaultInputDevice)
	fmt.Fprintln(w, " <mixer_name> is ALSA mixer device name,")
	fmt.Fprintf(w, "   defaults to %q\n", defaultMixerName)
	fmt.Fprintln(w, " <mixer_control_name> is ALSA mixer control name,")
	fmt.Fprintf(w, "   defaults to %q\n", defaultMixerControl)
	fmt.Fprintln(w, "The three positional arguments must be given together or not at all.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "OPTIONS (must precede positional arguments):")
	fmt.Fprintln(w, "  -config string")
	fmt.Fprintln(w, "        YAML config file (defaults and positional arguments still apply)")
	fmt.Fprintln(w, "  -step int")
	fmt.Fprintf(w, "        Volume change per key release (default %d)\n", defaultStep)
	fmt.Fprintln(w, "  -state-ws-listen string")
	fmt.Fprintln(w, "        Serve a websocket volume feed on this address, e.g. 127.0.0.1:8787 (default disabled)")
	fmt.Fprintln(w, "  -log-level string")
	fmt.Fprintln(w, "        Log level: error, warn, info, debug (default \"info\")")
	fmt.Fprintln(w, "  -version")
	fmt.Fprintln(w, "        Print version and exit")
	fmt.Fprintln(w, "  -help")
	fmt.Fprintln(w, "        Print this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "NOTES:")
	fmt.Fprintln(w, "  - Each volume change is printed to standard output; logs go to standard error.")
	fmt.Fprintln(w, "  - Requires read access to the input device and write access to /dev/snd/controlC*.")
}

// cliOptions is the parsed command line.
type cliOptions struct {
	configPath  string
	overrides   FlagOverrides
	showHelp    bool
	showVersion bool
}

// parseArgs parses flags followed by either zero or exactly three positional
// arguments. Any other positional count returns errUsage.
func parseArgs(args []string) (cliOptions, error) {
	var opts cliOptions

	fs := flag.NewFlagSet("volkeyd", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configPath    = fs.String("config", "", "YAML config file")
		step          = fs.Int("step", defaultStep, "Volume change per key release")
		stateWSListen = fs.String("state-ws-listen", "", "Websocket volume feed listen address")
		logLevel      = fs.String("log-level", "info", "Log level: error, warn, info, debug")
		showVersion   = fs.Bool("version", false, "Print version and exit")
		showHelp      = fs.Bool("help", false, "Print help message")
	)

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	opts.configPath = *configPath
	opts.showHelp = *showHelp
	opts.showVersion = *showVersion

	// Only flags that were actually given override the config file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "step":
			opts.overrides.Step = step
		case "state-ws-listen":
			opts.overrides.StateWSListen = stateWSListen
		case "log-level":
			opts.overrides.LogLevel = logLevel
		}
	})

	if opts.showHelp || opts.showVersion {
		return opts, nil
	}

	switch rest := fs.Args(); len(rest) {
	case 0:
	case 3:
		opts.overrides.InputDevice = &rest[0]
		opts.overrides.MixerName = &rest[1]
		opts.overrides.MixerControl = &rest[2]
	default:
		return opts, fmt.Errorf("%w: got %d positional arguments, want 0 or 3", errUsage, len(rest))
	}

	return opts, nil
}

// fatalMessage picks the message logged for an error that ends the process.
func fatalMessage(err error) string {
	switch {
	case errors.Is(err, ErrDeviceNotFound):
		return "failed to open mixer"
	case errors.Is(err, ErrControlNotFound):
		return "invalid mixer control"
	case errors.Is(err, ErrUnsupportedType):
		return "invalid mixer control type"
	case errors.Is(err, ErrUnsupportedPlatform):
		return "mixer control unavailable"
	case errors.Is(err, ErrDeviceOpenFailed):
		return "cannot open input device"
	case errors.Is(err, ErrSetFailed):
		return "error setting volume"
	default:
		return "volume loop failed"
	}
}

// serve opens the control, then the input device, and runs the volume loop
// (plus the optional state feed) until a fatal error or ctx cancellation.
func serve(ctx context.Context, cfg Config, stdout io.Writer, logger *slog.Logger) error {
	ctl, err := openControl(cfg.Mixer.Name, cfg.Mixer.Control)
	if err != nil {
		return err
	}
	defer ctl.Close()

	rng := ctl.Range()
	logger.Info("mixer control opened",
		"mixer", cfg.Mixer.Name,
		"control", cfg.Mixer.Control,
		"min", rng.Min,
		"max", rng.Max,
		"channels", ctl.Channels())

	vol, err := NewVolume(ctl, cfg.Volume.Step, stdout, logger)
	if err != nil {
		return err
	}

	src, err := openEvents(cfg.Input.Device, logger)
	if err != nil {
		return err
	}
	defer src.Close()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.StateWS.Listen != "" {
		srv := NewServer(logger, ServerConfig{})
		mux := http.NewServeMux()
		srv.Register(mux, cfg.StateWS.Path)

		changes := make(chan VolumeChange, notifyQueueSize)
		vol.OnPush(notifier(changes, logger))

		g.Go(func() error {
			srv.Hub().Run(gctx)
			return nil
		})
		g.Go(func() error {
			RunBroadcaster(gctx, srv.Hub(), changes, logger)
			return nil
		})
		g.Go(func() error {
			return runStateServer(gctx, cfg.StateWS.Listen, mux, logger)
		})
	}

	logger.Info("listening",
		"input_device", cfg.Input.Device,
		"mixer", cfg.Mixer.Name,
		"control", cfg.Mixer.Control,
		"step", cfg.Volume.Step,
		"state_ws", cfg.StateWS.Listen)

	g.Go(func() error {
		return vol.Run(gctx, src)
	})

	return g.Wait()
}

// run is main without os.Exit, so tests can drive it.
func run(args []string, stdout, stderr io.Writer) int {
	prog := filepath.Base(os.Args[0])

	opts, err := parseArgs(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(stdout, prog)
			return 0
		}
		fmt.Fprintln(stderr, "error:", err)
		printUsage(stderr, prog)
		return 1
	}
	if opts.showHelp {
		printUsage(stdout, prog)
		return 0
	}
	if opts.showVersion {
		printVersion(stdout)
		return 0
	}

	cfg := DefaultConfig()
	if opts.configPath != "" {
		cfg, err = LoadConfigFile(opts.configPath)
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
	}
	opts.overrides.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	// Validate has already checked the level.
	level, _ := parseLogLevel(cfg.Logging.Level)
	logger := setupLogger(level, stderr)
	logger.Debug("starting volkeyd", "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, stdout, logger); err != nil {
		logger.Error(fatalMessage(err), "error", err)
		return 1
	}

	logger.Info("shutting down")
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
