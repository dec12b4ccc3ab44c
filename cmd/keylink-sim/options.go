package main

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/pion/logging"
)

// Options holds the CLI flags of the simulator.
type Options struct {
	// Passphrase is stretched into the root secret shared by both halves and
	// the receiver.
	Passphrase string

	// Salt is the stretching salt (at least 16 bytes).
	Salt string

	// Frames is the number of reports each half sends.
	Frames int

	// Interval is the pause between reports of one half.
	Interval time.Duration

	// Drop, Dup and Reorder are the radio condition probabilities.
	Drop    float64
	Dup     float64
	Reorder float64

	// TagSize is the transmitted tag length.
	TagSize int

	// Window enables the sliding replay window instead of strict ordering.
	Window bool

	// Transport is "pipe" for the simulated radio or "udp" for loopback
	// sockets.
	Transport string

	// Seed seeds the radio simulator. Zero seeds from the clock.
	Seed int64

	// LogLevel is the pion log level name.
	LogLevel string
}

// DefaultOptions returns Options with sensible defaults for a quick run.
func DefaultOptions() Options {
	return Options{
		Passphrase: "keylink development passphrase",
		Salt:       "keylink-dev-salt",
		Frames:     100,
		Interval:   2 * time.Millisecond,
		Drop:       0.1,
		Dup:        0.05,
		TagSize:    32,
		Transport:  "pipe",
		LogLevel:   "info",
	}
}

// ParseFlags parses the CLI flags and returns Options.
//
//	-passphrase  Passphrase the root secret is stretched from
//	-salt        Stretching salt, at least 16 bytes
//	-frames      Reports sent per half (default: 100)
//	-interval    Pause between reports (default: 2ms)
//	-drop        Radio drop probability (default: 0.1)
//	-dup         Radio duplicate probability (default: 0.05)
//	-reorder     Radio reorder probability (default: 0)
//	-tag         Transmitted tag length, 16-32 (default: 32)
//	-window      Accept reordered frames within a 32-counter window
//	-transport   pipe or udp (default: pipe)
//	-seed        Radio simulator seed (default: clock)
//	-log         Log level: disabled, error, warn, info, debug, trace
func ParseFlags(fs *flag.FlagSet, args []string) (Options, error) {
	d := DefaultOptions()
	o := Options{}

	fs.StringVar(&o.Passphrase, "passphrase", d.Passphrase, "Passphrase the root secret is stretched from")
	fs.StringVar(&o.Salt, "salt", d.Salt, "Stretching salt, at least 16 bytes")
	fs.IntVar(&o.Frames, "frames", d.Frames, "Reports sent per half")
	fs.DurationVar(&o.Interval, "interval", d.Interval, "Pause between reports")
	fs.Float64Var(&o.Drop, "drop", d.Drop, "Radio drop probability")
	fs.Float64Var(&o.Dup, "dup", d.Dup, "Radio duplicate probability")
	fs.Float64Var(&o.Reorder, "reorder", d.Reorder, "Radio reorder probability")
	fs.IntVar(&o.TagSize, "tag", d.TagSize, "Transmitted tag length (16-32)")
	fs.BoolVar(&o.Window, "window", d.Window, "Accept reordered frames within a 32-counter window")
	fs.StringVar(&o.Transport, "transport", d.Transport, "pipe or udp")
	fs.Int64Var(&o.Seed, "seed", d.Seed, "Radio simulator seed (0 = clock)")
	fs.StringVar(&o.LogLevel, "log", d.LogLevel, "Log level: disabled, error, warn, info, debug, trace")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	return o, o.Validate()
}

// Validate checks the options for errors.
func (o Options) Validate() error {
	if o.Frames <= 0 {
		return fmt.Errorf("frames must be positive, got %d", o.Frames)
	}
	for name, p := range map[string]float64{"drop": o.Drop, "dup": o.Dup, "reorder": o.Reorder} {
		if p < 0 || p > 1 {
			return fmt.Errorf("%s must be within [0, 1], got %v", name, p)
		}
	}
	if o.Transport != "pipe" && o.Transport != "udp" {
		return fmt.Errorf("transport must be pipe or udp, got %q", o.Transport)
	}
	if _, err := parseLogLevel(o.LogLevel); err != nil {
		return err
	}
	return nil
}

var logLevels = map[string]logging.LogLevel{
	"disabled": logging.LogLevelDisabled,
	"error":    logging.LogLevelError,
	"warn":     logging.LogLevelWarn,
	"info":     logging.LogLevelInfo,
	"debug":    logging.LogLevelDebug,
	"trace":    logging.LogLevelTrace,
}

func parseLogLevel(s string) (logging.LogLevel, error) {
	level, ok := logLevels[strings.ToLower(s)]
	if !ok {
		return logging.LogLevelDisabled, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// loggerFactory builds the pion logger factory for the configured level.
func (o Options) loggerFactory() logging.LoggerFactory {
	level, _ := parseLogLevel(o.LogLevel)
	lf := logging.NewDefaultLoggerFactory()
	lf.DefaultLogLevel = level
	return lf
}
