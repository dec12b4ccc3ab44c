package main

import (
	"context"
	"flag"
	"io"
	"testing"

	"github.com/backkem/keylink/pkg/session"
)

func testRoot() []byte {
	root := make([]byte, session.RootSecretSize)
	for i := range root {
		root[i] = byte(0xA0 + i)
	}
	return root
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"defaults", nil, false},
		{"custom", []string{"-frames", "10", "-drop", "0.5", "-window", "-transport", "udp", "-log", "DEBUG"}, false},
		{"zero frames", []string{"-frames", "0"}, true},
		{"drop above one", []string{"-drop", "1.5"}, true},
		{"negative dup", []string{"-dup", "-0.1"}, true},
		{"bad transport", []string{"-transport", "tcp"}, true},
		{"bad log level", []string{"-log", "loud"}, true},
		{"unknown flag", []string{"-nope"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("keylink-sim", flag.ContinueOnError)
			fs.SetOutput(io.Discard)
			_, err := ParseFlags(fs, tt.args)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseFlags(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			}
		})
	}
}

func TestParseFlagsValues(t *testing.T) {
	fs := flag.NewFlagSet("keylink-sim", flag.ContinueOnError)
	opts, err := ParseFlags(fs, []string{"-frames", "7", "-tag", "16", "-seed", "99", "-window"})
	if err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	if opts.Frames != 7 || opts.TagSize != 16 || opts.Seed != 99 || !opts.Window {
		t.Errorf("ParseFlags() = %+v", opts)
	}
	if opts.Transport != "pipe" {
		t.Errorf("Transport = %q, want pipe", opts.Transport)
	}
}

func TestRunLossless(t *testing.T) {
	for _, transportName := range []string{"pipe", "udp"} {
		t.Run(transportName, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Frames = 10
			opts.Interval = 0
			opts.Drop = 0
			opts.Dup = 0
			opts.Transport = transportName
			opts.LogLevel = "disabled"

			res, err := run(context.Background(), opts, testRoot())
			if err != nil {
				t.Fatalf("run() error = %v", err)
			}
			for _, half := range session.Halves {
				if res.Sent[half] != 10 {
					t.Errorf("Sent[%s] = %d, want 10", half, res.Sent[half])
				}
			}
			if res.Receiver.Accepted != 20 {
				t.Errorf("Accepted = %d, want 20", res.Receiver.Accepted)
			}
			if res.Receiver.Rejected != 0 || res.Receiver.Replayed != 0 {
				t.Errorf("Receiver = %+v, want only accepted frames", res.Receiver)
			}
			if len(res.KeyState) != 4 {
				t.Errorf("KeyState length = %d, want 4", len(res.KeyState))
			}
		})
	}
}

func TestRunDuplicatesAreReplays(t *testing.T) {
	opts := DefaultOptions()
	opts.Frames = 40
	opts.Interval = 0
	opts.Drop = 0
	opts.Dup = 0.5
	opts.Seed = 3
	opts.LogLevel = "disabled"

	res, err := run(context.Background(), opts, testRoot())
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if res.Receiver.Accepted != 80 {
		t.Errorf("Accepted = %d, want 80", res.Receiver.Accepted)
	}
	if res.Receiver.Replayed != res.Radio.Duplicated {
		t.Errorf("Replayed = %d, want %d", res.Receiver.Replayed, res.Radio.Duplicated)
	}
}

func TestRunCanceled(t *testing.T) {
	opts := DefaultOptions()
	opts.LogLevel = "disabled"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := run(ctx, opts, testRoot()); err == nil {
		t.Error("run() with a canceled context should fail")
	}
}
