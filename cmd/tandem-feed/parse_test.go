package main

import (
	"bytes"
	"errors"
	"flag"
	"strings"
	"testing"
)

func TestParseArgsDefaults(t *testing.T) {
	var stderr bytes.Buffer
	cfg, err := parseArgs([]string{"--results", "/tmp/run"}, &stderr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Results != "/tmp/run" {
		t.Fatalf("unexpected results root: %q", cfg.Results)
	}
	if cfg.DeviceCount != 1 || cfg.Samples != 10 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestParseArgsMissingResults(t *testing.T) {
	var stderr bytes.Buffer
	_, err := parseArgs(nil, &stderr)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(stderr.String(), "Usage: tandem-feed") {
		t.Fatalf("expected usage output, got %q", stderr.String())
	}
}

func TestParseArgsRejectsZeroDevices(t *testing.T) {
	var stderr bytes.Buffer
	_, err := parseArgs([]string{"--results", "/tmp/run", "--device-count", "0"}, &stderr)
	if err == nil || !strings.Contains(err.Error(), "device-count") {
		t.Fatalf("expected device-count error, got %v", err)
	}
}

func TestParseArgsRejectsNegativeSamples(t *testing.T) {
	var stderr bytes.Buffer
	_, err := parseArgs([]string{"--results", "/tmp/run", "--samples=-1"}, &stderr)
	if err == nil || !strings.Contains(err.Error(), "samples") {
		t.Fatalf("expected samples error, got %v", err)
	}
}

func TestParseArgsVersion(t *testing.T) {
	var stderr bytes.Buffer
	cfg, err := parseArgs([]string{"--version"}, &stderr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.ShowVersion {
		t.Fatalf("expected ShowVersion to be set")
	}
}

func TestParseArgsHelp(t *testing.T) {
	var stderr bytes.Buffer
	_, err := parseArgs([]string{"--help"}, &stderr)
	if !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("expected flag.ErrHelp, got %v", err)
	}
	if !strings.Contains(stderr.String(), "Usage: tandem-feed") {
		t.Fatalf("expected usage output, got %q", stderr.String())
	}
}

func TestParseArgsRejectsUnknownFlag(t *testing.T) {
	var stderr bytes.Buffer
	_, err := parseArgs([]string{"--results", "/tmp/run", "--windows", "3"}, &stderr)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(stderr.String(), "flag provided but not defined: -windows") {
		t.Fatalf("expected unknown flag output, got %q", stderr.String())
	}
}
