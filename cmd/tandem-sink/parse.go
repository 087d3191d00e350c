package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"tandem/internal/cli"
)

type sinkConfig struct {
	Results     string
	Devices     []int
	ShowVersion bool
}

func parseArgs(args []string, errOut io.Writer) (sinkConfig, error) {
	fs := flag.NewFlagSet("tandem-sink", flag.ContinueOnError)
	fs.SetOutput(errOut)
	resultsFlag := fs.String("results", "", "Results tree root (provided by the launcher)")
	devicesFlag := fs.String("devices", "", "Comma-separated device ids to collect")
	helpVersion := cli.AddHelpVersionFlags(fs)
	fs.Usage = func() {
		printHelp(fs.Output())
	}

	if err := fs.Parse(args); err != nil {
		return sinkConfig{}, err
	}

	if helpVersion.Help {
		fs.Usage()
		return sinkConfig{}, flag.ErrHelp
	}
	if helpVersion.Version {
		return sinkConfig{ShowVersion: true}, nil
	}

	results, err := cli.RequireResults(*resultsFlag)
	if err != nil {
		fs.Usage()
		return sinkConfig{}, err
	}
	devices, err := parseDeviceList(*devicesFlag)
	if err != nil {
		fs.Usage()
		return sinkConfig{}, err
	}

	return sinkConfig{
		Results: results,
		Devices: devices,
	}, nil
}

func parseDeviceList(raw string) ([]int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("devices is required")
	}
	parts := strings.Split(trimmed, ",")
	ids := make([]int, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid device id %q", strings.TrimSpace(part))
		}
		if id < 0 {
			return nil, fmt.Errorf("device ids must not be negative, got %d", id)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "Usage: tandem-sink [options]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Consumer stand-in: accepts the forwarded stream of every device and")
	fmt.Fprintln(out, "records each one as an artifact.")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Options:")
	writeOption(out, "--results DIR", "Results tree root (required; provided by the launcher)")
	writeOption(out, "--devices IDS", "Comma-separated device ids to collect (required)")
	writeOption(out, "--help", "Show this help message")
	writeOption(out, "--version", "Print version and exit")
}

func writeOption(out io.Writer, name, desc string) {
	fmt.Fprintf(out, "  %-18s %s\n", name, desc)
}
