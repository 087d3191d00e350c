package main

import (
	"flag"
	"fmt"
	"io"

	"tandem/internal/cli"
)

type feedConfig struct {
	Results     string
	DeviceCount int
	Samples     int
	ShowVersion bool
}

func parseArgs(args []string, errOut io.Writer) (feedConfig, error) {
	fs := flag.NewFlagSet("tandem-feed", flag.ContinueOnError)
	fs.SetOutput(errOut)
	resultsFlag := fs.String("results", "", "Results tree root (provided by the launcher)")
	deviceCountFlag := fs.Int("device-count", 1, "Number of synthetic devices to advertise")
	samplesFlag := fs.Int("samples", 10, "Samples per window and device")
	helpVersion := cli.AddHelpVersionFlags(fs)
	fs.Usage = func() {
		printHelp(fs.Output())
	}

	if err := fs.Parse(args); err != nil {
		return feedConfig{}, err
	}

	if helpVersion.Help {
		fs.Usage()
		return feedConfig{}, flag.ErrHelp
	}
	if helpVersion.Version {
		return feedConfig{ShowVersion: true}, nil
	}

	results, err := cli.RequireResults(*resultsFlag)
	if err != nil {
		fs.Usage()
		return feedConfig{}, err
	}
	if *deviceCountFlag < 1 {
		return feedConfig{}, fmt.Errorf("device-count must be at least 1, got %d", *deviceCountFlag)
	}
	if *samplesFlag < 0 {
		return feedConfig{}, fmt.Errorf("samples must not be negative, got %d", *samplesFlag)
	}

	return feedConfig{
		Results:     results,
		DeviceCount: *deviceCountFlag,
		Samples:     *samplesFlag,
	}, nil
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "Usage: tandem-feed [options]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Producer stand-in: advertises synthetic devices and streams one")
	fmt.Fprintln(out, "window of samples per synchronization step to each relay.")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Options:")
	writeOption(out, "--results DIR", "Results tree root (required; provided by the launcher)")
	writeOption(out, "--device-count N", "Number of synthetic devices to advertise (default: 1)")
	writeOption(out, "--samples N", "Samples per window and device (default: 10)")
	writeOption(out, "--help", "Show this help message")
	writeOption(out, "--version", "Print version and exit")
}

func writeOption(out io.Writer, name, desc string) {
	fmt.Fprintf(out, "  %-18s %s\n", name, desc)
}
