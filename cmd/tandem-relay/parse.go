package main

import (
	"flag"
	"fmt"
	"io"

	"tandem/internal/cli"
)

type relayConfig struct {
	Results     string
	Device      int
	ShowVersion bool
}

func parseArgs(args []string, errOut io.Writer) (relayConfig, error) {
	fs := flag.NewFlagSet("tandem-relay", flag.ContinueOnError)
	fs.SetOutput(errOut)
	resultsFlag := fs.String("results", "", "Results tree root (provided by the launcher)")
	deviceFlag := fs.Int("device", -1, "Device id this relay serves")
	helpVersion := cli.AddHelpVersionFlags(fs)
	fs.Usage = func() {
		printHelp(fs.Output())
	}

	if err := fs.Parse(args); err != nil {
		return relayConfig{}, err
	}

	if helpVersion.Help {
		fs.Usage()
		return relayConfig{}, flag.ErrHelp
	}
	if helpVersion.Version {
		return relayConfig{ShowVersion: true}, nil
	}

	results, err := cli.RequireResults(*resultsFlag)
	if err != nil {
		fs.Usage()
		return relayConfig{}, err
	}
	if *deviceFlag < 0 {
		fs.Usage()
		return relayConfig{}, fmt.Errorf("device is required")
	}

	return relayConfig{
		Results: results,
		Device:  *deviceFlag,
	}, nil
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "Usage: tandem-relay [options]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Translator relay for one device: receives the producer's windowed")
	fmt.Fprintln(out, "stream and either records it in batches or forwards each window to")
	fmt.Fprintln(out, "the consumer, depending on the run mode.")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Options:")
	writeOption(out, "--results DIR", "Results tree root (required; provided by the launcher)")
	writeOption(out, "--device N", "Device id this relay serves (required)")
	writeOption(out, "--help", "Show this help message")
	writeOption(out, "--version", "Print version and exit")
}

func writeOption(out io.Writer, name, desc string) {
	fmt.Fprintf(out, "  %-18s %s\n", name, desc)
}
