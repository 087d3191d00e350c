// Package cli carries the flag plumbing shared by the launcher-spawned
// child binaries. The children keep a deliberately small surface: the
// launch contract flags plus help and version.
package cli

import "flag"

type HelpVersionFlags struct {
	Help    bool
	Version bool
}

// AddHelpVersionFlags registers --help/-h and --version/-v on a flag
// set and reports which one was requested.
func AddHelpVersionFlags(fs *flag.FlagSet) *HelpVersionFlags {
	flags := &HelpVersionFlags{}
	if fs == nil {
		return flags
	}
	fs.BoolVar(&flags.Help, "help", false, "Show help")
	fs.BoolVar(&flags.Help, "h", false, "Show help")
	fs.BoolVar(&flags.Version, "version", false, "Print version and exit")
	fs.BoolVar(&flags.Version, "v", false, "Print version and exit")
	return flags
}
