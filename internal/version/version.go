package version

// Version values are set at build time using -ldflags.
var Version = "dev"
var Built = ""
var GitCommit = ""

// Describe renders the one-line version banner for a binary.
func Describe(binary string) string {
	if Version == "" || Version == "dev" {
		return binary + " dev"
	}
	text := binary + " version " + Version
	if GitCommit != "" {
		text += " (" + GitCommit + ")"
	}
	if Built != "" {
		text += " built " + Built
	}
	return text
}
