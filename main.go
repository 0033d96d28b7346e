package main

import (
	"runtime/debug"

	"github.com/marlowe/vantage/cmd"
)

// Version is stamped by release builds via -ldflags "-X main.Version=...".
var Version = "dev"

// buildVersion resolves the version string shown by `vantage version`.
// Source builds without a stamp fall back to module build info: the module
// version for `go install ...@vX.Y.Z`, or the short VCS revision otherwise.
func buildVersion(stamped string) string {
	if stamped != "" && stamped != "dev" {
		return stamped
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return stamped
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		return v
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 8 {
			return "devel-" + s.Value[:8]
		}
	}
	return stamped
}

func main() {
	cmd.SetVersion(buildVersion(Version))
	cmd.Execute()
}
