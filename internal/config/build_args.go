package config

import "fmt"

// Set via ldflags at build time.
var (
	Commit    = "< 40 chars git commit hash via ldflags >"
	BuildDate = "1970-01-01-00:00:00+00:00"
)

func GetFormattedBuildArgs() string {
	return fmt.Sprintf("%v @ %v (%v)", ModuleName, Commit, BuildDate)
}
