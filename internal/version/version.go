package version

import (
	"fmt"
	"runtime"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String renders build metadata for `talkthru version`.
func String() string {
	return fmt.Sprintf("talkthru %s (commit=%s, date=%s, go=%s)", Version, Commit, Date, runtime.Version())
}
