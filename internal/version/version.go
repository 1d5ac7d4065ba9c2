// Package version holds build metadata set with -ldflags "-X".
package version

import "fmt"

var (
	Version = "dev"
	Commit  = "none"
)

// String returns the version line printed by the binaries
func String(name string) string {
	return fmt.Sprintf("%s %s (commit %s)", name, Version, Commit)
}
