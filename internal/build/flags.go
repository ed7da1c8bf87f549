// SPDX-License-Identifier: MIT
package build

// Info holds build-time metadata injected via -ldflags, for example:
//
//	go build -ldflags "-X tempo/internal/build.version=0.2.0"
//
// Development builds fall back to "dev".
type Info struct {
	Name    string
	Version string
	Commit  string
	Time    string
}

var (
	name    = "tempo"
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GetInfo returns the build metadata for this binary.
func GetInfo() Info {
	return Info{
		Name:    name,
		Version: version,
		Commit:  commit,
		Time:    date,
	}
}
