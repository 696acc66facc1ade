// SPDX-License-Identifier: MIT
//
// Package build manages build information embedded at compile time with
// linker flags: application name, build timestamp, Git commit hash and
// semantic version, for example:
//
//	go build -ldflags "-X microfeatures/pkg/build.buildName=microfeatures \
//	  -X microfeatures/pkg/build.buildVersion=0.1.0 ..."
package build

import "fmt"

// Description is the one-line summary shown by the CLI.
const Description = "Fixed-point audio feature frontend for keyword spotting"

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// Package-level variables for build information. These are populated by -ldflags
// during compilation. Development builds keep the defaults.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:        "microfeatures",
		Description: Description,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
)

// Initialize validates and copies build information from ldflags variables
// into the buildFlags struct. Returns an error if any build flag is missing,
// in which case the defaults stay in place.
func Initialize() error {
	if buildName == "" {
		return fmt.Errorf("BuildName is required")
	}
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion

	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}

// String formats the flags for `version` output.
func (f *ldFlags) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}
