// SPDX-License-Identifier: MIT
//
// Package build exposes build information embedded into the binary at
// compile time with linker flags:
//
//	go build -ldflags "-X spectra/pkg/build.buildName=spectra \
//	  -X spectra/pkg/build.buildVersion=v0.3.1 \
//	  -X spectra/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	  -X spectra/pkg/build.buildTime=$(date -u +%FT%TZ)"
//
// Development builds carry no flags and report DevVersion.
package build

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// DevVersion is reported by builds without linker flags.
const DevVersion = "0.0.0-dev"

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string

	semver *semver.Version
}

// Populated by -ldflags during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = devFlags()
)

func devFlags() *ldFlags {
	return &ldFlags{
		Name:        "spectra",
		Description: "Real-time audio spectrum pipeline",
		Time:        "unknown",
		Commit:      "unknown",
		Version:     DevVersion,
		semver:      semver.MustParse(DevVersion),
	}
}

// Initialize validates and copies the linker flags into the build info.
// Either all flags are set or none are, and the version must be a valid
// semantic version.
func Initialize() error {
	if buildName == "" && buildTime == "" && buildCommit == "" && buildVersion == "" {
		buildFlags = devFlags()
		return nil
	}
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
	v, err := semver.NewVersion(buildVersion)
	if err != nil {
		return fmt.Errorf("BuildVersion %q: %w", buildVersion, err)
	}

	flags := devFlags()
	flags.Name = buildName
	flags.Time = buildTime
	flags.Commit = buildCommit
	flags.Version = v.String()
	flags.semver = v
	buildFlags = flags
	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}

// Dev reports whether this is a development build.
func (f *ldFlags) Dev() bool {
	return f.semver.Prerelease() == "dev"
}

// Satisfies reports whether the version meets constraint, e.g. ">= 0.3".
// Prerelease versions only satisfy constraints that name a prerelease.
func (f *ldFlags) Satisfies(constraint string) (bool, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("constraint %q: %w", constraint, err)
	}
	return c.Check(f.semver), nil
}

// String renders a one-line version banner.
func (f *ldFlags) String() string {
	return fmt.Sprintf("%s v%s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}
