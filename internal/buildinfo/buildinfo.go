// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package buildinfo reports the version of the running binary from the
// build information the Go toolchain embeds.
package buildinfo

import (
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

const unknown = "unknown"

// Info describes a build.
type Info struct {
	Version   string    // Module version, "(devel)" for local builds.
	Revision  string    // Short VCS revision.
	Modified  bool      // Built from a dirty work tree.
	Time      time.Time // Commit time, zero if not recorded.
	GoVersion string
}

//nolint:gochecknoglobals
var (
	once   sync.Once
	cached Info
)

// Read returns the build information of the running binary.
func Read() Info {
	once.Do(func() {
		bi, ok := debug.ReadBuildInfo()
		cached = fromBuildInfo(bi, ok)
	})

	return cached
}

// Version returns the module version of the running binary.
func Version() string {
	return Read().Version
}

// VersionString returns version and build information formatted for humans.
func VersionString() string {
	return Read().String()
}

func (i Info) String() string {
	timeStr := "------"
	if !i.Time.IsZero() {
		timeStr = i.Time.Format(time.UnixDate)
	}

	rev := i.Revision
	if i.Modified {
		rev += "-dirty"
	}

	return fmt.Sprintf("Version: %s\nCode Revision %s from %s built with %s\n",
		i.Version, rev, timeStr, i.GoVersion)
}

func fromBuildInfo(bi *debug.BuildInfo, ok bool) Info {
	if !ok || bi == nil {
		return Info{Version: unknown, Revision: unknown, GoVersion: unknown}
	}

	return Info{
		Version:   bi.Main.Version,
		Revision:  shortHash(setting("vcs.revision", bi.Settings)),
		Modified:  setting("vcs.modified", bi.Settings) == "true",
		Time:      parseTime(setting("vcs.time", bi.Settings)),
		GoVersion: bi.GoVersion,
	}
}

func setting(key string, settings []debug.BuildSetting) string {
	for _, s := range settings {
		if s.Key == key {
			return s.Value
		}
	}

	return ""
}

// shortHash keeps the leftmost 7 characters of a commit hash.
func shortHash(revision string) string {
	revision = strings.TrimSpace(revision)
	if revision == "" {
		return "unset"
	}

	return revision[:min(7, len(revision))]
}

// parseTime reads vcs.time, which is RFC 3339.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}

	return t
}
