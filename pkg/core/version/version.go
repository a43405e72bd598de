// ============================================================================
// Iguana - Issue Tracker Query Languages
// ============================================================================
//
// Package:     version
// Description: Build version information
// Author:      Mike Stoffels
// Created:     2025-03-10
// License:     MIT
// ============================================================================

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is the release version. Release builds set it with
// -ldflags "-X github.com/msto63/iguana/pkg/core/version.Version=x.y.z".
var Version = "0.1.0"

// Commit is the VCS revision, read from the build info when not set
var Commit = ""

// Languages versions the grammars. Clients may cache token streams per
// version.
const (
	SearchLanguage = "1.0.0"
	OleaLanguage   = "1.0.0"
)

// Info describes the running build
type Info struct {
	Version        string `json:"version"`
	Commit         string `json:"commit,omitempty"`
	GoVersion      string `json:"go_version"`
	SearchLanguage string `json:"search_language"`
	OleaLanguage   string `json:"olea_language"`
}

// Get returns the build information
func Get() Info {
	info := Info{
		Version:        Version,
		Commit:         Commit,
		GoVersion:      runtime.Version(),
		SearchLanguage: SearchLanguage,
		OleaLanguage:   OleaLanguage,
	}
	if info.Commit == "" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" {
					info.Commit = s.Value
				}
			}
		}
	}
	return info
}

func (i Info) String() string {
	s := fmt.Sprintf("iguana %s (search %s, olea %s, %s)", i.Version, i.SearchLanguage, i.OleaLanguage, i.GoVersion)
	if i.Commit != "" {
		s += " commit " + i.Commit
	}
	return s
}
