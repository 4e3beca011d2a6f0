// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package version

import "runtime/debug"

// Version and Commit can be overridden at build time via ldflags:
// go build -ldflags="-X github.com/teradata-labs/loom-pos/internal/version.Version=vX.Y.Z"
var (
	Version = ""
	Commit  = ""
)

// Get returns the release version. Without ldflags it falls back to the
// module version recorded by `go install`, then "dev".
func Get() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

// Revision returns the VCS revision the binary was built from, if known.
func Revision() string {
	if Commit != "" {
		return Commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				if len(s.Value) > 12 {
					return s.Value[:12]
				}
				return s.Value
			}
		}
	}
	return ""
}

// String formats the version with its revision for --version output.
func String() string {
	if rev := Revision(); rev != "" {
		return Get() + " (" + rev + ")"
	}
	return Get()
}
