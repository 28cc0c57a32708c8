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

import "github.com/Masterminds/semver/v3"

// Version can be overridden at build time via ldflags:
// go build -ldflags="-X github.com/weaveloop/weave/internal/version.Version=vX.Y.Z"
var Version = "1.0.2" // Default version

// Get returns the current version
func Get() string {
	if Version == "" {
		return "dev"
	}
	return Version
}

// JournalSchema is the version stamped into a journal's session_connected
// pseudo-event. It advances only when the Event shape itself changes, not
// on every release.
const JournalSchema = "1.0.0"

// CompatibleSchema reports whether a journal recorded under schema
// recorded can still be replayed by this binary (same major version as
// JournalSchema). An unparsable recorded version is treated as
// incompatible rather than erroring the caller out of resuming entirely.
func CompatibleSchema(recorded string) bool {
	if recorded == "" {
		return true
	}
	rv, err := semver.NewVersion(recorded)
	if err != nil {
		return false
	}
	running, err := semver.NewVersion(JournalSchema)
	if err != nil {
		return false
	}
	return rv.Major() == running.Major()
}
