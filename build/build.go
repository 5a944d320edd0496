// Copyright 2016 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package build provides functions for dealing with Android build fingerprints.
package build

import (
	"fmt"
	"regexp"
	"strings"
)

var fingerprintRE = regexp.MustCompile(
	`^([^/]+)/([^/]+)/([^:]+):([^/]+)/([^/]+)/([^:]+):([^/]+)/([^/]+)`)

// Build holds the parts of a build fingerprint,
// brand/product/device:release/id/incremental:type/tags.
type Build struct {
	Fingerprint string
	Brand       string
	Product     string
	Device      string
	Release     string
	BuildID     string
	Incremental string
	Type        string
	Tags        []string
}

// Parse splits a build fingerprint. Only Fingerprint is set when f is not a valid fingerprint.
func Parse(f string) Build {
	b := Build{Fingerprint: f}
	if m := fingerprintRE.FindStringSubmatch(f); len(m) == 9 {
		b.Brand = m[1]
		b.Product = m[2]
		b.Device = m[3]
		b.Release = m[4]
		b.BuildID = m[5]
		b.Incremental = m[6]
		b.Type = m[7]
		b.Tags = strings.Split(m[8], ",")
	}
	return b
}

// String describes the build for display, e.g. "Android 10 (QQ3A.200805.001, user)".
// Invalid fingerprints are returned as is.
func (b Build) String() string {
	if b.Release == "" {
		return b.Fingerprint
	}
	return fmt.Sprintf("Android %s (%s, %s)", b.Release, b.BuildID, b.Type)
}
