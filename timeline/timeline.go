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

// Package timeline merges the boundaries of every metric stream into one ordered partition
// of the recording window.
package timeline

import (
	"slices"

	"github.com/powdroid/powdroid/store"
)

// Window is the closed recording window in ms since epoch.
type Window struct {
	Start, Stop int64
}

// Contains reports whether t lies in the window, bounds included.
func (w Window) Contains(t int64) bool {
	return t >= w.Start && t <= w.Stop
}

// Interval is the span between two consecutive timeline points.
type Interval struct {
	Start, End int64
}

// Duration returns the length of the interval in ms.
func (i Interval) Duration() int64 {
	return i.End - i.Start
}

// Contains reports whether the interval lies entirely within [start, end].
// An interval straddling a boundary is not contained.
func (i Interval) Contains(start, end int64) bool {
	return i.Start >= start && i.End <= end
}

// Timeline is a strictly increasing list of timestamps.
type Timeline []int64

// Union returns the sorted set of every start and end time of every stream.
// Timestamps are compared as raw integers.
func Union(streams []*store.Stream) []int64 {
	n := 0
	for _, s := range streams {
		n += 2 * s.Len()
	}
	points := make([]int64, 0, n)
	for _, s := range streams {
		for _, r := range s.Records {
			points = append(points, r.Start, r.End)
		}
	}
	slices.Sort(points)
	return slices.Compact(points)
}

// Build returns the union of the stream boundaries that fall in the window.
func Build(streams []*store.Stream, w Window) Timeline {
	var t Timeline
	for _, p := range Union(streams) {
		if w.Contains(p) {
			t = append(t, p)
		}
	}
	return t
}

// Empty is true when the timeline does not define a single interval.
func (t Timeline) Empty() bool {
	return len(t) < 2
}

// Len returns the number of intervals.
func (t Timeline) Len() int {
	if t.Empty() {
		return 0
	}
	return len(t) - 1
}

// Interval returns the i-th interval.
func (t Timeline) Interval(i int) Interval {
	return Interval{Start: t[i], End: t[i+1]}
}
