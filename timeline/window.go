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

package timeline

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/powdroid/powdroid/historianutils"
	"github.com/powdroid/powdroid/store"
)

// Open ends of a window. They are replaced by the recording bounds when the window is bound.
const (
	OpenStart int64 = math.MinInt64
	OpenStop  int64 = math.MaxInt64
)

// All is the window covering the whole recording.
var All = Window{Start: OpenStart, Stop: OpenStop}

// Bound replaces the open ends of w with the first and last boundary of the streams.
// Explicit ends are kept as given.
func (w Window) Bound(streams []*store.Stream) Window {
	if w.Start != OpenStart && w.Stop != OpenStop {
		return w
	}
	u := Union(streams)
	if len(u) == 0 {
		if w.Start == OpenStart {
			w.Start = 0
		}
		if w.Stop == OpenStop {
			w.Stop = 0
		}
		return w
	}
	if w.Start == OpenStart {
		w.Start = u[0]
	}
	if w.Stop == OpenStop {
		w.Stop = u[len(u)-1]
	}
	return w
}

// ParseTime parses a point in time given either as ms since epoch or as an RFC 3339 date.
func ParseTime(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: want ms since epoch or RFC 3339", s)
	}
	return t.UnixMilli(), nil
}

// ParseWindow builds a window from its start and either its stop or its duration.
// An empty start or stop leaves that end open. The duration accepts days, e.g. 1d2h.
// A start after the stop is not an error: such a window holds no interval.
func ParseWindow(start, stop, duration string) (Window, error) {
	w := All
	var err error
	if start != "" {
		if w.Start, err = ParseTime(start); err != nil {
			return Window{}, fmt.Errorf("start: %v", err)
		}
	}
	switch {
	case stop != "" && duration != "":
		return Window{}, errors.New("stop and duration are mutually exclusive")
	case stop != "":
		if w.Stop, err = ParseTime(stop); err != nil {
			return Window{}, fmt.Errorf("stop: %v", err)
		}
	case duration != "":
		if start == "" {
			return Window{}, errors.New("duration needs a start time")
		}
		ms, err := historianutils.ParseDurationWithDays(duration)
		if err != nil {
			return Window{}, fmt.Errorf("duration: %v", err)
		}
		if ms < 0 {
			return Window{}, fmt.Errorf("duration: %q is negative", duration)
		}
		w.Stop = w.Start + ms
	}
	return w, nil
}
