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

// Package resolver computes, for every timeline interval, the value of each metric stream.
//
// A record contains an interval when the interval lies entirely within the record's bounds.
// Streams are scanned in table order and the first containing record wins; an interval that
// no record contains resolves to the zero value of its discipline.
package resolver

import (
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/powdroid/powdroid/config"
	"github.com/powdroid/powdroid/store"
	"github.com/powdroid/powdroid/timeline"
)

// chunkSize is the number of consecutive intervals resolved by one task.
const chunkSize = 256

// Value is a resolved metric value. Resolved is false when no record matched, in which
// case the other fields hold the defaults that are written to the output.
type Value struct {
	Num      float64
	Str      string
	Present  bool
	Resolved bool
}

// String returns the value as written for its discipline.
func (v Value) String(d config.Discipline) string {
	switch d {
	case config.Presence:
		return strconv.FormatBool(v.Present)
	case config.Categorical:
		return v.Str
	}
	return strconv.FormatFloat(v.Num, 'f', 6, 64)
}

// Row holds the resolved values of one interval, in configuration order.
type Row struct {
	Interval timeline.Interval
	Values   []Value
	// Current is the rate of change of the charge metric, in mA.
	Current Value
}

// Point returns the first record of s containing iv. Numeric streams give the parsed value
// and categorical streams the raw one.
func Point(s *store.Stream, iv timeline.Interval) Value {
	for _, r := range s.Records {
		if iv.Contains(r.Start, r.End) {
			return Value{Num: r.Num, Str: r.Value, Present: true, Resolved: true}
		}
	}
	return Value{}
}

// Rate returns the discharge current, in mA, over the first record of the charge stream s
// that contains iv and has a defined rate. The rate of record i is the charge drop to record
// i+1 over the duration of record i in hours. The last record and zero length records have
// no rate.
func Rate(s *store.Stream, iv timeline.Interval) Value {
	for i, r := range s.Records {
		if !iv.Contains(r.Start, r.End) {
			continue
		}
		if i+1 >= len(s.Records) || r.Duration() == 0 {
			continue
		}
		hours := float64(r.Duration()) / 1000 / 3600
		return Value{Num: (r.Num - s.Records[i+1].Num) / hours, Resolved: true}
	}
	return Value{}
}

// Presence reports whether any record of s contains iv.
func Presence(s *store.Stream, iv timeline.Interval) Value {
	for _, r := range s.Records {
		if iv.Contains(r.Start, r.End) {
			return Value{Present: true, Resolved: true}
		}
	}
	return Value{}
}

// Resolver resolves intervals against the streams of a store.
type Resolver struct {
	streams []*store.Stream
	charge  *store.Stream
	workers int
}

// New returns a resolver for the configured metrics of st.
func New(cfg config.Config, st *store.Store) *Resolver {
	r := &Resolver{
		charge:  st.Stream(cfg.ChargeMetric),
		workers: cfg.WorkerCount(),
	}
	for _, m := range cfg.Metrics {
		r.streams = append(r.streams, st.Stream(m.Name))
	}
	return r
}

func (r *Resolver) resolveInto(row *Row, iv timeline.Interval) {
	row.Interval = iv
	for i, s := range r.streams {
		switch s.Metric.Discipline {
		case config.Presence:
			row.Values[i] = Presence(s, iv)
		default:
			row.Values[i] = Point(s, iv)
		}
	}
	row.Current = Rate(r.charge, iv)
}

// Resolve returns one row per interval of t, in timeline order. Intervals are independent
// and are resolved concurrently; each task writes a disjoint range of the result.
func (r *Resolver) Resolve(t timeline.Timeline) ([]Row, error) {
	n := t.Len()
	rows := make([]Row, n)
	values := make([]Value, n*len(r.streams))

	var g errgroup.Group
	g.SetLimit(r.workers)
	for lo := 0; lo < n; lo += chunkSize {
		hi := min(lo+chunkSize, n)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				rows[i].Values = values[i*len(r.streams) : (i+1)*len(r.streams) : (i+1)*len(r.streams)]
				r.resolveInto(&rows[i], t.Interval(i))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}
