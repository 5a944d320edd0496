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

// Package store splits the flat event table into one read-only stream per configured metric.
package store

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/powdroid/powdroid/config"
	"github.com/powdroid/powdroid/csv"
)

// MalformedInputError is returned when the event table cannot be used as is.
// No result is computed from a malformed table.
type MalformedInputError struct {
	Errs []error
}

func (e *MalformedInputError) Error() string {
	switch len(e.Errs) {
	case 0:
		return "malformed event table"
	case 1:
		return fmt.Sprintf("malformed event table: %v", e.Errs[0])
	}
	return fmt.Sprintf("malformed event table: %v (and %d more errors)", e.Errs[0], len(e.Errs)-1)
}

// Unwrap returns the individual record errors.
func (e *MalformedInputError) Unwrap() []error {
	return e.Errs
}

// Record is one event of a stream.
type Record struct {
	csv.Event
	// Num is the parsed value of events of numeric metrics.
	Num float64
}

// Stream holds the events of one metric in table order. Records may overlap.
type Stream struct {
	Metric  config.Metric
	Records []Record
}

// Len returns the number of records in the stream.
func (s *Stream) Len() int {
	return len(s.Records)
}

// Store holds one stream per configured metric.
type Store struct {
	streams map[string]*Stream
	order   []string
}

// New builds the store from events grouped by metric name. Metrics without events get an empty stream.
func New(cfg config.Config, events map[string][]csv.Event) (*Store, error) {
	s := &Store{streams: make(map[string]*Stream, len(cfg.Metrics))}
	var errs []error
	for _, m := range cfg.Metrics {
		stream := &Stream{Metric: m, Records: make([]Record, 0, len(events[m.Name]))}
		for i, e := range events[m.Name] {
			r := Record{Event: e}
			if m.Discipline == config.Numeric {
				v, err := parseNumber(e.Value)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s event %d: invalid numeric value %q", m.Name, i, e.Value))
					continue
				}
				r.Num = v
			}
			stream.Records = append(stream.Records, r)
		}
		s.streams[m.Name] = stream
		s.order = append(s.order, m.Name)
	}
	if len(errs) > 0 {
		return nil, &MalformedInputError{Errs: errs}
	}
	return s, nil
}

// parseNumber parses a decimal value. NaN, infinities and hexadecimal forms are rejected.
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, "xXpP_") {
		return 0, errors.New("not a decimal number")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("not a finite number")
	}
	return v, nil
}

// Load reads a flat event table and builds the store for the configured metrics.
// Rows of other metrics are skipped once their field count has been checked.
func Load(cfg config.Config, r io.Reader) (*Store, error) {
	events, errs := csv.ReadEvents(r, cfg.MetricNames())
	if len(errs) > 0 {
		return nil, &MalformedInputError{Errs: errs}
	}
	return New(cfg, events)
}

// Stream returns the stream of the named metric. Unknown metrics give an empty stream.
func (s *Store) Stream(name string) *Stream {
	if st, ok := s.streams[name]; ok {
		return st
	}
	return &Stream{Metric: config.Metric{Name: name}}
}

// Streams returns the streams in configuration order.
func (s *Store) Streams() []*Stream {
	out := make([]*Stream, len(s.order))
	for i, n := range s.order {
		out[i] = s.streams[n]
	}
	return out
}

// Events returns the number of records across all streams.
func (s *Store) Events() int {
	n := 0
	for _, st := range s.streams {
		n += st.Len()
	}
	return n
}
