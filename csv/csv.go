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

// Package csv contains functions to store battery history events and convert them to and from CSV format.
package csv

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// FileHeader is outputted as the first line in csv files.
const FileHeader = "metric,type,start_time,end_time,value,opt"

// Entry contains the details of the start of a state.
type Entry struct {
	Desc  string
	Start int64
	Type  string
	Value string
	// Additional data associated with the entry.
	// Currently this is used to hold the UID (string) of a service,
	// and is an empty string for other types.
	Opt string
}

// State holds the csv writer, and the map from metric key to active entry.
type State struct {
	// For printing the CSV entries to.
	writer io.Writer

	entries map[Key]Entry
}

// Key is the unique identifier for an entry.
type Key struct {
	Metric, Identifier string
}

// NewState returns a new State.
func NewState(csvWriter io.Writer, printHeader bool) *State {
	// Write the csv header.
	if csvWriter != nil && printHeader {
		fmt.Fprintln(csvWriter, FileHeader)
	}
	return &State{
		writer:  csvWriter,
		entries: make(map[Key]Entry),
	}
}

// AddEntry adds the given entry into the existing map.
// If the entry already exists, it prints out the entry and deletes it.
func (s *State) AddEntry(desc string, newState EntryState, curTime int64) {
	s.AddEntryWithOpt(desc, newState, curTime, "")
}

// AddEntryWithOpt adds the given entry into the existing map, with the optional value set.
// If the entry already exists, it prints out the entry and deletes it.
func (s *State) AddEntryWithOpt(desc string, newState EntryState, curTime int64, opt string) {
	key := newState.GetKey(desc)

	if e, ok := s.entries[key]; ok {
		s.print(e.Desc, e.Type, e.Start, curTime, e.Value, e.Opt)
		delete(s.entries, key)
		return
	}
	if newState.GetStartTime() == 0 || newState.GetValue() == "" {
		return
	}
	s.entries[key] = Entry{
		desc,
		curTime,
		newState.GetType(),
		newState.GetValue(),
		opt,
	}
}

// IsActive returns whether an entry for the given key is currently open.
func (s *State) IsActive(key Key) bool {
	_, ok := s.entries[key]
	return ok
}

// PrintInstantEvent converts the given data to CSV format and writes it to the writer.
func (s *State) PrintInstantEvent(e Entry) {
	s.print(e.Desc, e.Type, e.Start, e.Start, e.Value, e.Opt)
}

// PrintAllReset prints all active entries and resets the map.
// Entries are printed ordered by start time, then metric and identifier, so the output is stable across runs.
func (s *State) PrintAllReset(curTime int64) {
	keys := make([]Key, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := s.entries[keys[i]], s.entries[keys[j]]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if keys[i].Metric != keys[j].Metric {
			return keys[i].Metric < keys[j].Metric
		}
		return keys[i].Identifier < keys[j].Identifier
	})
	for _, k := range keys {
		e := s.entries[k]
		s.print(e.Desc, e.Type, e.Start, curTime, e.Value, e.Opt)
	}
	s.entries = make(map[Key]Entry)
}

func (s *State) print(desc, metricType string, start, end int64, value, opt string) {
	if s.writer != nil {
		fmt.Fprintf(s.writer, "%s,%s,%d,%d,%s,%s\n", desc, metricType, start, end, quote(value), opt)
	}
}

// quote wraps values containing separators in double quotes, doubling any quotes already present.
func quote(v string) string {
	if !strings.ContainsAny(v, ",\"\n") {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}

// EntryState is a commmon interface for the various types,
// so the Entries can access them the same way.
type EntryState interface {
	// GetStartTime returns the start time of the entry.
	GetStartTime() int64
	// GetType returns the type of the entry:
	// "string", "bool", "int" or "service".
	GetType() string
	// GetValue returns the stored value of the entry.
	GetValue() string
	// GetKey returns the unique identifier for the entry.
	GetKey(string) Key
}
