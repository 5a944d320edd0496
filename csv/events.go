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

package csv

import (
	gocsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Column names of the event table. Only metric, start_time, end_time and value are required.
const (
	MetricColumn = "metric"
	TypeColumn   = "type"
	StartColumn  = "start_time"
	EndColumn    = "end_time"
	ValueColumn  = "value"
	OptColumn    = "opt"
)

var requiredColumns = []string{MetricColumn, StartColumn, EndColumn, ValueColumn}

// Event stores the details contained in a CSV line.
type Event struct {
	Type  string
	Start int64
	End   int64
	Value string
	Opt   string
}

// Duration returns the length of the event in milliseconds.
func (e Event) Duration() int64 {
	return e.End - e.Start
}

// ExtractEvents returns all events matching any of the given metrics names.
// If a metric has no matching events, the map will contain a nil slice for that metric.
// If the metrics slice is nil, all events will be extracted.
// Errors encountered during parsing will be collected into an errors slice and will continue parsing remaining events.
func ExtractEvents(csvInput string, metrics []string) (map[string][]Event, []error) {
	return ReadEvents(strings.NewReader(csvInput), metrics)
}

// ReadEvents is the io.Reader form of ExtractEvents.
// Records are numbered from zero, the header being record 0.
func ReadEvents(r io.Reader, metrics []string) (map[string][]Event, []error) {
	matchAll := metrics == nil
	events := make(map[string][]Event)
	for _, m := range metrics {
		events[m] = nil
	}

	reader := gocsv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return events, []error{errors.New("empty event table")}
	}
	if err != nil {
		return events, []error{fmt.Errorf("record 0: %v", err)}
	}
	idx, err := columnIndex(header)
	if err != nil {
		return events, []error{err}
	}

	var errs []error
	for n := 1; ; n++ {
		parts, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *gocsv.ParseError
			if errors.As(err, &pe) {
				errs = append(errs, fmt.Errorf("record %d: %v", n, err))
				continue
			}
			errs = append(errs, fmt.Errorf("record %d: %v", n, err))
			break
		}
		if len(parts) != len(header) {
			errs = append(errs, fmt.Errorf("record %d: non matching %v, len was %d", n, parts, len(parts)))
			continue
		}
		metric := parts[idx[MetricColumn]]
		if _, ok := events[metric]; !ok && !matchAll {
			continue
		}
		e, err := parseEvent(parts, idx)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d: %v", n, err))
			continue
		}
		events[metric] = append(events[metric], e)
	}
	return events, errs
}

// IsEventTable reports whether b starts with an event table header.
func IsEventTable(b []byte) bool {
	line := string(b)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimPrefix(strings.TrimSpace(line), "\ufeff")
	_, err := columnIndex(strings.Split(line, ","))
	return err == nil
}

// columnIndex maps each known column name to its position in the header.
func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int)
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, c := range requiredColumns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("missing column %q in header %v", c, header)
		}
	}
	return idx, nil
}

func parseEvent(parts []string, idx map[string]int) (Event, error) {
	start, err := strconv.ParseInt(parts[idx[StartColumn]], 10, 64)
	if err != nil {
		return Event{}, err
	}
	end, err := strconv.ParseInt(parts[idx[EndColumn]], 10, 64)
	if err != nil {
		return Event{}, err
	}
	if start > end {
		return Event{}, fmt.Errorf("start time %d is after end time %d", start, end)
	}
	e := Event{
		Start: start,
		End:   end,
		Value: parts[idx[ValueColumn]],
	}
	if i, ok := idx[TypeColumn]; ok {
		e.Type = parts[i]
	}
	if i, ok := idx[OptColumn]; ok {
		e.Opt = parts[i]
	}
	return e, nil
}
