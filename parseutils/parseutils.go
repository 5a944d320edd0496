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

// Package parseutils contains the state machine logic to convert a checkin battery history
// into the flat event table read by the energy engine.
package parseutils

import (
	"errors"
	"fmt"
	"io"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/powdroid/powdroid/config"
	"github.com/powdroid/powdroid/csv"
	"github.com/powdroid/powdroid/historianutils"
)

// These constants should be kept consistent with BatteryStats.java.
const (
	BatteryStatsCheckinVersion = "9"
	HistoryStringPool          = "hsp"
	HistoryData                = "h"
)

var (
	// ResetRE is a regular expression to match RESET event.
	ResetRE = regexp.MustCompile("^" + BatteryStatsCheckinVersion + "," + HistoryData + "," +
		"(?P<timeDelta>\\d+)" + ":RESET:TIME:(?P<timeStamp>\\d+)")

	// ShutdownRE is a regular expression to match SHUTDOWN event.
	ShutdownRE = regexp.MustCompile("^" + BatteryStatsCheckinVersion + "," + HistoryData + "," +
		"(?P<timeDelta>\\d+)" + ":SHUTDOWN")

	// StartRE is a regular expression to match START event.
	StartRE = regexp.MustCompile("^" + BatteryStatsCheckinVersion + "," + HistoryData + "," +
		"(?P<timeDelta>\\d+):" + "START")

	// TimeRE is a regular expression to match TIME event.
	TimeRE = regexp.MustCompile("^" + BatteryStatsCheckinVersion + "," + HistoryData + "," +
		"(?P<timeDelta>\\d+)" + ":TIME:(?P<timeStamp>\\d+)")

	// GenericHistoryLineRE is a regular expression to match any of the history lines.
	GenericHistoryLineRE = regexp.MustCompile("^" + BatteryStatsCheckinVersion + "," +
		HistoryData + "," + "(?P<timeDelta>\\d+).+")

	// GenericHistoryStringPoolLineRE is a regular expression to match any of the history string pool lines.
	GenericHistoryStringPoolLineRE = regexp.MustCompile("^" + BatteryStatsCheckinVersion + "," +
		HistoryStringPool + "," + "(?P<index>\\d+),(?P<uid>-?\\d+),(?P<service>.+)")

	// VersionLineRE is a regular expression to match the vers statement in the history log.
	VersionLineRE = regexp.MustCompile("^" + BatteryStatsCheckinVersion + `,\d+,i,vers,\d+,\d+,.*`)

	// DataRE is a regular expression to match the data event log.
	DataRE = regexp.MustCompile("(?P<transition>[+-]?)" + "(?P<key>\\w+)" + "(,?(=?(?P<value>\\S+))?)")

	// OverflowRE is a regular expression that matches OVERFLOW event.
	OverflowRE = regexp.MustCompile("^" + BatteryStatsCheckinVersion + "," + HistoryData + "," +
		"\\d+:\\*OVERFLOW\\*")

	nextRE = regexp.MustCompile(`^NEXT: (\d+)`)

	// Boolean history keys and the metric they are written as.
	boolKeys = map[string]string{
		"S":  config.Screen,
		"g":  config.GPS,
		"ca": config.Camera,
		"a":  config.Audio,
		"v":  config.Video,
		"Pr": config.MobileRadioActive,
		"W":  config.WifiOn,
		"Wr": config.WifiRadio,
	}

	// Keys that older devices print without a separator before "w=".
	missingSeparators = []string{"Wsw=", "Ww=", "Wlw=", "Wmw=", "sw=", "Sw=", "rw=", "Prw=", "Pclw=", "BPw=", "gw="}
)

// ServiceUID contains the identifying service for battery operations.
type ServiceUID struct {
	Start int64
	// We are treating UIDs as strings
	Service, UID string
}

// Counts on negative transitions. An entity with no transition was already active when the
// history started, as was one whose first transition is negative.
func (s *ServiceUID) assign(curTime, startTime int64, active map[string]*ServiceUID, tr, idx, desc string, csv *csv.State) error {
	cur, alreadyActive := active[idx]
	switch tr {
	case "", "+":
		if alreadyActive {
			if tr == "+" {
				return fmt.Errorf("two positive transitions seen for %q", desc)
			}
			return nil
		}
		s.Start = curTime
		if tr == "" {
			s.Start = startTime
		}
		active[idx] = s
		csv.AddEntryWithOpt(desc, s, s.Start, s.UID)

	case "-":
		if alreadyActive {
			s = cur
		} else {
			s.Start = startTime
			csv.AddEntryWithOpt(desc, s, s.Start, s.UID)
		}
		csv.AddEntryWithOpt(desc, s, curTime, s.UID)
		delete(active, idx)

	default:
		return fmt.Errorf("unknown transition for %q:%q", desc, tr)
	}
	return nil
}

// GetStartTime returns the start time of the entry.
func (s *ServiceUID) GetStartTime() int64 {
	return s.Start
}

// GetType returns the type of the entry.
func (s *ServiceUID) GetType() string {
	return "service"
}

// GetValue returns the stored service for the entry.
func (s *ServiceUID) GetValue() string {
	return s.Service
}

// GetKey returns the unique identifier for the entry.
// UIDs can have multiple service names, however we want each
// service name to have it's own csv entry.
func (s *ServiceUID) GetKey(desc string) csv.Key {
	return csv.Key{Metric: desc, Identifier: s.Service}
}

// tsInt contains an integer state with initial timestamp in ms.
type tsInt struct {
	Start int64
	Value int
}

// assign closes the running entry and opens one with the new value.
func (s *tsInt) assign(curTime int64, value, desc string, csv *csv.State) error {
	parsedInt, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parsing int error for %q", desc)
	}
	csv.AddEntry(desc, s, curTime)
	s.Value = parsedInt
	s.Start = curTime
	csv.AddEntry(desc, s, curTime)
	return nil
}

// GetStartTime returns the start time of the entry.
func (s *tsInt) GetStartTime() int64 {
	return s.Start
}

// GetType returns the type of the entry.
func (s *tsInt) GetType() string {
	return "int"
}

// GetValue returns the stored value for the entry.
func (s *tsInt) GetValue() string {
	return strconv.Itoa(s.Value)
}

// GetKey returns the unique identifier for the entry.
func (s *tsInt) GetKey(desc string) csv.Key {
	return csv.Key{Metric: desc}
}

// tsBool contains a bool state with initial timestamp in ms.
type tsBool struct {
	Start int64
	Value bool
	// seen is set once a transition was read for this state.
	seen bool
}

func (s *tsBool) assign(curTime, startTime int64, tr, desc string, csv *csv.State) error {
	var isOn bool
	switch tr {
	case "+":
		isOn = true
	case "-":
		if !s.Value {
			if s.seen {
				return fmt.Errorf("two negative transitions for %q:%q", desc, tr)
			}
			// First negative transition for an event that was in progress at start.
			s.Value = true
			s.Start = startTime
			csv.AddEntry(desc, s, s.Start)
		}
	default:
		return fmt.Errorf("unknown transition for %q:%q", desc, tr)
	}
	s.seen = true

	switch {
	case !isOn && s.Value:
		s.Value = false
		csv.AddEntry(desc, s, curTime)
	case isOn && !s.Value:
		s.Value = true
		s.Start = curTime
		csv.AddEntry(desc, s, curTime)
	}
	return nil
}

// GetStartTime returns the start time of the entry.
func (s *tsBool) GetStartTime() int64 {
	return s.Start
}

// GetType returns the type of the entry.
func (s *tsBool) GetType() string {
	return "bool"
}

// GetValue returns the stored value for the entry.
func (s *tsBool) GetValue() string {
	if s.Value {
		return "true"
	}
	return "false"
}

// GetKey returns the unique identifier for the entry.
func (s *tsBool) GetKey(desc string) csv.Key {
	return csv.Key{Metric: desc}
}

// DeviceState maintains the instantaneous state of the device created using battery history events.
type DeviceState struct {
	CurrentTime int64
	// StartTime is the time of the last RESET or TIME statement that began a history section.
	StartTime int64

	Voltage       tsInt
	CoulombCharge tsInt

	Bools map[string]*tsBool

	TopApps   map[string]*ServiceUID
	WakeLocks map[string]*ServiceUID
}

func newDeviceState(curTime int64) *DeviceState {
	s := &DeviceState{
		CurrentTime: curTime,
		StartTime:   curTime,
		Bools:       make(map[string]*tsBool),
		TopApps:     make(map[string]*ServiceUID),
		WakeLocks:   make(map[string]*ServiceUID),
	}
	for k := range boolKeys {
		s.Bools[k] = &tsBool{}
	}
	return s
}

// updateState applies a single key of a history line to the device state.
// Keys that do not map to an event table metric are ignored.
func updateState(csv *csv.State, state *DeviceState, idxMap map[string]ServiceUID, tr, key, value string) error {
	if desc, ok := boolKeys[key]; ok {
		if tr == "" {
			// Value form of the key, e.g. the wifi radio signal on some builds.
			return nil
		}
		return state.Bools[key].assign(state.CurrentTime, state.StartTime, tr, desc, csv)
	}

	switch key {
	case "Bv": // volt
		return state.Voltage.assign(state.CurrentTime, value, config.Voltage, csv)

	case "Bcc": // charge counter, in mAh
		return state.CoulombCharge.assign(state.CurrentTime, value, config.CoulombCharge, csv)

	case "Etp": // top
		serviceUID, ok := idxMap[value]
		if !ok {
			return fmt.Errorf("unable to find index %q in idxMap for top app", value)
		}
		return serviceUID.assign(state.CurrentTime, state.StartTime, state.TopApps, tr, value, config.TopApp, csv)

	case "Ewl": // wakelock_in
		serviceUID, ok := idxMap[value]
		if !ok {
			return fmt.Errorf("unable to find index %q in idxMap for wakelock_in", value)
		}
		return serviceUID.assign(state.CurrentTime, state.StartTime, state.WakeLocks, tr, value, config.WakelockIn, csv)
	}
	return nil
}

func parseTime(result map[string]string, name, line string) (int64, error) {
	v, err := strconv.ParseInt(result[name], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("int parsing error for %s in line: %s", name, line)
	}
	return v, nil
}

func analyzeData(csv *csv.State, state *DeviceState, idxMap map[string]ServiceUID, line string) (*DeviceState, error) {
	/*
		9,h,60012:START
		9,h,0:RESET:TIME:1400165448955
		9,h,0:TIME:1398116676025
		9,h,15954,+r,+w=37,+Wl,+Ws,Wr=28
	*/
	if matches, result := historianutils.SubexpNames(ResetRE, line); matches {
		ts, err := parseTime(result, "timeStamp", line)
		if err != nil {
			return state, err
		}
		// Start from scratch. The history string pool is still valid as we just read it.
		csv.PrintAllReset(state.CurrentTime)
		return newDeviceState(ts), nil
	}

	if matches, result := historianutils.SubexpNames(ShutdownRE, line); matches {
		// There should be a START statement immediately following this, so it would be
		// redundant to save the state here.
		d, err := parseTime(result, "timeDelta", line)
		if err != nil {
			return state, err
		}
		state.CurrentTime += d
		return state, nil
	}

	// No need to increment the time as a TIME statement follows just after START.
	if StartRE.MatchString(line) {
		csv.PrintAllReset(state.CurrentTime)
		next := newDeviceState(state.CurrentTime)
		next.StartTime = 0
		return next, nil
	}

	if matches, result := historianutils.SubexpNames(TimeRE, line); matches {
		ts, err := parseTime(result, "timeStamp", line)
		if err != nil {
			return state, err
		}
		if state.StartTime == 0 {
			state.StartTime = ts
		}
		state.CurrentTime = ts
		return state, nil
	}

	parts := strings.Split(line, ",")
	if len(parts) < 3 {
		return state, errors.New("unknown format: " + line)
	}
	d, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return state, errors.New("int parsing error for timestamp in line: " + line)
	}
	state.CurrentTime += d

	var errs []string
	for _, part := range sanitizeInput(parts[3:]) {
		if matches, result := historianutils.SubexpNames(DataRE, part); matches {
			if err := updateState(csv, state, idxMap, result["transition"], result["key"], result["value"]); err != nil {
				errs = append(errs, fmt.Sprintf("** Error in %s in %s : %v.", line, part, err))
			}
		}
	}
	if len(errs) > 0 {
		return state, errors.New(strings.Join(errs, " "))
	}
	return state, nil
}

// sanitizeInput converts comma separated parts array of a string with the batteryHistory bug
// of no separator before w=, to an array with correct number of parts from:
// +r,+w=27,Wr=28,+Esy=29,Pss=0w=105w=10,-Esy=30 =>
//
//	+r,+w=27,Wr=28,+Esy=29,Pss=0,w=105,w=10,-Esy=30
func sanitizeInput(inputs []string) []string {
	var outputs []string
	for _, part := range inputs {
		if strings.Count(part, "=") > 1 && strings.Contains(part, "w=") {
			outputs = append(outputs, strings.Split(strings.Replace(part, "w=", ",w=", -1), ",")...)
			continue
		}
		fixed := false
		for _, sep := range missingSeparators {
			if strings.Contains(part, sep) {
				k := strings.TrimSuffix(sep, "w=")
				outputs = append(outputs, strings.Split(strings.Replace(part, sep, k+",w=", -1), ",")...)
				fixed = true
				break
			}
		}
		if !fixed {
			outputs = append(outputs, part)
		}
	}
	return outputs
}

// analyzeHistoryLine takes a battery history event string and updates the device state.
func analyzeHistoryLine(csvState *csv.State, state *DeviceState, idxMap map[string]ServiceUID, line string, scrubPII bool) (*DeviceState, error) {
	if match, result := historianutils.SubexpNames(GenericHistoryStringPoolLineRE, line); match {
		service := strings.Trim(result["service"], `"`)
		if scrubPII {
			service = historianutils.ScrubPII(service)
		}
		idxMap[result["index"]] = ServiceUID{
			Service: service,
			UID:     result["uid"],
		}
		return state, nil
	}
	switch {
	case GenericHistoryLineRE.MatchString(line):
		return analyzeData(csvState, state, idxMap, line)
	case nextRE.MatchString(line):
		for k := range idxMap {
			delete(idxMap, k)
		}
		return state, nil
	case strings.HasPrefix(line, "7,h"):
		// Ignore old history versions.
		return state, nil
	case !VersionLineRE.MatchString(line):
		return state, errors.New("unknown line format: " + line)
	}
	return state, nil
}

// AnalysisReport contains fields that are created as a result of analyzing and parsing a history.
type AnalysisReport struct {
	TimestampsAltered bool
	// Overflowed is set if the history ended with an OVERFLOW statement.
	Overflowed bool
	// StartMs and EndMs span the events written to the event table.
	StartMs, EndMs int64
	IdxMap         map[string]ServiceUID
	Errs           []error
}

// AnalyzeHistory takes as input a complete checkin history log and writes the event table
// for the energy metrics to csvWriter, header included.
// It analyzes the log line by line (delimited by newline characters) and stops at the first OVERFLOW line.
func AnalyzeHistory(history string, csvWriter io.Writer, scrubPII bool) *AnalysisReport {
	// 9,hsp,0,10073,"com.google.android.volta"
	// 9,h,0:RESET:TIME:1422620451417
	h, c, err := fixTimeline(history)
	var errs []error
	if err != nil {
		errs = append(errs, err)
	}

	state := newDeviceState(0)
	idxMap := make(map[string]ServiceUID)
	csvState := csv.NewState(csvWriter, true)
	report := &AnalysisReport{
		TimestampsAltered: c,
		IdxMap:            idxMap,
	}

	for _, line := range h {
		if OverflowRE.MatchString(line) {
			// History is no longer useful.
			log.Printf("history overflowed at %q", line)
			report.Overflowed = true
			break
		}
		state, err = analyzeHistoryLine(csvState, state, idxMap, line, scrubPII)
		if err != nil && len(line) > 0 {
			errs = append(errs, err)
		}
		if state.StartTime > 0 && (report.StartMs == 0 || state.StartTime < report.StartMs) {
			report.StartMs = state.StartTime
		}
		if state.CurrentTime > report.EndMs {
			report.EndMs = state.CurrentTime
		}
	}
	csvState.PrintAllReset(state.CurrentTime)
	report.Errs = errs
	return report
}

// fixTimeline processes the given history, tries to fix the time statements in the
// history so that there is a consistent timeline, filters out lines that are not a
// part of the history log, and returns a slice of the fixed history, split by new
// lines, along with a boolean to indicate if the original history timestamps were
// modified. The last time statement in a history (between reboots) is taken as the most accurate.
func fixTimeline(h string) ([]string, bool, error) {
	var s []string
	for _, l := range strings.Split(h, "\n") {
		l = strings.TrimSpace(l)
		if GenericHistoryLineRE.MatchString(l) || GenericHistoryStringPoolLineRE.MatchString(l) || VersionLineRE.MatchString(l) {
			s = append(s, l)
		}
	}

	changed := false
	// Time at the beginning of the current line, before its delta is added.
	var time int64
	timeFound := false
	var result map[string]string

	for i := len(s) - 1; i >= 0; i-- {
		line := s[i]

		if !timeFound {
			if timeFound, result = historianutils.SubexpNames(TimeRE, line); !timeFound {
				timeFound, result = historianutils.SubexpNames(ResetRE, line)
			}
			if timeFound {
				t, err := strconv.ParseInt(result["timeStamp"], 10, 64)
				if err != nil {
					return nil, changed, err
				}
				d, err := strconv.ParseInt(result["timeDelta"], 10, 64)
				if err != nil {
					return nil, changed, err
				}
				time = t - d
			}
			continue
		}

		if StartRE.MatchString(line) || ShutdownRE.MatchString(line) || OverflowRE.MatchString(line) {
			// The time in use is not valid for statements before a reboot.
			timeFound = false
			continue
		}
		// For both 9,h,4051:TIME:1426513282239 and 9,h,0:RESET:TIME:1420714559370
		if sep := strings.Split(line, ":TIME:"); len(sep) == 2 {
			if time < 0 {
				return nil, false, errors.New("negative time calculated")
			}
			if fixed := fmt.Sprintf("%s:TIME:%d", sep[0], time); fixed != line {
				s[i] = fixed
				changed = true
			}
		}
		if match, result := historianutils.SubexpNames(GenericHistoryLineRE, line); match {
			d, err := strconv.ParseInt(result["timeDelta"], 10, 64)
			if err != nil {
				return nil, changed, err
			}
			time -= d
		}
	}
	return s, changed, nil
}
