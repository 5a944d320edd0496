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

package store

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/powdroid/powdroid/config"
	"github.com/powdroid/powdroid/csv"
)

func TestLoad(t *testing.T) {
	input := strings.Join([]string{
		csv.FileHeader,
		"Voltage,int,1000,2000,4200,",
		"Screen,bool,1000,3000,true,",
		"Coulomb charge,int,1000,2000,3000,",
		"Voltage,int,2000,3000,4190,",
		"Brightness,int,1000,3000,4,",
		`Top app,service,1000,3000,"com.example,app",10123`,
	}, "\n")

	s, err := Load(config.Default(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	want := []Record{
		{Event: csv.Event{Type: "int", Start: 1000, End: 2000, Value: "4200"}, Num: 4200},
		{Event: csv.Event{Type: "int", Start: 2000, End: 3000, Value: "4190"}, Num: 4190},
	}
	if diff := cmp.Diff(want, s.Stream(config.Voltage).Records); diff != "" {
		t.Errorf("Load() voltage stream mismatch (-want +got):\n%s", diff)
	}
	if got := s.Stream(config.TopApp).Records[0].Value; got != "com.example,app" {
		t.Errorf("Load() top app value = %q, want %q", got, "com.example,app")
	}
	if got := s.Stream(config.GPS).Len(); got != 0 {
		t.Errorf("Load() GPS stream has %d records, want 0", got)
	}
	if got := s.Stream("Brightness").Len(); got != 0 {
		t.Errorf("Load() kept %d records of an unconfigured metric", got)
	}
	if got, want := len(s.Streams()), 12; got != want {
		t.Errorf("Streams() returned %d streams, want %d", got, want)
	}
	if got, want := s.Events(), 5; got != want {
		t.Errorf("Events() = %d, want %d", got, want)
	}
}

func TestLoadMalformed(t *testing.T) {
	tests := []struct {
		desc    string
		input   []string
		wantErr string
	}{
		{
			desc:    "Missing value column",
			input:   []string{"metric,type,start_time,end_time", "Voltage,int,1000,2000"},
			wantErr: `malformed event table: missing column "value" in header [metric type start_time end_time]`,
		},
		{
			desc:    "Wrong field count",
			input:   []string{csv.FileHeader, "Voltage,int,1000,2000,4200"},
			wantErr: "malformed event table: record 1: non matching [Voltage int 1000 2000 4200], len was 5",
		},
		{
			desc:    "Start after end",
			input:   []string{csv.FileHeader, "Voltage,int,3000,2000,4200,", "Voltage,int,abc,2000,4200,"},
			wantErr: "malformed event table: record 1: start time 3000 is after end time 2000 (and 1 more errors)",
		},
		{
			desc:    "Non numeric voltage",
			input:   []string{csv.FileHeader, "Voltage,int,1000,2000,high,"},
			wantErr: `malformed event table: Voltage event 0: invalid numeric value "high"`,
		},
		{
			desc:    "NaN voltage",
			input:   []string{csv.FileHeader, "Voltage,int,0,1000,NaN,"},
			wantErr: `malformed event table: Voltage event 0: invalid numeric value "NaN"`,
		},
		{
			desc:    "Infinite charge",
			input:   []string{csv.FileHeader, "Coulomb charge,int,0,1000,100,", "Coulomb charge,int,1000,2000,-Inf,"},
			wantErr: `malformed event table: Coulomb charge event 1: invalid numeric value "-Inf"`,
		},
		{
			desc:    "Infinity spelled out",
			input:   []string{csv.FileHeader, "Voltage,int,0,1000,Infinity,"},
			wantErr: `malformed event table: Voltage event 0: invalid numeric value "Infinity"`,
		},
		{
			desc:    "Hexadecimal voltage",
			input:   []string{csv.FileHeader, "Voltage,int,0,1000,0x1p12,"},
			wantErr: `malformed event table: Voltage event 0: invalid numeric value "0x1p12"`,
		},
	}
	for _, test := range tests {
		_, err := Load(config.Default(), strings.NewReader(strings.Join(test.input, "\n")))
		var me *MalformedInputError
		if !errors.As(err, &me) {
			t.Errorf("%v: Load() error = %v, want a *MalformedInputError", test.desc, err)
			continue
		}
		if err.Error() != test.wantErr {
			t.Errorf("%v: Load() error = %q, want %q", test.desc, err.Error(), test.wantErr)
		}
	}
}

func TestNewMissingMetric(t *testing.T) {
	s, err := New(config.Default(), map[string][]csv.Event{
		config.Screen: {{Start: 0, End: 10, Value: "true"}},
	})
	if err != nil {
		t.Fatalf("New() returned unexpected error: %v", err)
	}
	if got := s.Stream(config.Voltage); got.Len() != 0 || got.Metric.Discipline != config.Numeric {
		t.Errorf("New() voltage stream = %+v, want an empty numeric stream", got)
	}
	if got := s.Stream(config.Screen).Len(); got != 1 {
		t.Errorf("New() screen stream has %d records, want 1", got)
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: "4200", want: 4200},
		{in: " -3.5 ", want: -3.5},
		{in: "1e3", want: 1000},
		{in: "NaN", wantErr: true},
		{in: "+Inf", wantErr: true},
		{in: "infinity", wantErr: true},
		{in: "1e400", wantErr: true},
		{in: "0x1p12", wantErr: true},
		{in: "1_000", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, test := range tests {
		got, err := parseNumber(test.in)
		if (err != nil) != test.wantErr {
			t.Errorf("parseNumber(%q) error = %v, want error %v", test.in, err, test.wantErr)
			continue
		}
		if got != test.want {
			t.Errorf("parseNumber(%q) = %v, want %v", test.in, got, test.want)
		}
	}
}
