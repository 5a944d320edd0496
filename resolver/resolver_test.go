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

package resolver

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/powdroid/powdroid/config"
	"github.com/powdroid/powdroid/csv"
	"github.com/powdroid/powdroid/store"
	"github.com/powdroid/powdroid/timeline"
)

func newStore(t *testing.T, cfg config.Config, events map[string][]csv.Event) *store.Store {
	t.Helper()
	s, err := store.New(cfg, events)
	if err != nil {
		t.Fatalf("store.New() returned unexpected error: %v", err)
	}
	return s
}

func TestPoint(t *testing.T) {
	s := newStore(t, config.Default(), map[string][]csv.Event{
		config.Voltage: {
			{Start: 0, End: 2000, Value: "4000"},
			{Start: 1000, End: 3000, Value: "3900"},
		},
		config.TopApp: {
			{Start: 0, End: 1000, Value: "com.example.app"},
		},
	})
	tests := []struct {
		desc   string
		metric string
		iv     timeline.Interval
		want   Value
	}{
		{
			desc:   "First containing record wins",
			metric: config.Voltage,
			iv:     timeline.Interval{Start: 1000, End: 2000},
			want:   Value{Num: 4000, Str: "4000", Present: true, Resolved: true},
		},
		{
			desc:   "Only the second record contains",
			metric: config.Voltage,
			iv:     timeline.Interval{Start: 2000, End: 3000},
			want:   Value{Num: 3900, Str: "3900", Present: true, Resolved: true},
		},
		{
			desc:   "Interval straddling two records",
			metric: config.TopApp,
			iv:     timeline.Interval{Start: 500, End: 1500},
		},
		{
			desc:   "Categorical value",
			metric: config.TopApp,
			iv:     timeline.Interval{Start: 0, End: 1000},
			want:   Value{Str: "com.example.app", Present: true, Resolved: true},
		},
		{
			desc:   "Empty stream",
			metric: config.WakelockIn,
			iv:     timeline.Interval{Start: 0, End: 1000},
		},
	}
	for _, test := range tests {
		got := Point(s.Stream(test.metric), test.iv)
		if diff := cmp.Diff(test.want, got); diff != "" {
			t.Errorf("%v: Point() mismatch (-want +got):\n%s", test.desc, diff)
		}
	}
}

func TestRate(t *testing.T) {
	tests := []struct {
		desc    string
		records []csv.Event
		iv      timeline.Interval
		want    float64
		wantOK  bool
	}{
		{
			desc: "Charge drop over the containing record",
			records: []csv.Event{
				{Start: 0, End: 1000, Value: "100"},
				{Start: 1000, End: 2000, Value: "90"},
			},
			iv:     timeline.Interval{Start: 0, End: 1000},
			want:   36000,
			wantOK: true,
		},
		{
			desc: "Last record has no successor",
			records: []csv.Event{
				{Start: 0, End: 1000, Value: "100"},
				{Start: 1000, End: 2000, Value: "90"},
			},
			iv: timeline.Interval{Start: 1000, End: 2000},
		},
		{
			desc: "Zero length record is skipped for the next containing one",
			records: []csv.Event{
				{Start: 500, End: 500, Value: "100"},
				{Start: 0, End: 3600000, Value: "99"},
				{Start: 3600000, End: 7200000, Value: "90"},
			},
			iv:     timeline.Interval{Start: 500, End: 500},
			want:   9,
			wantOK: true,
		},
		{
			desc: "Charge increase gives a negative current",
			records: []csv.Event{
				{Start: 0, End: 3600000, Value: "50"},
				{Start: 3600000, End: 7200000, Value: "60"},
			},
			iv:     timeline.Interval{Start: 0, End: 1800000},
			want:   -10,
			wantOK: true,
		},
		{
			desc: "No containing record",
			records: []csv.Event{
				{Start: 0, End: 1000, Value: "100"},
			},
			iv: timeline.Interval{Start: 2000, End: 3000},
		},
	}
	for _, test := range tests {
		s := newStore(t, config.Default(), map[string][]csv.Event{config.CoulombCharge: test.records})
		got := Rate(s.Stream(config.CoulombCharge), test.iv)
		if got.Resolved != test.wantOK {
			t.Errorf("%v: Rate() resolved = %v, want %v", test.desc, got.Resolved, test.wantOK)
		}
		if math.Abs(got.Num-test.want) > 1e-6 {
			t.Errorf("%v: Rate() = %f, want %f", test.desc, got.Num, test.want)
		}
	}
}

func TestPresence(t *testing.T) {
	s := newStore(t, config.Default(), map[string][]csv.Event{
		config.Screen: {
			{Start: 0, End: 1000, Value: "true"},
			{Start: 2000, End: 3000, Value: "true"},
		},
	})
	tests := []struct {
		iv   timeline.Interval
		want bool
	}{
		{timeline.Interval{Start: 0, End: 1000}, true},
		{timeline.Interval{Start: 2500, End: 3000}, true},
		{timeline.Interval{Start: 1000, End: 2000}, false},
		{timeline.Interval{Start: 500, End: 2500}, false},
	}
	for _, test := range tests {
		got := Presence(s.Stream(config.Screen), test.iv)
		if got.Present != test.want || got.Resolved != test.want {
			t.Errorf("Presence(%+v) = %+v, want present %v", test.iv, got, test.want)
		}
	}
}

func TestResolveMatchesSequential(t *testing.T) {
	var voltage, charge, screen []csv.Event
	for i := int64(0); i < 700; i++ {
		voltage = append(voltage, csv.Event{Start: i * 1000, End: (i + 1) * 1000, Value: "4000"})
		charge = append(charge, csv.Event{Start: i * 1500, End: (i + 1) * 1500, Value: "3000"})
		if i%3 == 0 {
			screen = append(screen, csv.Event{Start: i * 700, End: i*700 + 350, Value: "true"})
		}
	}
	cfg := config.Default()
	cfg.Workers = 4
	s := newStore(t, cfg, map[string][]csv.Event{
		config.Voltage:       voltage,
		config.CoulombCharge: charge,
		config.Screen:        screen,
	})
	tl := timeline.Build(s.Streams(), timeline.Window{Start: 0, Stop: 1 << 40})
	r := New(cfg, s)

	got, err := r.Resolve(tl)
	if err != nil {
		t.Fatalf("Resolve() returned unexpected error: %v", err)
	}
	if len(got) != tl.Len() {
		t.Fatalf("Resolve() returned %d rows, want %d", len(got), tl.Len())
	}
	cfg.Workers = 1
	want, err := New(cfg, s).Resolve(tl)
	if err != nil {
		t.Fatalf("sequential Resolve() returned unexpected error: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resolve() differs from sequential resolution (-want +got):\n%s", diff)
	}
}

func TestValueString(t *testing.T) {
	tests := []struct {
		v    Value
		d    config.Discipline
		want string
	}{
		{Value{Num: 3.5}, config.Numeric, "3.500000"},
		{Value{}, config.Numeric, "0.000000"},
		{Value{Str: "com.example.app"}, config.Categorical, "com.example.app"},
		{Value{Present: true}, config.Presence, "true"},
		{Value{}, config.Presence, "false"},
	}
	for _, test := range tests {
		if got := test.v.String(test.d); got != test.want {
			t.Errorf("%+v.String(%s) = %q, want %q", test.v, test.d, got, test.want)
		}
	}
}
