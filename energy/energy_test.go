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

package energy

import (
	"math"
	"testing"
)

const tolerance = 1e-9

func TestCompute(t *testing.T) {
	tests := []struct {
		desc       string
		durationMs int64
		voltageMV  float64
		currentMA  float64
		want       Derived
	}{
		{
			desc:       "One hour at 4V and 500mA",
			durationMs: 3600000,
			voltageMV:  4000,
			currentMA:  500,
			want: Derived{
				DurationSec: 3600,
				DurationHr:  1,
				Volts:       4,
				Amps:        0.5,
				PowerW:      2,
				ConsumedMAh: 500,
				EnergyJ:     7200,
			},
		},
		{
			desc:       "Unresolved voltage",
			durationMs: 1000,
			currentMA:  36000,
			want: Derived{
				DurationSec: 1,
				DurationHr:  1.0 / 3600,
				Amps:        36,
				ConsumedMAh: 10,
			},
		},
		{
			desc:       "Unresolved current",
			durationMs: 1000,
			voltageMV:  4000,
			want: Derived{
				DurationSec: 1,
				DurationHr:  1.0 / 3600,
				Volts:       4,
			},
		},
		{
			desc:       "Zero length interval",
			durationMs: 0,
			voltageMV:  4000,
			currentMA:  100,
			want: Derived{
				Volts:  4,
				Amps:   0.1,
				PowerW: 0.4,
			},
		},
	}
	for _, test := range tests {
		got := Compute(test.durationMs, test.voltageMV, test.currentMA)
		for _, f := range []struct {
			name      string
			got, want float64
		}{
			{"DurationSec", got.DurationSec, test.want.DurationSec},
			{"DurationHr", got.DurationHr, test.want.DurationHr},
			{"Volts", got.Volts, test.want.Volts},
			{"Amps", got.Amps, test.want.Amps},
			{"PowerW", got.PowerW, test.want.PowerW},
			{"ConsumedMAh", got.ConsumedMAh, test.want.ConsumedMAh},
			{"EnergyJ", got.EnergyJ, test.want.EnergyJ},
		} {
			if math.Abs(f.got-f.want) > tolerance {
				t.Errorf("%v: Compute().%s = %v, want %v", test.desc, f.name, f.got, f.want)
			}
			if math.IsNaN(f.got) {
				t.Errorf("%v: Compute().%s is NaN", test.desc, f.name)
			}
		}
	}
}

func TestIdentities(t *testing.T) {
	for _, c := range []struct {
		durationMs int64
		mV, mA     float64
	}{
		{1, 3700, 120},
		{250, 4350, -80},
		{86400000, 3900.5, 1234.25},
	} {
		d := Compute(c.durationMs, c.mV, c.mA)
		if want := c.mV * c.mA / 1e6; math.Abs(d.PowerW-want) > tolerance*math.Max(1, math.Abs(want)) {
			t.Errorf("Compute(%d, %v, %v).PowerW = %v, want %v", c.durationMs, c.mV, c.mA, d.PowerW, want)
		}
		if want := d.PowerW * float64(c.durationMs) / 1000; math.Abs(d.EnergyJ-want) > tolerance*math.Max(1, math.Abs(want)) {
			t.Errorf("Compute(%d, %v, %v).EnergyJ = %v, want %v", c.durationMs, c.mV, c.mA, d.EnergyJ, want)
		}
		if want := c.mA * float64(c.durationMs) / 3600000; math.Abs(d.ConsumedMAh-want) > tolerance*math.Max(1, math.Abs(want)) {
			t.Errorf("Compute(%d, %v, %v).ConsumedMAh = %v, want %v", c.durationMs, c.mV, c.mA, d.ConsumedMAh, want)
		}
	}
}

func TestTotals(t *testing.T) {
	var tot Totals
	if got := tot.MeanPowerW(); got != 0 {
		t.Errorf("empty Totals.MeanPowerW() = %v, want 0", got)
	}
	tot.Add(3600000, Compute(3600000, 4000, 500))
	tot.Add(1800000, Compute(1800000, 4000, 1000))
	if math.Abs(tot.EnergyJ-14400) > tolerance {
		t.Errorf("Totals.EnergyJ = %v, want 14400", tot.EnergyJ)
	}
	if math.Abs(tot.ConsumedMAh-1000) > tolerance {
		t.Errorf("Totals.ConsumedMAh = %v, want 1000", tot.ConsumedMAh)
	}
	if got, want := tot.MeanPowerW(), 14400.0/5400; math.Abs(got-want) > tolerance {
		t.Errorf("Totals.MeanPowerW() = %v, want %v", got, want)
	}
}
