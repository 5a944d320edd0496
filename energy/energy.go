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

// Package energy derives power, consumed charge and energy from the resolved voltage and current.
package energy

// Derived holds the values computed for one interval.
type Derived struct {
	DurationSec float64
	DurationHr  float64
	Volts       float64
	Amps        float64
	// PowerW is the mean power over the interval, in W.
	PowerW float64
	// ConsumedMAh is the charge drawn over the interval, in mAh.
	ConsumedMAh float64
	// EnergyJ is the energy drawn over the interval, in J.
	EnergyJ float64
}

// Compute derives the interval values from its duration in ms, voltage in mV and current in mA.
// Unresolved inputs are passed as 0 and give 0 power and energy.
func Compute(durationMs int64, voltageMV, currentMA float64) Derived {
	d := Derived{
		DurationSec: float64(durationMs) / 1000,
		Volts:       voltageMV / 1000,
		Amps:        currentMA / 1000,
	}
	d.DurationHr = d.DurationSec / 3600
	d.PowerW = d.Volts * d.Amps
	d.ConsumedMAh = currentMA * d.DurationHr
	d.EnergyJ = d.PowerW * d.DurationSec
	return d
}

// Totals accumulates derived values over many intervals.
type Totals struct {
	DurationMs  int64   `json:"duration_ms"`
	ConsumedMAh float64 `json:"consumed_charge_mah"`
	EnergyJ     float64 `json:"energy_j"`
}

// Add adds one interval to the totals.
func (t *Totals) Add(durationMs int64, d Derived) {
	t.DurationMs += durationMs
	t.ConsumedMAh += d.ConsumedMAh
	t.EnergyJ += d.EnergyJ
}

// MeanPowerW returns the energy divided by the total duration, 0 for an empty total.
func (t Totals) MeanPowerW() float64 {
	if t.DurationMs == 0 {
		return 0
	}
	return t.EnergyJ / (float64(t.DurationMs) / 1000)
}
