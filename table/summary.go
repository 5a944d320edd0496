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

package table

import (
	"sort"

	"github.com/powdroid/powdroid/config"
	"github.com/powdroid/powdroid/energy"
)

// AppEnergy is the energy drawn while an app was in the foreground.
type AppEnergy struct {
	App        string  `json:"app"`
	DurationMs int64   `json:"duration_ms"`
	EnergyJ    float64 `json:"energy_j"`
}

// Summary holds session totals.
type Summary struct {
	Intervals int   `json:"intervals"`
	StartMs   int64 `json:"start_time"`
	EndMs     int64 `json:"end_time"`
	energy.Totals
	MeanPowerW float64 `json:"mean_power_w"`
	// Rows where the voltage or the current fell back to 0 for lack of a matching record.
	UnresolvedVoltage int `json:"unresolved_voltage"`
	UnresolvedCurrent int `json:"unresolved_current"`
	// EnergyByApp is sorted by decreasing energy.
	EnergyByApp []AppEnergy `json:"energy_by_app"`
}

// Summary computes the session totals of the table.
func (t *Table) Summary() Summary {
	s := Summary{Intervals: len(t.Rows)}
	if len(t.Rows) == 0 {
		return s
	}
	s.StartMs = t.Rows[0].Interval.Start
	s.EndMs = t.Rows[len(t.Rows)-1].Interval.End

	apps := make(map[string]*AppEnergy)
	for _, r := range t.Rows {
		s.Totals.Add(r.Interval.Duration(), r.Derived)
		if !t.Voltage(r).Resolved {
			s.UnresolvedVoltage++
		}
		if !r.Current.Resolved {
			s.UnresolvedCurrent++
		}
		app := t.Value(r, config.TopApp).Str
		a, ok := apps[app]
		if !ok {
			a = &AppEnergy{App: app}
			apps[app] = a
		}
		a.DurationMs += r.Interval.Duration()
		a.EnergyJ += r.EnergyJ
	}
	s.MeanPowerW = s.Totals.MeanPowerW()
	for _, a := range apps {
		s.EnergyByApp = append(s.EnergyByApp, *a)
	}
	sort.Slice(s.EnergyByApp, func(i, j int) bool {
		a, b := s.EnergyByApp[i], s.EnergyByApp[j]
		if a.EnergyJ != b.EnergyJ {
			return a.EnergyJ > b.EnergyJ
		}
		return a.App < b.App
	})
	return s
}
