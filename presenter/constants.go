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

package presenter

// Mean power bands of a session, in watts. A phone idling with the screen off sits
// well under the low band; video playback or navigation lands above the high one.
const (
	lowPowerW  = 0.5
	highPowerW = 2.0
)

// Levels of a session's mean power, used to colour the summary.
const (
	levelLow    = "Low"
	levelMedium = "Medium"
	levelHigh   = "High"
)

// Chart views offered by the report.
const (
	viewEnergy     = "energy"
	viewCumulative = "cumulativeEnergy"
)

const (
	// DefaultPercentage is the share of chart points shown when the report opens.
	DefaultPercentage = 100
	// minPercentage is the smallest share of points the chart control allows.
	minPercentage = 10

	// labelLayout is how interval start times are printed on the chart axis.
	labelLayout = "2006-01-02 15:04:05"
)

func powerLevel(w float64) string {
	switch {
	case w >= highPowerW:
		return levelHigh
	case w >= lowPowerW:
		return levelMedium
	default:
		return levelLow
	}
}
