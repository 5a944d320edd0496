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

// Package presenter contains the logic to create data structures for
// HTML presentation of a session's energy analysis.
package presenter

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/powdroid/powdroid/bugreportutils"
	"github.com/powdroid/powdroid/build"
	"github.com/powdroid/powdroid/engine"
	"github.com/powdroid/powdroid/historianutils"
	"github.com/powdroid/powdroid/table"
)

//go:embed templates/*.html
var templates embed.FS

var reportTempl = template.Must(template.New("report.html").Funcs(template.FuncMap{
	"joules":   func(v float64) string { return humanize.SIWithDigits(v, 2, "J") },
	"watts":    func(v float64) string { return humanize.SIWithDigits(v, 2, "W") },
	"mah":      func(v float64) string { return humanize.FormatFloat("#,###.##", v) + " mAh" },
	"duration": durationMs,
}).ParseFS(templates, "templates/report.html"))

type mFloat64 struct {
	V float64
	L string // Low, Medium, High
}

// Chart holds the series plotted by the report. Labels, Energy and Cumulative cover every
// interval; Points and Values are the reduced series shown when the report opens.
type Chart struct {
	Labels     []string
	Energy     []float64
	Cumulative []float64

	Percentage int
	Points     []string
	Values     []float64
}

// HTMLData is the main structure passed to the report template.
type HTMLData struct {
	Filename    string
	DeviceModel string
	SDKVersion  int
	Build       string
	Window      string
	NoData      bool

	Header []string
	Rows   [][]string

	Chart     Chart
	Summary   table.Summary
	MeanPower mFloat64

	Warning string
	Error   string
}

// Options tune how a result is presented.
type Options struct {
	// Filename is the name of the analyzed file, shown in the report title.
	Filename string
	// Location is the time zone of the chart labels. UTC when nil.
	Location *time.Location
	// Meta describes the recorded device, when known.
	Meta *bugreportutils.MetaInfo
	// Percentage is the share of chart points initially shown, in (0, 100].
	Percentage int
	Warnings   []string
	Errs       []error
}

// Data builds the report of a run.
func Data(res *engine.Result, opts Options) HTMLData {
	loc := opts.Location
	if loc == nil && opts.Meta != nil {
		loc = opts.Meta.Location
	}
	d := HTMLData{
		Filename: opts.Filename,
		Window:   fmt.Sprintf("%s to %s", Label(res.Window.Start, loc), Label(res.Window.Stop, loc)),
		NoData:   res.NoData(),
		Header:   res.Table.Header(),
		Rows:     res.Table.Cells(),
		Summary:  res.Table.Summary(),
		Error:    historianutils.ErrorsToString(opts.Errs),
	}
	if opts.Meta != nil {
		d.DeviceModel = opts.Meta.ModelName
		d.SDKVersion = opts.Meta.SdkVersion
		if opts.Meta.BuildFingerprint != "" {
			d.Build = build.Parse(opts.Meta.BuildFingerprint).String()
		}
	}
	for i, w := range opts.Warnings {
		if i > 0 {
			d.Warning += "\n"
		}
		d.Warning += w
	}
	d.MeanPower = mFloat64{V: d.Summary.MeanPowerW, L: powerLevel(d.Summary.MeanPowerW)}

	c := Chart{
		Labels: make([]string, len(res.Table.Rows)),
		Energy: make([]float64, len(res.Table.Rows)),
	}
	for i, r := range res.Table.Rows {
		c.Labels[i] = Label(r.Interval.Start, loc)
		c.Energy[i] = r.EnergyJ
	}
	c.Cumulative = Cumulative(c.Energy)
	c.Percentage = clampPercentage(opts.Percentage)
	c.Points, c.Values = Reduce(c.Labels, c.Energy, c.Percentage)
	d.Chart = c
	return d
}

// EnergyView is the chart view plotting the energy of each interval.
func (HTMLData) EnergyView() string { return viewEnergy }

// CumulativeView is the chart view plotting the energy drawn since the window start.
func (HTMLData) CumulativeView() string { return viewCumulative }

// Render writes the HTML report.
func Render(w io.Writer, d HTMLData) error {
	return reportTempl.Execute(w, d)
}

// Label prints a Unix millisecond timestamp in loc, followed by its GMT offset,
// e.g. "2024-05-01 14:00:00 (GMT+2)".
func Label(ms int64, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	t := time.UnixMilli(ms).In(loc)
	_, off := t.Zone()
	sign := "+"
	if off < 0 {
		sign = "-"
		off = -off
	}
	zone := fmt.Sprintf("GMT%s%d", sign, off/3600)
	if m := off % 3600 / 60; m != 0 {
		zone += fmt.Sprintf(":%02d", m)
	}
	return fmt.Sprintf("%s (%s)", t.Format(labelLayout), zone)
}

// Reduce keeps percentage% of the points of a series. The series is cut in equal
// chunks; each chunk is labelled by its first point and valued by the mean of its
// non-negative values, or 0 when it has none.
func Reduce(labels []string, values []float64, percentage int) ([]string, []float64) {
	n := len(labels)
	if len(values) < n {
		n = len(values)
	}
	if n == 0 {
		return []string{}, []float64{}
	}
	percentage = clampPercentage(percentage)
	num := n * percentage / 100
	if num < 1 {
		num = 1
	}
	step := float64(n) / float64(num)
	outLabels := make([]string, num)
	outValues := make([]float64, num)
	for i := 0; i < num; i++ {
		start := int(float64(i) * step)
		end := int(float64(i+1) * step)
		if end > n {
			end = n
		}
		outLabels[i] = labels[start]
		var sum float64
		var count int
		for _, v := range values[start:end] {
			if v >= 0 {
				sum += v
				count++
			}
		}
		if count > 0 {
			outValues[i] = sum / float64(count)
		}
	}
	return outLabels, outValues
}

// Cumulative returns the running sum of values.
func Cumulative(values []float64) []float64 {
	out := make([]float64, len(values))
	var acc float64
	for i, v := range values {
		acc += v
		out[i] = acc
	}
	return out
}

func clampPercentage(p int) int {
	switch {
	case p <= 0 || p > 100:
		return DefaultPercentage
	case p < minPercentage:
		return minPercentage
	}
	return p
}

func durationMs(ms int64) string {
	return historianutils.FormatDuration(time.Duration(ms) * time.Millisecond)
}
