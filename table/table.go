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

// Package table assembles the resolved intervals into the output table and serializes it.
package table

import (
	gocsv "encoding/csv"
	"io"
	"math"
	"strconv"

	"github.com/powdroid/powdroid/config"
	"github.com/powdroid/powdroid/energy"
	"github.com/powdroid/powdroid/resolver"
)

// Row is one interval of the output table.
type Row struct {
	resolver.Row
	energy.Derived
}

// Table is the ordered list of interval rows and the column layout used to print them.
type Table struct {
	Rows []Row

	cfg   config.Config
	index map[string]int
}

// New returns a table of rows laid out as configured.
func New(cfg config.Config, rows []Row) *Table {
	t := &Table{
		Rows:  rows,
		cfg:   cfg,
		index: make(map[string]int, len(cfg.Metrics)),
	}
	for i, m := range cfg.Metrics {
		t.index[m.Name] = i
	}
	return t
}

// Columns returns the column layout.
func (t *Table) Columns() []config.Column {
	return t.cfg.Columns
}

// Header returns the column headers.
func (t *Table) Header() []string {
	h := make([]string, len(t.cfg.Columns))
	for i, c := range t.cfg.Columns {
		h[i] = c.Header
	}
	return h
}

// Value returns the resolved value of the named metric in r.
// Metrics that are not configured give the zero Value.
func (t *Table) Value(r Row, metric string) resolver.Value {
	if i, ok := t.index[metric]; ok && i < len(r.Values) {
		return r.Values[i]
	}
	return resolver.Value{}
}

// Voltage returns the resolved voltage of r, in mV.
func (t *Table) Voltage(r Row) resolver.Value {
	return t.Value(r, t.cfg.VoltageMetric)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// Cell returns the text of column c for r. Integer columns print as integers, floats
// with six decimals and booleans as true or false.
func (t *Table) Cell(r Row, c config.Column) string {
	switch c.Source {
	case config.StartTime:
		return strconv.FormatInt(r.Interval.Start, 10)
	case config.EndTime:
		return strconv.FormatInt(r.Interval.End, 10)
	case config.Duration:
		return strconv.FormatInt(r.Interval.Duration(), 10)
	case config.Current:
		return formatFloat(r.Current.Num)
	case config.Power:
		return formatFloat(r.PowerW)
	case config.ConsumedCharge:
		return formatFloat(r.ConsumedMAh)
	case config.Energy:
		return formatFloat(r.EnergyJ)
	}
	m, _ := t.cfg.Metric(c.Source)
	v := t.Value(r, c.Source)
	if m.Discipline == config.Numeric && c.Format == config.FormatInt {
		return strconv.FormatInt(int64(math.Round(v.Num)), 10)
	}
	return v.String(m.Discipline)
}

// Cells returns the text of every row, in column order, without the header.
func (t *Table) Cells() [][]string {
	out := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		line := make([]string, len(t.cfg.Columns))
		for j, c := range t.cfg.Columns {
			line[j] = t.Cell(r, c)
		}
		out[i] = line
	}
	return out
}

// WriteCSV writes the header and every row. Values containing separators are quoted.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := gocsv.NewWriter(w)
	if err := cw.Write(t.Header()); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Cells()); err != nil {
		return err
	}
	return cw.Error()
}
