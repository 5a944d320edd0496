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

// Package engine reconstructs the power and energy time series of a recording session
// from the per-metric event streams.
package engine

import (
	"io"
	"log"

	"github.com/powdroid/powdroid/config"
	"github.com/powdroid/powdroid/energy"
	"github.com/powdroid/powdroid/resolver"
	"github.com/powdroid/powdroid/store"
	"github.com/powdroid/powdroid/table"
	"github.com/powdroid/powdroid/timeline"
)

// Result is the outcome of a run over a window.
type Result struct {
	Window   timeline.Window
	Timeline timeline.Timeline
	Table    *table.Table
}

// NoData reports whether the window did not contain a single interval.
// The table is empty in that case.
func (r *Result) NoData() bool {
	return r.Timeline.Empty()
}

// Engine runs the timeline reconstruction for one configuration.
type Engine struct {
	cfg        config.Config
	voltageIdx int
}

// New returns an engine for cfg.
func New(cfg config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg}
	for i, m := range cfg.Metrics {
		if m.Name == cfg.VoltageMetric {
			e.voltageIdx = i
		}
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() config.Config {
	return e.cfg
}

// Run builds the output table of st over the closed window w.
// Open ends of w are first bound to the recording. A window that holds fewer than two
// stream boundaries gives an empty table, not an error.
func (e *Engine) Run(st *store.Store, w timeline.Window) (*Result, error) {
	w = w.Bound(st.Streams())
	res := &Result{
		Window:   w,
		Timeline: timeline.Build(st.Streams(), w),
	}
	if res.NoData() {
		log.Printf("no intervals in window [%d, %d]", w.Start, w.Stop)
		res.Table = table.New(e.cfg, nil)
		return res, nil
	}

	log.Printf("resolving %d intervals from %d events", res.Timeline.Len(), st.Events())
	resolved, err := resolver.New(e.cfg, st).Resolve(res.Timeline)
	if err != nil {
		return nil, err
	}
	rows := make([]table.Row, len(resolved))
	for i, r := range resolved {
		rows[i] = table.Row{
			Row:     r,
			Derived: energy.Compute(r.Interval.Duration(), r.Values[e.voltageIdx].Num, r.Current.Num),
		}
	}
	res.Table = table.New(e.cfg, rows)
	return res, nil
}

// RunCSV loads the flat event table from r and runs it over w.
// A malformed table gives a *store.MalformedInputError and no result.
func (e *Engine) RunCSV(r io.Reader, w timeline.Window) (*Result, error) {
	st, err := store.Load(e.cfg, r)
	if err != nil {
		return nil, err
	}
	return e.Run(st, w)
}
