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

// Package config holds the energy engine configuration: the metrics read from the event
// table, how each one is resolved over an interval, and the layout of the output table.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Discipline is the lookup applied to a metric stream for each interval.
type Discipline string

const (
	// Numeric metrics resolve to the float value of the first containing record, 0 otherwise.
	Numeric Discipline = "numeric"
	// Categorical metrics resolve to the raw value of the first containing record, "" otherwise.
	Categorical Discipline = "categorical"
	// Presence metrics resolve to whether any record contains the interval.
	Presence Discipline = "presence"
)

// Metric names written by the battery history parser.
const (
	Voltage           = "Voltage"
	CoulombCharge     = "Coulomb charge"
	Screen            = "Screen"
	GPS               = "GPS"
	Camera            = "Camera"
	Audio             = "Audio"
	Video             = "Video"
	MobileRadioActive = "Mobile radio active"
	WifiOn            = "Wifi on"
	WifiRadio         = "Wifi radio"
	TopApp            = "Top app"
	WakelockIn        = "Wakelock_in"
)

// Sources of the output columns that do not come from a metric stream.
const (
	StartTime      = "start_time"
	EndTime        = "end_time"
	Duration       = "duration"
	Current        = "current"
	Power          = "power"
	ConsumedCharge = "consumed_charge"
	Energy         = "energy"
)

var derivedSources = map[string]bool{
	StartTime:      true,
	EndTime:        true,
	Duration:       true,
	Current:        true,
	Power:          true,
	ConsumedCharge: true,
	Energy:         true,
}

// IsDerived reports whether source names a computed column rather than a metric.
func IsDerived(source string) bool {
	return derivedSources[source]
}

// Metric is a named event stream and its lookup discipline.
type Metric struct {
	Name       string     `yaml:"name"`
	Discipline Discipline `yaml:"discipline"`
}

// Number formats of numeric columns.
const (
	FormatFloat = "float"
	FormatInt   = "int"
)

// Column is one column of the output table.
type Column struct {
	Header string `yaml:"header"`
	// Source is a metric name or one of the derived sources.
	Source string `yaml:"source"`
	// Format applies to numeric metric columns. Empty means FormatFloat.
	Format string `yaml:"format,omitempty"`
}

// Config is the engine configuration.
type Config struct {
	Metrics []Metric `yaml:"metrics"`
	Columns []Column `yaml:"columns"`
	// VoltageMetric and ChargeMetric feed the derived power and current.
	VoltageMetric string `yaml:"voltage_metric"`
	ChargeMetric  string `yaml:"charge_metric"`
	// Workers bounds the interval resolution fan-out. Zero means GOMAXPROCS.
	Workers int `yaml:"workers"`
}

// Default returns the PowDroid metric set and column layout.
func Default() Config {
	return Config{
		Metrics: []Metric{
			{Voltage, Numeric},
			{Screen, Presence},
			{GPS, Presence},
			{Camera, Presence},
			{Audio, Presence},
			{MobileRadioActive, Presence},
			{CoulombCharge, Numeric},
			{TopApp, Categorical},
			{WifiOn, Presence},
			{WifiRadio, Presence},
			{Video, Presence},
			{WakelockIn, Categorical},
		},
		Columns: []Column{
			{Header: "start_time", Source: StartTime},
			{Header: "end_time", Source: EndTime},
			{Header: "Duration (mS)", Source: Duration},
			{Header: "Voltage (mV)", Source: Voltage, Format: FormatInt},
			{Header: "Remaining_charge (mAh)", Source: CoulombCharge, Format: FormatInt},
			{Header: "Intensity (mA)", Source: Current},
			{Header: "Power (W)", Source: Power},
			{Header: "Consumed charge(mAh)", Source: ConsumedCharge},
			{Header: "Energy (J)", Source: Energy},
			{Header: "Top app", Source: TopApp},
			{Header: "Screen(ON/OFF)", Source: Screen},
			{Header: "GPS(ON/OFF)", Source: GPS},
			{Header: "Mobile_Radio(ON/OFF)", Source: MobileRadioActive},
			{Header: "WiFi(ON/OFF)", Source: WifiOn},
			{Header: "Wifi radio", Source: WifiRadio},
			{Header: "Camera(ON/OFF)", Source: Camera},
			{Header: "Video (ON/OFF)", Source: Video},
			{Header: "Audio(ON/OFF)", Source: Audio},
			{Header: "Wakelock_in (Service)", Source: WakelockIn},
		},
		VoltageMetric: Voltage,
		ChargeMetric:  CoulombCharge,
	}
}

// Load reads a YAML configuration file. Fields missing from the file keep their default value.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %v", path, err)
	}
	return cfg, cfg.Validate()
}

// Metric returns the configured metric with the given name.
func (c Config) Metric(name string) (Metric, bool) {
	for _, m := range c.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return Metric{}, false
}

// MetricNames returns the configured metric names in configuration order.
func (c Config) MetricNames() []string {
	names := make([]string, len(c.Metrics))
	for i, m := range c.Metrics {
		names[i] = m.Name
	}
	return names
}

// WorkerCount returns the number of resolver workers to run.
func (c Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Validate checks that the configuration is self-consistent.
func (c Config) Validate() error {
	if len(c.Metrics) == 0 {
		return errors.New("no metrics configured")
	}
	seen := make(map[string]bool)
	for _, m := range c.Metrics {
		if m.Name == "" {
			return errors.New("metric with empty name")
		}
		if seen[m.Name] {
			return fmt.Errorf("duplicate metric %q", m.Name)
		}
		if IsDerived(m.Name) {
			return fmt.Errorf("metric %q shadows a derived column source", m.Name)
		}
		seen[m.Name] = true
		switch m.Discipline {
		case Numeric, Categorical, Presence:
		default:
			return fmt.Errorf("unknown discipline %q for metric %q", m.Discipline, m.Name)
		}
	}
	for _, role := range []struct{ desc, name string }{{"voltage", c.VoltageMetric}, {"charge", c.ChargeMetric}} {
		m, ok := c.Metric(role.name)
		if !ok {
			return fmt.Errorf("%s metric %q is not configured", role.desc, role.name)
		}
		if m.Discipline != Numeric {
			return fmt.Errorf("%s metric %q must be numeric, is %s", role.desc, role.name, m.Discipline)
		}
	}
	if len(c.Columns) == 0 {
		return errors.New("no output columns configured")
	}
	headers := make(map[string]bool)
	for _, col := range c.Columns {
		if col.Header == "" {
			return fmt.Errorf("column for %q has an empty header", col.Source)
		}
		if headers[col.Header] {
			return fmt.Errorf("duplicate column header %q", col.Header)
		}
		headers[col.Header] = true
		if !IsDerived(col.Source) && !seen[col.Source] {
			return fmt.Errorf("column %q references unknown metric %q", col.Header, col.Source)
		}
		switch col.Format {
		case "", FormatFloat, FormatInt:
		default:
			return fmt.Errorf("unknown format %q for column %q", col.Format, col.Header)
		}
	}
	if c.Workers < 0 {
		return fmt.Errorf("negative worker count %d", c.Workers)
	}
	return nil
}
