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
	"fmt"
	"io"

	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/powdroid/powdroid/config"
)

// Record is the fixed-schema form of a row used by the columnar export, the session
// archive and the JSON report. Metrics of the default configuration that are not
// configured are left at their zero value.
type Record struct {
	StartMs            int64   `parquet:"name=start_time, type=INT64" json:"start_time"`
	EndMs              int64   `parquet:"name=end_time, type=INT64" json:"end_time"`
	DurationMs         int64   `parquet:"name=duration_ms, type=INT64" json:"duration_ms"`
	VoltageMV          float64 `parquet:"name=voltage_mv, type=DOUBLE" json:"voltage_mv"`
	RemainingChargeMAh float64 `parquet:"name=remaining_charge_mah, type=DOUBLE" json:"remaining_charge_mah"`
	IntensityMA        float64 `parquet:"name=intensity_ma, type=DOUBLE" json:"intensity_ma"`
	PowerW             float64 `parquet:"name=power_w, type=DOUBLE" json:"power_w"`
	ConsumedMAh        float64 `parquet:"name=consumed_charge_mah, type=DOUBLE" json:"consumed_charge_mah"`
	EnergyJ            float64 `parquet:"name=energy_j, type=DOUBLE" json:"energy_j"`
	TopApp             string  `parquet:"name=top_app, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY" json:"top_app"`
	Screen             bool    `parquet:"name=screen, type=BOOLEAN" json:"screen"`
	GPS                bool    `parquet:"name=gps, type=BOOLEAN" json:"gps"`
	MobileRadio        bool    `parquet:"name=mobile_radio, type=BOOLEAN" json:"mobile_radio"`
	Wifi               bool    `parquet:"name=wifi, type=BOOLEAN" json:"wifi"`
	WifiRadio          bool    `parquet:"name=wifi_radio, type=BOOLEAN" json:"wifi_radio"`
	Camera             bool    `parquet:"name=camera, type=BOOLEAN" json:"camera"`
	Video              bool    `parquet:"name=video, type=BOOLEAN" json:"video"`
	Audio              bool    `parquet:"name=audio, type=BOOLEAN" json:"audio"`
	WakelockIn         string  `parquet:"name=wakelock_in, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY" json:"wakelock_in"`
	VoltageResolved    bool    `parquet:"name=voltage_resolved, type=BOOLEAN" json:"voltage_resolved"`
	CurrentResolved    bool    `parquet:"name=current_resolved, type=BOOLEAN" json:"current_resolved"`
}

// Record returns the fixed-schema form of r.
func (t *Table) Record(r Row) Record {
	v := t.Voltage(r)
	return Record{
		StartMs:            r.Interval.Start,
		EndMs:              r.Interval.End,
		DurationMs:         r.Interval.Duration(),
		VoltageMV:          v.Num,
		RemainingChargeMAh: t.Value(r, t.cfg.ChargeMetric).Num,
		IntensityMA:        r.Current.Num,
		PowerW:             r.PowerW,
		ConsumedMAh:        r.ConsumedMAh,
		EnergyJ:            r.EnergyJ,
		TopApp:             t.Value(r, config.TopApp).Str,
		Screen:             t.Value(r, config.Screen).Present,
		GPS:                t.Value(r, config.GPS).Present,
		MobileRadio:        t.Value(r, config.MobileRadioActive).Present,
		Wifi:               t.Value(r, config.WifiOn).Present,
		WifiRadio:          t.Value(r, config.WifiRadio).Present,
		Camera:             t.Value(r, config.Camera).Present,
		Video:              t.Value(r, config.Video).Present,
		Audio:              t.Value(r, config.Audio).Present,
		WakelockIn:         t.Value(r, config.WakelockIn).Str,
		VoltageResolved:    v.Resolved,
		CurrentResolved:    r.Current.Resolved,
	}
}

// Records returns the fixed-schema form of every row.
func (t *Table) Records() []Record {
	out := make([]Record, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = t.Record(r)
	}
	return out
}

func (t *Table) writeParquet(fw source.ParquetFile) error {
	pw, err := writer.NewParquetWriter(fw, new(Record), 4)
	if err != nil {
		return err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, r := range t.Rows {
		if err := pw.Write(t.Record(r)); err != nil {
			_ = pw.WriteStop()
			return err
		}
	}
	return pw.WriteStop()
}

// WriteParquet writes the table as a Parquet file to w.
func (t *Table) WriteParquet(w io.Writer) error {
	fw := parquetbuffer.NewBufferFile()
	if err := t.writeParquet(fw); err != nil {
		return fmt.Errorf("write parquet: %w", err)
	}
	if err := fw.Close(); err != nil {
		return err
	}
	_, err := w.Write(fw.Bytes())
	return err
}

// WriteParquetFile writes the table as a Parquet file at path.
func (t *Table) WriteParquetFile(path string) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}
	if err := t.writeParquet(fw); err != nil {
		_ = fw.Close()
		return fmt.Errorf("write parquet %s: %w", path, err)
	}
	return fw.Close()
}
