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

package sessiondb

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/powdroid/powdroid/config"
	"github.com/powdroid/powdroid/csv"
	"github.com/powdroid/powdroid/engine"
	"github.com/powdroid/powdroid/table"
	"github.com/powdroid/powdroid/timeline"
)

func processed(t *testing.T, lines ...string) *table.Table {
	t.Helper()
	e, err := engine.New(config.Default())
	if err != nil {
		t.Fatalf("engine.New() returned unexpected error: %v", err)
	}
	in := strings.Join(append([]string{csv.FileHeader}, lines...), "\n")
	res, err := e.RunCSV(strings.NewReader(in), timeline.Window{Start: 0, Stop: 10000})
	if err != nil {
		t.Fatalf("RunCSV() returned unexpected error: %v", err)
	}
	return res.Table
}

func open(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "archive", "sessions.db"))
	if err != nil {
		t.Fatalf("Open() returned unexpected error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveAndList(t *testing.T) {
	ctx := context.Background()
	db := open(t)

	first := processed(t,
		"Voltage,int,0,2000,3800,",
		"Coulomb charge,int,0,1000,100,",
		"Coulomb charge,int,1000,2000,99,",
		"Screen,bool,0,1000,true,",
		"Top app,string,0,2000,com.example.player,",
	)
	second := processed(t, "Voltage,int,0,500,4000,")

	created := time.UnixMilli(1700000000000)
	id1, err := db.Save(ctx, Session{Name: "first", Device: "Pixel 3a", Created: created, StartMs: 0, EndMs: 10000}, first)
	if err != nil {
		t.Fatalf("Save() returned unexpected error: %v", err)
	}
	id2, err := db.Save(ctx, Session{Name: "second", StartMs: 0, EndMs: 10000}, second)
	if err != nil {
		t.Fatalf("Save() returned unexpected error: %v", err)
	}
	if id1 == id2 {
		t.Fatalf("Save() returned the same ID %d twice", id1)
	}

	got, err := db.List(ctx)
	if err != nil {
		t.Fatalf("List() returned unexpected error: %v", err)
	}
	s1 := first.Summary()
	want := []Session{
		{
			ID:          id1,
			Name:        "first",
			Device:      "Pixel 3a",
			Created:     created,
			EndMs:       10000,
			Intervals:   2,
			DurationMs:  2000,
			ConsumedMAh: s1.ConsumedMAh,
			EnergyJ:     s1.EnergyJ,
			MeanPowerW:  s1.MeanPowerW,
		},
		{
			ID:         id2,
			Name:       "second",
			EndMs:      10000,
			Intervals:  1,
			DurationMs: 500,
		},
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(Session{}, "Created")); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
	if !got[0].Created.Equal(created) {
		t.Errorf("List()[0].Created = %v, want %v", got[0].Created, created)
	}
	if got[1].Created.IsZero() {
		t.Error("List()[1].Created is zero, want the save time")
	}
}

func TestIntervals(t *testing.T) {
	ctx := context.Background()
	db := open(t)
	tbl := processed(t,
		"Voltage,int,0,1000,3800,",
		"Voltage,int,1000,3000,3700,",
		"Coulomb charge,int,0,1000,100,",
		"Coulomb charge,int,1000,3000,99,",
		"GPS,bool,1000,3000,true,",
		"Wakelock_in,string,0,1000,\"*alarm*\",",
	)
	id, err := db.Save(ctx, Session{Name: "trip"}, tbl)
	if err != nil {
		t.Fatalf("Save() returned unexpected error: %v", err)
	}

	got, err := db.Intervals(ctx, id)
	if err != nil {
		t.Fatalf("Intervals() returned unexpected error: %v", err)
	}
	if diff := cmp.Diff(tbl.Records(), got); diff != "" {
		t.Errorf("Intervals() mismatch (-want +got):\n%s", diff)
	}

	none, err := db.Intervals(ctx, id+100)
	if err != nil {
		t.Fatalf("Intervals() of an unknown session returned unexpected error: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("Intervals() of an unknown session = %v, want none", none)
	}
}

func TestReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() returned unexpected error: %v", err)
	}
	if _, err := db.Save(ctx, Session{Name: "kept"}, processed(t, "Voltage,int,0,500,4000,")); err != nil {
		t.Fatalf("Save() returned unexpected error: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() returned unexpected error: %v", err)
	}

	db, err = Open(path)
	if err != nil {
		t.Fatalf("second Open() returned unexpected error: %v", err)
	}
	defer db.Close()
	got, err := db.List(ctx)
	if err != nil {
		t.Fatalf("List() returned unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Name != "kept" {
		t.Errorf("List() after reopening = %+v, want the single session %q", got, "kept")
	}
}
