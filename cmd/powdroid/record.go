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

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/powdroid/powdroid/adb"
	"github.com/powdroid/powdroid/bugreportutils"
	"github.com/powdroid/powdroid/historianutils"
	"github.com/powdroid/powdroid/presenter"
	"github.com/powdroid/powdroid/sessiondb"
	"github.com/powdroid/powdroid/timeline"
)

// Files written to the dump directory.
const (
	bugReportFile = "battery_device.zip"
	eventsFile    = "battery_device.csv"
	statsFile     = "batterystats.txt"
)

const clockLayout = "2006-01-02 15:04:05"

var (
	serialFlag    string
	dumpDir       string
	installAPK    string
	uninstallPkgs []string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a test session on a USB connected device",
	Long: `Record walks through a full test session:

  1. detect the device, install or remove the apps under test, stop its background
     apps and reset its battery statistics,
  2. wait for the device to be unplugged and time the session between two ENTER presses,
  3. wait for the device to be plugged back and capture a bug report,
  4. rebuild the energy of the session and write the requested outputs.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, err := formats(formatFlag)
		if err != nil {
			return err
		}
		e, err := newEngine()
		if err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		if db != nil {
			defer db.Close()
		}

		client := adb.New()
		client.Path = envOr(envADB, client.Path)
		client.Serial = serialFlag
		out := cmd.OutOrStdout()
		r := &recorder{
			adb:       client,
			in:        bufio.NewReader(cmd.InOrStdin()),
			out:       out,
			now:       time.Now,
			dumpDir:   dumpDirectory(cmd),
			scrub:     scrubPII,
			install:   installAPK,
			uninstall: uninstallPkgs,
		}
		welcome(out)

		rec, err := r.run(cmd.Context())
		if err != nil {
			return err
		}

		step(out, 4, "Generating output files...")
		f, err := os.Open(rec.events)
		if err != nil {
			return err
		}
		defer f.Close()
		res, err := e.RunCSV(f, timeline.Window{Start: rec.start.UnixMilli(), Stop: rec.stop.UnixMilli()})
		if err != nil {
			return err
		}
		job := &outputJob{
			res:     res,
			formats: fs,
			dir:     outputDir(cmd),
			name:    nameFlag,
			opts: presenter.Options{
				Filename:   eventsFile,
				Location:   time.Local,
				Meta:       rec.meta,
				Percentage: percentage,
			},
		}
		s := sessiondb.Session{Name: "session " + rec.start.Format(clockLayout), Device: rec.device}
		if err := finish(cmd.Context(), out, job, db, s); err != nil {
			return err
		}
		fmt.Fprintln(out)
		say(out, "All tasks completed successfully. Thank you for using PowDroid!")
		return nil
	},
}

func init() {
	recordCmd.Flags().StringVarP(&serialFlag, "serial", "s", "", "Serial of the device to record when several are connected")
	recordCmd.Flags().StringVar(&dumpDir, "dump", "dump", "Directory of the bug report and event table (default: "+envDumpDir+" or dump)")
	recordCmd.Flags().StringVar(&installAPK, "install", "", "APK to install (or replace) before the session")
	recordCmd.Flags().StringSliceVar(&uninstallPkgs, "uninstall", nil, "Packages to remove before the session")
	recordCmd.Flags().BoolVar(&scrubPII, "scrub", false, "Hide account names in app and wakelock names")
	addOutputFlags(recordCmd)
	rootCmd.AddCommand(recordCmd)
}

func dumpDirectory(cmd *cobra.Command) string {
	if cmd.Flags().Changed("dump") {
		return dumpDir
	}
	return envOr(envDumpDir, dumpDir)
}

// recorder drives the interactive steps of a recording.
type recorder struct {
	adb     *adb.Client
	in      *bufio.Reader
	out     io.Writer
	now     func() time.Time
	dumpDir string
	scrub   bool
	// install is an APK installed before the session, once uninstall has been removed.
	install   string
	uninstall []string
}

// recording is what a session leaves behind once collected from the device.
type recording struct {
	// device is the model name of the device, or its serial when the model is unknown.
	device      string
	start, stop time.Time
	// events is the path of the event table.
	events string
	meta   *bugreportutils.MetaInfo
}

// run performs the first three steps: prepare the device, time the session, collect the history.
func (r *recorder) run(ctx context.Context) (*recording, error) {
	device, err := r.initialize(ctx)
	if err != nil {
		return nil, err
	}
	start, stop, err := r.session(ctx)
	if err != nil {
		return nil, err
	}
	events, meta, err := r.collect(ctx)
	if err != nil {
		return nil, err
	}
	return &recording{device: device, start: start, stop: stop, events: events, meta: meta}, nil
}

func (r *recorder) initialize(ctx context.Context) (string, error) {
	step(r.out, 1, "Initializing device connection...")
	serial, err := r.adb.Device(ctx)
	switch {
	case errors.Is(err, adb.ErrNoDevice):
		say(r.out, "No device detected. Please connect your device via USB.")
		say(r.out, "Waiting for device connection...")
		if serial, err = r.adb.WaitForConnection(ctx); err != nil {
			return "", err
		}
		say(r.out, "Device %s connected.", serial)
	case err != nil:
		return "", err
	default:
		say(r.out, "Device %s already connected.", serial)
	}
	device := serial
	model, err := r.adb.Model(ctx)
	switch {
	case err != nil:
		warn(r.out, "Could not read the device model: %v", err)
	case model != "":
		device = model
		say(r.out, "Recording on %s.", model)
	}
	for _, pkg := range r.uninstall {
		if err := r.adb.Uninstall(ctx, pkg); err != nil {
			return "", fmt.Errorf("uninstalling %s: %w", pkg, err)
		}
		say(r.out, "Package %s uninstalled.", pkg)
	}
	if r.install != "" {
		if err := r.adb.Install(ctx, r.install); err != nil {
			return "", fmt.Errorf("installing %s: %w", r.install, err)
		}
		say(r.out, "%s installed.", filepath.Base(r.install))
	}
	if err := r.adb.KillAll(ctx); err != nil {
		return "", fmt.Errorf("stopping background apps: %w", err)
	}
	if err := r.adb.ResetStats(ctx); err != nil {
		return "", fmt.Errorf("resetting battery statistics: %w", err)
	}
	if err := r.adb.EnableFullWakeHistory(ctx); err != nil {
		return "", fmt.Errorf("enabling full wake history: %w", err)
	}
	return device, nil
}

func (r *recorder) session(ctx context.Context) (time.Time, time.Time, error) {
	step(r.out, 2, "Starting session recording...")
	say(r.out, "Please unplug your device and follow the instructions.")
	say(r.out, "Waiting for device disconnection...")
	if err := r.adb.WaitForDisconnection(ctx); err != nil {
		return time.Time{}, time.Time{}, err
	}
	say(r.out, "Device disconnected.")

	if err := prompt(r.in, r.out, "Press ENTER to start recording your test session."); err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := r.now()
	say(r.out, "Recording in progress from %s", start.Format(clockLayout))

	if err := prompt(r.in, r.out, "Press ENTER once you finished your test session."); err != nil {
		return time.Time{}, time.Time{}, err
	}
	stop := r.now()
	say(r.out, "Recording session completed at %s", stop.Format(clockLayout))
	say(r.out, "Session finished with a duration of %s", historianutils.FormatDuration(stop.Sub(start)))
	return start, stop, nil
}

func (r *recorder) collect(ctx context.Context) (string, *bugreportutils.MetaInfo, error) {
	step(r.out, 3, "Processing battery data...")
	say(r.out, "Please reconnect your device via USB.")
	say(r.out, "Waiting for device connection...")
	if _, err := r.adb.WaitForConnection(ctx); err != nil {
		return "", nil, err
	}
	say(r.out, "Device connected.")
	say(r.out, "This step may take a few moments, please wait while processing collected data...")

	report := filepath.Join(r.dumpDir, bugReportFile)
	stop := spin(r.out, "Extract battery data...")
	err := r.adb.DumpBatteryStats(ctx, filepath.Join(r.dumpDir, statsFile))
	if err == nil {
		err = r.adb.BugReport(ctx, report)
	}
	stop()
	if err != nil {
		return "", nil, fmt.Errorf("collecting battery data: %w", err)
	}
	events := filepath.Join(r.dumpDir, eventsFile)
	meta, err := parseHistory(r.out, report, events, r.scrub)
	if err != nil {
		return "", nil, err
	}
	return events, meta, nil
}
