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
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/powdroid/powdroid/engine"
	"github.com/powdroid/powdroid/presenter"
	"github.com/powdroid/powdroid/sessiondb"
	"github.com/powdroid/powdroid/timeline"
)

// Output formats.
const (
	formatCSV     = "csv"
	formatHTML    = "html"
	formatParquet = "parquet"
)

var (
	eventsPath    string
	startFlag     string
	stopFlag      string
	durationFlag  string
	formatFlag    string
	outDir        string
	nameFlag      string
	percentage    int
	timezoneFlag  string
	summaryOutput bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Rebuild the power and energy of every interval of an event table",
	Long: `Process reads a flat event table (metric,type,start_time,end_time,value,opt), as
written by "powdroid parse", and rebuilds the table of intervals of the given window.

Times are ms since epoch or RFC 3339 dates. Without --start and --stop the whole
recording is processed.

Example:
  powdroid process --events dump/battery_device.csv --start 1714564800000 --duration 1h30m --format csv,html`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := timeline.ParseWindow(startFlag, stopFlag, durationFlag)
		if err != nil {
			return err
		}
		fs, err := formats(formatFlag)
		if err != nil {
			return err
		}
		loc, err := location(timezoneFlag)
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
		f, err := os.Open(eventsPath)
		if err != nil {
			return err
		}
		defer f.Close()

		out := cmd.OutOrStdout()
		res, err := e.RunCSV(f, w)
		if err != nil {
			return fmt.Errorf("processing %s: %w", eventsPath, err)
		}
		job := &outputJob{
			res:     res,
			formats: fs,
			dir:     outputDir(cmd),
			name:    nameFlag,
			opts: presenter.Options{
				Filename:   filepath.Base(eventsPath),
				Location:   loc,
				Percentage: percentage,
			},
		}
		return finish(cmd.Context(), out, job, db, sessiondb.Session{Name: filepath.Base(eventsPath)})
	},
}

const defaultOutputDir = "output"

func init() {
	processCmd.Flags().StringVar(&eventsPath, "events", "", "Event table to process (required)")
	processCmd.Flags().StringVar(&startFlag, "start", "", "Window start, ms since epoch or RFC 3339 (default: recording start)")
	processCmd.Flags().StringVar(&stopFlag, "stop", "", "Window stop, ms since epoch or RFC 3339 (default: recording end)")
	processCmd.Flags().StringVar(&durationFlag, "duration", "", "Window length from --start, e.g. 1h30m or 1d2h")
	processCmd.Flags().StringVar(&timezoneFlag, "timezone", "Local", "Time zone of the report labels")
	processCmd.MarkFlagRequired("events")
	processCmd.MarkFlagsMutuallyExclusive("stop", "duration")
	addOutputFlags(processCmd)
	rootCmd.AddCommand(processCmd)
}

// addOutputFlags adds the flags choosing what is written for a processed session.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&formatFlag, "format", "csv,html", "Comma separated output formats: csv, html, parquet")
	cmd.Flags().StringVar(&outDir, "out", defaultOutputDir, "Output directory (default: "+envOutputDir+" or output)")
	cmd.Flags().StringVar(&nameFlag, "name", "", "Base name of the output files (default: PowDroid_<unix time>)")
	cmd.Flags().IntVar(&percentage, "percentage", presenter.DefaultPercentage, "Percentage of chart points initially shown in the HTML report")
	cmd.Flags().BoolVar(&summaryOutput, "summary", true, "Print the session summary")
}

// outputDir returns the --out flag when given, else the environment setting or its default.
func outputDir(cmd *cobra.Command) string {
	if cmd.Flags().Changed("out") {
		return outDir
	}
	return envOr(envOutputDir, outDir)
}

func location(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q: %v", name, err)
	}
	return loc, nil
}

// outputJob describes the files to write for one processed session.
type outputJob struct {
	res     *engine.Result
	formats []string
	dir     string
	// name is the base name of the files. A time stamped name is used when empty.
	name string
	opts presenter.Options
}

// write writes every requested format and returns the written paths.
func (j *outputJob) write() ([]string, error) {
	if err := os.MkdirAll(j.dir, 0755); err != nil {
		return nil, err
	}
	name := j.name
	if name == "" {
		name = fmt.Sprintf("PowDroid_%d", time.Now().Unix())
	}
	var paths []string
	for _, f := range j.formats {
		p := filepath.Join(j.dir, name+"."+f)
		var err error
		switch f {
		case formatCSV:
			err = writeFile(p, j.res.Table.WriteCSV)
		case formatHTML:
			err = writeFile(p, func(w io.Writer) error {
				return presenter.Render(w, presenter.Data(j.res, j.opts))
			})
		case formatParquet:
			err = j.res.Table.WriteParquetFile(p)
		default:
			err = fmt.Errorf("unknown output format %q", f)
		}
		if err != nil {
			return paths, fmt.Errorf("writing %s: %w", p, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// finish writes the outputs of a processed session, prints its summary and archives it.
func finish(ctx context.Context, out io.Writer, job *outputJob, db *sessiondb.DB, s sessiondb.Session) error {
	if job.res.NoData() {
		warn(out, "No data in the window [%d, %d], is it inside the recording?", job.res.Window.Start, job.res.Window.Stop)
	}
	paths, err := job.write()
	for _, p := range paths {
		say(out, "%s file generated successfully: %s", formatName(filepath.Ext(p)), p)
	}
	if err != nil {
		return err
	}
	if job.res.NoData() {
		return nil
	}
	if summaryOutput {
		fmt.Fprintln(out, renderSummary(job.res.Table.Summary()))
	}
	if db == nil {
		return nil
	}
	s.StartMs, s.EndMs = job.res.Window.Start, job.res.Window.Stop
	if s.Device == "" && job.opts.Meta != nil {
		s.Device = job.opts.Meta.ModelName
	}
	id, err := db.Save(ctx, s, job.res.Table)
	if err != nil {
		return fmt.Errorf("archiving session: %w", err)
	}
	log.Printf("session archived in %s", db.Path())
	say(out, "Session archived with ID %d", id)
	return nil
}

func formatName(ext string) string {
	switch ext {
	case "." + formatCSV:
		return "CSV"
	case "." + formatHTML:
		return "HTML"
	case "." + formatParquet:
		return "Parquet"
	}
	return ext
}
