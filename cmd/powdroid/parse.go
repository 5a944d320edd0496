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
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/powdroid/powdroid/bugreportutils"
	"github.com/powdroid/powdroid/parseutils"
)

var (
	inputPath string
	csvPath   string
	scrubPII  bool
)

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Convert the battery history of a bug report into an event table",
	Long: `Parse extracts the battery history from a bug report (zip or text, as written by
"adb bugreport") or from a "dumpsys batterystats -c" dump, and writes the event
table of the PowDroid metrics.

Example:
  powdroid parse --input dump/battery_device.zip --csv dump/battery_device.csv`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		meta, err := parseHistory(out, inputPath, csvPath, scrubPII)
		if err != nil {
			return err
		}
		if meta != nil {
			say(out, "Device %s, SDK %d", meta.ModelName, meta.SdkVersion)
		}
		say(out, "Event table generated successfully: %s", csvPath)
		return nil
	},
}

func init() {
	parseCmd.Flags().StringVar(&inputPath, "input", "", "Bug report or batterystats checkin dump (required)")
	parseCmd.Flags().StringVar(&csvPath, "csv", "", "Event table to write (required)")
	parseCmd.Flags().BoolVar(&scrubPII, "scrub", false, "Hide account names in app and wakelock names")
	parseCmd.MarkFlagRequired("input")
	parseCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(parseCmd)
}

// parseLogFile keeps the parser diagnostics next to the event table.
const parseLogFile = "history_parse_log.txt"

// parseHistory writes the event table of the battery history found in input to csvFile.
// History lines that cannot be parsed are reported as warnings on out and saved to
// parseLogFile in the directory of csvFile.
func parseHistory(out io.Writer, input, csvFile string, scrub bool) (*bugreportutils.MetaInfo, error) {
	b, err := os.ReadFile(input)
	if err != nil {
		return nil, err
	}
	history, meta, err := bugreportutils.ExtractHistory(filepath.Base(input), b)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	rep := parseutils.AnalyzeHistory(history, &buf, scrub)
	var diag []string
	if rep.Overflowed {
		diag = append(diag, "The battery history overflowed, the end of the recording is missing.")
	}
	if rep.TimestampsAltered {
		diag = append(diag, "Some history timestamps were out of order and have been adjusted.")
	}
	for _, e := range rep.Errs {
		diag = append(diag, e.Error())
	}
	for _, d := range diag {
		warn(out, "%s", d)
	}
	if err := os.MkdirAll(filepath.Dir(csvFile), 0755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(csvFile, buf.Bytes(), 0644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", csvFile, err)
	}
	logFile := filepath.Join(filepath.Dir(csvFile), parseLogFile)
	if err := writeParseLog(logFile, input, diag); err != nil {
		return nil, fmt.Errorf("writing %s: %w", logFile, err)
	}
	return meta, nil
}

func writeParseLog(path, input string, diag []string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d warnings\n", input, len(diag))
	for _, d := range diag {
		fmt.Fprintln(&b, d)
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}
