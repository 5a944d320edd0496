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
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/powdroid/powdroid/historianutils"
	"github.com/powdroid/powdroid/sessiondb"
	"github.com/powdroid/powdroid/table"
)

const banner = `  ____               ____            _     _
 |  _ \ _____      _|  _ \ _ __ ___ (_) __| |
 | |_) / _ \ \ /\ / / | | | '__/ _ \| |/ _` + "`" + ` |
 |  __/ (_) \ V  V /| |_| | | | (_) | | (_| |
 |_|   \___/ \_/\_/ |____/|_|  \___/|_|\__,_|
`

// totalSteps is the number of steps of a recording.
const totalSteps = 4

// topApps is how many apps the summary lists.
const topApps = 5

var (
	tagColor    = color.New(color.FgCyan, color.Bold)
	stepColor   = color.New(color.FgMagenta, color.Bold)
	warnColor   = color.New(color.FgYellow)
	errColor    = color.New(color.FgRed, color.Bold)
	promptColor = color.New(color.FgGreen)
)

var (
	colorCyan  = lipgloss.Color("#8BE9FD")
	colorGray  = lipgloss.Color("#6272A4")
	colorWhite = lipgloss.Color("#F8F8F2")

	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorCyan).Padding(0, 1)
	titleStyle = lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(colorGray).Width(24)
	valueStyle = lipgloss.NewStyle().Foreground(colorWhite).Bold(true)
)

func setColor(on bool) {
	color.NoColor = !on
}

func say(w io.Writer, format string, a ...interface{}) {
	fmt.Fprintf(w, "%s %s\n", tagColor.Sprint("[PowDroid]"), fmt.Sprintf(format, a...))
}

func step(w io.Writer, n int, title string) {
	fmt.Fprintf(w, "%s %s\n", stepColor.Sprintf("[PowDroid Step %d/%d]", n, totalSteps), title)
}

// welcome prints the banner and greeting shown when a recording starts.
func welcome(w io.Writer) {
	fmt.Fprint(w, banner)
	say(w, "Welcome to PowDroid CLI!")
	fmt.Fprintln(w)
}

func warn(w io.Writer, format string, a ...interface{}) {
	say(w, "%s", warnColor.Sprintf(format, a...))
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %v\n", errColor.Sprint("[PowDroid]"), err)
}

// prompt shows msg and waits for the user to press ENTER.
func prompt(in *bufio.Reader, w io.Writer, msg string) error {
	fmt.Fprint(w, promptColor.Sprintf("=> %s", msg))
	_, err := in.ReadString('\n')
	if err == io.EOF {
		// The last line of a piped input may lack its newline.
		fmt.Fprintln(w)
		return nil
	}
	return err
}

// spin prints a spinner after msg until the returned function is called.
func spin(w io.Writer, msg string) (stop func()) {
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		frames := []string{"/", "-", `\`, "|"}
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i++ {
			fmt.Fprintf(w, "\r%s %s %s", tagColor.Sprint("[PowDroid]"), msg, frames[i%len(frames)])
			select {
			case <-done:
				fmt.Fprintf(w, "\r%s %s done!\n", tagColor.Sprint("[PowDroid]"), msg)
				return
			case <-ticker.C:
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

func summaryRow(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value))
}

func durationMs(ms int64) string {
	return historianutils.FormatDuration(time.Duration(ms) * time.Millisecond)
}

// renderSummary draws the session totals in a box.
func renderSummary(s table.Summary) string {
	lines := []string{
		titleStyle.Render("Session summary"),
		summaryRow("Intervals", humanize.Comma(int64(s.Intervals))),
		summaryRow("Duration", durationMs(s.DurationMs)),
		summaryRow("Energy", humanize.SIWithDigits(s.EnergyJ, 2, "J")),
		summaryRow("Consumed charge", humanize.FormatFloat("#,###.##", s.ConsumedMAh)+" mAh"),
		summaryRow("Mean power", humanize.SIWithDigits(s.MeanPowerW, 2, "W")),
	}
	if s.UnresolvedVoltage > 0 {
		lines = append(lines, summaryRow("Intervals w/o voltage", strconv.Itoa(s.UnresolvedVoltage)))
	}
	if s.UnresolvedCurrent > 0 {
		lines = append(lines, summaryRow("Intervals w/o current", strconv.Itoa(s.UnresolvedCurrent)))
	}
	if len(s.EnergyByApp) > 0 {
		lines = append(lines, "", titleStyle.Render("Energy by top app"))
		for i, a := range s.EnergyByApp {
			if i == topApps {
				lines = append(lines, summaryRow("...", fmt.Sprintf("%d more", len(s.EnergyByApp)-topApps)))
				break
			}
			name := a.App
			if name == "" {
				name = "(none)"
			}
			lines = append(lines, summaryRow(truncate(name, 23), fmt.Sprintf("%s in %s", humanize.SIWithDigits(a.EnergyJ, 2, "J"), durationMs(a.DurationMs))))
		}
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// renderSessions lists archived sessions, their age taken relative to now.
func renderSessions(sessions []sessiondb.Session, now time.Time) string {
	rows := make([][]string, len(sessions))
	for i, s := range sessions {
		device := s.Device
		if device == "" {
			device = "-"
		}
		rows[i] = []string{
			strconv.FormatInt(s.ID, 10),
			s.Name,
			device,
			humanize.RelTime(s.Created, now, "ago", "from now"),
			durationMs(s.DurationMs),
			humanize.SIWithDigits(s.EnergyJ, 2, "J"),
			humanize.SIWithDigits(s.MeanPowerW, 2, "W"),
		}
	}
	return lgtable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorCyan)).
		Headers("ID", "Name", "Device", "Recorded", "Duration", "Energy", "Mean power").
		Rows(rows...).
		Render()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// formats parses a comma separated list of output formats.
func formats(s string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, f := range strings.Split(s, ",") {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" || seen[f] {
			continue
		}
		switch f {
		case formatCSV, formatHTML, formatParquet:
		default:
			return nil, fmt.Errorf("unknown output format %q, want csv, html or parquet", f)
		}
		seen[f] = true
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no output format in %q", s)
	}
	return out, nil
}
