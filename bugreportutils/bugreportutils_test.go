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

package bugreportutils

import (
	"archive/zip"
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var sampleBugReport = strings.Join([]string{
	`========================================================`,
	`== dumpstate: 2022-03-14 10:02:11`,
	`========================================================`,
	``,
	`Build: QQ3A.200805.001`,
	`Build fingerprint: 'google/sargo/sargo:10/QQ3A.200805.001/6578210:user/release-keys'`,
	`------ SYSTEM PROPERTIES (getprop) ------`,
	`[ro.build.version.sdk]: [29]`,
	`[ro.product.model]: [Pixel 3a]`,
	`[persist.sys.timezone]: [Europe/Paris]`,
	`------ CHECKIN BATTERYSTATS (/system/bin/dumpsys -t 60 batterystats -c) ------`,
	`9,0,i,vers,35,190,QQ3A.200805.001,QQ3A.200805.001`,
	`9,hsp,0,10123,"com.example.app"`,
	`9,h,0:RESET:TIME:1647248400000`,
	`9,h,0,Bv=4200,+S`,
	`------ 0.034s was the duration of 'CHECKIN BATTERYSTATS' ------`,
	`------ CHECKIN PACKAGE (/system/bin/dumpsys package -c) ------`,
	`vers,1`,
}, "\n")

func TestTimeZone(t *testing.T) {
	tests := []struct {
		desc    string
		input   []string
		want    string
		wantErr error
	}{
		{
			desc: "Europe/London time zone",
			input: []string{
				`========================================================`,
				`== dumpstate: 2015-07-07 18:07:00`,
				`========================================================`,
				``,
				`Build: LYZ28H`,
				`...`,
				`[persist.sys.localevar]: []`,
				`[persist.sys.media.use-awesome]: [true]`,
				`[persist.sys.profiler_ms]: [0]`,
				`[persist.sys.timezone]: [Europe/London]`,
			},
			want: "Europe/London",
		},
		{
			desc: "America/Los_Angeles time zone",
			input: []string{
				`========================================================`,
				`== dumpstate: 2015-07-31 09:20:54`,
				`========================================================`,
				``,
				`Build: shamu-userdebug M MRA16G 2097933 dev-keys`,
				`..`,
				`[persist.sys.qc.sub.rdump.on]: [0]`,
				`[persist.sys.timezone]: [America/Los_Angeles]`,
				`[persist.sys.usb.config]: [adb]`,
				`[ril.baseband.config.version]: [SHAMU_TMO_CUST]`,
			},
			want: "America/Los_Angeles",
		},
		{
			desc: "Invalid time zone",
			input: []string{
				`========================================================`,
				`== dumpstate: 2015-07-31 09:20:54`,
				`========================================================`,
				``,
				`Build: shamu-userdebug M MRA16G 2097933 dev-keys`,
				`..`,
				`[persist.sys.qc.sub.rdump.on]: [0]`,
				`[persist.sys.timezone]: [Invalid]`,
				`[persist.sys.usb.config]: [adb]`,
				`[ril.baseband.config.version]: [SHAMU_TMO_CUST]`,
			},
			wantErr: errors.New("unknown time zone Invalid"),
		},
		{
			desc: "Missing time zone",
			input: []string{
				`========================================================`,
				`== dumpstate: 2015-07-31 09:20:54`,
				`========================================================`,
				``,
				`Build: shamu-userdebug M MRA16G 2097933 dev-keys`,
				`..`,
				`[persist.sys.qc.sub.rdump.on]: [0]`,
				`[persist.sys.usb.config]: [adb]`,
				`[ril.baseband.config.version]: [SHAMU_TMO_CUST]`,
			},
			want: "UTC",
		},
	}
	for _, test := range tests {
		input := strings.Join(test.input, "\n")
		got, err := TimeZone(input)

		if !reflect.DeepEqual(err, test.wantErr) {
			t.Errorf("%v: TimeZone(%v)\n got err: %v\n want err: %v", test.desc, input, err, test.wantErr)
		}
		if test.wantErr != nil {
			continue
		}
		if got.String() != test.want {
			t.Errorf("%v: TimeZone(%v)\n got: %q\n want: %q", test.desc, input, got.String(), test.want)
		}
	}
}

func TestParseMetaInfo(t *testing.T) {
	tests := []struct {
		desc    string
		input   string
		want    *MetaInfo
		wantErr error
	}{
		{
			desc:  "Complete bug report",
			input: sampleBugReport,
			want: &MetaInfo{
				DeviceID:         "not available",
				SdkVersion:       29,
				BuildFingerprint: "google/sargo/sargo:10/QQ3A.200805.001/6578210:user/release-keys",
				ModelName:        "Pixel 3a",
			},
		},
		{
			desc: "Device ID and unknown model",
			input: strings.Join([]string{
				`DeviceID: 12345`,
				`[ro.build.version.sdk]: [23]`,
			}, "\n"),
			want: &MetaInfo{
				DeviceID:   "12345",
				SdkVersion: 23,
				ModelName:  "unknown device",
			},
		},
		{
			desc:    "Missing SDK version",
			input:   `[ro.product.model]: [Pixel 3a]`,
			wantErr: errors.New("unable to find device SDK version"),
		},
	}
	for _, test := range tests {
		got, err := ParseMetaInfo(test.input)
		if !reflect.DeepEqual(err, test.wantErr) {
			t.Errorf("%v: ParseMetaInfo() got err: %v, want err: %v", test.desc, err, test.wantErr)
			continue
		}
		if diff := cmp.Diff(test.want, got); diff != "" {
			t.Errorf("%v: ParseMetaInfo() mismatch (-want +got):\n%s", test.desc, diff)
		}
	}
}

func TestExtractBatterystatsCheckin(t *testing.T) {
	want := strings.Join([]string{
		`9,0,i,vers,35,190,QQ3A.200805.001,QQ3A.200805.001`,
		`9,hsp,0,10123,"com.example.app"`,
		`9,h,0:RESET:TIME:1647248400000`,
		`9,h,0,Bv=4200,+S`,
	}, "\n")
	if got := ExtractBatterystatsCheckin(sampleBugReport); got != want {
		t.Errorf("ExtractBatterystatsCheckin() =\n%q\nwant:\n%q", got, want)
	}
}

func zipped(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var b bytes.Buffer
	w := zip.NewWriter(&b)
	for name, contents := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := f.Write([]byte(contents)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return b.Bytes()
}

func TestExtractHistory(t *testing.T) {
	wantHistory := ExtractBatterystatsCheckin(sampleBugReport)
	tests := []struct {
		desc        string
		fname       string
		contents    []byte
		wantHistory string
		wantModel   string
		wantErr     bool
	}{
		{
			desc:        "Plain bug report",
			fname:       "bugreport.txt",
			contents:    []byte(sampleBugReport),
			wantHistory: wantHistory,
			wantModel:   "Pixel 3a",
		},
		{
			desc:  "Zipped bug report from adb bugreport",
			fname: "battery_device.zip",
			contents: zipped(t, map[string]string{
				"version.txt":                    "2.0",
				"bugreport-sargo-2022-03-14.txt": sampleBugReport,
			}),
			wantHistory: wantHistory,
			wantModel:   "Pixel 3a",
		},
		{
			desc:        "Raw checkin dump",
			fname:       "batterystats.txt",
			contents:    []byte("9,hsp,0,10123,\"com.example.app\"\n9,h,0:RESET:TIME:1647248400000\n"),
			wantHistory: "9,hsp,0,10123,\"com.example.app\"\n9,h,0:RESET:TIME:1647248400000\n",
		},
		{
			desc:     "Not a bug report",
			fname:    "notes.txt",
			contents: []byte("nothing to see here"),
			wantErr:  true,
		},
	}
	for _, test := range tests {
		history, meta, err := ExtractHistory(test.fname, test.contents)
		if (err != nil) != test.wantErr {
			t.Errorf("%v: ExtractHistory() got err: %v, want err: %v", test.desc, err, test.wantErr)
			continue
		}
		if history != test.wantHistory {
			t.Errorf("%v: ExtractHistory() history =\n%q\nwant:\n%q", test.desc, history, test.wantHistory)
		}
		if test.wantModel == "" {
			if meta != nil {
				t.Errorf("%v: ExtractHistory() returned unexpected meta info %+v", test.desc, meta)
			}
			continue
		}
		if meta == nil {
			t.Errorf("%v: ExtractHistory() returned nil meta info", test.desc)
			continue
		}
		if meta.ModelName != test.wantModel {
			t.Errorf("%v: ExtractHistory() model = %q, want %q", test.desc, meta.ModelName, test.wantModel)
		}
		if meta.Location == nil || meta.Location.String() != "Europe/Paris" {
			t.Errorf("%v: ExtractHistory() location = %v, want Europe/Paris", test.desc, meta.Location)
		}
	}
}

func TestContentsRejectsBinary(t *testing.T) {
	_, err := Contents("image.png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	if err == nil {
		t.Fatal("Contents() accepted a png file")
	}
	files, err := Contents("a.txt", []byte("plain text"))
	if err != nil {
		t.Fatalf("Contents() returned unexpected error: %v", err)
	}
	if diff := cmp.Diff(map[string][]byte{"a.txt": []byte("plain text")}, files, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Contents() mismatch (-want +got):\n%s", diff)
	}
}
