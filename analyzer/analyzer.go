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

// Package analyzer analyzes the uploaded session and displays the results to the user.
package analyzer

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/powdroid/powdroid/bugreportutils"
	"github.com/powdroid/powdroid/csv"
	"github.com/powdroid/powdroid/engine"
	"github.com/powdroid/powdroid/parseutils"
	"github.com/powdroid/powdroid/presenter"
	"github.com/powdroid/powdroid/sessiondb"
	"github.com/powdroid/powdroid/store"
	"github.com/powdroid/powdroid/table"
	"github.com/powdroid/powdroid/timeline"
)

const (
	// maxFileSize is the maximum file size allowed for uploaded package.
	maxFileSize = 50 * 1024 * 1024 // 50 MB Limit

	contentTypeJSON = "application/json"
)

//go:embed templates/upload.html
var templates embed.FS

var uploadTempl = template.Must(template.ParseFS(templates, "templates/upload.html"))

// Analyzer serves the upload form and analyzes the uploaded sessions.
type Analyzer struct {
	engine *engine.Engine
	// db archives every analyzed session when set.
	db *sessiondb.DB
	// ScrubPII hides account names found in wakelock and app names.
	ScrubPII bool
}

// New returns an analyzer running e. db may be nil.
func New(e *engine.Engine, db *sessiondb.DB) *Analyzer {
	return &Analyzer{engine: e, db: db}
}

// Register installs the handlers on mux.
func (a *Analyzer) Register(mux *http.ServeMux) {
	mux.HandleFunc("/", a.UploadHandler)
	mux.HandleFunc("/sessions", a.SessionsHandler)
}

// Analysis is the outcome of analyzing one uploaded file.
type Analysis struct {
	Filename string
	// Meta is nil unless the file was a bug report.
	Meta     *bugreportutils.MetaInfo
	Result   *engine.Result
	Warnings []string
	// SessionID is the archive ID of the session, 0 when it was not archived.
	SessionID int64
}

// Analyze runs the engine over a bug report, a checkin dump or an event table.
// Problems in the battery history that still leave a usable table are reported as warnings.
func (a *Analyzer) Analyze(fname string, contents []byte, w timeline.Window) (*Analysis, error) {
	an := &Analysis{Filename: fname}
	events := contents
	if !csv.IsEventTable(contents) {
		history, meta, err := bugreportutils.ExtractHistory(fname, contents)
		if err != nil {
			return nil, err
		}
		an.Meta = meta
		var buf bytes.Buffer
		rep := parseutils.AnalyzeHistory(history, &buf, a.ScrubPII)
		if rep.Overflowed {
			an.Warnings = append(an.Warnings, "battery history overflowed, the end of the recording is missing")
		}
		if rep.TimestampsAltered {
			an.Warnings = append(an.Warnings, "some history timestamps were out of order and have been adjusted")
		}
		for _, err := range rep.Errs {
			an.Warnings = append(an.Warnings, err.Error())
		}
		events = buf.Bytes()
	}
	res, err := a.engine.RunCSV(bytes.NewReader(events), w)
	if err != nil {
		return nil, err
	}
	an.Result = res
	return an, nil
}

// archive saves the analysis in the session database.
func (a *Analyzer) archive(ctx context.Context, an *Analysis) error {
	if a.db == nil || an.Result.NoData() {
		return nil
	}
	s := sessiondb.Session{
		Name:    an.Filename,
		StartMs: an.Result.Window.Start,
		EndMs:   an.Result.Window.Stop,
	}
	if an.Meta != nil {
		s.Device = an.Meta.ModelName
	}
	id, err := a.db.Save(ctx, s, an.Result.Table)
	if err != nil {
		return err
	}
	an.SessionID = id
	return nil
}

func closeConnection(w http.ResponseWriter, s string) {
	if flusher, ok := w.(http.Flusher); ok {
		w.Header().Set("Connection", "close")
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(s)))
		w.WriteHeader(http.StatusExpectationFailed)
		io.WriteString(w, s)
		flusher.Flush()
	}
	log.Println(s, " Closing connection.")
	if hj, ok := w.(http.Hijacker); ok {
		if conn, _, err := hj.Hijack(); err == nil {
			conn.Close()
		}
	}
}

// UploadHandler serves the upload html page and analyzes what is posted to it.
func (a *Analyzer) UploadHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		uploadData := struct {
			Percentage int
			Archive    bool
		}{
			presenter.DefaultPercentage,
			a.db != nil,
		}
		if err := uploadTempl.Execute(w, uploadData); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	case http.MethodPost:
		a.HTTPAnalyzeHandler(w, r)
	default:
		w.Header().Set("Allow", "GET, HEAD, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// upload is the content of an analysis request.
type upload struct {
	fname    string
	contents []byte
	form     map[string]string
}

// readUpload reads the first non-empty file and every form value of the multipart body.
func readUpload(r *http.Request) (*upload, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}
	u := &upload{form: make(map[string]string)}
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		b, err := io.ReadAll(part)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %v", part.FormName(), err)
		}
		// If part.FileName() is empty, the part is a form value.
		if part.FileName() == "" {
			u.form[part.FormName()] = strings.TrimSpace(string(b))
			continue
		}
		if len(b) == 0 || u.contents != nil {
			continue
		}
		u.fname = part.FileName()
		u.contents = b
	}
	if u.contents == nil {
		return nil, errors.New("no file uploaded")
	}
	return u, nil
}

// HTTPAnalyzeHandler processes the session file uploaded via an http request's multipart body.
func (a *Analyzer) HTTPAnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	// Do not accept files that are greater than 50 MBs
	if r.ContentLength > maxFileSize {
		closeConnection(w, "File too large (>50MB).")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxFileSize)
	log.Printf("Trace starting reading uploaded file. %d bytes", r.ContentLength)
	defer log.Printf("Trace ended analyzing file.")

	u, err := readUpload(r)
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		http.Error(w, fmt.Sprintf("failed to read upload: %v", err), status)
		return
	}
	win, err := timeline.ParseWindow(u.form["start"], u.form["stop"], u.form["duration"])
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid window: %v", err), http.StatusBadRequest)
		return
	}
	percentage := presenter.DefaultPercentage
	if p := u.form["percentage"]; p != "" {
		if percentage, err = strconv.Atoi(p); err != nil {
			http.Error(w, fmt.Sprintf("invalid percentage %q", p), http.StatusBadRequest)
			return
		}
	}

	an, err := a.Analyze(u.fname, u.contents, win)
	if err != nil {
		status := http.StatusUnprocessableEntity
		var malformed *store.MalformedInputError
		if errors.As(err, &malformed) {
			status = http.StatusBadRequest
		}
		http.Error(w, fmt.Sprintf("failed to analyze file: %v", err), status)
		return
	}
	if u.form["archive"] != "false" {
		if err := a.archive(r.Context(), an); err != nil {
			log.Printf("failed to archive %s: %v", an.Filename, err)
			an.Warnings = append(an.Warnings, fmt.Sprintf("session not archived: %v", err))
		}
	}

	if strings.Contains(r.Header.Get("Accept"), contentTypeJSON) {
		an.SendAsJSON(w)
		return
	}
	an.SendAsHTML(w, percentage)
}

// uploadResponse is the JSON form of an analysis.
type uploadResponse struct {
	Filename   string         `json:"filename"`
	Device     string         `json:"device,omitempty"`
	SDKVersion int            `json:"sdk_version,omitempty"`
	StartMs    int64          `json:"start_time"`
	StopMs     int64          `json:"stop_time"`
	NoData     bool           `json:"no_data"`
	SessionID  int64          `json:"session_id,omitempty"`
	Summary    table.Summary  `json:"summary"`
	Rows       []table.Record `json:"rows"`
	Warnings   []string       `json:"warnings,omitempty"`
}

// SendAsJSON sends the summary and rows of the analysis.
func (an *Analysis) SendAsJSON(w http.ResponseWriter) {
	resp := uploadResponse{
		Filename:  an.Filename,
		StartMs:   an.Result.Window.Start,
		StopMs:    an.Result.Window.Stop,
		NoData:    an.Result.NoData(),
		SessionID: an.SessionID,
		Summary:   an.Result.Table.Summary(),
		Rows:      an.Result.Table.Records(),
		Warnings:  an.Warnings,
	}
	if an.Meta != nil {
		resp.Device = an.Meta.ModelName
		resp.SDKVersion = an.Meta.SdkVersion
	}
	writeJSON(w, resp)
}

// SendAsHTML sends the HTML report of the analysis.
func (an *Analysis) SendAsHTML(w http.ResponseWriter, percentage int) {
	var buf bytes.Buffer
	d := presenter.Data(an.Result, presenter.Options{
		Filename:   an.Filename,
		Meta:       an.Meta,
		Percentage: percentage,
		Warnings:   an.Warnings,
	})
	if err := presenter.Render(&buf, d); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// SessionsHandler lists the archived sessions, or the rows of one session given by its id parameter.
func (a *Analyzer) SessionsHandler(w http.ResponseWriter, r *http.Request) {
	if a.db == nil {
		http.Error(w, "no session archive configured", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if v := r.URL.Query().Get("id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid session id %q", v), http.StatusBadRequest)
			return
		}
		rows, err := a.db.Intervals(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, rows)
		return
	}
	sessions, err := a.db.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, sessions)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	js, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	w.Write(js)
}
