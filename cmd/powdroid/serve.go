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
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/powdroid/powdroid/analyzer"
)

var (
	port       int
	serveScrub bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the upload page and HTML reports",
	Long: `Serve starts an HTTP server where bug reports, checkin dumps and event tables can be
uploaded and analyzed. Sessions are archived when a session database is configured.
Send "Accept: application/json" to get the rows and summary as JSON.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
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
		a := analyzer.New(e, db)
		a.ScrubPII = serveScrub

		mux := http.NewServeMux()
		a.Register(mux)
		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx := cmd.Context()
		errc := make(chan error, 1)
		go func() {
			log.Println("Listening on port: ", port)
			errc <- server.ListenAndServe()
		}()
		say(cmd.OutOrStdout(), "Serving on http://localhost:%d", port)

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		say(cmd.OutOrStdout(), "Server stopped.")
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&port, "port", 9999, "Service port")
	serveCmd.Flags().BoolVar(&serveScrub, "scrub", false, "Hide account names in app and wakelock names")
	rootCmd.AddCommand(serveCmd)
}
