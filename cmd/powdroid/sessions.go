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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var sessionID int64

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List the archived sessions",
	Long: `Sessions lists the sessions of the session database. With --id, the intervals of
that session are printed as JSON.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		if db == nil {
			return errors.New("no session database, set --db or " + envDB)
		}
		defer db.Close()

		out := cmd.OutOrStdout()
		ctx := cmd.Context()
		if sessionID != 0 {
			rows, err := db.Intervals(ctx, sessionID)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				return fmt.Errorf("no session %d", sessionID)
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		}

		sessions, err := db.List(ctx)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			say(out, "No archived session in %s", db.Path())
			return nil
		}
		fmt.Fprintln(out, renderSessions(sessions, time.Now()))
		return nil
	},
}

func init() {
	sessionsCmd.Flags().Int64Var(&sessionID, "id", 0, "Print the intervals of this session")
	rootCmd.AddCommand(sessionsCmd)
}
