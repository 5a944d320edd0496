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
	"github.com/spf13/cobra"

	"github.com/powdroid/powdroid/adb"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that adb is installed and restart its server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		ctx := cmd.Context()
		client := adb.New()
		client.Path = envOr(envADB, client.Path)

		p, err := client.LookPath()
		if err != nil {
			return err
		}
		say(out, "adb found at %s", p)
		say(out, "Restarting the adb server...")
		if err := client.RestartServer(ctx); err != nil {
			return err
		}
		devices, err := client.Devices(ctx)
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			warn(out, "No device detected. Please connect your device via USB.")
		}
		for _, d := range devices {
			say(out, "Device %s: %s", d.Serial, d.State)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
