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

// PowDroid records an Android test session and reports the power and energy the
// device drew during it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/powdroid/powdroid/config"
	"github.com/powdroid/powdroid/engine"
	"github.com/powdroid/powdroid/sessiondb"
)

// Environment variables, also read from a .env file in the working directory.
const (
	envDumpDir   = "POWDROID_DUMP_DIR"
	envOutputDir = "POWDROID_OUTPUT_DIR"
	envDB        = "POWDROID_DB"
	envConfig    = "POWDROID_CONFIG"
	envADB       = "POWDROID_ADB"
)

var (
	configPath string
	dbPath     string
	verbose    bool
	noColor    bool
)

var rootCmd = &cobra.Command{
	Use:   "powdroid",
	Short: "PowDroid measures the energy an Android device draws during a test session",
	Long: `PowDroid records a test session on a USB connected Android device, extracts its
battery history and rebuilds the voltage, current, power and energy of every
interval of the session, along with the state of the screen, radios, camera,
audio and the app in the foreground.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if !verbose {
			log.SetOutput(io.Discard)
		}
		setColor(!noColor)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML engine configuration (default: "+envConfig+" or the built-in metric set)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite session archive (default: "+envDB+", none when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print diagnostic logs")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
}

// envOr returns the value of the environment variable key, or def when unset.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// loadEnv loads the .env file when there is one.
func loadEnv() error {
	err := godotenv.Load()
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// newEngine returns an engine for the configured metric set.
func newEngine() (*engine.Engine, error) {
	p := configPath
	if p == "" {
		p = os.Getenv(envConfig)
	}
	cfg := config.Default()
	if p != "" {
		var err error
		if cfg, err = config.Load(p); err != nil {
			return nil, fmt.Errorf("loading configuration: %w", err)
		}
	}
	return engine.New(cfg)
}

// openDB opens the session archive, or returns nil when none is configured.
func openDB() (*sessiondb.DB, error) {
	p := dbPath
	if p == "" {
		p = os.Getenv(envDB)
	}
	if p == "" {
		return nil, nil
	}
	return sessiondb.Open(p)
}

func main() {
	if err := loadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}
