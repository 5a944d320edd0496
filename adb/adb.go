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

// Package adb drives an Android device through the adb command line tool.
package adb

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/powdroid/powdroid/historianutils"
)

// DefaultPollInterval is how often device state is checked while waiting.
const DefaultPollInterval = time.Second

// stateDevice is the state adb reports for an authorized, usable device.
const stateDevice = "device"

// ErrNoDevice is returned when no usable device is connected.
var ErrNoDevice = errors.New("no device connected")

// Runner executes a command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, name string, args ...string) (string, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, name string, args ...string) (string, error) {
	return f(ctx, name, args...)
}

// ExecRunner runs commands on the host.
var ExecRunner Runner = RunnerFunc(historianutils.RunCommand)

// Device is one line of "adb devices".
type Device struct {
	Serial string
	State  string
}

// Client issues adb commands.
type Client struct {
	Runner Runner
	// Path of the adb binary.
	Path string
	// Serial selects the target device when more than one is connected.
	Serial string
	// PollInterval is the period of the Wait functions.
	PollInterval time.Duration
}

// New returns a client running the adb found on PATH.
func New() *Client {
	return &Client{
		Runner:       ExecRunner,
		Path:         "adb",
		PollInterval: DefaultPollInterval,
	}
}

// LookPath reports where the adb binary is, or an error when it is not installed.
func (c *Client) LookPath() (string, error) {
	p, err := exec.LookPath(c.Path)
	if err != nil {
		return "", fmt.Errorf("adb not found, install the Android platform tools and add them to PATH: %v", err)
	}
	return p, nil
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	if c.Serial != "" {
		args = append([]string{"-s", c.Serial}, args...)
	}
	return c.Runner.Run(ctx, c.Path, args...)
}

func (c *Client) shell(ctx context.Context, args ...string) (string, error) {
	return c.run(ctx, append([]string{"shell"}, args...)...)
}

// ParseDevices parses the output of "adb devices".
func ParseDevices(out string) []Device {
	var devices []Device
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}
		f := strings.Fields(line)
		if len(f) < 2 {
			continue
		}
		devices = append(devices, Device{Serial: f[0], State: f[1]})
	}
	return devices
}

// Devices lists the devices known to the adb server, whatever their state.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	out, err := c.Runner.Run(ctx, c.Path, "devices")
	if err != nil {
		return nil, err
	}
	return ParseDevices(out), nil
}

// Device returns the serial of the first usable device, or ErrNoDevice.
// When Serial is set, only that device is considered.
func (c *Client) Device(ctx context.Context) (string, error) {
	devices, err := c.Devices(ctx)
	if err != nil {
		return "", err
	}
	for _, d := range devices {
		if d.State != stateDevice {
			continue
		}
		if c.Serial == "" || c.Serial == d.Serial {
			return d.Serial, nil
		}
	}
	return "", ErrNoDevice
}

// WaitForConnection blocks until a usable device is connected and returns its serial.
func (c *Client) WaitForConnection(ctx context.Context) (string, error) {
	var serial string
	err := c.poll(ctx, func() (bool, error) {
		s, err := c.Device(ctx)
		switch {
		case errors.Is(err, ErrNoDevice):
			return false, nil
		case err != nil:
			return false, err
		}
		serial = s
		return true, nil
	})
	return serial, err
}

// WaitForDisconnection blocks until no usable device is connected.
func (c *Client) WaitForDisconnection(ctx context.Context) error {
	return c.poll(ctx, func() (bool, error) {
		_, err := c.Device(ctx)
		switch {
		case errors.Is(err, ErrNoDevice):
			return true, nil
		case err != nil:
			return false, err
		}
		return false, nil
	})
}

// poll calls done every PollInterval until it reports true, fails or ctx ends.
func (c *Client) poll(ctx context.Context, done func() (bool, error)) error {
	interval := c.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		ok, err := done()
		if err != nil || ok {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Model returns the product model of the device.
func (c *Client) Model(ctx context.Context) (string, error) {
	out, err := c.shell(ctx, "getprop", "ro.product.model")
	return strings.TrimSpace(out), err
}

// KillAll kills every background process of the device.
func (c *Client) KillAll(ctx context.Context) error {
	_, err := c.shell(ctx, "am", "kill-all")
	return err
}

// ResetStats clears the battery statistics so history starts at the reset.
func (c *Client) ResetStats(ctx context.Context) error {
	_, err := c.shell(ctx, "dumpsys", "batterystats", "--reset")
	return err
}

// EnableFullWakeHistory makes the device record every wakelock in its battery history,
// not only the first one held.
func (c *Client) EnableFullWakeHistory(ctx context.Context) error {
	_, err := c.shell(ctx, "dumpsys", "batterystats", "--enable", "full-wake-history")
	return err
}

// DumpBatteryStats writes the checkin form of the battery statistics to path.
func (c *Client) DumpBatteryStats(ctx context.Context, path string) error {
	out, err := c.shell(ctx, "dumpsys", "batterystats", "-c")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(out), 0644)
}

// BugReport captures a bug report into the zip file at path.
func (c *Client) BugReport(ctx context.Context, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	log.Printf("capturing bug report to %s", path)
	_, err := c.run(ctx, "bugreport", path)
	return err
}

// RestartServer restarts the adb server.
func (c *Client) RestartServer(ctx context.Context) error {
	if _, err := c.Runner.Run(ctx, c.Path, "kill-server"); err != nil {
		return err
	}
	_, err := c.Runner.Run(ctx, c.Path, "start-server")
	return err
}

// Install installs or replaces the given APK.
func (c *Client) Install(ctx context.Context, apk string) error {
	_, err := c.run(ctx, "install", "-r", apk)
	return err
}

// Uninstall removes the given package.
func (c *Client) Uninstall(ctx context.Context, pkg string) error {
	_, err := c.run(ctx, "uninstall", pkg)
	return err
}
