// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.bug.st/serial"

	"github.com/Thermoquad/solstat/internal/config"
	"github.com/Thermoquad/solstat/pkg/vedirect"
)

var (
	discoveryTimeout   int
	discoveryListPorts bool
)

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Identify the connected VE.Direct device",
	Long: `Listen for one complete block and report the device identity.

VE.Direct devices announce themselves in every block: PID is resolved to the
model name, FW to the firmware version and SER# is shown as sent. Nothing is
written to the device.

Examples:
  # Identify the device on a serial port
  solstat discovery --port /dev/ttyUSB0

  # List serial ports without connecting
  solstat discovery --list-ports

Exit codes:
  0 - Device identified
  1 - No product id received before timeout
  2 - Connection error`,
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoveryCmd)
	discoveryCmd.Flags().IntVar(&discoveryTimeout, "timeout", 5, "Timeout in seconds for discovery")
	discoveryCmd.Flags().BoolVar(&discoveryListPorts, "list-ports", false, "List serial ports and exit")
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	if discoveryListPorts {
		return listSerialPorts()
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(2)
	}
	cfg = identifyConfig(cfg)
	log, err := newLogger(cfg, nil, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(2)
	}

	s, err := openSession(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer s.Close()

	fmt.Printf("Solstat - Device Discovery\n")
	fmt.Printf("Connection: %s\n", s.connInfo)
	fmt.Printf("Timeout: %d seconds\n\n", discoveryTimeout)

	raw := newIdentityLabels()
	s.handle(raw)

	found, err := awaitIdentity(s, time.Duration(discoveryTimeout)*time.Second)
	switch {
	case found:
		printIdentity(s.sensors, raw.values())
		os.Exit(0)

	case err != nil && !errors.Is(err, errDiscoveryTimeout):
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)
	}

	if pid, seen := raw.values()["PID"]; seen {
		fmt.Fprintf(os.Stderr, "FAILED: Unknown product id %s\n", pid)
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "FAILED: No product id received within %d seconds\n", discoveryTimeout)
	} else {
		fmt.Fprintf(os.Stderr, "Connection closed before a device was identified\n")
	}
	os.Exit(1)
	return nil
}

var errDiscoveryTimeout = errors.New("discovery timed out")

// identifyConfig enables the sensors identification needs regardless of
// the [sensors] section
func identifyConfig(cfg config.Config) config.Config {
	cfg.Sensors.Enabled = []string{
		string(vedirect.DeviceType),
		string(vedirect.FirmwareVersion),
		string(vedirect.BMV),
	}
	return cfg
}

// identityLabels keeps the raw identity labels as sent, including ones
// without a sensor
type identityLabels struct {
	mu     sync.Mutex
	labels map[string]string
}

func newIdentityLabels() *identityLabels {
	return &identityLabels{labels: make(map[string]string)}
}

func (l *identityLabels) HandleRecord(r vedirect.Record) {
	switch r.Label {
	case "PID", "FW", "SER#", "BMV":
		l.mu.Lock()
		l.labels[r.Label] = r.Value
		l.mu.Unlock()
	}
}

func (l *identityLabels) values() map[string]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]string, len(l.labels))
	for k, v := range l.labels {
		out[k] = v
	}
	return out
}

// identified reports whether the block carrying a known product id has closed
func identified(s *session) bool {
	deviceType, ok := s.sensors.TextSensor(vedirect.DeviceType)
	return ok && deviceType.HasState() && s.stats.Snapshot().Blocks > 0
}

// awaitIdentity runs the session until the device is identified, the
// connection ends or timeout expires. A connection that ends without an
// identity returns (false, nil); an expired timeout returns
// errDiscoveryTimeout.
func awaitIdentity(s *session, timeout time.Duration) (bool, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errChan := make(chan error, 1)
	go func() {
		errChan <- s.run(ctx)
	}()

	poll := time.NewTicker(100 * time.Millisecond)
	defer poll.Stop()
	deadline := time.After(timeout)

	for {
		select {
		case <-poll.C:
			if identified(s) {
				return true, nil
			}

		case err := <-errChan:
			// A replayed capture usually ends before the next poll
			if identified(s) {
				return true, nil
			}
			return false, err

		case <-deadline:
			if identified(s) {
				return true, nil
			}
			return false, errDiscoveryTimeout
		}
	}
}

func printIdentity(sensors *vedirect.SensorSet, raw map[string]string) {
	text := func(id vedirect.SensorID) string {
		if s, ok := sensors.TextSensor(id); ok {
			if v, has := s.State(); has {
				return v
			}
		}
		return "(not sent)"
	}

	fmt.Printf("Device found:\n")
	fmt.Printf("  Model: %s\n", text(vedirect.DeviceType))
	fmt.Printf("  Product ID: %s\n", raw["PID"])
	fmt.Printf("  Firmware: %s\n", text(vedirect.FirmwareVersion))
	if ser, ok := raw["SER#"]; ok {
		fmt.Printf("  Serial: %s\n", ser)
	}
	if _, ok := raw["BMV"]; ok {
		fmt.Printf("  BMV: %s\n", text(vedirect.BMV))
	}
}

func listSerialPorts() error {
	ports, err := serial.GetPortsList()
	if err != nil {
		return fmt.Errorf("failed to list serial ports: %w", err)
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}
	for _, port := range ports {
		fmt.Println(port)
	}
	return nil
}
