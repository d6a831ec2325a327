// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/solstat/pkg/vedirect"
)

var sensorsCmd = &cobra.Command{
	Use:   "sensors",
	Short: "List sensors and the labels that feed them",
	Long: `Print the sensor catalog with units and the VE.Direct label each sensor
is decoded from. Sensors not enabled by the configuration file are marked.

Does not open a connection.`,
	RunE: runSensors,
}

func init() {
	rootCmd.AddCommand(sensorsCmd)
}

func runSensors(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sensors, err := cfg.NewSensorSet()
	if err != nil {
		return err
	}

	sources := make(map[vedirect.SensorID]string)
	labels := vedirect.Labels()
	sort.Strings(labels)
	for _, label := range labels {
		for _, id := range vedirect.LabelSensors(label) {
			sources[id] = label
		}
	}

	fmt.Printf("%-32s %-32s %-6s %-6s %s\n", "ID", "NAME", "UNIT", "LABEL", "")
	fmt.Println(strings.Repeat("-", 84))
	for _, id := range vedirect.CatalogIDs() {
		info, enabled := sensors.Info(id)
		if !enabled {
			info = vedirect.Catalog()[id]
		}
		unit := info.Unit
		if info.Text {
			unit = "text"
		}
		mark := ""
		if !enabled {
			mark = "(disabled)"
		}
		fmt.Printf("%-32s %-32s %-6s %-6s %s\n", id, info.Name, unit, sources[id], mark)
	}
	return nil
}
