// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mlehane/sdkdump/internal/environ"
	"github.com/mlehane/sdkdump/internal/shell"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed simulator runtimes and devices",
}

var listRuntimesCmd = &cobra.Command{
	Use:   "runtimes",
	Short: "List installed simulator runtimes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctl := environ.NewDeviceControl(shell.OSRunner{})
		runtimes, err := ctl.Runtimes(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tBUILD\tIDENTIFIER")
		for _, rt := range runtimes {
			fmt.Fprintf(w, "%s\t%s\t%s\n", rt.Version, rt.Build, rt.Identifier)
		}
		return w.Flush()
	},
}

var listDevicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List simulator devices per installed runtime",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctl := environ.NewDeviceControl(shell.OSRunner{})
		runtimes, err := ctl.Runtimes(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUNTIME\tNAME\tUDID\tSTATE")
		for _, rt := range runtimes {
			devices, err := ctl.Devices(cmd.Context(), rt)
			if err != nil {
				return err
			}
			for _, dev := range devices {
				state := "Shutdown"
				if dev.Booted {
					state = "Booted"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rt.Version, dev.Name, dev.UDID, state)
			}
		}
		return w.Flush()
	},
}

func init() {
	listCmd.AddCommand(listRuntimesCmd)
	listCmd.AddCommand(listDevicesCmd)
	rootCmd.AddCommand(listCmd)
}
