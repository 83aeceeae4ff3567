package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nemith/xrcli/internal/config"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the devices in the inventory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if opts.inventory == "" {
			return errors.New("--inventory is required")
		}

		inv, err := config.New(opts.inventory)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tADDRESS\tTRANSPORT\tUSERNAME")
		for _, name := range inv.Names() {
			d := inv.Devices[name]
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, d.HostPort(), d.Transport, d.Username)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
