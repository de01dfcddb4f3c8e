package main

import (
	"fmt"

	"github.com/ramarlina/mcptastic/pkg/mcp"
	"github.com/ramarlina/mcptastic/pkg/radio"
	"github.com/spf13/cobra"
)

var (
	flagNodesSince  int
	flagNodesActive bool
)

func init() {
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(nodesCmd)
	rootCmd.AddCommand(channelsCmd)
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(versionCmd)

	nodesCmd.Flags().IntVar(&flagNodesSince, "since", 0, "Only nodes heard in the last N seconds")
	nodesCmd.Flags().BoolVar(&flagNodesActive, "active", false, "Only nodes with a known last-heard time")
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show device owner, firmware, and node list",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connectRadio()
		if err != nil {
			return err
		}
		defer r.Close()

		fmt.Println(mcp.FormatDeviceInfo(r))
		return nil
	},
}

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List nodes in the mesh",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connectRadio()
		if err != nil {
			return err
		}
		defer r.Close()

		nodes := r.Nodes()
		if flagNodesSince > 0 || flagNodesActive {
			nodes = radio.FilterNodes(nodes, flagNodesSince, flagNodesActive)
		}

		fmt.Println(mcp.FormatNodes(nodes, r.NodeNum()))
		return nil
	},
}

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "Show the device channel table and share URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connectRadio()
		if err != nil {
			return err
		}
		defer r.Close()

		fmt.Println(mcp.FormatChannels(r))
		return nil
	},
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports and likely Meshtastic devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := radio.ScanPorts()
		if err != nil {
			return err
		}

		fmt.Println(mcp.FormatPorts(ports))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s %s (commit %s, built %s)\n", mcp.ServerName, version, commit, date)
	},
}
