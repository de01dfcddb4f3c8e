package main

import (
	"fmt"
	"strings"

	"github.com/ramarlina/mcptastic/pkg/mcp"
	"github.com/ramarlina/mcptastic/pkg/radio"
	"github.com/spf13/cobra"
)

var (
	flagSendDest    string
	flagSendChannel int
	flagSendAck     bool
	flagHopLimit    int
)

func init() {
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(tracerouteCmd)

	sendCmd.AddCommand(sendTextCmd)
	sendCmd.AddCommand(sendAlertCmd)
	sendCmd.AddCommand(sendTelemetryCmd)
	sendCmd.AddCommand(sendHeartbeatCmd)

	sendCmd.PersistentFlags().StringVar(&flagSendDest, "dest", "", "Destination node (!hex, decimal, or ^all)")
	sendCmd.PersistentFlags().IntVar(&flagSendChannel, "channel", 0, "Channel index")
	sendTextCmd.Flags().BoolVar(&flagSendAck, "ack", false, "Request an acknowledgement")

	tracerouteCmd.Flags().IntVar(&flagSendChannel, "channel", 0, "Channel index")
	tracerouteCmd.Flags().IntVar(&flagHopLimit, "hop-limit", 10, "Maximum hops to probe")
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send packets into the mesh",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var sendTextCmd = &cobra.Command{
	Use:   "text <message>",
	Short: "Send a text message",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dest, err := radio.ParseDestination(flagSendDest)
		if err != nil {
			return err
		}

		r, err := connectRadio()
		if err != nil {
			return err
		}
		defer r.Close()

		p, err := r.SendText(strings.Join(args, " "), dest, uint32(flagSendChannel), flagSendAck)
		if err != nil {
			return err
		}

		fmt.Println(mcp.FormatPacket(p))
		return nil
	},
}

var sendAlertCmd = &cobra.Command{
	Use:   "alert <message>",
	Short: "Send a high-priority alert that bypasses mute on receivers",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dest, err := radio.ParseDestination(flagSendDest)
		if err != nil {
			return err
		}

		r, err := connectRadio()
		if err != nil {
			return err
		}
		defer r.Close()

		p, err := r.SendAlert(strings.Join(args, " "), dest, uint32(flagSendChannel))
		if err != nil {
			return err
		}

		fmt.Println(mcp.FormatPacket(p))
		return nil
	},
}

var sendTelemetryCmd = &cobra.Command{
	Use:   "telemetry",
	Short: "Send device metrics, or request them from a node",
	RunE: func(cmd *cobra.Command, args []string) error {
		dest, err := radio.ParseDestination(flagSendDest)
		if err != nil {
			return err
		}

		r, err := connectRadio()
		if err != nil {
			return err
		}
		defer r.Close()

		p, err := r.SendTelemetry(dest, uint32(flagSendChannel))
		if err != nil {
			return err
		}

		fmt.Println(mcp.FormatPacket(p))
		return nil
	},
}

var sendHeartbeatCmd = &cobra.Command{
	Use:   "heartbeat",
	Short: "Send a heartbeat to keep the device link alive",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connectRadio()
		if err != nil {
			return err
		}
		defer r.Close()

		if err := r.SendHeartbeat(); err != nil {
			return err
		}

		fmt.Println("Heartbeat sent.")
		return nil
	},
}

var tracerouteCmd = &cobra.Command{
	Use:   "traceroute <dest>",
	Short: "Trace the route to a node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dest, err := radio.ParseDestination(args[0])
		if err != nil {
			return err
		}
		if dest == radio.BroadcastAddr {
			return fmt.Errorf("traceroute needs a specific destination node")
		}

		r, err := connectRadio()
		if err != nil {
			return err
		}
		defer r.Close()

		p, err := r.SendTraceroute(dest, uint32(flagHopLimit), uint32(flagSendChannel))
		if err != nil {
			return err
		}

		fmt.Printf("Traceroute to %s requested.\n%s\n", radio.NodeID(dest), mcp.FormatPacket(p))
		return nil
	},
}
