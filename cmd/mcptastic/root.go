package main

import (
	"fmt"
	"os"

	"github.com/ramarlina/mcptastic/pkg/config"
	"github.com/ramarlina/mcptastic/pkg/radio"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	flagAddress   string
	flagTransport string
	flagDB        string

	// Version metadata (filled by goreleaser)
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "mcptastic",
	Short: "Control Meshtastic devices from AI assistants",
	Long:  "Control a Meshtastic mesh radio from the command line or over MCP",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Initialize configuration
		if _, err := config.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
			os.Exit(1)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAddress, "address", "", "Device address (hostname, IP, or serial port)")
	rootCmd.PersistentFlags().StringVar(&flagTransport, "transport", "", "Device transport: tcp or serial")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "Path to the node database")
}

// deviceAddress resolves the device address and transport from flags,
// falling back to the stored configuration.
func deviceAddress() (string, radio.Transport) {
	address := flagAddress
	if address == "" {
		address = config.GetAddress()
	}
	transport := flagTransport
	if transport == "" {
		transport = config.GetTransport()
	}
	if transport == string(radio.TransportSerial) {
		return address, radio.TransportSerial
	}
	return address, radio.TransportTCP
}

// dbPath resolves the node database path from flags or configuration.
func dbPath() string {
	if flagDB != "" {
		return flagDB
	}
	return config.GetDBPath()
}

// connectRadio dials the configured device. The caller owns the
// connection and must Close it.
func connectRadio() (*radio.Radio, error) {
	address, transport := deviceAddress()
	r, err := radio.Dial(address, transport)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	return r, nil
}
