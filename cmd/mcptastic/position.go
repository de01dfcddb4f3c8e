package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ramarlina/mcptastic/pkg/config"
	"github.com/ramarlina/mcptastic/pkg/geoip"
	"github.com/ramarlina/mcptastic/pkg/mcp"
	"github.com/ramarlina/mcptastic/pkg/radio"
	"github.com/spf13/cobra"
)

var (
	flagPosAlt     int
	flagPosDest    string
	flagPosChannel int
)

func init() {
	rootCmd.AddCommand(positionCmd)

	positionCmd.AddCommand(positionSetCmd)
	positionCmd.AddCommand(positionSendCmd)

	positionSetCmd.Flags().IntVar(&flagPosAlt, "alt", 0, "Altitude in meters")
	positionSendCmd.Flags().IntVar(&flagPosAlt, "alt", 0, "Altitude in meters")
	positionSendCmd.Flags().StringVar(&flagPosDest, "dest", "", "Destination node (!hex, decimal, or ^all)")
	positionSendCmd.Flags().IntVar(&flagPosChannel, "channel", 0, "Channel index")
}

var positionCmd = &cobra.Command{
	Use:   "position",
	Short: "Show the device position",
	Long: `Show the device position. When the device has no GPS fix,
an approximate position is derived from IP geolocation instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connectRadio()
		if err != nil {
			return err
		}
		defer r.Close()

		if pos := r.Position(); pos != nil {
			fmt.Println(mcp.FormatPosition(pos, "device"))
			return nil
		}

		geo := geoip.New(
			geoip.WithGeoURL(config.GetGeoURL()),
			geoip.WithElevationURL(config.GetElevationURL()),
		)
		loc, err := geo.Locate(context.Background())
		if err != nil {
			return fmt.Errorf("device has no GPS fix and IP geolocation failed: %w", err)
		}

		fmt.Println(mcp.FormatIPLocation(loc))
		return nil
	},
}

var positionSetCmd = &cobra.Command{
	Use:   "set <lat> <lon>",
	Short: "Pin the device to fixed coordinates",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, lon, err := parseCoords(args[0], args[1])
		if err != nil {
			return err
		}

		r, err := connectRadio()
		if err != nil {
			return err
		}
		defer r.Close()

		if err := r.SetFixedPosition(lat, lon, int32(flagPosAlt)); err != nil {
			return err
		}

		fmt.Printf("Device pinned to %.5f, %.5f (alt %dm).\n", lat, lon, flagPosAlt)
		return nil
	},
}

var positionSendCmd = &cobra.Command{
	Use:   "send <lat> <lon>",
	Short: "Broadcast a position packet",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, lon, err := parseCoords(args[0], args[1])
		if err != nil {
			return err
		}
		dest, err := radio.ParseDestination(flagPosDest)
		if err != nil {
			return err
		}

		r, err := connectRadio()
		if err != nil {
			return err
		}
		defer r.Close()

		p, err := r.SendPosition(lat, lon, int32(flagPosAlt), dest, uint32(flagPosChannel), false)
		if err != nil {
			return err
		}

		fmt.Printf("Position sent.\n%s\n", mcp.FormatPacket(p))
		return nil
	},
}

func parseCoords(latArg, lonArg string) (float64, float64, error) {
	lat, err := strconv.ParseFloat(latArg, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude %q", latArg)
	}
	lon, err := strconv.ParseFloat(lonArg, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude %q", lonArg)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("coordinates out of range: %f, %f", lat, lon)
	}
	return lat, lon, nil
}
