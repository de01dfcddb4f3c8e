package main

import (
	"fmt"
	"strconv"
	"time"

	pb "github.com/meshtastic/go/generated"
	"github.com/ramarlina/mcptastic/pkg/mcp"
	"github.com/ramarlina/mcptastic/pkg/nodedb"
	"github.com/ramarlina/mcptastic/pkg/radio"
	"github.com/spf13/cobra"
)

var (
	flagWPDescription string
	flagWPIcon        string
	flagWPExpire      string
	flagWPID          int
	flagWPChannel     int
)

func init() {
	rootCmd.AddCommand(waypointCmd)

	waypointCmd.AddCommand(waypointSendCmd)
	waypointCmd.AddCommand(waypointDeleteCmd)
	waypointCmd.AddCommand(waypointLsCmd)

	waypointSendCmd.Flags().StringVar(&flagWPDescription, "description", "", "Waypoint description")
	waypointSendCmd.Flags().StringVar(&flagWPIcon, "icon", "", "Map icon, a single emoji")
	waypointSendCmd.Flags().StringVar(&flagWPExpire, "expire", "", "Expiry time (RFC3339; default 24h from now)")
	waypointSendCmd.Flags().IntVar(&flagWPID, "id", 0, "Waypoint ID to update (0 allocates a new one)")
	waypointSendCmd.Flags().IntVar(&flagWPChannel, "channel", 0, "Channel index")
	waypointDeleteCmd.Flags().IntVar(&flagWPChannel, "channel", 0, "Channel index")
}

var waypointCmd = &cobra.Command{
	Use:   "waypoint",
	Short: "Manage waypoints on the mesh",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var waypointSendCmd = &cobra.Command{
	Use:   "send <name> <lat> <lon>",
	Short: "Create or update a waypoint and broadcast it",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, lon, err := parseCoords(args[1], args[2])
		if err != nil {
			return err
		}

		expire := time.Now().Add(24 * time.Hour)
		if flagWPExpire != "" {
			expire, err = time.Parse(time.RFC3339, flagWPExpire)
			if err != nil {
				return fmt.Errorf("invalid expiry %q, want RFC3339", flagWPExpire)
			}
		}

		wp := &pb.Waypoint{
			Id:          uint32(flagWPID),
			Name:        args[0],
			Description: flagWPDescription,
			LatitudeI:   int32(lat * 1e7),
			LongitudeI:  int32(lon * 1e7),
			Expire:      uint32(expire.Unix()),
		}
		if flagWPIcon != "" {
			runes := []rune(flagWPIcon)
			wp.Icon = uint32(runes[0])
		}

		r, err := connectRadio()
		if err != nil {
			return err
		}
		defer r.Close()

		if _, err := r.SendWaypoint(wp, radio.BroadcastAddr, uint32(flagWPChannel)); err != nil {
			return err
		}

		if db, err := nodedb.Open(dbPath()); err == nil {
			db.SaveWaypoint(wp)
			db.Close()
		}

		fmt.Printf("Waypoint broadcast.\n%s\n", mcp.FormatWaypoint(wp))
		return nil
	},
}

var waypointDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Expire a waypoint across the mesh",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid waypoint id %q", args[0])
		}

		r, err := connectRadio()
		if err != nil {
			return err
		}
		defer r.Close()

		if _, err := r.DeleteWaypoint(uint32(id), radio.BroadcastAddr, uint32(flagWPChannel)); err != nil {
			return err
		}

		if db, err := nodedb.Open(dbPath()); err == nil {
			db.DeleteWaypoint(uint32(id))
			db.Close()
		}

		fmt.Printf("Waypoint %d expired.\n", id)
		return nil
	},
}

var waypointLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List recorded waypoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := nodedb.Open(dbPath())
		if err != nil {
			return err
		}
		defer db.Close()

		wps, err := db.Waypoints()
		if err != nil {
			return err
		}

		fmt.Println(mcp.FormatWaypointList(wps))
		return nil
	},
}
