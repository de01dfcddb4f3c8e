package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	flagAdminSecs    int
	flagResetConfirm bool
)

func init() {
	rootCmd.AddCommand(rebootCmd)
	rootCmd.AddCommand(shutdownCmd)
	rootCmd.AddCommand(factoryResetCmd)

	rebootCmd.Flags().IntVar(&flagAdminSecs, "seconds", 10, "Delay before rebooting")
	shutdownCmd.Flags().IntVar(&flagAdminSecs, "seconds", 10, "Delay before shutting down")
	factoryResetCmd.Flags().BoolVar(&flagResetConfirm, "yes", false, "Confirm the reset")
}

var rebootCmd = &cobra.Command{
	Use:   "reboot",
	Short: "Reboot the device",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagAdminSecs < 0 {
			return fmt.Errorf("seconds must not be negative")
		}

		r, err := connectRadio()
		if err != nil {
			return err
		}
		defer r.Close()

		if err := r.Reboot(int32(flagAdminSecs)); err != nil {
			return err
		}

		fmt.Printf("Device reboots in %d seconds.\n", flagAdminSecs)
		return nil
	},
}

var shutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Power off the device",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagAdminSecs < 0 {
			return fmt.Errorf("seconds must not be negative")
		}

		r, err := connectRadio()
		if err != nil {
			return err
		}
		defer r.Close()

		if err := r.Shutdown(int32(flagAdminSecs)); err != nil {
			return err
		}

		fmt.Printf("Device powers off in %d seconds.\n", flagAdminSecs)
		return nil
	},
}

var factoryResetCmd = &cobra.Command{
	Use:   "factory-reset",
	Short: "Wipe the device back to factory defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !flagResetConfirm {
			return fmt.Errorf("factory reset wipes all device settings; pass --yes to proceed")
		}

		r, err := connectRadio()
		if err != nil {
			return err
		}
		defer r.Close()

		if err := r.FactoryReset(); err != nil {
			return err
		}

		fmt.Println("Factory reset sent. The device wipes its settings and reboots with defaults.")
		return nil
	},
}
