package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/ramarlina/mcptastic/pkg/config"
	"github.com/ramarlina/mcptastic/pkg/mcp"
	"github.com/spf13/cobra"
)

var flagOwnerShort string

func init() {
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(setOwnerCmd)

	configCmd.AddCommand(configLsCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configExportCmd)
	configCmd.AddCommand(configImportCmd)

	setOwnerCmd.Flags().StringVar(&flagOwnerShort, "short", "", "Short name, up to 4 characters")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage local settings and device configuration",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var configLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all local settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.List()
		if err != nil {
			return err
		}

		// Sort keys for consistent output
		keys := make([]string, 0, len(settings))
		for k := range settings {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			v := settings[k]
			if v == "" {
				v = "(not set)"
			}
			fmt.Printf("%s = %s\n", k, v)
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a local setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := config.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a local setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Set(args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("%s = %s\n", args[0], args[1])
		return nil
	},
}

var configExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export the device configuration as YAML",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connectRadio()
		if err != nil {
			return err
		}
		defer r.Close()

		yml, err := r.ExportConfigYAML()
		if err != nil {
			return err
		}

		if len(args) == 1 {
			if err := os.WriteFile(args[0], []byte(yml), 0o644); err != nil {
				return err
			}
			fmt.Printf("Configuration written to %s\n", args[0])
			return nil
		}

		fmt.Print(yml)
		return nil
	},
}

var configImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Apply a YAML configuration document to the device",
	Long: `Apply a YAML configuration document to the device. The document
uses the same shape as "config export": owner, owner_short, channel_url,
location, and the config and module_config sections. Unknown keys are
skipped and reported, not fatal.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		r, err := connectRadio()
		if err != nil {
			return err
		}
		defer r.Close()

		lines, err := r.ApplyConfigYAML(string(data))
		if err != nil {
			return err
		}

		fmt.Println(mcp.FormatConfigureResult(lines))
		return nil
	},
}

var setOwnerCmd = &cobra.Command{
	Use:   "set-owner <long name>",
	Short: "Set the device owner names",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := connectRadio()
		if err != nil {
			return err
		}
		defer r.Close()

		if err := r.SetOwner(args[0], flagOwnerShort); err != nil {
			return err
		}

		long, short := r.Owner()
		fmt.Printf("Owner set: %s (%s)\n", long, short)
		return nil
	},
}
