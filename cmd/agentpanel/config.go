package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pkt.systems/agentpanel/internal/appconfig"
	"pkt.systems/agentpanel/schema"
	"pkt.systems/pslog"
)

func newConfigCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or edit the panel config record",
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "panel config record (default ~/.config/claude-panel/config.json)")

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective record as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := appconfig.NewStore(cfgPath, pslog.Ctx(cmd.Context()))
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(store.Load())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", store.Path(), data)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set-mode <normal|sudo|dangerous>",
		Short: "Persist the permission mode used by new exchanges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := schema.ParsePermissionMode(args[0])
			if err != nil {
				return fmt.Errorf("mode %q: %w", args[0], err)
			}
			store, err := appconfig.NewStore(cfgPath, pslog.Ctx(cmd.Context()))
			if err != nil {
				return err
			}
			cfg := store.Load()
			cfg.PermissionMode = mode
			if err := store.Save(cfg); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "permission mode: %s\n", mode.Label())
			return err
		},
	})

	var overwrite bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default record",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := appconfig.WriteDefault(cfgPath, overwrite)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return err
		},
	}
	initCmd.Flags().BoolVar(&overwrite, "force", false, "overwrite an existing record")
	cmd.AddCommand(initCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the record location",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgPath
			if path == "" {
				var err error
				if path, err = appconfig.DefaultConfigPath(); err != nil {
					return err
				}
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	})
	return cmd
}
