package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/claimflow/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify claimflow configuration.

Without arguments, displays the effective configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the value in the user config file.

Configuration is stored at ~/.config/claimflow/config.yaml
Project-specific overrides can be placed in .claimflow.yaml`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch len(args) {
		case 0:
			settings := displaySettings(cfg)
			keys := make([]string, 0, len(settings))
			for k := range settings {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "%s: %v\n", k, settings[k])
			}
			fmt.Fprintf(out, "\nanthropic key source: %s\n", config.GetAPIKeySource(cfg))
			if p := config.GetProjectConfigPath(); p != "" {
				fmt.Fprintf(out, "project config: %s\n", p)
			}
			fmt.Fprintf(out, "user config: %s\n", config.GetUserConfigPath())
			return nil

		case 1:
			v, ok := displaySettings(cfg)[strings.ToLower(args[0])]
			if !ok {
				return fmt.Errorf("unknown configuration key: %s", args[0])
			}
			fmt.Fprintln(out, v)
			return nil

		default:
			updated, err := config.With(cfg, args[0], args[1])
			if err != nil {
				return err
			}
			if err := config.Save(updated); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}
			shown := args[1]
			if isSecretKey(args[0]) {
				shown = config.MaskAPIKey(shown)
			}
			fmt.Fprintf(out, "Set %s = %s\n", strings.ToLower(args[0]), shown)
			return nil
		}
	},
}

// displaySettings is config.Settings with secrets masked.
func displaySettings(c *config.Config) map[string]any {
	settings := config.Settings(c)
	for k, v := range settings {
		if isSecretKey(k) {
			s, _ := v.(string)
			settings[k] = config.MaskAPIKey(s)
		}
	}
	return settings
}

func isSecretKey(key string) bool {
	return strings.HasSuffix(strings.ToLower(key), "api_key")
}
