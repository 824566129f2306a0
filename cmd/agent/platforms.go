package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var platformsJSON bool

var platformsCmd = &cobra.Command{
	Use:   "platforms",
	Short: "Show which platforms have credentials configured",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if platformsJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cfg.PlatformStatus())
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), cfg.PlatformReport(time.Now()))
		return err
	},
}

func init() {
	platformsCmd.Flags().BoolVar(&platformsJSON, "json", false, "print the status as JSON")
}
