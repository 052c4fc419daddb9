package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/getrelayd/relayd/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file without starting the daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfgPath == "" {
			return errors.New("validate requires --config")
		}
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		fmt.Printf("%s: OK (%d listeners, %d upstreams)\n",
			cfgPath, len(cfg.Listeners), len(cfg.Upstreams))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
