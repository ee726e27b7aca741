package cmds

import (
	"fmt"
	"path/filepath"

	"github.com/go-go-golems/docchat/pkg/config"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective settings after file, environment and flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.Load()
			if err != nil {
				return err
			}
			b, err := yaml.Marshal(s)
			if err != nil {
				return errors.Wrap(err, "marshal settings")
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file in use, or where one would be read from",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			configPath := viper.ConfigFileUsed()
			if configPath == "" {
				configPath = filepath.Join(config.Dir(), "config.yaml")
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), configPath)
		},
	})
	return cmd
}
