package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	clay "github.com/go-go-golems/clay/pkg"
	"github.com/go-go-golems/docchat/cmd/docchat/cmds"
	"github.com/go-go-golems/docchat/pkg/config"
	"github.com/go-go-golems/glazed/pkg/cmds/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "docchat",
	Short:        "docchat is a terminal client for the virtual medical consultation service",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// --log-level and co are only parsed at this point
		return logging.InitLoggerFromViper()
	},
}

func initRootCmd() error {
	config.AddFlags(rootCmd.PersistentFlags())

	if err := clay.InitViper(config.AppName, rootCmd); err != nil {
		return err
	}

	rootCmd.AddCommand(
		cmds.NewChatCommand(),
		cmds.NewAskCommand(),
		cmds.NewLoginCommand(),
		cmds.NewRegisterCommand(),
		cmds.NewLogoutCommand(),
		cmds.NewHistoryCommand(),
		cmds.NewConfigCommand(),
	)
	return nil
}

func main() {
	cobra.CheckErr(initRootCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	stop()
	cobra.CheckErr(err)
}
