package cmds

import (
	"context"
	"strings"

	"github.com/go-go-golems/docchat/pkg/chatrunner"
	"github.com/go-go-golems/docchat/pkg/ui"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewAskCommand() *cobra.Command {
	var chatID string
	cmd := &cobra.Command{
		Use:   "ask TEXT...",
		Short: "Send one question and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return errors.New("nothing to ask")
			}
			s, err := setup(false)
			if err != nil {
				return err
			}

			waiter := newTurnWaiter()
			view := ui.NewWriterView(cmd.OutOrStdout(), cmd.ErrOrStderr())
			r, err := chatrunner.New(s, chatrunner.WithView(view), chatrunner.WithView(waiter))
			if err != nil {
				return err
			}
			defer func() { _ = r.Close() }()

			return r.Run(cmd.Context(), func(ctx context.Context) error {
				eng := r.Engine
				eng.Start(chatID)
				if err := eng.WaitIdle(ctx); err != nil {
					return err
				}
				if chatID != "" {
					if active, _ := eng.ActiveChatID(); active != chatID {
						return errors.Errorf("could not open conversation %s", chatID)
					}
				}

				waiter.reset()
				eng.SendMessage(text)
				ts := waiter.waitSettled(ctx)
				if ts == nil {
					return ctx.Err()
				}
				if !ts.OK {
					return errors.Errorf("no reply: %s", ts.Error)
				}
				return eng.WaitIdle(ctx)
			})
		},
	}
	cmd.Flags().StringVar(&chatID, "chat-id", "", "Continue this conversation instead of starting a new one")
	return cmd
}
