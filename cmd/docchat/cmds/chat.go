package cmds

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/docchat/pkg/chatrunner"
	"github.com/go-go-golems/docchat/pkg/config"
	"github.com/go-go-golems/docchat/pkg/ui"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewChatCommand() *cobra.Command {
	var (
		plain  bool
		chatID string
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the consultation chat",
		Long: `Open the consultation chat. On a terminal this starts the full-screen
interface; with --plain, or when input or output is redirected, it reads one
message per line and prints replies as they are typed out.

Plain mode understands a few commands: /new, /regen, /speak, /history,
/open ID and /quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tui := !plain && isatty.IsTerminal(os.Stdout.Fd()) && isatty.IsTerminal(os.Stdin.Fd())
			s, err := setup(tui)
			if err != nil {
				return err
			}

			if tui {
				return runTUI(cmd.Context(), s, chatID)
			}
			return runPlain(cmd.Context(), s, chatID, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "Line mode instead of the full-screen interface")
	cmd.Flags().StringVar(&chatID, "chat-id", "", "Open this conversation on start")
	return cmd
}

func runTUI(ctx context.Context, s *config.Settings, chatID string) error {
	view := ui.NewProgramView()
	defer view.Close()

	r, err := chatrunner.New(s, chatrunner.WithView(view))
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	return r.Run(ctx, func(ctx context.Context) error {
		model := ui.NewModel(r.Engine, ui.WithNoticeTTL(s.Notice.TTL))
		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		view.Attach(p)
		r.Engine.Start(chatID)

		log.Debug().Str("component", "chat").Msg("starting bubbletea program")
		_, err := p.Run()
		log.Debug().Err(err).Str("component", "chat").Msg("bubbletea program finished")
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	})
}

func runPlain(ctx context.Context, s *config.Settings, chatID string, in io.Reader, out, errOut io.Writer) error {
	waiter := newTurnWaiter()
	view := ui.NewWriterView(out, errOut, ui.WithReplay(true))

	r, err := chatrunner.New(s, chatrunner.WithView(view), chatrunner.WithView(waiter))
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	return r.Run(ctx, func(ctx context.Context) error {
		eng := r.Engine
		eng.Start(chatID)
		if err := eng.WaitIdle(ctx); err != nil {
			return err
		}

		lines := make(chan string)
		go func() {
			defer close(lines)
			sc := bufio.NewScanner(in)
			for sc.Scan() {
				select {
				case lines <- sc.Text():
				case <-ctx.Done():
					return
				}
			}
		}()

		for {
			_, _ = fmt.Fprint(errOut, "> ")
			var line string
			select {
			case <-ctx.Done():
				return nil
			case l, ok := <-lines:
				if !ok {
					return eng.WaitIdle(ctx)
				}
				line = strings.TrimSpace(l)
			}
			if line == "" {
				continue
			}

			waiter.reset()
			cmd, arg, _ := strings.Cut(line, " ")
			arg = strings.TrimSpace(arg)
			switch cmd {
			case "/quit", "/exit":
				return eng.WaitIdle(ctx)
			case "/new":
				eng.NewChat()
			case "/regen":
				eng.RegenerateResponse(arg)
				waiter.waitSettled(ctx)
			case "/speak":
				eng.Speak(arg)
			case "/history":
				printSessionHistory(errOut, r.Session)
				continue
			case "/open":
				eng.LoadConversationByID(arg)
			default:
				eng.SendMessage(line)
				waiter.waitSettled(ctx)
			}
			if err := eng.WaitIdle(ctx); err != nil {
				return err
			}
		}
	})
}
