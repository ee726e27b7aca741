package cmds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/go-go-golems/docchat/pkg/chat"
	"github.com/go-go-golems/docchat/pkg/chatrunner"
	"github.com/go-go-golems/docchat/pkg/config"
	"github.com/go-go-golems/docchat/pkg/session"
	"github.com/go-go-golems/docchat/pkg/ui"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

var tableHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var tableCellStyle = lipgloss.NewStyle().Padding(0, 1)

func NewHistoryCommand() *cobra.Command {
	var (
		offline bool
		output  string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past conversations",
		Long: `List past conversations, most recent first. The list is fetched from the
server and copied into the local cache; --offline reads the cache only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := setup(false)
			if err != nil {
				return err
			}

			convs, err := loadHistory(cmd.Context(), s, offline, limit)
			if err != nil {
				return err
			}
			return writeHistory(cmd.OutOrStdout(), output, convs, time.Now())
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Read from the local cache without contacting the server")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, yaml, json)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of conversations to list")

	cmd.AddCommand(newHistoryShowCommand())
	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	var (
		offline bool
		raw     bool
	)
	cmd := &cobra.Command{
		Use:   "show CHAT_ID",
		Short: "Print one conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := setup(false)
			if err != nil {
				return err
			}

			conv, err := loadConversation(cmd.Context(), s, strings.TrimSpace(args[0]), offline)
			if err != nil {
				return err
			}
			doc := conversationMarkdown(conv)
			out := cmd.OutOrStdout()
			if raw || !isatty.IsTerminal(os.Stdout.Fd()) {
				_, err = io.WriteString(out, doc)
				return err
			}
			width := 80
			if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
				width = w
			}
			rendered, err := ui.RenderMarkdown(doc, width)
			if err != nil {
				return errors.Wrap(err, "render conversation")
			}
			_, err = io.WriteString(out, rendered)
			return err
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Read from the local cache without contacting the server")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print markdown without rendering it")
	return cmd
}

func loadHistory(ctx context.Context, s *config.Settings, offline bool, limit int) ([]chat.Conversation, error) {
	store, err := chatrunner.OpenStore(s.Cache)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	if offline {
		return store.ListConversations(ctx, limit)
	}

	c, err := chatrunner.NewClient(s)
	if err != nil {
		return nil, err
	}
	convs, err := c.ChatHistory(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetch history")
	}
	if err := store.SyncHistory(ctx, convs); err != nil {
		log.Warn().Err(err).Str("component", "history").Msg("could not update the local cache")
	}
	if limit > 0 && len(convs) > limit {
		convs = convs[:limit]
	}
	return convs, nil
}

func loadConversation(ctx context.Context, s *config.Settings, chatID string, offline bool) (chat.Conversation, error) {
	store, err := chatrunner.OpenStore(s.Cache)
	if err != nil {
		return chat.Conversation{}, err
	}
	defer func() { _ = store.Close() }()

	cached, found, err := store.GetConversation(ctx, chatID)
	if err != nil {
		return chat.Conversation{}, err
	}
	if offline {
		if !found {
			return chat.Conversation{}, errors.Errorf("conversation %s is not in the local cache", chatID)
		}
		return cached, nil
	}

	c, err := chatrunner.NewClient(s)
	if err != nil {
		return chat.Conversation{}, err
	}
	msgs, err := c.Conversation(ctx, chatID)
	if err != nil {
		return chat.Conversation{}, errors.Wrapf(err, "fetch conversation %s", chatID)
	}
	conv := cached
	conv.ID = chatID
	conv.Messages = msgs
	if err := store.UpsertConversation(ctx, conv); err != nil {
		log.Warn().Err(err).Str("component", "history").Msg("could not update the local cache")
	}
	return conv, nil
}

func writeHistory(w io.Writer, format string, convs []chat.Conversation, now time.Time) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if convs == nil {
			convs = []chat.Conversation{}
		}
		return enc.Encode(convs)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(convs); err != nil {
			return errors.Wrap(err, "encode yaml")
		}
		return enc.Close()
	case "table", "":
		if len(convs) == 0 {
			_, err := fmt.Fprintln(w, "No conversations yet")
			return err
		}
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("DATE", "CHAT ID", "TITLE", "MESSAGES").
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return tableHeaderStyle
				}
				return tableCellStyle
			})
		for _, c := range convs {
			t.Row(chat.FormatDate(c.CreatedAt.Time, now), c.ID, c.DisplayTitle(), fmt.Sprint(len(c.Messages.Visible())))
		}
		_, err := fmt.Fprintln(w, t.Render())
		return err
	default:
		return errors.Errorf("unknown output format %q", format)
	}
}

func conversationMarkdown(conv chat.Conversation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", conv.DisplayTitle())
	if !conv.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "_%s_\n\n", conv.CreatedAt.Format("2006-01-02 15:04"))
	}
	for _, m := range conv.Messages.Visible() {
		label := "Assistant"
		if m.Role == chat.RoleUser {
			label = "You"
		}
		fmt.Fprintf(&b, "**%s**\n\n%s\n\n", label, strings.TrimSpace(m.Content))
	}
	return b.String()
}

// printSessionHistory lists the conversations the engine last synced.
func printSessionHistory(w io.Writer, st *session.State) {
	if !st.HistoryLoaded() {
		_, _ = fmt.Fprintln(w, "History not loaded yet")
		return
	}
	convs := st.History()
	if len(convs) == 0 {
		_, _ = fmt.Fprintln(w, "No conversations yet")
		return
	}
	active, _ := st.ActiveID()
	now := time.Now()
	for _, c := range convs {
		marker := " "
		if c.ID == active {
			marker = "*"
		}
		_, _ = fmt.Fprintf(w, "%s %-12s %s  %s\n", marker, chat.FormatDate(c.CreatedAt.Time, now), c.ID, c.DisplayTitle())
	}
}
