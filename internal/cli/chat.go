package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"clinic-agent/internal/usecase"
)

const unreachableReply = "Sorry, I'm having trouble reaching the scheduling system right now. Please try again later."

var exitCommands = map[string]bool{
	"exit": true,
	"quit": true,
}

type chatter interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
}

func newChatCommand(opts *rootOptions) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the booking assistant in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, c, err := opts.load()
			if err != nil {
				return err
			}
			svc, err := c.ChatService()
			if err != nil {
				return err
			}
			if sessionID == "" {
				sessionID = uuid.NewString()
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runREPL(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), cfg.ClinicName, sessionID, svc)
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Resume a stored session")
	return cmd
}

// runREPL reads one user message per line until exit, EOF or a transport
// failure. Guard short-circuits and booking failures arrive as normal replies.
func runREPL(ctx context.Context, in io.Reader, out io.Writer, clinicName, sessionID string, svc chatter) error {
	farewell := fmt.Sprintf("Assistant: Thank you for contacting %s. Have a good day!", clinicName)
	fmt.Fprintf(out, "%s: Hello and welcome! How can I help you? (type 'exit' to quit)\n", clinicName)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "You: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			fmt.Fprintln(out, farewell)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if exitCommands[strings.ToLower(line)] {
			fmt.Fprintln(out, farewell)
			return nil
		}

		res, err := svc.Chat(ctx, usecase.ChatInput{SessionID: sessionID, Message: line})
		if err != nil {
			var ucErr *usecase.Error
			if errors.As(err, &ucErr) && ucErr.Code == usecase.ErrorInvalidInput {
				fmt.Fprintln(out, "Assistant: Sorry, I couldn't process that message. Could you rephrase it?")
				continue
			}
			fmt.Fprintln(out, "Assistant: "+unreachableReply)
			return err
		}
		sessionID = res.SessionID
		fmt.Fprintln(out, "Assistant: "+res.Reply)
	}
}
