package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/streamchat/internal/app"
	"github.com/vovakirdan/streamchat/internal/chat"
	"github.com/vovakirdan/streamchat/internal/config"
)

const (
	quitCommand = "/quit"
	joinCommand = "/join"
)

// chatSession is the part of *chat.Client the terminal loop drives.
type chatSession interface {
	Channel() string
	ChangeChannel(ctx context.Context, name string) error
	Send(ctx context.Context, text string) error
	Subscribe(buffer int) (<-chan chat.Entry, func())
}

func newChatCmd(root *rootOptions) *cobra.Command {
	var channel string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive terminal chat on the relay",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			cfg.UpdateFrom(config.Config{Relay: config.Relay{Channel: channel}})
			if err := cfg.Validate(); err != nil {
				return err
			}

			client, err := app.NewChatClient(&cfg, logger, nil)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			runErr := make(chan error, 1)
			go func() {
				defer cancel()
				runErr <- client.Run(ctx)
			}()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Joining #%s as %s. Type messages and press Enter to send.\n", client.Channel(), cfg.Relay.Username)
			fmt.Fprintf(out, "%s <channel> switches channel, %s exits.\n", joinCommand, quitCommand)

			if err := runTerminal(ctx, client, os.Stdin, out); err != nil {
				return err
			}
			cancel()
			return <-runErr
		},
	}
	cmd.Flags().StringVar(&channel, "channel", "", "channel to join (overrides relay.channel)")
	return cmd
}

// runTerminal prints entries as they arrive and executes input lines until
// /quit, end of input or ctx is done.
func runTerminal(ctx context.Context, session chatSession, in io.Reader, out io.Writer) error {
	entries, unsubscribe := session.Subscribe(64)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	printed := make(chan struct{})
	go func() {
		defer close(printed)
		printLoop(ctx, entries, out)
	}()

	err := inputLoop(ctx, session, in, out)
	cancel()
	<-printed
	return err
}

func printLoop(ctx context.Context, entries <-chan chat.Entry, out io.Writer) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-entries:
			if !ok {
				return
			}
			fmt.Fprintf(out, "[#%s] %s\n", e.Channel, e.String())
		}
	}
}

func inputLoop(ctx context.Context, session chatSession, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			done, err := execute(ctx, session, text)
			if err != nil {
				fmt.Fprintf(out, "! %s\n", describe(err))
			}
			if done {
				return nil
			}
		}
	}
}

func execute(ctx context.Context, session chatSession, text string) (bool, error) {
	switch {
	case text == quitCommand:
		return true, nil
	case text == joinCommand || strings.HasPrefix(text, joinCommand+" "):
		name := strings.TrimSpace(strings.TrimPrefix(text, joinCommand))
		return false, session.ChangeChannel(ctx, name)
	default:
		return false, session.Send(ctx, text)
	}
}

func describe(err error) string {
	switch {
	case errors.Is(err, chat.ErrNotConnected):
		return "not connected to the relay yet, try again shortly"
	case errors.Is(err, chat.ErrInvalidChannel):
		return "usage: /join <channel>"
	default:
		return err.Error()
	}
}
