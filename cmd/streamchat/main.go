package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/streamchat/internal/config"
	"github.com/vovakirdan/streamchat/internal/log"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "streamchat: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "streamchat",
		Short:         "Twitch-style chat relay client with an HTTP API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (default ./config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(opts),
		newChatCmd(opts),
		newTokenCmd(opts),
	)
	return cmd
}

// load resolves configuration and builds the logger it asks for.
func (o *rootOptions) load() (config.Config, *zerolog.Logger, error) {
	bootstrap := log.New(o.levelOr("info"), "console")

	cfg, path, err := config.Load(bootstrap, o.configPath)
	if err != nil {
		return cfg, nil, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}

	logger := log.New(cfg.LogLevel, cfg.LogFormat)
	logger.Debug().Str("config", path).Msg("configuration loaded")
	return cfg, logger, nil
}

func (o *rootOptions) levelOr(fallback string) string {
	if o.logLevel != "" {
		return o.logLevel
	}
	return fallback
}
