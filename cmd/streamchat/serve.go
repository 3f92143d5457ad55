package main

import (
	"github.com/spf13/cobra"

	"github.com/vovakirdan/streamchat/internal/app"
	"github.com/vovakirdan/streamchat/internal/config"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect to the relay and serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			cfg.UpdateFrom(config.Config{Addr: addr})

			application, err := app.New(&cfg, logger)
			if err != nil {
				return err
			}

			logger.Info().
				Str("addr", cfg.Addr).
				Str("relay", cfg.Relay.URL).
				Str("channel", cfg.Relay.Channel).
				Msg("starting streamchat")
			if err := application.Run(cmd.Context()); err != nil {
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address override")
	return cmd
}
