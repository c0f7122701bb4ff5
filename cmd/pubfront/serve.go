package main

import (
	"github.com/spf13/cobra"

	"github.com/eringen/pubfront"
	"github.com/eringen/pubfront/views"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		Example: `  # Serve with settings from .env
  pubfront serve

  # Override the listen address
  pubfront serve --addr :8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := pubfront.LoadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			app := pubfront.New(cfg, views.Default(cfg), pubfront.WithStaticDir("public"))
			defer app.Close()
			return app.Start(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides ADDR)")

	return cmd
}
