package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zeusync/mist/internal/config"
	"github.com/zeusync/mist/internal/injector"
)

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func serveCmd() *cobra.Command {
	var (
		configPath string
		listenAddr string
		quicAddr   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the mist server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if listenAddr != "" {
				cfg.Server.ListenAddr = listenAddr
			}
			if quicAddr != "" {
				cfg.Server.QUICAddr = quicAddr
			}
			if err = cfg.Validate(); err != nil {
				return err
			}

			srv, cleanup, err := injector.InitializeServer(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err = srv.Start(ctx); err != nil {
				return err
			}

			done := make(chan error, 1)
			go func() { done <- srv.Wait() }()

			select {
			case <-ctx.Done():
			case err = <-done:
				if err != nil {
					return err
				}
			}
			return srv.Stop(context.Background())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the YAML configuration")
	cmd.Flags().StringVar(&listenAddr, "listen", "", "Override server.listen_addr")
	cmd.Flags().StringVar(&quicAddr, "quic", "", "Override server.quic_addr")

	return cmd
}
