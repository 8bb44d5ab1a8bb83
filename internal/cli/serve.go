package cli

import (
	"context"
	"fmt"
	"time"

	"smartats/internal/config"
	"smartats/internal/errors"
	"smartats/internal/server"

	"github.com/spf13/cobra"
)

// serveFlags override the loaded server configuration for one run
type serveFlags struct {
	port     string
	host     string
	certFile string
	keyFile  string
}

func newServeCommand() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web form and JSON API",
		Long: `Start an HTTP server with the resume evaluation form and a JSON API.

Available endpoints:
- GET  /: Resume evaluation form
- POST /analyze: Form submission, answered with the rendered page
- POST /api/analyze: Same multipart fields, answered with JSON
- GET  /health: Health check endpoint
- GET  /stats: Server statistics and rate limiting info

TLS is enabled when both --cert-file and --key-file (or the matching
server.tls settings) are given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.port, "port", "p", "", "Port to listen on (default from config)")
	cmd.Flags().StringVar(&flags.host, "host", "", "Host to bind to (default from config)")
	cmd.Flags().StringVar(&flags.certFile, "cert-file", "", "Server certificate file (PEM, overrides config)")
	cmd.Flags().StringVar(&flags.keyFile, "key-file", "", "Server private key file (PEM, overrides config)")

	return cmd
}

// apply copies the flag overrides onto a copy of cfg and validates the result
func (f serveFlags) apply(cfg *config.Config) (*config.Config, error) {
	merged := *cfg
	if f.port != "" {
		merged.Server.Port = f.port
	}
	if f.host != "" {
		merged.Server.Host = f.host
	}
	if f.certFile != "" {
		merged.Server.TLS.CertFile = f.certFile
	}
	if f.keyFile != "" {
		merged.Server.TLS.KeyFile = f.keyFile
	}
	if merged.Server.TLS.Enabled() && merged.Server.TLS.MinVersion == "" {
		merged.Server.TLS.MinVersion = "1.2"
	}
	if err := merged.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}
	return &merged, nil
}

func runServe(cmd *cobra.Command, flags serveFlags) error {
	baseCfg, logger, factory, err := commandDeps(cmd)
	if err != nil {
		return err
	}
	cfg, err := flags.apply(baseCfg)
	if err != nil {
		return err
	}

	services, err := factory(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize analyzer: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := services.Close(ctx); err != nil {
			logger.LogError(err, "Failed to release analyzer resources")
		}
	}()

	deps := server.Deps{
		Analyzer:      services.Analyzer,
		Gateway:       services.Gateway,
		Observability: services.Observability,
	}

	srv := server.NewServer(server.NewServerConfig(cfg, Version), deps, logger)

	watcher, err := newAPIKeyWatcher(cfg, srv, logger)
	if err != nil {
		return err
	}
	srv.SetKeyWatcher(watcher)

	return srv.Start(cmd.Context())
}

// newAPIKeyWatcher polls Vault for server API keys when vault.pollInterval is set
func newAPIKeyWatcher(cfg *config.Config, srv *server.Server, logger *errors.Logger) (*server.VaultWatcher, error) {
	if !cfg.Vault.Enabled || cfg.Vault.PollInterval <= 0 || cfg.Vault.Secrets.APIKeys == "" {
		return nil, nil
	}
	client, err := config.NewVaultClient(cfg.Vault, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Vault client: %w", err)
	}
	return server.NewVaultWatcher(client, cfg.Vault.Secrets.APIKeys, cfg.Vault.PollInterval, srv.SetAPIKeys, logger), nil
}
