package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/calisound/caliauth/api"
	"github.com/calisound/caliauth/config"
)

var (
	addr    string
	dataDir string
	backend string
	tlsCert string
	tlsKey  string
	envName string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the authentication server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(envFiles...)
		if err != nil {
			return err
		}
		applyServerFlags(cmd, cfg)
		logger := cfg.Logger(cmd.ErrOrStderr())
		if err := cfg.Validate(logger); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		st, err := openStack(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		a, err := newAPI(cfg, st, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		var tlsConfig *tls.Config
		if cfg.TLSCert != "" {
			cert, err := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
			if err != nil {
				return fmt.Errorf("failed to load TLS key pair: %w", err)
			}
			tlsConfig = &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			}
		} else if cfg.Production() {
			logger.Warn("serving plain HTTP; terminate TLS at the proxy and set CALI_SECURE_COOKIES=true")
		}

		server := &http.Server{
			Addr:              cfg.Addr,
			Handler:           newHandler(a),
			TLSConfig:         tlsConfig,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			var err error
			if tlsConfig != nil {
				err = server.ListenAndServeTLS("", "")
			} else {
				err = server.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner(cmd.OutOrStdout())
		logger.Info("listening",
			slog.String("component", "server"),
			slog.String("addr", cfg.Addr),
			slog.Bool("tls", tlsConfig != nil),
		)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("shutting down", slog.String("signal", sig.String()))
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

// applyServerFlags lets explicitly set flags override the environment.
func applyServerFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Addr = addr
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("backend") {
		cfg.SettingsBackend = backend
	}
	if flags.Changed("tls-cert") {
		cfg.TLSCert = tlsCert
	}
	if flags.Changed("tls-key") {
		cfg.TLSKey = tlsKey
	}
	if flags.Changed("env") {
		cfg.Env = envName
	}
}

func newAPI(cfg *config.Config, st *stack, logger *slog.Logger) (*api.API, error) {
	proxies, err := api.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("CALI_TRUSTED_PROXIES: %w", err)
	}
	opts := []api.Option{
		api.WithLogger(logger),
		api.WithTrustedProxies(proxies),
		api.WithSecureCookies(cfg.SecureCookies || cfg.TLSCert != ""),
	}
	if cfg.WebhookURL != "" {
		opts = append(opts, api.WithAuditWebhook(cfg.WebhookURL, cfg.WebhookAuth))
	}
	return api.New(st.auth, opts...), nil
}

func newHandler(a *api.API) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(api.SecurityHeaders)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Mount("/api/v1", a.Router())
	return r
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().StringVarP(&addr, "addr", "a", "127.0.0.1:8080", "Address to listen on")
	serverCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Directory for the bolt settings database")
	serverCmd.Flags().StringVar(&backend, "backend", config.BackendBolt, "Settings backend: memory, bolt or postgres")
	serverCmd.Flags().StringVar(&tlsCert, "tls-cert", "", "Path to TLS certificate file")
	serverCmd.Flags().StringVar(&tlsKey, "tls-key", "", "Path to TLS key file")
	serverCmd.Flags().StringVar(&envName, "env", config.EnvDevelopment, "Environment: development or production")
}
