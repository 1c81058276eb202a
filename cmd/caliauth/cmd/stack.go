package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.etcd.io/bbolt"

	"github.com/calisound/caliauth/auth"
	"github.com/calisound/caliauth/config"
	"github.com/calisound/caliauth/seal"
	"github.com/calisound/caliauth/session"
	"github.com/calisound/caliauth/settings"
	boltsettings "github.com/calisound/caliauth/settings/bbolt"
	"github.com/calisound/caliauth/settings/memory"
	"github.com/calisound/caliauth/settings/postgres"
)

// boltOpenTimeout bounds how long we wait for the bbolt file lock, which a
// running server holds.
const boltOpenTimeout = 2 * time.Second

// stack is the wired auth core shared by the server and the operator
// commands.
type stack struct {
	auth     *auth.Service
	sessions *session.Manager
	closers  []func()
}

// Close releases resources in reverse order of acquisition.
func (s *stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func openStack(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *stack, err error) {
	st := &stack{}
	defer func() {
		if err != nil {
			st.Close()
		}
	}()

	sealer, err := seal.NewSealer(cfg.SessionSecret)
	if err != nil {
		return nil, fmt.Errorf("creating sealer: %w", err)
	}

	var (
		store settings.Store
		revs  session.Revocations
	)
	switch cfg.SettingsBackend {
	case config.BackendMemory:
		store = memory.NewStore()
	case config.BackendBolt:
		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		bs, err := boltsettings.NewStoreFromFile(cfg.BoltPath(), &bbolt.Options{Timeout: boltOpenTimeout})
		if err != nil {
			return nil, fmt.Errorf("failed to open settings storage (is the server running?): %w", err)
		}
		st.closers = append(st.closers, func() { bs.Close() })
		br, err := session.NewBoltRevocations(bs.DB())
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, br.Close)
		store, revs = bs, br
	case config.BackendPostgres:
		ps, err := postgres.NewStoreFromDSN(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open settings storage: %w", err)
		}
		st.closers = append(st.closers, ps.Close)
		store = ps
	default:
		return nil, fmt.Errorf("unknown settings backend %q", cfg.SettingsBackend)
	}
	if cfg.SettingsKey != "" {
		// Keyed apart from the session secret: rotating that must only end
		// sessions.
		settingsSealer, err := seal.NewSealer(cfg.SettingsKey)
		if err != nil {
			return nil, fmt.Errorf("creating settings sealer: %w", err)
		}
		store = settings.NewSealed(store, settingsSealer, settings.TwoFactorSecretKey)
	}

	sessOpts := []session.Option{session.WithLogger(logger)}
	if revs != nil {
		sessOpts = append(sessOpts, session.WithRevocations(revs))
	}
	sessions, err := session.NewManager(sealer, sessOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating session manager: %w", err)
	}
	st.closers = append(st.closers, sessions.Close)
	st.sessions = sessions

	svc, err := auth.New(cfg.AdminPassword, sessions, store,
		auth.WithLogger(logger),
		auth.WithFailureDelay(cfg.FailureDelay),
		auth.WithIssuer(cfg.Issuer),
		auth.WithAccountName(cfg.AccountName),
	)
	if err != nil {
		return nil, fmt.Errorf("creating auth service: %w", err)
	}
	st.auth = svc

	logger.Info("auth core ready",
		slog.String("component", "server"),
		slog.String("settings_backend", cfg.SettingsBackend),
		slog.Bool("settings_sealed", cfg.SettingsKey != ""),
	)
	return st, nil
}
