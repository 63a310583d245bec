package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/hireloop/internal/auth"
	"github.com/spigell/hireloop/internal/config"
	"github.com/spigell/hireloop/internal/httpapi"
	"github.com/spigell/hireloop/internal/logger"
	"github.com/spigell/hireloop/internal/maintenance"
	"github.com/spigell/hireloop/internal/screening"
	"github.com/spigell/hireloop/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the maintenance scheduler",
	Run: func(_ *cobra.Command, _ []string) {
		l := newLogger()
		if err := serve(l); err != nil {
			l.Fatal("serving", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address, overrides server.addr")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func newLogger() *zap.Logger {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return l
}

func serve(logger *zap.Logger) error {
	cfg, err := getConfig()
	if err != nil {
		return fmt.Errorf("getting a config: %w", err)
	}

	logger.Info("starting the hireloop", zap.String("version", resolvedVersion()))

	if logger.Core().Enabled(zap.DebugLevel) {
		pretty, _ := json.MarshalIndent(redacted(*cfg), "", "  ")
		logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return err
	}

	secret, err := cfg.JWTSecret()
	if err != nil {
		return err
	}
	issuer, err := auth.NewIssuer(secret, cfg.Auth.SessionTTL)
	if err != nil {
		return err
	}

	var remote *auth.RemoteVerifier
	if cfg.Auth.Remote.Issuer != "" {
		remoteSecret, err := cfg.RemoteSecret()
		if err != nil {
			return err
		}
		if remote, err = auth.NewRemoteVerifier(cfg.Auth.Remote.Issuer, remoteSecret); err != nil {
			return err
		}
		logger.Info("managed auth enabled", zap.String("issuer", cfg.Auth.Remote.Issuer))
	}

	revoker, closeRevoker, err := newRevoker(ctx, cfg.Auth.Revocation, logger)
	if err != nil {
		return err
	}
	defer closeRevoker()

	providers, err := newProviders(ctx, cfg, logger)
	if err != nil {
		return err
	}

	api, err := httpapi.New(httpapi.Deps{
		Store:   st,
		Issuer:  issuer,
		Remote:  remote,
		Revoker: revoker,
		AI:      providers,
		Logger:  logger.Named("http"),
	}, httpapi.Options{
		CookieName:   cfg.Auth.CookieName,
		SecureCookie: cfg.Auth.SecureCookie,
		CORSOrigins:  cfg.Server.CORSOrigins,
		RateLimit:    cfg.AI.RateLimit,
		Burst:        cfg.AI.Burst,
		InterviewTTL: cfg.Interviews.InviteTTL,
		MaxLogLength: cfg.AI.MaxLogLength,
		Screening:    screening.Config{MinimumFitScore: cfg.AI.Screening.MinimumFitScore},
	})
	if err != nil {
		return err
	}

	scheduler, err := maintenance.New(st, maintenance.Config{
		SessionPurge:    cfg.Maintenance.SessionPurge,
		InterviewExpiry: cfg.Maintenance.InterviewExpiry,
	}, logger.Named("maintenance"))
	if err != nil {
		return err
	}
	scheduler.RunOnce()
	scheduler.Start()

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Warn("maintenance shutdown", zap.Error(err))
	}

	logger.Info("stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening the store: %w", err)
	}
	return st, nil
}

func newRevoker(ctx context.Context, cfg config.Revocation, logger *zap.Logger) (auth.Revoker, func(), error) {
	if cfg.Backend != "redis" {
		return auth.NewMemoryRevoker(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
	}

	logger.Info("token revocation backed by redis", zap.String("addr", cfg.RedisAddr))
	return auth.NewRedisRevoker(client), func() { client.Close() }, nil
}

// redacted blanks every inline secret before the config is logged.
func redacted(cfg config.Config) config.Config {
	hide := func(s *string) {
		if *s != "" {
			*s = "***"
		}
	}

	hide(&cfg.Database.DSN)
	hide(&cfg.Auth.JWTSecret)
	hide(&cfg.Auth.Remote.Secret)
	hide(&cfg.Auth.Revocation.RedisPassword)
	hide(&cfg.AI.Avatar.APIKey)
	for _, p := range []*config.Provider{&cfg.AI.Anthropic, &cfg.AI.OpenAI, &cfg.AI.Groq, &cfg.AI.Gemini, &cfg.AI.ElevenLabs} {
		hide(&p.APIKey)
	}
	return cfg
}
