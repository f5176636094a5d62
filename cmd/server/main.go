package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/DoyleJ11/idiom-party-backend/internal/config"
	"github.com/DoyleJ11/idiom-party-backend/internal/coordinator"
	"github.com/DoyleJ11/idiom-party-backend/internal/httpapi"
	"github.com/DoyleJ11/idiom-party-backend/internal/logging"
	"github.com/DoyleJ11/idiom-party-backend/internal/ws"
)

const releaseVersion = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newCmd().ExecuteContext(ctx)
	stop()
	cobra.CheckErr(err)
}

func newCmd() *cobra.Command {
	cfg := &config.Config{}

	cmd := &cobra.Command{
		Use:     "idiom-party",
		Short:   "Game server for a guess-the-idiom party game.",
		Args:    cobra.NoArgs,
		Version: releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			if err := config.ApplyEnv(cmd.Flags(), viper.New()); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cfg.RegisterFlags(cmd.Flags())

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	log, err := logging.New(cfg.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	sockets := ws.NewServer(ws.Options{
		OriginPatterns: cfg.AllowedOrigins,
		MessageRate:    rate.Limit(cfg.MessageRate),
		MessageBurst:   cfg.MessageBurst,
		Logger:         log.Named("ws"),
	})
	coord := coordinator.New(ctx, sockets, coordinator.Options{
		Rules:  cfg.Rules(),
		Logger: log.Named("coordinator"),
	})

	// Build the router with the coordinator injected
	handler := httpapi.SetupRoutes(coord, sockets.Handler(coord), httpapi.RouteOptions{
		PublicURL: cfg.PublicURL,
		Logger:    log.Named("http"),
	})
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr), zap.String("version", releaseVersion))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", zap.Duration("grace", cfg.ShutdownGrace))

		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownGrace)
		defer cancel()
		err := srv.Shutdown(sctx)
		sockets.CloseAll()
		coord.Shutdown()
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped", zap.Error(err))
		return err
	}
	log.Info("server stopped")
	return nil
}
