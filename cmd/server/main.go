package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"valorantsl/internal/config"
	"valorantsl/internal/constants"
	fxmodules "valorantsl/internal/fx"
	"valorantsl/internal/middleware"
	"valorantsl/internal/server"
	"valorantsl/internal/worker"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runServer),
	).Run()
}

func runServer(
	lc fx.Lifecycle,
	srv *server.Server,
	rankSync *worker.RankSyncWorker,
	roleSync *worker.RoleSyncWorker,
	cfg *config.Config,
	db *sql.DB,
	logger zerolog.Logger,
) {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	handler := middleware.RequestID(logger)(c.Handler(srv.Routes()))

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: handler,
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(workerCtx)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info().Str("addr", httpSrv.Addr).Msg("server starting")
				if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			g.Go(func() error { return rankSync.Run(gctx) })
			g.Go(func() error { return roleSync.Run(gctx) })
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			cancelWorkers()
			// workers drop in-flight cycles on shutdown; the next cycle
			// after restart reconciles whatever was missed
			if err := g.Wait(); err != nil && err != context.Canceled {
				logger.Warn().Err(err).Msg("worker exited with error")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}

			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}
			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}
