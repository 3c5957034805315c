package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/antonio-prism/prism-brain/internal/api"
	"github.com/antonio-prism/prism-brain/internal/catalog"
	"github.com/antonio-prism/prism-brain/internal/model"
)

var (
	servePort    int
	serveCatalog string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scoring HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var risks []model.RiskEvent
		if serveCatalog != "" {
			r, err := catalog.LoadRisks(serveCatalog)
			if err != nil {
				return err
			}
			risks = r
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		srvAPI := api.New(api.Deps{
			Catalog:      risks,
			Calculator:   env.Resolver,
			Assessments:  env.Store,
			Signals:      env.Hub,
			Cache:        env.Cache,
			ThresholdPct: cfg.Prioritization.ProcessThresholdPct,
			MinScore:     cfg.Prioritization.MinRiskScore,
			WorkingDays:  cfg.Prioritization.WorkingDays,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           srvAPI.Router(cfg.Server.CORSOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.Int("catalog_risks", len(risks)),
			zap.Any("probability_sources", env.Resolver.Sources()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveCatalog, "catalog", "", "risk catalog file served to the scoring routes")
	rootCmd.AddCommand(serveCmd)
}
