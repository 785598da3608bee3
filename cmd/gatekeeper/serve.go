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
	"golang.org/x/sync/errgroup"

	"github.com/layer-3/gatekeeper/service"
	httptransport "github.com/layer-3/gatekeeper/transport/http"
)

const shutdownTimeout = 10 * time.Second

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot, the verify API and the revocation scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		return serve(ctx, a)
	},
}

func serve(ctx context.Context, a *app) error {
	verification := a.verification()
	scheduler := service.NewScheduler(
		a.revocation(),
		a.cfg.ScanDuration(),
		a.cfg.ScanBatchSize,
		a.cfg.ScanMaxBatches,
		a.logger,
	)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           httptransport.SetupRouter(verification, a.cfg.FrontendURL, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return ignoreCanceled(a.bot.Listen(ctx, verification))
	})
	g.Go(func() error {
		return ignoreCanceled(scheduler.Run(ctx))
	})

	err := g.Wait()
	a.logger.Info("gatekeeper stopped")
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
