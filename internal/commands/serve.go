package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/balkashynov/evshift/internal/api"
	"github.com/balkashynov/evshift/internal/metrics"
	"github.com/balkashynov/evshift/internal/reconciler"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		interval time.Duration
		httpAddr string
		noHTTP   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reconciler loop and the admin API",
		Long: `Run reconciliation passes every interval until interrupted, and serve
the admin HTTP API unless --no-http is given. SIGINT and SIGTERM stop both
after the current pass finishes.

Examples:
  evshift serve
  evshift serve --interval 30s --http 0.0.0.0:8088`,
		Args: cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if !cmd.Flags().Changed("interval") {
				interval = a.cfg.Reconciler.Interval
			}
			if !cmd.Flags().Changed("http") {
				httpAddr = a.cfg.HTTP.Addr
			}
			serveHTTP := a.cfg.HTTP.Enabled && !noHTTP

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			rec := reconciler.New(a.store,
				reconciler.WithLogger(a.logger),
				reconciler.WithWorkers(a.cfg.Reconciler.Workers),
				reconciler.WithMetrics(metrics.New(reg)),
			)

			a.logger.Info("starting evshift",
				zap.String("version", version),
				zap.String("store", a.store.Describe()),
				zap.Bool("http", serveHTTP))

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				if err := rec.Run(ctx, interval); !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
			if serveHTTP {
				g.Go(func() error {
					return api.NewServer(a.store, rec, reg, a.logger).Serve(ctx, httpAddr)
				})
			}
			return g.Wait()
		}),
	}

	cmd.Flags().DurationVar(&interval, "interval", reconciler.DefaultInterval, "delay between reconciliation passes")
	cmd.Flags().StringVar(&httpAddr, "http", "", "admin API listen address")
	cmd.Flags().BoolVar(&noHTTP, "no-http", false, "do not start the admin API")
	return cmd
}
