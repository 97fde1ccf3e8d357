/*
Copyright © 2026 Deutsche Telekom AG.
*/
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/telekom/rbac-lookup/internal/server"
	"github.com/telekom/rbac-lookup/pkg/lookup"
)

var (
	bindAddress             string
	requestsPerSecond       float64
	burst                   int
	resyncPeriod            time.Duration
	cacheSyncTimeout        time.Duration
	gracefulShutdownTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve RBAC lookups over HTTP",
	Long: `Serve keeps informer caches of all RoleBindings and ClusterRoleBindings and
answers GET /lookup?subject=&kind=&namespace=&regex=&output= requests from them.
Probes are served on /healthz and /readyz, Prometheus metrics on /metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := validateServeFlags(requestsPerSecond, burst, cacheSyncTimeout, gracefulShutdownTimeout); err != nil {
			return err
		}

		clientset, err := newClientset()
		if err != nil {
			return err
		}
		source, err := lookup.NewInformerSource(clientset, resyncPeriod)
		if err != nil {
			return err
		}

		srv := server.New(source, source.HasSynced, klog.NewKlogr().WithName("server"), server.Options{
			Addr:                    bindAddress,
			RequestsPerSecond:       requestsPerSecond,
			Burst:                   burst,
			GracefulShutdownTimeout: gracefulShutdownTimeout,
			Tracer:                  tracerProvider.Tracer(),
		})

		g, ctx := errgroup.WithContext(ctrl.SetupSignalHandler())
		source.Start(ctx)
		g.Go(func() error {
			if err := source.WaitForCacheSync(ctx, cacheSyncTimeout); err != nil {
				return fmt.Errorf("unable to sync informer caches: %w", err)
			}
			setupLog.Info("informer caches synced")
			return nil
		})
		g.Go(func() error {
			return srv.Start(ctx)
		})
		return g.Wait()
	},
}

func validateServeFlags(rps float64, burst int, cacheSyncTimeout, shutdownTimeout time.Duration) error {
	if rps <= 0 {
		return fmt.Errorf("--requests-per-second must be positive, got %v", rps)
	}
	if burst <= 0 {
		return fmt.Errorf("--burst must be positive, got %d", burst)
	}
	if cacheSyncTimeout <= 0 {
		return fmt.Errorf("--cache-sync-timeout must be positive, got %s", cacheSyncTimeout)
	}
	if shutdownTimeout <= 0 {
		return fmt.Errorf("--graceful-shutdown-timeout must be positive, got %s", shutdownTimeout)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&bindAddress, "bind-address", server.DefaultAddr, "The address the lookup server binds to.")
	serveCmd.Flags().Float64Var(&requestsPerSecond, "requests-per-second", server.DefaultRequestsPerSecond, "Sustained /lookup requests per second before requests are rejected with 429.")
	serveCmd.Flags().IntVar(&burst, "burst", server.DefaultBurst, "Number of /lookup requests allowed in a burst.")
	serveCmd.Flags().DurationVar(&resyncPeriod, "resync-period", 10*time.Minute, "Informer resync period. 0 disables resyncs.")
	serveCmd.Flags().DurationVar(&cacheSyncTimeout, "cache-sync-timeout", 2*time.Minute, "Maximum time to wait for informer caches to sync.")
	serveCmd.Flags().DurationVar(&gracefulShutdownTimeout, "graceful-shutdown-timeout", server.DefaultGracefulShutdownTimeout, "Maximum time to wait for in-flight requests on shutdown.")
}
