// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package run

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/database"
	"github.com/luxfi/database/badgerdb"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/luxfi/pegvm/api/health"
	"github.com/luxfi/pegvm/api/server"
	"github.com/luxfi/pegvm/vms/pegvm"
	"github.com/luxfi/pegvm/vms/pegvm/metrics"
)

const (
	vmName    = "pegvm"
	baseRoute = "bc/pegvm"

	healthRoute = "health"
)

func Command(logger log.Logger) *cobra.Command {
	c := &cobra.Command{
		Use:   "run",
		Short: "Runs a peg VM node serving its JSON-RPC API",
		RunE: func(c *cobra.Command, args []string) error {
			config, err := ParseFlags(c.Flags(), args)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(c.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return Run(ctx, logger, config)
		},
	}
	AddFlags(c.Flags())
	return c
}

// Run serves the VM until [ctx] is cancelled or the server fails.
func Run(ctx context.Context, logger log.Logger, config *Config) error {
	db, err := openDB(config.DBDir)
	if err != nil {
		return err
	}

	vmRegistry := metric.NewRegistry()
	vm := pegvm.New(logger)
	if err := vm.Initialize(ctx, db, config.ConfigBytes, pegvm.Options{
		Registerer: vmRegistry,
		Tracer:     otel.Tracer(vmName),
	}); err != nil {
		return errors.Join(
			fmt.Errorf("failed to initialize VM: %w", err),
			db.Close(),
		)
	}

	listener, err := net.Listen("tcp", config.Address())
	if err != nil {
		return errors.Join(
			fmt.Errorf("failed to listen on %s: %w", config.Address(), err),
			vm.Shutdown(ctx),
		)
	}

	apiRegistry := prometheus.NewRegistry()
	srv, err := server.New(
		logger,
		listener,
		vmName,
		config.AllowedOrigins,
		config.ShutdownTimeout,
		apiRegistry,
		metrics.Gatherer(vmRegistry),
		server.HTTPConfig{
			ReadTimeout:       config.ReadTimeout,
			ReadHeaderTimeout: config.ReadTimeout,
			WriteTimeout:      config.WriteTimeout,
			IdleTimeout:       config.IdleTimeout,
		},
	)
	if err != nil {
		return errors.Join(err, listener.Close(), vm.Shutdown(ctx))
	}

	handlers, err := vm.CreateHandlers(ctx)
	if err != nil {
		return errors.Join(err, listener.Close(), vm.Shutdown(ctx))
	}
	for endpoint, handler := range handlers {
		if err := srv.AddRoute(handler, baseRoute, endpoint); err != nil {
			return errors.Join(err, listener.Close(), vm.Shutdown(ctx))
		}
	}

	healthHandler, err := health.NewHandler(logger, vm, apiRegistry)
	if err != nil {
		return errors.Join(err, listener.Close(), vm.Shutdown(ctx))
	}
	if err := srv.AddRoute(healthHandler, healthRoute, ""); err != nil {
		return errors.Join(err, listener.Close(), vm.Shutdown(ctx))
	}

	logger.Info("serving peg VM",
		log.String("address", listener.Addr().String()),
		log.String("route", "/ext/"+baseRoute),
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(srv.Dispatch)
	eg.Go(func() error {
		<-egCtx.Done()
		logger.Info("shutting down API server")
		return srv.Shutdown()
	})
	err = eg.Wait()
	return errors.Join(err, vm.Shutdown(context.Background()))
}

func openDB(dir string) (database.Database, error) {
	if dir == "" {
		return memdb.New(), nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	db, err := badgerdb.New(
		dir,
		nil, // configBytes - use default
		"",  // namespace
		nil, // metrics
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %q: %w", dir, err)
	}
	return db, nil
}
