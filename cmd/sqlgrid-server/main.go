// Command sqlgrid-server serves the statement dispatcher the remote
// backend talks to. It owns the database connection and answers one
// envelope per HTTP POST.
//
// Run with:
//
//	sqlgrid-server -config sqlgrid.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/koustreak/sqlgrid/internal/config"
	"github.com/koustreak/sqlgrid/internal/database"
	"github.com/koustreak/sqlgrid/internal/database/drivers"
	"github.com/koustreak/sqlgrid/internal/logger"
	"github.com/koustreak/sqlgrid/internal/rpc"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	envFile := flag.String("env", ".env", "optional .env file")
	flag.Parse()

	if err := config.LoadEnvFiles(*envFile); err != nil {
		logger.Fatal("env: " + err.Error())
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("config: " + err.Error())
	}

	log := logger.New(&cfg.Log)
	logger.SetGlobal(log)

	if err := run(cfg, log); err != nil {
		log.With().Err(err).Logger().Fatal("server stopped")
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Database.Driver == database.DriverRemote {
		return errors.New("the dispatcher needs a direct database driver, not remote")
	}

	backend, err := drivers.Open(ctx, &cfg.Database, log)
	if err != nil {
		return err
	}
	defer backend.Close()

	policy, err := rpc.LookupPolicy(cfg.RPC.DeletePolicy, backend)
	if err != nil {
		return err
	}

	d := rpc.NewDispatcher(backend, policy, log)
	srv := &http.Server{
		Addr:         cfg.RPC.Addr,
		Handler:      d.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.With().Str("addr", srv.Addr).Str("driver", string(cfg.Database.Driver)).
			Str("policy", cfg.RPC.DeletePolicy).Logger().Info("dispatcher listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown did not complete")
		return err
	}
	return nil
}
