// Command sqlgrid hosts the table editor: it opens the configured
// backend, offers the allowed tables through the shell, optionally loads
// a config table, and serves everything as a JSON API for a browser grid.
//
// Run with:
//
//	sqlgrid -config sqlgrid.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/koustreak/sqlgrid/internal/api"
	"github.com/koustreak/sqlgrid/internal/config"
	"github.com/koustreak/sqlgrid/internal/configtable"
	"github.com/koustreak/sqlgrid/internal/database/drivers"
	"github.com/koustreak/sqlgrid/internal/editor"
	"github.com/koustreak/sqlgrid/internal/filestore"
	"github.com/koustreak/sqlgrid/internal/filestore/minio"
	"github.com/koustreak/sqlgrid/internal/grid"
	"github.com/koustreak/sqlgrid/internal/logger"
	"github.com/koustreak/sqlgrid/internal/shell"
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
		log.With().Err(err).Logger().Fatal("editor host stopped")
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := drivers.Open(ctx, &cfg.Database, log)
	if err != nil {
		return err
	}
	defer backend.Close()

	d, err := drivers.DialectFor(cfg.Database.Driver, cfg.Dialect)
	if err != nil {
		return err
	}

	edOpts := editor.Options{
		DefaultValues:    cfg.Editor.DefaultRecord(),
		NoPrimaryKeyEdit: cfg.Editor.NoPrimaryKeyEdit,
		OrderBy:          cfg.Editor.OrderBy,
		Grid:             grid.Factory(),
		GridOptions:      cfg.Editor.GridOptions,
		Logger:           log,
	}

	sh, err := shell.New(cfg.Editor.Tables, shell.EditorFactory(backend, d, edOpts), log)
	if err != nil {
		return err
	}
	defer sh.Close()

	opts := []api.Option{api.WithLogger(log), api.WithTimeout(cfg.Server.WriteTimeout)}

	if cfg.ConfigTable.Table != "" {
		ce, err := configtable.New(backend, d, cfg.ConfigTable.Table, cfg.ConfigTable.Options, editor.Options{Logger: log})
		if err != nil {
			return err
		}
		if err := ce.Setup(ctx); err != nil {
			if ce.TableEditor() == nil {
				return err
			}
			log.With().Err(err).Logger().Warn("config table loaded with errors")
		}
		defer ce.Teardown()
		opts = append(opts, api.WithConfigEditor(ce))
	}

	if cfg.Export.Enabled {
		store, err := minio.New(ctx, &cfg.Export.Config)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, api.WithExporter(filestore.NewExporter(store, &cfg.Export.Config)))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.New(sh, opts...).Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.With().Str("addr", srv.Addr).Any("tables", sh.Tables()).Logger().Info("editor host listening")
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
