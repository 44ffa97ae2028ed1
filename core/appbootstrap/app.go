package appbootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"qualitrack/api"
	"qualitrack/config"
	"qualitrack/core/exports"
	"qualitrack/core/store"
	"qualitrack/core/utils"
)

func openDB(ctx context.Context, cfg *config.AppConfig, logger *utils.Logger) (*sql.DB, error) {
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := store.ApplyMigrations(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return db, nil
}

// Serve runs the HTTP API and the background workers until ctx is done.
func Serve(ctx context.Context, cfg *config.AppConfig, logger *utils.Logger) error {
	db, err := openDB(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	comp, err := composeRuntime(ctx, cfg, db, logger)
	if err != nil {
		return err
	}
	logger.Printf("nc transition guards enabled: %v", comp.service.GuardsEnabled())
	srv := api.NewServer(cfg, comp.serverDeps, logger)
	return srv.Run(ctx)
}

func Migrate(ctx context.Context, cfg *config.AppConfig, logger *utils.Logger) error {
	db, err := openDB(ctx, cfg, logger)
	if err != nil {
		return err
	}
	logger.Printf("migrations applied (%s)", cfg.DBDriver)
	return db.Close()
}

// Export writes one snapshot. With out set the encoded document goes there,
// otherwise it goes through the configured sink.
func Export(ctx context.Context, cfg *config.AppConfig, format string, out io.Writer, logger *utils.Logger) error {
	db, err := openDB(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	comp, err := composeRuntime(ctx, cfg, db, logger)
	if err != nil {
		return err
	}
	return exportWith(ctx, cfg, comp, format, out, logger)
}

func exportWith(ctx context.Context, cfg *config.AppConfig, comp *runtimeComposition, format string, out io.Writer, logger *utils.Logger) error {
	if out != nil {
		f, err := exports.ParseFormat(format)
		if err != nil {
			return err
		}
		details, err := comp.service.ListNCDetails(ctx, store.NCFilter{})
		if err != nil {
			return err
		}
		return exports.Encode(out, f, details)
	}
	exporter, err := newExporter(ctx, cfg, comp.service, format, comp.serverDeps.Metrics, logger)
	if err != nil {
		return err
	}
	res, err := exporter.Run(ctx)
	if err != nil {
		return err
	}
	logger.Printf("exported %d ncs to %s", res.Count, res.Location)
	return nil
}
