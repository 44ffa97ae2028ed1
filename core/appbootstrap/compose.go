package appbootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"qualitrack/api"
	"qualitrack/config"
	"qualitrack/core/authz"
	"qualitrack/core/exports"
	"qualitrack/core/metrics"
	"qualitrack/core/nc"
	"qualitrack/core/store"
	"qualitrack/core/utils"
)

type runtimeComposition struct {
	serverDeps api.ServerDeps
	service    *nc.Service
	exporter   *exports.Exporter
	workers    []api.BackgroundWorker
}

func composeRuntime(ctx context.Context, cfg *config.AppConfig, db *sql.DB, logger *utils.Logger) (*runtimeComposition, error) {
	records := store.NewNCStore(db, store.DialectFor(cfg))
	return composeWithRecords(ctx, cfg, records, logger)
}

func composeWithRecords(ctx context.Context, cfg *config.AppConfig, records store.RecordStore, logger *utils.Logger) (*runtimeComposition, error) {
	ncMetrics := metrics.New()
	svc := nc.NewService(records,
		nc.WithLogger(logger),
		nc.WithRecorder(ncMetrics),
		nc.WithRegNoFormat(cfg.NC.RegNoFormat),
		nc.WithTransitionGuards(cfg.NC.EnforceTransitions),
	)
	policy, err := authz.NewPolicy()
	if err != nil {
		return nil, err
	}

	comp := &runtimeComposition{
		serverDeps: api.ServerDeps{
			NC:      svc,
			Policy:  policy,
			Metrics: ncMetrics,
		},
		service: svc,
	}
	if !cfg.Exports.Enabled {
		return comp, nil
	}

	exportLogger := logger.With("component", "exports")
	exporter, err := newExporter(ctx, cfg, svc, cfg.Exports.Format, ncMetrics, exportLogger)
	if err != nil {
		return nil, err
	}
	scheduler, err := exports.NewScheduler(cfg.Exports.Schedule, exporter, exportLogger)
	if err != nil {
		return nil, err
	}
	comp.exporter = exporter
	comp.workers = append(comp.workers, scheduler)
	comp.serverDeps.Workers = comp.workers
	return comp, nil
}

func newExporter(ctx context.Context, cfg *config.AppConfig, src exports.Source, format string, m *metrics.NCMetrics, logger *utils.Logger) (*exports.Exporter, error) {
	sink, err := exports.NewSink(ctx, cfg.Exports)
	if err != nil {
		return nil, fmt.Errorf("export sink: %w", err)
	}
	sealer, err := exports.NewSealerFromString(cfg.Exports.EncryptionKey)
	if err != nil {
		return nil, err
	}
	opts := []exports.ExporterOption{exports.WithExportLogger(logger)}
	if sealer != nil {
		opts = append(opts, exports.WithSealer(sealer))
	}
	if m != nil {
		opts = append(opts, exports.WithFinishHook(m.ExportFinished))
	}
	return exports.NewExporter(src, sink, format, opts...)
}
