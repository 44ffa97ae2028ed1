package exports

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"qualitrack/core/nc"
	"qualitrack/core/store"
	"qualitrack/core/utils"
)

// Source is the read side of the NC service used for snapshots.
type Source interface {
	ListNCDetails(ctx context.Context, filter store.NCFilter) ([]nc.NCDetail, error)
}

type Result struct {
	Location string
	Count    int
	Bytes    int
}

type Exporter struct {
	src      Source
	sink     Sink
	sealer   *Sealer
	format   string
	now      func() time.Time
	logger   *utils.Logger
	onFinish func(error)
}

type ExporterOption func(*Exporter)

func WithSealer(s *Sealer) ExporterOption { return func(e *Exporter) { e.sealer = s } }

func WithExportClock(now func() time.Time) ExporterOption {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

func WithExportLogger(l *utils.Logger) ExporterOption { return func(e *Exporter) { e.logger = l } }

// WithFinishHook is called after every run with its outcome.
func WithFinishHook(fn func(error)) ExporterOption { return func(e *Exporter) { e.onFinish = fn } }

func NewExporter(src Source, sink Sink, format string, opts ...ExporterOption) (*Exporter, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	e := &Exporter{src: src, sink: sink, format: f, now: utils.NowUTC}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run writes a snapshot of every NC to the sink.
func (e *Exporter) Run(ctx context.Context) (res Result, err error) {
	defer func() {
		if e.onFinish != nil {
			e.onFinish(err)
		}
	}()
	details, err := e.src.ListNCDetails(ctx, store.NCFilter{})
	if err != nil {
		return Result{}, fmt.Errorf("load details: %w", err)
	}
	var buf bytes.Buffer
	if err := Encode(&buf, e.format, details); err != nil {
		return Result{}, fmt.Errorf("encode %s: %w", e.format, err)
	}
	name := fmt.Sprintf("nc-export-%s.%s", e.now().UTC().Format("20060102T150405Z"), e.format)
	payload, contentType := buf.Bytes(), ContentType(e.format)
	if e.sealer != nil {
		payload, err = e.sealer.Seal(payload)
		if err != nil {
			return Result{}, fmt.Errorf("seal export: %w", err)
		}
		name += ".enc"
		contentType = "application/octet-stream"
	}
	loc, err := e.sink.Put(ctx, name, payload, contentType)
	if err != nil {
		return Result{}, err
	}
	e.logger.Printf("export written to %s (%d ncs)", loc, len(details))
	return Result{Location: loc, Count: len(details), Bytes: len(payload)}, nil
}
