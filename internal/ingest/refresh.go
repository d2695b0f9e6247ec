package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/farecast/internal/metrics"
	"github.com/sells-group/farecast/internal/model"
	"github.com/sells-group/farecast/internal/normalize"
	"github.com/sells-group/farecast/internal/store"
)

// RefreshResult summarizes one refresh run.
type RefreshResult struct {
	RunID   string               `json:"run_id"`
	Entries []model.RefreshEntry `json:"entries"`
}

// Failed returns the number of tables whose refresh failed.
func (r *RefreshResult) Failed() int {
	n := 0
	for _, e := range r.Entries {
		if e.Status == model.RefreshStatusFailed {
			n++
		}
	}
	return n
}

// Refresher replaces the reference tables from the upstream API.
type Refresher struct {
	fetcher *ReferenceFetcher
	store   store.Store
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewRefresher creates a Refresher.
func NewRefresher(f *ReferenceFetcher, st store.Store, m *metrics.Metrics) *Refresher {
	return &Refresher{fetcher: f, store: st, metrics: m, now: time.Now}
}

// Run fetches, normalizes and replaces each reference table in turn, then
// re-applies the schema and indexes. Tables are independent: a failed or
// empty fetch leaves that table as it was and the run continues. The
// returned error is reserved for schema failures.
func (r *Refresher) Run(ctx context.Context, kinds ...model.Kind) (*RefreshResult, error) {
	if len(kinds) == 0 {
		kinds = model.ReferenceKinds
	}
	res := &RefreshResult{RunID: uuid.New().String()}
	log := zap.L().With(zap.String("component", "ingest"), zap.String("run_id", res.RunID))

	if err := r.store.EnsureSchema(ctx); err != nil {
		return res, eris.Wrap(err, "refresh: ensure schema")
	}

	for _, kind := range kinds {
		entry := r.refreshOne(ctx, kind)
		entry.RunID = res.RunID
		res.Entries = append(res.Entries, entry)

		if err := r.store.RecordRefresh(ctx, entry); err != nil {
			log.Error("failed to record refresh", zap.String("table", entry.Table), zap.Error(err))
		}
	}

	// Replacing a table drops its indexes.
	if err := r.store.EnsureSchema(ctx); err != nil {
		return res, eris.Wrap(err, "refresh: ensure schema")
	}

	log.Info("reference refresh complete",
		zap.Int("tables", len(res.Entries)),
		zap.Int("failed", res.Failed()),
	)
	return res, nil
}

func (r *Refresher) refreshOne(ctx context.Context, kind model.Kind) model.RefreshEntry {
	start := r.now()
	defer r.metrics.ObserveStage("refresh_"+string(kind), start)

	entry := model.RefreshEntry{Table: kind.Table(), StartedAt: start}
	finish := func(status model.RefreshStatus, rows int64, err error) model.RefreshEntry {
		entry.Status = status
		entry.Rows = rows
		if err != nil {
			entry.Error = err.Error()
		}
		entry.CompletedAt = r.now()
		return entry
	}

	raw, ok := r.fetcher.Fetch(ctx, kind)
	if !ok {
		return finish(model.RefreshStatusFailed, 0, eris.Errorf("fetch %s failed", kind))
	}

	tbl := normalize.Table(kind, raw, start.UTC())
	if tbl.Empty() {
		return finish(model.RefreshStatusSkipped, 0, nil)
	}

	n, err := r.store.ReplaceTable(ctx, tbl)
	if err != nil {
		zap.L().Error("failed to replace table",
			zap.String("component", "ingest"),
			zap.String("table", tbl.Name),
			zap.Error(err),
		)
		return finish(model.RefreshStatusFailed, 0, err)
	}
	r.metrics.Written(tbl.Name, n)
	return finish(model.RefreshStatusOK, n, nil)
}
