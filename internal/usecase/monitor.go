package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"statswatch/internal/detect"
	"statswatch/internal/domain"
	"statswatch/internal/notify"
	"statswatch/internal/ports"
	"statswatch/internal/scraper"
)

// ErrCycleRunning is returned when a cycle trigger arrives while another
// cycle is still in flight.
var ErrCycleRunning = errors.New("monitoring cycle already in flight")

// MonitorDeps wires all driven adapters into the monitoring use case.
type MonitorDeps struct {
	Fetcher        ports.PageFetcher
	Repository     ports.Repository
	Notifier       ports.Notifier
	Driver         ports.Scheduler
	Logger         *slog.Logger
	NotifyOnChange bool
}

// Monitor owns the fetch → extract → filter → diff → persist → notify cycle
// and the query surface exposed to the surrounding application.
type Monitor struct {
	fetcher        ports.PageFetcher
	repo           ports.Repository
	notifier       ports.Notifier
	driver         ports.Scheduler
	logger         *slog.Logger
	notifyOnChange bool
	running        atomic.Bool
}

// NewMonitor constructs the orchestration component.
func NewMonitor(deps MonitorDeps) *Monitor {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		fetcher:        deps.Fetcher,
		repo:           deps.Repository,
		notifier:       deps.Notifier,
		driver:         deps.Driver,
		logger:         logger,
		notifyOnChange: deps.NotifyOnChange,
	}
}

// RunCycleNow executes one full monitoring cycle. At most one cycle runs at
// a time; a trigger arriving mid-cycle returns ErrCycleRunning without side
// effects.
func (m *Monitor) RunCycleNow(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrCycleRunning
	}
	defer m.running.Store(false)

	return m.runCycle(ctx)
}

func (m *Monitor) runCycle(ctx context.Context) error {
	m.logger.Info("starting monitoring cycle")

	items, err := m.repo.AllItems(ctx)
	if err != nil {
		return fmt.Errorf("load tracked items: %w", err)
	}
	if len(items) == 0 {
		m.logger.Warn("no tracked items configured")
		return nil
	}

	for _, src := range items {
		if err := m.processSource(ctx, src); err != nil {
			m.logger.Error("source processing failed",
				"name", src.Name, "url", src.URL, "error", err)
		}
	}

	m.sweepUnnotified(ctx)
	m.logger.Info("monitoring cycle completed")
	return nil
}

// processSource fetches one tracked URL and processes every valid record the
// page yields. A listing page may carry many items beyond the tracked one.
func (m *Monitor) processSource(ctx context.Context, src domain.TrackedItem) error {
	html, err := m.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	candidates, err := scraper.Extract(src.URL, html)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	records := scraper.Filter(candidates)
	if len(records) == 0 {
		return fmt.Errorf("no valid records on page (%d candidates filtered)", len(candidates))
	}

	m.logger.Debug("page processed",
		"url", src.URL, "candidates", len(candidates), "valid", len(records))

	for _, rec := range records {
		if err := m.processRecord(ctx, rec); err != nil {
			m.logger.Error("record processing failed", "name", rec.Name, "error", err)
		}
	}
	return nil
}

func (m *Monitor) processRecord(ctx context.Context, rec domain.Candidate) error {
	itemID, err := m.repo.UpsertItem(ctx, rec.Name, rec.URL)
	if err != nil {
		return fmt.Errorf("upsert item: %w", err)
	}

	// The previous snapshot must be read before appending the new one.
	prev, err := m.repo.LatestSnapshot(ctx, itemID)
	if err != nil {
		return fmt.Errorf("latest snapshot: %w", err)
	}

	if _, err := m.repo.AppendSnapshot(ctx, itemID, rec.Metrics, rec.ScrapedAt.Format(time.RFC3339)); err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}

	if prev == nil {
		m.logger.Info("first snapshot recorded, sending baseline", "name", rec.Name)
		if m.notifyOnChange {
			if !m.notifier.Deliver(ctx, notify.Baseline(rec.Name, rec.URL, rec.Metrics)) {
				m.logger.Warn("baseline delivery failed", "name", rec.Name)
			}
		}
		return nil
	}

	set := detect.Detect(prev.Metrics, rec.Metrics)
	if len(set) == 0 {
		return nil
	}
	m.logger.Info("changes detected", "name", rec.Name, "metrics", len(set))

	ids := make([]int64, 0, len(set))
	for _, metric := range domain.MetricOrder {
		delta, ok := set[metric]
		if !ok {
			continue
		}
		change, err := m.repo.AppendChange(ctx, itemID, metric, delta.Old, delta.New)
		if err != nil {
			return fmt.Errorf("append change: %w", err)
		}
		ids = append(ids, change.ID)
	}

	if m.notifyOnChange {
		if !m.notifier.Deliver(ctx, notify.FromChangeSet(rec.Name, rec.URL, set)) {
			m.logger.Warn("update delivery failed", "name", rec.Name)
		}
	}

	// Changes are marked notified regardless of delivery outcome: delivery
	// is at-most-once, a flaky transport must not cause repeat noise.
	if err := m.repo.MarkNotified(ctx, ids); err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}

// sweepUnnotified picks up change rows that slipped through the per-record
// path, attempts one digest delivery, and marks them notified.
func (m *Monitor) sweepUnnotified(ctx context.Context) {
	rows, err := m.repo.UnnotifiedChanges(ctx)
	if err != nil {
		m.logger.Error("load unnotified changes", "error", err)
		return
	}
	if len(rows) == 0 {
		return
	}

	m.logger.Info("sweeping unnotified changes", "count", len(rows))
	if m.notifyOnChange {
		if !m.notifier.Deliver(ctx, notify.Digest(rows)) {
			m.logger.Warn("digest delivery failed", "count", len(rows))
		}
	}

	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	if err := m.repo.MarkNotified(ctx, ids); err != nil {
		m.logger.Error("mark swept changes", "error", err)
	}
}

// Start attaches the monitor to its scheduler driver: one immediate cycle,
// then one per interval. Ticks arriving mid-cycle are skipped.
func (m *Monitor) Start(ctx context.Context) error {
	if m.driver == nil {
		return nil
	}

	return m.driver.Start(ctx, func(time.Time) {
		err := m.RunCycleNow(ctx)
		if errors.Is(err, ErrCycleRunning) {
			m.logger.Debug("tick skipped, cycle in flight")
			return
		}
		if err != nil {
			m.logger.Error("scheduled cycle failed", "error", err)
		}
	})
}

// Stop tears down the scheduler driver.
func (m *Monitor) Stop(ctx context.Context) error {
	if m.driver == nil {
		return nil
	}
	return m.driver.Stop(ctx)
}

// ListItems returns every tracked item with its latest metrics.
func (m *Monitor) ListItems(ctx context.Context) ([]domain.ItemStatus, error) {
	return m.repo.ListItems(ctx)
}

// History returns the item's snapshots from the last sinceHours hours.
func (m *Monitor) History(ctx context.Context, itemID int64, sinceHours int) ([]domain.Snapshot, error) {
	return m.repo.History(ctx, itemID, sinceHours)
}

// RecentChanges returns the newest detected changes with item identity.
func (m *Monitor) RecentChanges(ctx context.Context, limit int) ([]domain.ChangeRow, error) {
	return m.repo.RecentChanges(ctx, limit)
}

// AddSource seeds a source URL; per-item discovery happens on the next cycle.
func (m *Monitor) AddSource(ctx context.Context, name, url string) (domain.TrackedItem, error) {
	return m.repo.AddItem(ctx, name, url)
}

// RemoveItem deletes a tracked item along with its snapshots and changes.
func (m *Monitor) RemoveItem(ctx context.Context, itemID int64) error {
	return m.repo.RemoveItem(ctx, itemID)
}
