package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"statswatch/internal/domain"
	"statswatch/internal/infrastructure/storage"
)

const pageTemplate = `
<html><body>
<a href="/d/widget-pro">Widget Pro</a>
<div>Widget Pro by Acme %d  %.2f (%d)</div>
</body></html>`

type fakeFetcher struct {
	mu    sync.Mutex
	html  string
	err   error
	gate  chan struct{}
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	html, err, gate := f.html, f.err, f.gate
	f.calls++
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return "", err
	}
	return html, nil
}

func (f *fakeFetcher) setPage(users int, rating float64, reviews int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.html = fmt.Sprintf(pageTemplate, users, rating, reviews)
}

type fakeNotifier struct {
	mu        sync.Mutex
	delivered []domain.Notification
	fail      bool
}

func (n *fakeNotifier) Deliver(_ context.Context, note domain.Notification) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delivered = append(n.delivered, note)
	return !n.fail
}

func (n *fakeNotifier) notifications() []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Notification(nil), n.delivered...)
}

func newTestMonitor(t *testing.T, fetcher *fakeFetcher, notifier *fakeNotifier) (*Monitor, *storage.SQLiteRepository) {
	t.Helper()

	repo, err := storage.Open(filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	_, err = repo.AddItem(context.Background(), "Trending", "https://chrome-stats.com/trending")
	require.NoError(t, err)

	monitor := NewMonitor(MonitorDeps{
		Fetcher:        fetcher,
		Repository:     repo,
		Notifier:       notifier,
		Logger:         slog.Default(),
		NotifyOnChange: true,
	})
	return monitor, repo
}

func TestFirstCycleSendsBaseline(t *testing.T) {
	fetcher := &fakeFetcher{}
	fetcher.setPage(120, 4.50, 8)
	notifier := &fakeNotifier{}
	monitor, repo := newTestMonitor(t, fetcher, notifier)
	ctx := context.Background()

	require.NoError(t, monitor.RunCycleNow(ctx))

	notes := notifier.notifications()
	require.Len(t, notes, 1)
	require.Equal(t, domain.NotificationBaseline, notes[0].Kind)
	require.Equal(t, "Widget Pro", notes[0].ItemName)
	require.Len(t, notes[0].Lines, 3, "baseline covers all three metrics")

	// The first observation never produces a change record.
	rows, err := repo.RecentChanges(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, rows)

	statuses, err := repo.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2, "configured source plus discovered item")
}

func TestChangeDetectedAndNotified(t *testing.T) {
	fetcher := &fakeFetcher{}
	fetcher.setPage(100, 4.50, 8)
	notifier := &fakeNotifier{}
	monitor, repo := newTestMonitor(t, fetcher, notifier)
	ctx := context.Background()

	require.NoError(t, monitor.RunCycleNow(ctx))
	fetcher.setPage(105, 4.50, 8)
	require.NoError(t, monitor.RunCycleNow(ctx))

	var updates []domain.Notification
	for _, n := range notifier.notifications() {
		if n.Kind == domain.NotificationUpdate {
			updates = append(updates, n)
		}
	}
	require.Len(t, updates, 1)
	require.Equal(t, []string{"Users: 100 → 105 (+5)"}, updates[0].Lines)

	rows, err := repo.RecentChanges(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, domain.MetricUsers, rows[0].Metric)
	require.Equal(t, "100", rows[0].OldValue)
	require.Equal(t, "105", rows[0].NewValue)
	require.True(t, rows[0].Notified)

	unnotified, err := repo.UnnotifiedChanges(ctx)
	require.NoError(t, err)
	require.Empty(t, unnotified)
}

func TestRatingNoiseIgnored(t *testing.T) {
	fetcher := &fakeFetcher{}
	fetcher.setPage(100, 4.50, 8)
	notifier := &fakeNotifier{}
	monitor, repo := newTestMonitor(t, fetcher, notifier)
	ctx := context.Background()

	require.NoError(t, monitor.RunCycleNow(ctx))
	fetcher.setPage(100, 4.51, 8)
	require.NoError(t, monitor.RunCycleNow(ctx))

	rows, err := repo.RecentChanges(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, rows, "rating drift within tolerance is not a change")
}

func TestRepeatCycleDoesNotRenotify(t *testing.T) {
	fetcher := &fakeFetcher{}
	fetcher.setPage(100, 4.50, 8)
	notifier := &fakeNotifier{}
	monitor, repo := newTestMonitor(t, fetcher, notifier)
	ctx := context.Background()

	require.NoError(t, monitor.RunCycleNow(ctx))
	baseline := len(notifier.notifications())

	// Same page, twice in a row: no new changes, no repeat notifications.
	require.NoError(t, monitor.RunCycleNow(ctx))
	require.NoError(t, monitor.RunCycleNow(ctx))

	require.Len(t, notifier.notifications(), baseline)

	rows, err := repo.RecentChanges(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestDeliveryFailureStillMarksNotified(t *testing.T) {
	fetcher := &fakeFetcher{}
	fetcher.setPage(100, 4.50, 8)
	notifier := &fakeNotifier{fail: true}
	monitor, repo := newTestMonitor(t, fetcher, notifier)
	ctx := context.Background()

	require.NoError(t, monitor.RunCycleNow(ctx))
	fetcher.setPage(105, 4.50, 8)
	require.NoError(t, monitor.RunCycleNow(ctx))

	// At-most-once: a failed delivery is not retried on a later cycle.
	unnotified, err := repo.UnnotifiedChanges(ctx)
	require.NoError(t, err)
	require.Empty(t, unnotified)

	before := len(notifier.notifications())
	require.NoError(t, monitor.RunCycleNow(ctx))
	require.Len(t, notifier.notifications(), before)
}

func TestNotifyDisabledStillRecordsChanges(t *testing.T) {
	fetcher := &fakeFetcher{}
	fetcher.setPage(100, 4.50, 8)
	notifier := &fakeNotifier{}

	repo, err := storage.Open(filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	_, err = repo.AddItem(context.Background(), "Trending", "https://chrome-stats.com/trending")
	require.NoError(t, err)

	monitor := NewMonitor(MonitorDeps{
		Fetcher:        fetcher,
		Repository:     repo,
		Notifier:       notifier,
		Logger:         slog.Default(),
		NotifyOnChange: false,
	})
	ctx := context.Background()

	require.NoError(t, monitor.RunCycleNow(ctx))
	fetcher.setPage(105, 4.50, 8)
	require.NoError(t, monitor.RunCycleNow(ctx))

	require.Empty(t, notifier.notifications())

	rows, err := repo.RecentChanges(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.True(t, rows[0].Notified, "changes are marked even when delivery is off")
}

func TestSingleFlight(t *testing.T) {
	fetcher := &fakeFetcher{gate: make(chan struct{})}
	fetcher.setPage(100, 4.50, 8)
	notifier := &fakeNotifier{}
	monitor, _ := newTestMonitor(t, fetcher, notifier)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- monitor.RunCycleNow(ctx) }()

	// Wait for the in-flight cycle to reach the fetcher.
	for {
		fetcher.mu.Lock()
		started := fetcher.calls > 0
		fetcher.mu.Unlock()
		if started {
			break
		}
		time.Sleep(time.Millisecond)
	}

	require.ErrorIs(t, monitor.RunCycleNow(ctx), ErrCycleRunning)

	close(fetcher.gate)
	require.NoError(t, <-done)
}

func TestSourceFailureIsolated(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("connection refused")}
	notifier := &fakeNotifier{}
	monitor, repo := newTestMonitor(t, fetcher, notifier)
	ctx := context.Background()

	// A failing source is logged and skipped; the cycle itself succeeds.
	require.NoError(t, monitor.RunCycleNow(ctx))

	statuses, err := repo.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	require.Nil(t, statuses[0].Latest)
}
