package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"statswatch/internal/domain"
)

func openTestRepo(t *testing.T) (*SQLiteRepository, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "stats.db")
	repo, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo, path
}

func TestUpsertItemIdempotent(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()

	first, err := repo.UpsertItem(ctx, "Widget Pro", "https://chrome-stats.com/d/widget-pro")
	require.NoError(t, err)
	second, err := repo.UpsertItem(ctx, "Widget Pro", "https://chrome-stats.com/d/widget-pro")
	require.NoError(t, err)
	require.Equal(t, first, second)

	other, err := repo.UpsertItem(ctx, "Widget Pro", "https://chrome-stats.com/d/widget-pro-2")
	require.NoError(t, err)
	require.NotEqual(t, first, other, "same name under a different url is a different item")
}

func TestLatestSnapshot(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()

	id, err := repo.UpsertItem(ctx, "Widget Pro", "https://chrome-stats.com/d/widget-pro")
	require.NoError(t, err)

	latest, err := repo.LatestSnapshot(ctx, id)
	require.NoError(t, err)
	require.Nil(t, latest, "no snapshot before the first append")

	_, err = repo.AppendSnapshot(ctx, id, domain.Metrics{Users: 100, Rating: 4.5, Reviews: 8}, "")
	require.NoError(t, err)
	_, err = repo.AppendSnapshot(ctx, id, domain.Metrics{Users: 105, Rating: 4.5, Reviews: 8}, "")
	require.NoError(t, err)

	latest, err = repo.LatestSnapshot(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.Equal(t, 105, latest.Metrics.Users, "latest must be the most recently appended row")

	history, err := repo.History(ctx, id, 1)
	require.NoError(t, err)
	require.Len(t, history, 2, "append never overwrites")
}

func TestHistoryWindow(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()

	id, err := repo.UpsertItem(ctx, "Widget Pro", "https://chrome-stats.com/d/widget-pro")
	require.NoError(t, err)

	base := time.Now().UTC()
	repo.now = func() time.Time { return base.Add(-48 * time.Hour) }
	_, err = repo.AppendSnapshot(ctx, id, domain.Metrics{Users: 90, Rating: 4.4, Reviews: 7}, "")
	require.NoError(t, err)

	repo.now = func() time.Time { return base }
	_, err = repo.AppendSnapshot(ctx, id, domain.Metrics{Users: 100, Rating: 4.5, Reviews: 8}, "")
	require.NoError(t, err)

	recent, err := repo.History(ctx, id, 24)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, 100, recent[0].Metrics.Users)

	all, err := repo.History(ctx, id, 72)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, 90, all[0].Metrics.Users, "history is ordered oldest first")
}

func TestUnnotifiedChangesOrderAndMark(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()

	widget, err := repo.UpsertItem(ctx, "Widget Pro", "https://chrome-stats.com/d/widget-pro")
	require.NoError(t, err)
	tab, err := repo.UpsertItem(ctx, "Tab Organizer", "https://chrome-stats.com/d/tab-organizer")
	require.NoError(t, err)

	_, err = repo.AppendChange(ctx, tab, domain.MetricUsers, "50", "60")
	require.NoError(t, err)
	first, err := repo.AppendChange(ctx, widget, domain.MetricUsers, "100", "105")
	require.NoError(t, err)
	second, err := repo.AppendChange(ctx, widget, domain.MetricReviews, "8", "9")
	require.NoError(t, err)

	rows, err := repo.UnnotifiedChanges(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "Widget Pro", rows[0].ItemName, "ordered by item id first")
	require.Equal(t, domain.MetricUsers, rows[0].Metric)
	require.Equal(t, domain.MetricReviews, rows[1].Metric)
	require.Equal(t, "Tab Organizer", rows[2].ItemName)

	require.NoError(t, repo.MarkNotified(ctx, []int64{first.ID, second.ID}))

	rows, err = repo.UnnotifiedChanges(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "Tab Organizer", rows[0].ItemName)

	require.NoError(t, repo.MarkNotified(ctx, nil), "empty input is a no-op")
}

func TestMarkNotifiedSurvivesReopen(t *testing.T) {
	repo, path := openTestRepo(t)
	ctx := context.Background()

	id, err := repo.UpsertItem(ctx, "Widget Pro", "https://chrome-stats.com/d/widget-pro")
	require.NoError(t, err)
	change, err := repo.AppendChange(ctx, id, domain.MetricUsers, "100", "105")
	require.NoError(t, err)
	require.NoError(t, repo.MarkNotified(ctx, []int64{change.ID}))
	require.NoError(t, repo.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	rows, err := reopened.UnnotifiedChanges(ctx)
	require.NoError(t, err)
	require.Empty(t, rows, "notified flag must be persisted, not in-memory")

	recent, err := reopened.RecentChanges(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.True(t, recent[0].Notified)
	require.False(t, recent[0].NotifiedAt.IsZero())
}

func TestRecentChangesLimit(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()

	id, err := repo.UpsertItem(ctx, "Widget Pro", "https://chrome-stats.com/d/widget-pro")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err = repo.AppendChange(ctx, id, domain.MetricUsers, "1", "2")
		require.NoError(t, err)
	}

	rows, err := repo.RecentChanges(ctx, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)
}

func TestRemoveItemCascades(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()

	id, err := repo.UpsertItem(ctx, "Widget Pro", "https://chrome-stats.com/d/widget-pro")
	require.NoError(t, err)
	_, err = repo.AppendSnapshot(ctx, id, domain.Metrics{Users: 100, Rating: 4.5, Reviews: 8}, "")
	require.NoError(t, err)
	_, err = repo.AppendChange(ctx, id, domain.MetricUsers, "0", "100")
	require.NoError(t, err)

	require.NoError(t, repo.RemoveItem(ctx, id))

	items, err := repo.AllItems(ctx)
	require.NoError(t, err)
	require.Empty(t, items)

	history, err := repo.History(ctx, id, 1)
	require.NoError(t, err)
	require.Empty(t, history)

	rows, err := repo.RecentChanges(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestListItems(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()

	seeded, err := repo.AddItem(ctx, "Widget Pro", "https://chrome-stats.com/d/widget-pro")
	require.NoError(t, err)
	_, err = repo.AddItem(ctx, "Never Observed", "https://chrome-stats.com/d/never")
	require.NoError(t, err)

	_, err = repo.AppendSnapshot(ctx, seeded.ID, domain.Metrics{Users: 100, Rating: 4.5, Reviews: 8}, "")
	require.NoError(t, err)

	statuses, err := repo.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	byName := map[string]domain.ItemStatus{}
	for _, st := range statuses {
		byName[st.Item.Name] = st
	}
	require.NotNil(t, byName["Widget Pro"].Latest)
	require.Equal(t, 100, byName["Widget Pro"].Latest.Metrics.Users)
	require.Nil(t, byName["Never Observed"].Latest)
}
