package ports

import (
	"context"
	"time"

	"statswatch/internal/domain"
)

// PageFetcher retrieves the raw HTML of a statistics page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Repository persists tracked items, snapshots and change records.
type Repository interface {
	// UpsertItem returns the id of the (name, url) item, creating it on
	// first sight. Safe to call repeatedly with identical arguments.
	UpsertItem(ctx context.Context, name, url string) (int64, error)
	// AllItems lists every tracked item ordered by name.
	AllItems(ctx context.Context) ([]domain.TrackedItem, error)
	// LatestSnapshot returns the item's newest snapshot, or nil if none exists.
	LatestSnapshot(ctx context.Context, itemID int64) (*domain.Snapshot, error)
	// AppendSnapshot always inserts a new row; capture time is assigned at call time.
	AppendSnapshot(ctx context.Context, itemID int64, m domain.Metrics, lastUpdated string) (domain.Snapshot, error)
	// AppendChange records one metric delta for an item.
	AppendChange(ctx context.Context, itemID int64, metric, oldValue, newValue string) (domain.Change, error)
	// UnnotifiedChanges lists changes not yet notified, with item identity,
	// ordered by item then detection time.
	UnnotifiedChanges(ctx context.Context) ([]domain.ChangeRow, error)
	// MarkNotified flags the listed change ids as notified; no-op on empty input.
	MarkNotified(ctx context.Context, ids []int64) error

	ListItems(ctx context.Context) ([]domain.ItemStatus, error)
	History(ctx context.Context, itemID int64, sinceHours int) ([]domain.Snapshot, error)
	RecentChanges(ctx context.Context, limit int) ([]domain.ChangeRow, error)
	AddItem(ctx context.Context, name, url string) (domain.TrackedItem, error)
	RemoveItem(ctx context.Context, itemID int64) error
}

// Notifier delivers a notification to the outbound channel. Delivery failure
// is reported as false, never as a panic or an error that aborts the cycle.
type Notifier interface {
	Deliver(ctx context.Context, n domain.Notification) bool
}

// Scheduler controls when monitoring cycles execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
