package domain

import "time"

// Metric names as persisted in change rows.
const (
	MetricUsers   = "users"
	MetricRating  = "rating"
	MetricReviews = "reviews"
)

// MetricOrder fixes the display order of metrics in notifications.
var MetricOrder = []string{MetricUsers, MetricRating, MetricReviews}

// Metrics is one reading of the three tracked counters.
type Metrics struct {
	Users   int
	Rating  float64
	Reviews int
}

// TrackedItem is an entity whose metrics are monitored over time,
// identified by its (name, url) pair.
type TrackedItem struct {
	ID        int64
	Name      string
	URL       string
	CreatedAt time.Time
}

// Candidate is a record pulled out of a fetched page before filtering.
type Candidate struct {
	Name      string
	URL       string
	Metrics   Metrics
	ScrapedAt time.Time
}

// Snapshot is one timestamped observation of an item's metrics.
// Immutable once written; ordered by capture time.
type Snapshot struct {
	ID          int64
	ItemID      int64
	Metrics     Metrics
	LastUpdated string
	CapturedAt  time.Time
}

// Delta describes one metric's movement between two consecutive snapshots.
// Values are kept as text for uniform display.
type Delta struct {
	Old   string
	New   string
	Diff  string
	Label string
}

// ChangeSet maps metric name to its delta. An absent metric means
// "unchanged"; an empty set means "no change this cycle".
type ChangeSet map[string]Delta

// Change is a persisted delta between two consecutive snapshots of one item.
type Change struct {
	ID         int64
	ItemID     int64
	Metric     string
	OldValue   string
	NewValue   string
	DetectedAt time.Time
	Notified   bool
	NotifiedAt time.Time
}

// ChangeRow joins a change with the identity of its item.
type ChangeRow struct {
	Change
	ItemName string
	ItemURL  string
}

// ItemStatus pairs an item with its most recent snapshot, if any.
type ItemStatus struct {
	Item   TrackedItem
	Latest *Snapshot
}

// NotificationKind distinguishes the payload variants handed to delivery.
type NotificationKind int

const (
	// NotificationBaseline reports an item's first observed state.
	NotificationBaseline NotificationKind = iota
	// NotificationUpdate reports deltas against the previous snapshot.
	NotificationUpdate
	// NotificationDigest batches leftover unnotified changes.
	NotificationDigest
)

// Notification is the payload handed to the delivery collaborator.
type Notification struct {
	Kind     NotificationKind
	ItemName string
	ItemURL  string
	Count    int
	Lines    []string
}
