// Package notify builds notification payloads. All builders here are pure
// transformations; delivery happens in the infrastructure layer.
package notify

import (
	"fmt"
	"strconv"
	"time"

	"statswatch/internal/domain"
)

var metricLabels = map[string]string{
	domain.MetricUsers:   "Users",
	domain.MetricRating:  "Rating",
	domain.MetricReviews: "Reviews",
}

// Baseline builds the first notification for an item, reporting its initial
// observed state rather than a delta.
func Baseline(name, url string, m domain.Metrics) domain.Notification {
	return domain.Notification{
		Kind:     domain.NotificationBaseline,
		ItemName: name,
		ItemURL:  url,
		Lines: []string{
			fmt.Sprintf("Users: %d", m.Users),
			fmt.Sprintf("Rating: %s", strconv.FormatFloat(m.Rating, 'g', -1, 64)),
			fmt.Sprintf("Reviews: %d", m.Reviews),
		},
	}
}

// FromChangeSet builds an update notification with one line per changed
// metric, in fixed metric order.
func FromChangeSet(name, url string, set domain.ChangeSet) domain.Notification {
	lines := make([]string, 0, len(set))
	for _, metric := range domain.MetricOrder {
		delta, ok := set[metric]
		if !ok {
			continue
		}
		lines = append(lines, delta.Label)
	}
	return domain.Notification{
		Kind:     domain.NotificationUpdate,
		ItemName: name,
		ItemURL:  url,
		Lines:    lines,
	}
}

// Digest batches leftover unnotified changes, grouped by item in encounter
// order. Every row carries its own detection timestamp.
func Digest(rows []domain.ChangeRow) domain.Notification {
	lines := make([]string, 0, len(rows))
	var current string
	for _, row := range rows {
		if row.ItemName != current {
			current = row.ItemName
			lines = append(lines, fmt.Sprintf("%s (%s)", row.ItemName, row.ItemURL))
		}
		label := metricLabels[row.Metric]
		if label == "" {
			label = row.Metric
		}
		lines = append(lines, fmt.Sprintf("  %s: %s → %s at %s",
			label, row.OldValue, row.NewValue, row.DetectedAt.UTC().Format(time.RFC3339)))
	}
	return domain.Notification{
		Kind:  domain.NotificationDigest,
		Count: len(rows),
		Lines: lines,
	}
}
