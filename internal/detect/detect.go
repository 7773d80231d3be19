// Package detect compares two consecutive metric readings of one item.
package detect

import (
	"fmt"
	"math"
	"strconv"

	"statswatch/internal/domain"
)

// ratingTolerance guards against floating-point noise in parsed ratings.
const ratingTolerance = 0.01

// Detect compares the previous reading against the current one and returns
// the set of changed metrics. Users and reviews change on exact integer
// inequality; rating changes only when the difference exceeds the tolerance.
// An empty set means no change this cycle.
func Detect(prev, curr domain.Metrics) domain.ChangeSet {
	changes := domain.ChangeSet{}

	if prev.Users != curr.Users {
		diff := curr.Users - prev.Users
		changes[domain.MetricUsers] = domain.Delta{
			Old:   strconv.Itoa(prev.Users),
			New:   strconv.Itoa(curr.Users),
			Diff:  signedInt(diff),
			Label: fmt.Sprintf("Users: %d → %d (%s)", prev.Users, curr.Users, signedInt(diff)),
		}
	}

	if math.Abs(curr.Rating-prev.Rating) > ratingTolerance {
		diff := math.Round((curr.Rating-prev.Rating)*100) / 100
		changes[domain.MetricRating] = domain.Delta{
			Old:   formatRating(prev.Rating),
			New:   formatRating(curr.Rating),
			Diff:  strconv.FormatFloat(diff, 'f', 2, 64),
			Label: fmt.Sprintf("Rating: %s → %s", formatRating(prev.Rating), formatRating(curr.Rating)),
		}
	}

	if prev.Reviews != curr.Reviews {
		diff := curr.Reviews - prev.Reviews
		changes[domain.MetricReviews] = domain.Delta{
			Old:   strconv.Itoa(prev.Reviews),
			New:   strconv.Itoa(curr.Reviews),
			Diff:  signedInt(diff),
			Label: fmt.Sprintf("Reviews: %d → %d (%s)", prev.Reviews, curr.Reviews, signedInt(diff)),
		}
	}

	return changes
}

func signedInt(v int) string {
	if v > 0 {
		return "+" + strconv.Itoa(v)
	}
	return strconv.Itoa(v)
}

func formatRating(r float64) string {
	return strconv.FormatFloat(r, 'g', -1, 64)
}
