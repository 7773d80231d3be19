package scraper

import (
	"regexp"
	"strings"

	"statswatch/internal/domain"
)

// Magnitude ceilings beyond which a parsed record is treated as garbage.
const (
	maxUsers   = 10_000_000
	maxRating  = 5
	maxReviews = 100_000
	maxNameLen = 200
	minNameLen = 5
)

// Generic site chrome that the extractor sometimes captures as a "name".
var noiseNames = map[string]struct{}{
	"download": {}, "trending": {}, "review": {}, "reviews": {},
	"trend": {}, "trends": {}, "api": {}, "debug": {}, "test": {},
	"submit": {}, "upload": {}, "install": {}, "extension": {},
	"google": {}, "chrome": {}, "web": {}, "store": {}, "stats": {},
	"profile": {},
}

var (
	allDigits       = regexp.MustCompile(`^\d+$`)
	digitsAndPunct  = regexp.MustCompile(`^[\d\s.()]+$`)
	bareMetrics     = regexp.MustCompile(`^\s*\d+\s+\d+\.?\d*\s*\(\d+\)\s*$`)
	leadingMetrics  = regexp.MustCompile(`^\d+\s+\d+\.?\d*\s+\(`)
	embeddedURL     = regexp.MustCompile(`\s+https?://`)
	trailingMetrics = regexp.MustCompile(`\s+\d+\.?\d*\s*\(\d+\)\s*$`)
	runTogether     = regexp.MustCompile(`(?i)[a-z]\d{2,}\s*[a-z]`)
	doubleSpacing   = regexp.MustCompile(`\s{2,}`)
	metricAdjacent  = regexp.MustCompile(`[a-z0-9]\s+\d+\s+\d+\.\d+`)
)

// Filter rejects candidates that are extraction artifacts rather than real
// tracked items. Pure and order-preserving: identical input always yields
// identical output.
func Filter(candidates []domain.Candidate) []domain.Candidate {
	kept := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if valid(c) {
			kept = append(kept, c)
		}
	}
	return kept
}

func valid(c domain.Candidate) bool {
	if _, noise := noiseNames[strings.ToLower(c.Name)]; noise {
		return false
	}

	if len(c.Name) < minNameLen || allDigits.MatchString(c.Name) || digitsAndPunct.MatchString(c.Name) {
		return false
	}

	if c.Metrics.Users > maxUsers || c.Metrics.Rating > maxRating || c.Metrics.Reviews > maxReviews {
		return false
	}

	if strings.Contains(c.Name, "http") || strings.Contains(c.Name, "@") ||
		strings.Contains(c.Name, "/") || len(c.Name) > maxNameLen {
		return false
	}

	// The name field is itself just metric text: the name/metric boundary
	// was mis-detected upstream.
	if bareMetrics.MatchString(c.Name) {
		return false
	}

	// A fully empty reading is not a real observation. Items with users but
	// no ratings or reviews yet are real.
	if c.Metrics.Rating == 0 && c.Metrics.Reviews == 0 && c.Metrics.Users == 0 {
		return false
	}

	if leadingMetrics.MatchString(c.Name) || embeddedURL.MatchString(c.Name) {
		return false
	}

	// Trailing "X.XX (Y)" inside the name means the extractor over-captured
	// neighboring metadata.
	if trailingMetrics.MatchString(c.Name) {
		return false
	}

	// Run-together alphanumerics, repeated whitespace and word-number-number
	// adjacency are typical of concatenated DOM text fragments.
	if runTogether.MatchString(c.Name) || doubleSpacing.MatchString(c.Name) || metricAdjacent.MatchString(c.Name) {
		return false
	}

	return true
}
