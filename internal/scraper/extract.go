package scraper

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"statswatch/internal/domain"
)

// Extract pulls candidate records out of a fetched listing page.
//
// The association between a name and its metrics is done by regex proximity
// over the page's full text, not by DOM structure: for each unique anchor
// name the first occurrence of "name, non-digit filler, integer, decimal,
// (integer)" is read as users, rating and reviews. This mirrors the shape of
// the upstream site and is intentionally kept as a heuristic; a structured
// extractor can replace this function without touching downstream stages.
func Extract(pageURL, html string) ([]domain.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	origin := pageOrigin(pageURL)
	fullText := doc.Text()

	type anchor struct {
		name string
		url  string
	}
	var anchors []anchor
	seen := map[string]struct{}{}

	// Detail links carry the display name; the first occurrence of a name wins.
	doc.Find(`a[href*="/d/"]`).Each(func(_ int, link *goquery.Selection) {
		name := strings.TrimSpace(link.Text())
		href, ok := link.Attr("href")
		if name == "" || !ok || href == "" {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		anchors = append(anchors, anchor{name: name, url: resolveHref(origin, href)})
	})

	now := time.Now().UTC()
	candidates := make([]domain.Candidate, 0, len(anchors))

	for _, a := range anchors {
		expr, err := regexp.Compile(regexp.QuoteMeta(a.name) + `[^0-9]*?(\d+)\s+([0-9.]+)\s*\((\d+)\)`)
		if err != nil {
			continue
		}

		match := expr.FindStringSubmatch(fullText)
		if match == nil {
			// No stats near this name on the page; expected, not an error.
			continue
		}

		users, uErr := strconv.Atoi(match[1])
		rating, rErr := strconv.ParseFloat(match[2], 64)
		reviews, vErr := strconv.Atoi(match[3])
		if uErr != nil || rErr != nil || vErr != nil {
			continue
		}

		candidates = append(candidates, domain.Candidate{
			Name: a.name,
			URL:  a.url,
			Metrics: domain.Metrics{
				Users:   users,
				Rating:  rating,
				Reviews: reviews,
			},
			ScrapedAt: now,
		})
	}

	return candidates, nil
}

func pageOrigin(pageURL string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host
}

func resolveHref(origin, href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	return origin + href
}
