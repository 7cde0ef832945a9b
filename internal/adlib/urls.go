// Package adlib implements discovery and parsing for the public ad
// library portal: search pagination to collect ad IDs and detail page
// extraction of creatives and their assets.
package adlib

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// DefaultBaseURL is the portal root. Tests point it at an httptest server.
const DefaultBaseURL = "https://www.linkedin.com"

const (
	searchPath   = "/ad-library/search"
	fragmentPath = "/ad-library/searchPaginationFragment"
	detailPath   = "/ad-library/detail"
)

var adIDPattern = regexp.MustCompile(`/ad-library/detail/(\d+)`)

// SearchURL builds the full search page URL for an advertiser at the
// given result offset.
func SearchURL(base, advertiser string, offset int) string {
	q := url.Values{}
	q.Set("accountOwner", advertiser)
	q.Set("countries", "ALL")
	q.Set("start", strconv.Itoa(offset))
	return strings.TrimSuffix(base, "/") + searchPath + "?" + q.Encode()
}

// FragmentURL builds the pagination fragment URL for an advertiser,
// optionally carrying the opaque pagination token from the prior page.
func FragmentURL(base, advertiser, token string) string {
	q := url.Values{}
	q.Set("accountOwner", advertiser)
	if token != "" {
		q.Set("paginationToken", token)
	}
	return strings.TrimSuffix(base, "/") + fragmentPath + "?" + q.Encode()
}

// DetailURL builds the detail page URL for an ad ID.
func DetailURL(base, adID string) string {
	return strings.TrimSuffix(base, "/") + detailPath + "/" + adID
}

// AdIDFromURL extracts the numeric ad ID from a detail URL, if present.
func AdIDFromURL(rawURL string) (string, bool) {
	m := adIDPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ExtractAdIDs pulls all distinct ad IDs out of a search page or
// fragment, in document order.
func ExtractAdIDs(html []byte) []string {
	var ids []string
	seen := make(map[string]struct{})
	for _, m := range adIDPattern.FindAllSubmatch(html, -1) {
		id := string(m[1])
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
