package adlib

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/adscout/internal/fetch"
	"github.com/sells-group/adscout/internal/model"
)

// DetailClient fetches and parses ad detail pages.
type DetailClient struct {
	fetcher Fetcher
	base    string
}

// NewDetailClient builds a DetailClient. baseURL defaults to the portal
// root when empty.
func NewDetailClient(f Fetcher, baseURL string) *DetailClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &DetailClient{fetcher: f, base: baseURL}
}

// Scrape fetches the detail page for adID and extracts its creative.
func (d *DetailClient) Scrape(ctx context.Context, adID string) (*model.Ad, error) {
	detailURL := DetailURL(d.base, adID)

	resp, err := d.fetcher.Fetch(ctx, detailURL)
	if err != nil {
		return nil, eris.Wrapf(err, "adlib: fetch detail %s", adID)
	}
	if blocked, bt := fetch.DetectBlock(resp.StatusCode, resp.Header, resp.Body); blocked {
		return nil, eris.Errorf("adlib: detail %s blocked (%s)", adID, bt)
	}
	if resp.StatusCode != 200 {
		return nil, eris.Errorf("adlib: detail %s returned %d", adID, resp.StatusCode)
	}

	creative, err := ParseDetail(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "adlib: parse detail %s", adID)
	}

	zap.L().Debug("ad detail scraped",
		zap.String("ad_id", adID),
		zap.String("advertiser", creative.Advertiser),
		zap.Int("images", len(creative.ImageURLs)),
		zap.Int("videos", len(creative.VideoURLs)))

	return &model.Ad{
		ID:        adID,
		DetailURL: detailURL,
		Creative:  *creative,
		ScrapedAt: resp.FetchedAt,
	}, nil
}

// ParseDetail extracts a Creative from detail page HTML.
func ParseDetail(html []byte) (*model.Creative, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "adlib: parse html")
	}

	c := &model.Creative{
		Advertiser: extractAdvertiser(doc),
		Body:       extractBody(doc),
		AdType:     extractAdType(doc),
		PaidForBy:  extractPaidForBy(doc),
		CTAs:       extractCTAs(doc),
		LogoURL:    extractLogo(doc),
	}
	c.ImageURLs = extractImages(doc, c.LogoURL)
	c.VideoURLs, c.PosterURLs = extractVideos(doc)
	return c, nil
}

var advertiserSelectors = []string{
	"h1",
	"h2",
	`a[href*="/company/"]`,
	`[data-test-id="advertiser-name"]`,
	".advertiser-name",
	`span[class*="advertiser"]`,
}

func extractAdvertiser(doc *goquery.Document) string {
	for _, sel := range advertiserSelectors {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if text == "" || len(text) >= 100 {
			continue
		}
		lower := strings.ToLower(text)
		if lower == "ad details" || lower == "ad detail" {
			continue
		}
		return text
	}
	return ""
}

var bodySelectors = []string{
	".commentary__content",
	"p.commentary__content",
	".ad-content",
	".ad-text",
	`[class*="commentary"]`,
	`[class*="content"]`,
	"p",
}

// bodySkipWords marks chrome text that shows up in generic selectors:
// navigation, legal footers, expander labels.
var bodySkipWords = []string{
	"cookie", "privacy", "policy", "about",
	"linkedin corporation", "please note",
	"terms of service", "ad details",
	"view details", "see more", "…see more",
	"sign in", "sign up", "join now",
}

func extractBody(doc *goquery.Document) string {
	var parts []string
	seen := make(map[string]struct{})

	for _, sel := range bodySelectors {
		doc.Find(sel).EachWithBreak(func(i int, s *goquery.Selection) bool {
			if i >= 10 {
				return false
			}
			text := strings.TrimSpace(s.Text())
			if len(text) <= 10 || len(text) >= 2000 {
				return true
			}
			if _, ok := seen[text]; ok {
				return true
			}
			lower := strings.ToLower(text)
			for _, skip := range bodySkipWords {
				if strings.Contains(lower, skip) {
					return true
				}
			}
			seen[text] = struct{}{}
			parts = append(parts, text)
			return true
		})
	}

	// Generic selectors nest, so drop fragments contained in an
	// already kept paragraph (and vice versa).
	var unique []string
	for _, text := range parts {
		dup := false
		for _, kept := range unique {
			if strings.Contains(kept, text) || strings.Contains(text, kept) {
				dup = true
				break
			}
		}
		if !dup {
			unique = append(unique, text)
		}
	}
	if len(unique) > 5 {
		unique = unique[:5]
	}
	return strings.Join(unique, "\n\n")
}

var adTypePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(Video Ad|Image Ad|Carousel Ad|Single Image Ad|Sponsored Content)`),
	regexp.MustCompile(`(?i)Ad Type[:\s]+(\w+)`),
}

func extractAdType(doc *goquery.Document) string {
	text := doc.Text()
	for _, pat := range adTypePatterns {
		if m := pat.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

var paidForByPattern = regexp.MustCompile(`(?i)Paid for by[:\s]+([^\n.]+)`)

func extractPaidForBy(doc *goquery.Document) string {
	if m := paidForByPattern.FindStringSubmatch(doc.Text()); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

var ctaSelectors = []string{
	`button[data-tracking-control-name*="cta"]`,
	`a[class*="cta"]`,
	"button",
	`a[class*="button"]`,
}

var ctaSkipText = map[string]struct{}{
	"see more": {}, "…see more": {}, "view details": {}, "sign in": {},
}

func extractCTAs(doc *goquery.Document) []model.CTA {
	var ctas []model.CTA
	seen := make(map[string]struct{})

	for _, sel := range ctaSelectors {
		doc.Find(sel).EachWithBreak(func(i int, s *goquery.Selection) bool {
			if i >= 5 || len(ctas) >= 3 {
				return false
			}
			text := strings.TrimSpace(s.Text())
			if text == "" || len(text) >= 100 {
				return true
			}
			if _, skip := ctaSkipText[strings.ToLower(text)]; skip {
				return true
			}
			if _, ok := seen[text]; ok {
				return true
			}
			seen[text] = struct{}{}
			ctas = append(ctas, model.CTA{Text: text, Link: s.AttrOr("href", "")})
			return true
		})
		if len(ctas) >= 3 {
			break
		}
	}
	return ctas
}

func extractLogo(doc *goquery.Document) string {
	var logo string
	doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src := imageSrc(s)
		if src == "" {
			return true
		}
		alt := strings.ToLower(s.AttrOr("alt", ""))
		if strings.Contains(alt, "logo") || strings.Contains(alt, "advertiser") ||
			strings.Contains(strings.ToLower(src), "logo") {
			logo = src
			return false
		}
		return true
	})
	if logo != "" {
		return logo
	}

	// Fall back to the image inside the advertiser's company link.
	doc.Find(`a[href*="/company/"] img`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if src := imageSrc(s); src != "" {
			logo = src
			return false
		}
		return true
	})
	return logo
}

func extractImages(doc *goquery.Document, logoURL string) []string {
	var images []string
	seen := make(map[string]struct{})
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src := imageSrc(s)
		if src == "" || src == logoURL || strings.Contains(strings.ToLower(src), "logo") {
			return
		}
		if _, ok := seen[src]; ok {
			return
		}
		seen[src] = struct{}{}
		images = append(images, src)
	})
	return images
}

func extractVideos(doc *goquery.Document) (videos, posters []string) {
	var candidates []string

	doc.Find("video").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range []string{"src", "data-src"} {
			if v := cleanURL(s.AttrOr(attr, "")); strings.HasPrefix(v, "http") {
				candidates = append(candidates, v)
				break
			}
		}
		for _, attr := range []string{"data-poster-url", "poster"} {
			if p := cleanURL(s.AttrOr(attr, "")); strings.HasPrefix(p, "http") {
				posters = append(posters, p)
				break
			}
		}
	})

	// Players embed a JSON source list on data-sources, on the video tag
	// or a wrapper div.
	doc.Find("[data-sources]").Each(func(_ int, s *goquery.Selection) {
		candidates = append(candidates, parseDataSources(s.AttrOr("data-sources", ""))...)
	})

	// The same clip appears once per quality rung. Group by the
	// quality-stripped path and keep the best rendition of each group.
	groups := make(map[string][]string)
	var order []string
	for _, u := range candidates {
		base := VideoBasePath(u)
		if _, ok := groups[base]; !ok {
			order = append(order, base)
		}
		groups[base] = append(groups[base], u)
	}
	for _, base := range order {
		videos = append(videos, bestQuality(groups[base]))
	}
	return videos, posters
}

// parseDataSources decodes the JSON array of {"src": ...} objects that
// video players carry in their data-sources attribute.
func parseDataSources(raw string) []string {
	if raw == "" {
		return nil
	}
	decoded := strings.ReplaceAll(raw, "&quot;", `"`)
	decoded = strings.ReplaceAll(decoded, "&amp;", "&")
	if un, err := url.PathUnescape(decoded); err == nil {
		decoded = un
	}

	var sources []struct {
		Src string `json:"src"`
	}
	if err := json.Unmarshal([]byte(decoded), &sources); err != nil {
		return nil
	}

	var urls []string
	for _, s := range sources {
		if strings.HasPrefix(s.Src, "http") {
			urls = append(urls, s.Src)
		}
	}
	return urls
}

// imageSrc picks the first usable image URL off an img tag, checking
// the lazy-load attributes the portal uses.
func imageSrc(s *goquery.Selection) string {
	for _, attr := range []string{"src", "data-src", "data-delayed-url"} {
		if v := cleanURL(s.AttrOr(attr, "")); strings.HasPrefix(v, "http") {
			return v
		}
	}
	return ""
}

func cleanURL(raw string) string {
	raw = strings.ReplaceAll(raw, "&amp;", "&")
	if un, err := url.PathUnescape(raw); err == nil {
		return un
	}
	return raw
}

var (
	videoQualityFull  = regexp.MustCompile(`/mp4-\d+p-\d+fp-[^/]+/`)
	videoQualityShort = regexp.MustCompile(`/mp4-\d+p/`)
	videoQualityMark  = regexp.MustCompile(`(\d+)p`)
)

// VideoBasePath strips quality segments from a video URL so renditions
// of the same clip share a key.
func VideoBasePath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	p := videoQualityFull.ReplaceAllString(u.Path, "/")
	p = videoQualityShort.ReplaceAllString(p, "/")
	return u.Scheme + "://" + u.Host + p
}

// bestQuality picks the URL with the highest "<n>p" marker; URLs with
// no marker rank lowest.
func bestQuality(urls []string) string {
	best := urls[0]
	bestQ := qualityOf(best)
	for _, u := range urls[1:] {
		if q := qualityOf(u); q > bestQ {
			best, bestQ = u, q
		}
	}
	return best
}

func qualityOf(u string) int {
	max := 0
	for _, m := range videoQualityMark.FindAllStringSubmatch(u, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > max {
			max = n
		}
	}
	return max
}
