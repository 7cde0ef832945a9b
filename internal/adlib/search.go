package adlib

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/adscout/internal/fetch"
	"github.com/sells-group/adscout/internal/model"
)

// Fetcher is the slice of the HTTP client the search flow needs.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Response, error)
	FetchFragment(ctx context.Context, rawURL string) (*fetch.Response, error)
}

// SearchOptions tunes the pagination walk.
type SearchOptions struct {
	// BaseURL overrides the portal root.
	BaseURL string

	// PageDelay is the pause between page fetches. Default: 1s.
	PageDelay time.Duration

	// MaxPages caps the walk regardless of tokens. Default: 100.
	MaxPages int
}

// SearchClient walks search pagination and collects ad references.
type SearchClient struct {
	fetcher Fetcher
	base    string
	delay   time.Duration
	maxPage int
}

// NewSearchClient builds a SearchClient on top of a fetcher.
func NewSearchClient(f Fetcher, opts SearchOptions) *SearchClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.PageDelay <= 0 {
		opts.PageDelay = time.Second
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 100
	}
	return &SearchClient{
		fetcher: f,
		base:    opts.BaseURL,
		delay:   opts.PageDelay,
		maxPage: opts.MaxPages,
	}
}

// page is one step of the pagination walk: the HTML holding detail
// links, plus the token for the next step.
type page struct {
	HTML      string `json:"html"`
	NextToken string `json:"paginationToken"`
}

// CollectAdIDs pages through search results for advertiser until
// maxResults IDs are collected or the portal runs out of pages. The
// walk stops early on repeated tokens, which the portal emits when a
// result set ends mid-page.
func (s *SearchClient) CollectAdIDs(ctx context.Context, advertiser string, maxResults int) ([]model.AdRef, error) {
	if advertiser == "" {
		return nil, eris.New("adlib: advertiser is required")
	}
	if maxResults <= 0 {
		maxResults = 100
	}

	var refs []model.AdRef
	collected := make(map[string]struct{})
	seenTokens := make(map[string]struct{})
	token := ""

	for pageNum := 1; pageNum <= s.maxPage && len(refs) < maxResults; pageNum++ {
		if token != "" {
			if _, ok := seenTokens[token]; ok {
				zap.L().Warn("pagination token repeated, stopping walk",
					zap.String("advertiser", advertiser), zap.Int("page", pageNum))
				break
			}
			seenTokens[token] = struct{}{}
		}

		pg, err := s.fetchPage(ctx, advertiser, token)
		if err != nil {
			if len(refs) > 0 {
				zap.L().Warn("page fetch failed, returning partial results",
					zap.String("advertiser", advertiser),
					zap.Int("page", pageNum),
					zap.Int("collected", len(refs)),
					zap.Error(err))
				return refs, nil
			}
			return nil, err
		}
		if pg.HTML == "" {
			break
		}

		ids := ExtractAdIDs([]byte(pg.HTML))
		added := 0
		for _, id := range ids {
			if len(refs) >= maxResults {
				break
			}
			if _, ok := collected[id]; ok {
				continue
			}
			collected[id] = struct{}{}
			refs = append(refs, model.AdRef{
				ID:         id,
				DetailURL:  DetailURL(s.base, id),
				Advertiser: advertiser,
			})
			added++
		}

		zap.L().Debug("search page scraped",
			zap.String("advertiser", advertiser),
			zap.Int("page", pageNum),
			zap.Int("ids_on_page", len(ids)),
			zap.Int("new", added),
			zap.Int("total", len(refs)))

		if len(ids) == 0 && pg.NextToken == "" {
			break
		}
		if pg.NextToken == "" || pg.NextToken == token {
			break
		}
		token = pg.NextToken

		if len(refs) < maxResults {
			select {
			case <-ctx.Done():
				return refs, eris.Wrap(ctx.Err(), "adlib: pagination interrupted")
			case <-time.After(s.delay):
			}
		}
	}

	return refs, nil
}

// fetchPage retrieves one pagination step. Tokens of the form
// "<offset>#..." switch the walk to offset-based search page fetches;
// anything else goes through the fragment API.
func (s *SearchClient) fetchPage(ctx context.Context, advertiser, token string) (*page, error) {
	if offset, ok := offsetFromToken(token); ok {
		resp, err := s.fetcher.Fetch(ctx, SearchURL(s.base, advertiser, offset))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != 200 {
			return nil, eris.Errorf("adlib: search page returned %d", resp.StatusCode)
		}
		return &page{
			HTML:      string(resp.Body),
			NextToken: ExtractNextToken(resp.Body),
		}, nil
	}

	resp, err := s.fetcher.FetchFragment(ctx, FragmentURL(s.base, advertiser, token))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, eris.Errorf("adlib: fragment returned %d", resp.StatusCode)
	}

	// The endpoint answers either JSON {"html","paginationToken"} or a
	// bare HTML fragment depending on mood. Handle both.
	var pg page
	if err := json.Unmarshal(resp.Body, &pg); err == nil && (pg.HTML != "" || pg.NextToken != "") {
		if pg.NextToken == "" {
			pg.NextToken = ExtractNextToken([]byte(pg.HTML))
		}
		return &pg, nil
	}
	return &page{
		HTML:      string(resp.Body),
		NextToken: ExtractNextToken(resp.Body),
	}, nil
}

// offsetFromToken reports whether token encodes an offset
// ("<n>#<opaque>") and returns the offset if so.
func offsetFromToken(token string) (int, bool) {
	if token == "" || !strings.Contains(token, "#") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.SplitN(token, "#", 2)[0])
	if err != nil {
		return 0, false
	}
	return n, true
}

var tokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)"paginationToken"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`(?i)paginationToken["']?\s*[:=]\s*["']([^"']+)`),
	regexp.MustCompile(`(?i)data-pagination-token="([^"]+)"`),
	regexp.MustCompile(`(?i)pagination-token["']?\s*[:=]\s*["']([^"']+)`),
}

// ExtractNextToken finds the next pagination token embedded in a page
// body. Offset tokens ("<n>#...") win over opaque API tokens because
// they recover from API pagination dead ends.
func ExtractNextToken(html []byte) string {
	var offsetTok, apiTok string
	seen := make(map[string]struct{})

	for _, pat := range tokenPatterns {
		for _, m := range pat.FindAllSubmatch(html, -1) {
			tok := string(m[1])
			if tok == "" || tok == "null" {
				continue
			}
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			if strings.Contains(tok, "#") {
				if offsetTok == "" {
					offsetTok = tok
				}
			} else if apiTok == "" {
				apiTok = tok
			}
		}
	}

	if offsetTok != "" {
		return offsetTok
	}
	return apiTok
}
