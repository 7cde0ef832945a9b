package fetch

import (
	"net/http"
	"strings"
)

// BlockType describes the kind of anti-bot block detected on a response.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockAuthWall   BlockType = "auth_wall"
	BlockCaptcha    BlockType = "captcha"
	BlockRateLimit  BlockType = "rate_limit"
	BlockCloudflare BlockType = "cloudflare"
	BlockJSShell    BlockType = "js_shell"
)

// DetectBlock inspects a response for signs the portal refused to serve
// the real page. Status, headers, and body markers are all consulted; the
// body is expected to be the (possibly truncated) HTML text.
func DetectBlock(status int, header http.Header, body []byte) (bool, BlockType) {
	if status == 429 {
		return true, BlockRateLimit
	}

	if status == 403 || status == 503 {
		if header.Get("cf-ray") != "" || header.Get("cf-cache-status") != "" ||
			strings.EqualFold(header.Get("server"), "cloudflare") {
			return true, BlockCloudflare
		}
	}

	lower := strings.ToLower(string(body))

	// Login wall: the portal redirects anonymous or stale sessions to an
	// authwall page instead of the requested content.
	if strings.Contains(lower, "/authwall") ||
		strings.Contains(lower, "sign in to continue") ||
		(status == 999) { // legacy bot-detection status
		return true, BlockAuthWall
	}

	if strings.Contains(lower, "captcha") ||
		strings.Contains(lower, "recaptcha") ||
		strings.Contains(lower, "security verification") {
		return true, BlockCaptcha
	}

	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") {
		return true, BlockCloudflare
	}

	// Tiny body that immediately bounces through JS is a shell page; the
	// real content needs a rendering pass.
	if len(body) < 2000 {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return true, BlockJSShell
		}
		if strings.Contains(lower, `meta http-equiv="refresh"`) {
			return true, BlockJSShell
		}
	}

	return false, BlockNone
}
