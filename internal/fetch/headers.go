package fetch

import "net/http"

// Profile selects the browser header set sent with a request. Document
// navigation, XHR fragment loads, and media downloads present different
// Accept and Sec-Fetch-* values in real browsers, and ad portals check
// them.
type Profile int

const (
	// ProfileDocument mimics a top-level page navigation.
	ProfileDocument Profile = iota
	// ProfileFragment mimics an in-page XHR (pagination fragments, JSON).
	ProfileFragment
	// ProfileMedia mimics an asset fetch (images, video segments).
	ProfileMedia
)

// applyProfile sets the common browser headers for the given profile.
// User-Agent is set separately by the client so the value can be recorded
// per request.
func applyProfile(h http.Header, p Profile, referer, origin string) {
	// Accept-Encoding is left to the transport so gzip bodies are
	// decompressed transparently.
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Connection", "keep-alive")
	if referer != "" {
		h.Set("Referer", referer)
	}
	if origin != "" {
		h.Set("Origin", origin)
	}

	switch p {
	case ProfileDocument:
		h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
		h.Set("Upgrade-Insecure-Requests", "1")
		h.Set("Sec-Fetch-Dest", "document")
		h.Set("Sec-Fetch-Mode", "navigate")
		h.Set("Sec-Fetch-Site", "same-origin")
		h.Set("Sec-Fetch-User", "?1")
	case ProfileFragment:
		h.Set("Accept", "application/vnd.linkedin.normalized+json+2.1, application/json, text/html")
		h.Set("X-Restli-Protocol-Version", "2.0.0")
		h.Set("Sec-Fetch-Dest", "empty")
		h.Set("Sec-Fetch-Mode", "cors")
		h.Set("Sec-Fetch-Site", "same-origin")
	case ProfileMedia:
		h.Set("Accept", "*/*")
		h.Set("Sec-Fetch-Dest", "empty")
		h.Set("Sec-Fetch-Mode", "cors")
		h.Set("Sec-Fetch-Site", "same-origin")
	}
}
